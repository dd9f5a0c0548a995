// Copyright (C) 2020  David N. Cohen
// This file is part of github.com/dncohen/taxlot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package decoding

import (
	"github.com/dncohen/taxlot/asset"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionSkip      Action = "skip"
	ActionTransform Action = "transform"
)

// ActionItem is a decoder's instruction about a transfer that appears
// later in the same transaction.  Zero valued To* fields are left
// alone.
type ActionItem struct {
	Action           Action
	Asset            asset.Asset
	Amount           decimal.Decimal
	FromEventType    EventType
	FromEventSubtype EventSubType

	ToEventType    EventType
	ToEventSubtype EventSubType
	ToNotes        string
	ToCounterparty string
}

func (this ActionItem) matches(event *HistoryEvent) bool {
	return this.Asset == event.Asset &&
		this.Amount.Equal(event.Amount) &&
		this.FromEventType == event.EventType &&
		this.FromEventSubtype == event.EventSubtype
}

// ActionItems are the pending items of one transaction.  Each is
// consumed at most once, by the first event it matches.
type ActionItems struct {
	items []ActionItem
}

func (this *ActionItems) Add(item ActionItem) {
	this.items = append(this.items, item)
}

func (this *ActionItems) Len() int {
	return len(this.items)
}

// Apply consumes the first item matching event.  A transform item
// rewrites event in place.  skip reports that the event must be
// dropped.
func (this *ActionItems) Apply(event *HistoryEvent) (matched, skip bool) {
	for idx, item := range this.items {
		if !item.matches(event) {
			continue
		}
		this.items = append(this.items[:idx], this.items[idx+1:]...)

		if item.Action == ActionSkip {
			glog.V(2).Infof("action item drops %s", event)
			return true, true
		}
		if item.ToEventType != "" {
			event.EventType = item.ToEventType
		}
		if item.ToEventSubtype != "" {
			event.EventSubtype = item.ToEventSubtype
		}
		if item.ToNotes != "" {
			event.Notes = item.ToNotes
		}
		if item.ToCounterparty != "" {
			event.Counterparty = item.ToCounterparty
		}
		return true, false
	}
	return false, false
}

type Method string

const (
	MethodSpend       Method = "spend"
	MethodAcquisition Method = "acquisition"
)

type MultitakeTreatment string

const (
	MultitakeSwap MultitakeTreatment = "swap"
)

// TxEventSettings tell the accountant how to treat one kind of event.
type TxEventSettings struct {
	Taxable                bool
	CountEntireAmountSpend bool
	CountCostBasisPnl      bool
	Method                 Method
	Take                   int
	MultitakeTreatment     MultitakeTreatment
}

// SettingsContext carries the run options decoders may consult when
// building their event settings.
type SettingsContext struct {
	IncludeGasCosts bool
}
