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
	"fmt"
	"sort"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTrade         EventType = "trade"
	EventStaking       EventType = "staking"
	EventDeposit       EventType = "deposit"
	EventWithdrawal    EventType = "withdrawal"
	EventTransfer      EventType = "transfer"
	EventSpend         EventType = "spend"
	EventReceive       EventType = "receive"
	EventAdjustment    EventType = "adjustment"
	EventUnknown       EventType = "unknown"
	EventInformational EventType = "informational"
	EventMigrate       EventType = "migrate"
)

type EventSubType string

const (
	SubtypeNone              EventSubType = "none"
	SubtypeReward            EventSubType = "reward"
	SubtypeDepositAsset      EventSubType = "deposit asset"
	SubtypeRemoveAsset       EventSubType = "remove asset"
	SubtypeFee               EventSubType = "fee"
	SubtypeSpend             EventSubType = "spend"
	SubtypeReceive           EventSubType = "receive"
	SubtypeApprove           EventSubType = "approve"
	SubtypeDeploy            EventSubType = "deploy"
	SubtypeAirdrop           EventSubType = "airdrop"
	SubtypeBridge            EventSubType = "bridge"
	SubtypeGovernancePropose EventSubType = "governance propose"
	SubtypeReceiveWrapped    EventSubType = "receive wrapped"
	SubtypeReturnWrapped     EventSubType = "return wrapped"
	SubtypeDonate            EventSubType = "donate"
)

// HistoryEvent is one decoded movement or notice.  EventIdentifier and
// SequenceIndex together are unique.
type HistoryEvent struct {
	EventIdentifier string            `json:"event_identifier"`
	SequenceIndex   int               `json:"sequence_index"`
	Timestamp       types.TimestampMS `json:"timestamp"`
	Location        types.Location    `json:"location"`
	LocationLabel   string            `json:"location_label,omitempty"`
	Asset           asset.Asset       `json:"asset"`
	Amount          decimal.Decimal   `json:"amount"`
	USDValue        decimal.Decimal   `json:"usd_value"`
	Notes           string            `json:"notes,omitempty"`
	EventType       EventType         `json:"event_type"`
	EventSubtype    EventSubType      `json:"event_subtype"`
	Counterparty    string            `json:"counterparty,omitempty"`
}

func (this HistoryEvent) String() string {
	return fmt.Sprintf("%s/%d %s/%s %s %s: %s", this.EventIdentifier, this.SequenceIndex, this.EventType, this.EventSubtype, this.Amount, this.Asset, this.Notes)
}

// TypeIdentifier keys accounting settings.
func (this HistoryEvent) TypeIdentifier() string {
	return TypeIdentifier(this.EventType, this.EventSubtype, this.Counterparty)
}

// TypeIdentifier is "type__subtype", followed by "__counterparty" when
// one is given.
func TypeIdentifier(t EventType, st EventSubType, counterparty string) string {
	id := string(t) + "__" + string(st)
	if counterparty != "" {
		id += "__" + counterparty
	}
	return id
}

// SortEvents orders a transaction's events by sequence index.
func SortEvents(events []*HistoryEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].SequenceIndex < events[j].SequenceIndex
	})
}

// MaybeReshuffleEvents makes sure the out leg of a swap comes before
// the in leg.
func MaybeReshuffleEvents(out, in *HistoryEvent) {
	if out == nil || in == nil {
		return
	}
	if out.SequenceIndex > in.SequenceIndex {
		out.SequenceIndex, in.SequenceIndex = in.SequenceIndex, out.SequenceIndex
	}
}
