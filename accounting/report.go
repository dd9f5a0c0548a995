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

package accounting

import (
	"fmt"
	"sort"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/costbasis"
	"github.com/dncohen/taxlot/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settings of a processing run.
type Settings struct {
	costbasis.Settings

	IncludeGasCosts      bool
	IncludeCrypto2Crypto bool
}

func DefaultSettings() Settings {
	return Settings{
		Settings:             costbasis.DefaultSettings(),
		IncludeGasCosts:      true,
		IncludeCrypto2Crypto: true,
	}
}

type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Trade on an exchange.  Amount is in Base, Rate is Quote per Base.
type Trade struct {
	Timestamp   types.Timestamp `json:"timestamp"`
	Location    types.Location  `json:"location"`
	Base        asset.Asset     `json:"base_asset"`
	Quote       asset.Asset     `json:"quote_asset"`
	Type        TradeType       `json:"trade_type"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	Fee         decimal.Decimal `json:"fee"`
	FeeCurrency asset.Asset     `json:"fee_currency"`
	Link        string          `json:"link,omitempty"`
}

func (this Trade) String() string {
	return fmt.Sprintf("%s %s %s %s/%s at %s", this.Location, this.Type, this.Amount, this.Base, this.Quote, this.Rate)
}

type EventKind string

const (
	KindTrade            EventKind = "trade"
	KindFee              EventKind = "fee"
	KindTransactionEvent EventKind = "transaction event"
)

// PnL in the profit currency.
type PnL struct {
	Taxable decimal.Decimal `json:"taxable"`
	Free    decimal.Decimal `json:"free"`
}

func (this PnL) Add(other PnL) PnL {
	return PnL{
		Taxable: this.Taxable.Add(other.Taxable),
		Free:    this.Free.Add(other.Free),
	}
}

func (this PnL) IsZero() bool {
	return this.Taxable.IsZero() && this.Free.IsZero()
}

func (this PnL) String() string {
	return fmt.Sprintf("taxable %s, free %s", this.Taxable, this.Free)
}

// ProcessedEvent is one row of a report.  Spends carry their cost basis
// when one was computed.
type ProcessedEvent struct {
	Index           int             `json:"index"`
	Kind            EventKind       `json:"type"`
	Timestamp       types.Timestamp `json:"timestamp"`
	Location        types.Location  `json:"location"`
	Asset           asset.Asset     `json:"asset"`
	Amount          decimal.Decimal `json:"amount"`
	Price           decimal.Decimal `json:"price"`
	Taxable         bool            `json:"taxable"`
	Spend           bool            `json:"spend"`
	PnL             PnL             `json:"pnl"`
	Notes           string          `json:"notes"`
	EventIdentifier string          `json:"event_identifier,omitempty"`
	CostBasis       *costbasis.Info `json:"cost_basis,omitempty"`
}

// Value of the event in the profit currency.
func (this ProcessedEvent) Value() decimal.Decimal {
	return this.Amount.Mul(this.Price)
}

type Report struct {
	ID             uuid.UUID
	Settings       Settings
	FirstProcessed types.Timestamp
	LastProcessed  types.Timestamp

	Events              []ProcessedEvent
	Totals              map[EventKind]PnL
	MissingAcquisitions []costbasis.MissingAcquisition
	MissingPrices       []costbasis.MissingPrice
}

// Overall sums the totals of every kind.
func (this Report) Overall() PnL {
	sum := PnL{}
	for _, pnl := range this.Totals {
		sum = sum.Add(pnl)
	}
	return sum
}

// Kinds returns the kinds present in Totals, sorted.
func (this Report) Kinds() []EventKind {
	var list []EventKind
	for k := range this.Totals {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
