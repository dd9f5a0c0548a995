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

// Package accounting runs trades and decoded transaction events through
// the cost basis calculator and tallies profit and loss.
//
// A Pot is one processing run.  It is not safe for concurrent use.
package accounting

import (
	"context"
	"fmt"
	"sort"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/costbasis"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/price"
	"github.com/dncohen/taxlot/types"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SettingsSource provides per event type accounting settings.  The
// transaction decoder is one.
type SettingsSource interface {
	AccountingSettings(decoding.SettingsContext) map[string]decoding.TxEventSettings
}

type Pot struct {
	calculator *costbasis.Calculator
	prices     price.Querier
	source     SettingsSource

	settings      Settings
	eventSettings map[string]decoding.TxEventSettings
	reportID      uuid.UUID
	events        []ProcessedEvent
	totals        map[EventKind]PnL
	first, last   types.Timestamp
}

func NewPot(prices price.Querier, source SettingsSource) *Pot {
	this := &Pot{
		calculator: costbasis.NewCalculator(costbasis.DefaultSettings()),
		prices:     prices,
		source:     source,
	}
	this.Reset(DefaultSettings())
	return this
}

// Reset starts a new processing run and returns its report ID.
func (this *Pot) Reset(settings Settings) uuid.UUID {
	this.settings = settings
	this.calculator.Reset(settings.Settings)
	this.eventSettings = nil
	if this.source != nil {
		this.eventSettings = this.source.AccountingSettings(decoding.SettingsContext{
			IncludeGasCosts: settings.IncludeGasCosts,
		})
	}
	this.reportID = uuid.New()
	this.events = nil
	this.totals = make(map[EventKind]PnL)
	this.first, this.last = 0, 0
	glog.V(1).Infof("starting report %s in %s", this.reportID, settings.ProfitCurrency)
	return this.reportID
}

func (this *Pot) Calculator() *costbasis.Calculator {
	return this.calculator
}

func (this *Pot) ReportID() uuid.UUID {
	return this.reportID
}

// rate of one unit of a in the profit currency.  ok is false when no
// oracle knows it.
func (this *Pot) rate(ctx context.Context, a asset.Asset, ts types.Timestamp) (decimal.Decimal, bool, error) {
	a = a.Canonical()
	if a == this.settings.ProfitCurrency {
		return decimal.NewFromInt(1), true, nil
	}
	r, err := this.prices.QueryHistoricalPrice(ctx, a, this.settings.ProfitCurrency, ts)
	if err != nil {
		if errors.Cause(err) == price.ErrNoPrice {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return r, true, nil
}

func (this *Pot) missingPrice(a asset.Asset, ts types.Timestamp) {
	glog.Warningf("no price of %s in %s at %s", a, this.settings.ProfitCurrency, this.settings.TimestampToDate(ts))
	this.calculator.AddMissingPrice(costbasis.MissingPrice{
		FromAsset: a,
		ToAsset:   this.settings.ProfitCurrency,
		Time:      ts,
	})
}

func (this *Pot) record(ev ProcessedEvent) {
	ev.Index = len(this.events)
	this.events = append(this.events, ev)
	this.totals[ev.Kind] = this.totals[ev.Kind].Add(ev.PnL)
	if this.first == 0 || ev.Timestamp < this.first {
		this.first = ev.Timestamp
	}
	if ev.Timestamp > this.last {
		this.last = ev.Timestamp
	}
	glog.V(2).Infof("%s %s %s at %s: %s", ev.Kind, ev.Amount, ev.Asset, ev.Price, ev.PnL)
}

// addAcquisition obtains a lot.  Taxable acquisitions count their whole
// value as income.
func (this *Pot) addAcquisition(kind EventKind, location types.Location, ts types.Timestamp, a asset.Asset, amount, rate decimal.Decimal, taxable bool, notes, id string) {
	this.calculator.Obtain(a, amount, ts, rate, len(this.events))
	pnl := PnL{Taxable: decimal.Zero, Free: decimal.Zero}
	if taxable {
		pnl.Taxable = amount.Mul(rate)
	}
	this.record(ProcessedEvent{
		Kind:            kind,
		Timestamp:       ts,
		Location:        location,
		Asset:           a,
		Amount:          amount,
		Price:           rate,
		Taxable:         taxable,
		PnL:             pnl,
		Notes:           notes,
		EventIdentifier: id,
	})
}

// addSpend disposes of amount.  With countEntire the whole value is a
// loss; with countCostBasis value minus cost basis is a gain.  Both may
// apply.  Spends without cost basis have no PnL.
func (this *Pot) addSpend(kind EventKind, location types.Location, ts types.Timestamp, a asset.Asset, amount, rate decimal.Decimal, taxable, countEntire, countCostBasis bool, notes, id string) {
	info := this.calculator.Spend(location, ts, a, amount, rate, taxable)

	taxableAmount := decimal.Zero
	taxableCost := decimal.Zero
	freeCost := decimal.Zero
	switch {
	case info != nil:
		taxableAmount = info.TaxableAmount
		taxableCost = info.TaxableBoughtCost
		freeCost = info.TaxfreeBoughtCost
	case taxable && a.IsFiat():
		// fiat costs its face value
		taxableAmount = amount
		taxableCost = amount.Mul(rate)
	default:
		countEntire, countCostBasis = false, false
	}
	freeAmount := amount.Sub(taxableAmount)

	pnl := PnL{Taxable: decimal.Zero, Free: decimal.Zero}
	if countEntire {
		pnl.Taxable = pnl.Taxable.Sub(taxableAmount.Mul(rate))
		pnl.Free = pnl.Free.Sub(freeAmount.Mul(rate))
	}
	if countCostBasis {
		pnl.Taxable = pnl.Taxable.Add(taxableAmount.Mul(rate).Sub(taxableCost))
		pnl.Free = pnl.Free.Add(freeAmount.Mul(rate).Sub(freeCost))
	}

	this.record(ProcessedEvent{
		Kind:            kind,
		Timestamp:       ts,
		Location:        location,
		Asset:           a,
		Amount:          amount,
		Price:           rate,
		Taxable:         taxable,
		Spend:           true,
		PnL:             pnl,
		Notes:           notes,
		EventIdentifier: id,
		CostBasis:       info,
	})
}

// ProcessTrade spends one side of a trade and acquires the other.  A
// fee is a separate spend.
func (this *Pot) ProcessTrade(ctx context.Context, t Trade) error {
	if t.Amount.IsZero() || t.Rate.IsZero() {
		glog.Warningf("ignoring empty trade %s", t)
		return nil
	}
	ts := t.Timestamp
	quoteAmount := t.Amount.Mul(t.Rate)

	var basePrice, quotePrice decimal.Decimal
	if t.Quote.Canonical() == this.settings.ProfitCurrency {
		basePrice = t.Rate
		quotePrice = decimal.NewFromInt(1)
	} else {
		var ok bool
		var err error
		basePrice, ok, err = this.rate(ctx, t.Base, ts)
		if err != nil {
			return err
		}
		if ok {
			quotePrice = basePrice.DivRound(t.Rate, 18)
		} else {
			quotePrice, ok, err = this.rate(ctx, t.Quote, ts)
			if err != nil {
				return err
			}
			if !ok {
				this.missingPrice(t.Base, ts)
				return nil
			}
			basePrice = quotePrice.Mul(t.Rate)
		}
	}

	switch t.Type {
	case TradeBuy:
		taxable := t.Quote.IsFiat() || this.settings.IncludeCrypto2Crypto
		this.addSpend(KindTrade, t.Location, ts, t.Quote, quoteAmount, quotePrice, taxable, false, true,
			fmt.Sprintf("Buy %s %s with %s %s", t.Amount, t.Base, quoteAmount, t.Quote), t.Link)
		this.addAcquisition(KindTrade, t.Location, ts, t.Base, t.Amount, basePrice, false,
			fmt.Sprintf("Buy %s %s", t.Amount, t.Base), t.Link)
	case TradeSell:
		taxable := t.Quote.IsFiat() || this.settings.IncludeCrypto2Crypto
		this.addSpend(KindTrade, t.Location, ts, t.Base, t.Amount, basePrice, taxable, false, true,
			fmt.Sprintf("Sell %s %s for %s %s", t.Amount, t.Base, quoteAmount, t.Quote), t.Link)
		this.addAcquisition(KindTrade, t.Location, ts, t.Quote, quoteAmount, quotePrice, false,
			fmt.Sprintf("Acquire %s %s from sale", quoteAmount, t.Quote), t.Link)
	default:
		return errors.Errorf("unknown trade type %q", t.Type)
	}

	if t.Fee.IsZero() || t.FeeCurrency.IsEmpty() {
		return nil
	}
	var feePrice decimal.Decimal
	switch t.FeeCurrency {
	case t.Base:
		feePrice = basePrice
	case t.Quote:
		feePrice = quotePrice
	default:
		var ok bool
		var err error
		feePrice, ok, err = this.rate(ctx, t.FeeCurrency, ts)
		if err != nil {
			return err
		}
		if !ok {
			this.missingPrice(t.FeeCurrency, ts)
			return nil
		}
	}
	this.addSpend(KindFee, t.Location, ts, t.FeeCurrency, t.Fee, feePrice, true, true, true,
		fmt.Sprintf("Fee of %s %s", t.Fee, t.FeeCurrency), t.Link)
	return nil
}

// eventSettingsFor looks up settings by type, subtype and
// counterparty, then by type and subtype.
func (this *Pot) eventSettingsFor(event *decoding.HistoryEvent) (decoding.TxEventSettings, bool) {
	if s, ok := this.eventSettings[event.TypeIdentifier()]; ok {
		return s, true
	}
	s, ok := this.eventSettings[decoding.TypeIdentifier(event.EventType, event.EventSubtype, "")]
	return s, ok
}

func kindOf(event *decoding.HistoryEvent) EventKind {
	if event.EventSubtype == decoding.SubtypeFee {
		return KindFee
	}
	return KindTransactionEvent
}

// ProcessHistoryEvents processes the events of one transaction, in
// sequence order.  A swap setting consumes the following event as the
// acquired side.
func (this *Pot) ProcessHistoryEvents(ctx context.Context, events []*decoding.HistoryEvent) error {
	for i := 0; i < len(events); {
		n, err := this.processHistoryEvent(ctx, events[i], events[i+1:])
		if err != nil {
			return err
		}
		i += n
	}
	return nil
}

func (this *Pot) processHistoryEvent(ctx context.Context, event *decoding.HistoryEvent, rest []*decoding.HistoryEvent) (int, error) {
	s, ok := this.eventSettingsFor(event)
	if !ok {
		glog.V(2).Infof("no accounting settings for %s, skipping %s", event.TypeIdentifier(), event)
		return 1, nil
	}
	if event.Amount.IsZero() {
		return 1, nil
	}
	if s.Take == 2 && s.MultitakeTreatment == decoding.MultitakeSwap {
		return this.processSwap(ctx, s, event, rest)
	}

	ts := event.Timestamp.Seconds()
	r, ok, err := this.rate(ctx, event.Asset, ts)
	if err != nil {
		return 0, err
	}
	if !ok {
		this.missingPrice(event.Asset, ts)
		return 1, nil
	}

	switch s.Method {
	case decoding.MethodAcquisition:
		this.addAcquisition(kindOf(event), event.Location, ts, event.Asset, event.Amount, r, s.Taxable, event.Notes, event.EventIdentifier)
	case decoding.MethodSpend:
		this.addSpend(kindOf(event), event.Location, ts, event.Asset, event.Amount, r, s.Taxable, s.CountEntireAmountSpend, s.CountCostBasisPnl, event.Notes, event.EventIdentifier)
	default:
		return 0, errors.Errorf("unknown accounting method %q for %s", s.Method, event.TypeIdentifier())
	}
	return 1, nil
}

// processSwap spends out and acquires the next event at the value of
// out.  When out has no price, the acquired side is priced instead.
func (this *Pot) processSwap(ctx context.Context, s decoding.TxEventSettings, out *decoding.HistoryEvent, rest []*decoding.HistoryEvent) (int, error) {
	if len(rest) == 0 || rest[0].EventIdentifier != out.EventIdentifier {
		glog.Warningf("swap %s has no acquired side, skipping", out)
		return 1, nil
	}
	in := rest[0]
	ts := out.Timestamp.Seconds()

	outRate, ok, err := this.rate(ctx, out.Asset, ts)
	if err != nil {
		return 0, err
	}
	var inRate decimal.Decimal
	if ok {
		if !in.Amount.IsZero() {
			inRate = out.Amount.Mul(outRate).DivRound(in.Amount, 18)
		}
	} else {
		inRate, ok, err = this.rate(ctx, in.Asset, ts)
		if err != nil {
			return 0, err
		}
		if !ok {
			this.missingPrice(out.Asset, ts)
			return 2, nil
		}
		outRate = in.Amount.Mul(inRate).DivRound(out.Amount, 18)
	}

	this.addSpend(KindTransactionEvent, out.Location, ts, out.Asset, out.Amount, outRate, s.Taxable, s.CountEntireAmountSpend, s.CountCostBasisPnl, out.Notes, out.EventIdentifier)
	this.addAcquisition(KindTransactionEvent, in.Location, ts, in.Asset, in.Amount, inRate, false, in.Notes, in.EventIdentifier)
	return 2, nil
}

type item struct {
	ts     types.Timestamp
	trade  *Trade
	events []*decoding.HistoryEvent
}

// Process feeds trades and decoded events to the pot in chronological
// order.  Events are grouped per transaction.
func (this *Pot) Process(ctx context.Context, trades []Trade, events []*decoding.HistoryEvent) error {
	var items []item
	for i := range trades {
		items = append(items, item{ts: trades[i].Timestamp, trade: &trades[i]})
	}
	groups := make(map[string]int)
	for _, e := range events {
		idx, ok := groups[e.EventIdentifier]
		if !ok {
			idx = len(items)
			groups[e.EventIdentifier] = idx
			items = append(items, item{ts: e.Timestamp.Seconds()})
		}
		items[idx].events = append(items[idx].events, e)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ts < items[j].ts })

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if it.trade != nil {
			err = this.ProcessTrade(ctx, *it.trade)
		} else {
			decoding.SortEvents(it.events)
			err = this.ProcessHistoryEvents(ctx, it.events)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (this *Pot) Report() Report {
	totals := make(map[EventKind]PnL, len(this.totals))
	for k, v := range this.totals {
		totals[k] = v
	}
	return Report{
		ID:                  this.reportID,
		Settings:            this.settings,
		FirstProcessed:      this.first,
		LastProcessed:       this.last,
		Events:              append([]ProcessedEvent(nil), this.events...),
		Totals:              totals,
		MissingAcquisitions: this.calculator.MissingAcquisitions(),
		MissingPrices:       this.calculator.MissingPrices(),
	}
}
