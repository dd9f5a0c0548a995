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

// Package costbasis matches disposals against earlier acquisitions,
// first in first out, and splits the result into taxable and tax free
// portions according to a holding period.
//
// A Calculator is not safe for concurrent use.  Feed it one processing
// run at a time, in chronological order: Reset, then Obtain and Spend
// for every historical event, then read balances and diagnostics.
package costbasis

import (
	"sort"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

type Calculator struct {
	settings Settings

	events              map[asset.Asset]*Events
	missingAcquisitions []MissingAcquisition
	missingPrices       map[MissingPrice]struct{}
}

func NewCalculator(settings Settings) *Calculator {
	this := &Calculator{}
	this.Reset(settings)
	return this
}

// Reset discards all state and starts a new processing run.
func (this *Calculator) Reset(settings Settings) {
	this.settings = settings
	this.events = make(map[asset.Asset]*Events)
	this.missingAcquisitions = nil
	this.missingPrices = make(map[MissingPrice]struct{})
}

func (this *Calculator) Settings() Settings {
	return this.settings
}

// Events returns the ledger of an asset, creating it when needed.  WETH
// shares the ETH ledger.
func (this *Calculator) Events(a asset.Asset) *Events {
	a = a.Canonical()
	ev, ok := this.events[a]
	if !ok {
		ev = &Events{}
		this.events[a] = ev
	}
	return ev
}

// Assets returns every asset with a ledger, sorted.
func (this *Calculator) Assets() []asset.Asset {
	list := make([]asset.Asset, 0, len(this.events))
	for a := range this.events {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func (this *Calculator) Obtain(a asset.Asset, amount decimal.Decimal, ts types.Timestamp, rate decimal.Decimal, index int) {
	ev := this.Events(a)
	ev.seen = true
	if amount.IsZero() {
		// zero lots would break the "no acquisitions" check
		glog.V(2).Infof("ignoring zero acquisition of %s at %d", a, ts)
		return
	}
	ev.Acquisitions = append(ev.Acquisitions, NewAcquisitionEvent(amount, ts, rate, index))
}

// ReduceAmount consumes lots without computing cost basis.  It returns
// false when the ledger holds less than amount.
func (this *Calculator) ReduceAmount(a asset.Asset, amount decimal.Decimal, ts types.Timestamp) bool {
	if amount.IsZero() {
		return true
	}

	ev := this.Events(a)
	if len(ev.Acquisitions) == 0 {
		return false
	}

	remaining := amount
	stop := 0
	partial := false
	for idx, lot := range ev.Acquisitions {
		if remaining.IsZero() {
			break
		}
		if remaining.LessThan(lot.RemainingAmount) {
			lot.RemainingAmount = lot.RemainingAmount.Sub(remaining)
			remaining = decimal.Zero
			partial = true
			break
		}
		remaining = remaining.Sub(lot.RemainingAmount)
		lot.RemainingAmount = decimal.Zero
		stop = idx + 1
	}

	ev.Acquisitions = ev.Acquisitions[stop:]
	if !partial && !remaining.IsZero() {
		this.missingAcquisitions = append(this.missingAcquisitions, MissingAcquisition{
			Asset:         a,
			Time:          ts,
			FoundAmount:   amount.Sub(remaining),
			MissingAmount: remaining,
		})
		glog.Warningf("reduced %s by %s at %d, missing %s", a, amount, ts, remaining)
		return false
	}
	return true
}

// Spend registers a disposal.  Cost basis is computed only for taxable
// spends of non fiat assets; other spends just consume lots and return
// nil.
func (this *Calculator) Spend(location types.Location, ts types.Timestamp, a asset.Asset, amount, rate decimal.Decimal, taxable bool) *Info {
	ev := this.Events(a)
	ev.Spends = append(ev.Spends, SpendEvent{
		Timestamp: ts,
		Location:  location,
		Amount:    amount,
		Rate:      rate,
	})
	if !a.IsFiat() && taxable {
		info := this.CalculateSpendCostBasis(amount, a, ts)
		return &info
	}
	this.ReduceAmount(a, amount, ts)
	return nil
}

// CalculateSpendCostBasis consumes lots, oldest first, to cover amount.
// Lots held longer than the tax free period count as tax free.  When
// the ledger cannot cover the spend, the uncovered amount is taxable
// with zero cost and a MissingAcquisition is recorded.
func (this *Calculator) CalculateSpendCostBasis(amount decimal.Decimal, a asset.Asset, ts types.Timestamp) Info {
	info := Info{
		TaxableAmount:     decimal.Zero,
		TaxableBoughtCost: decimal.Zero,
		TaxfreeBoughtCost: decimal.Zero,
		TaxfreeAmount:     decimal.Zero,
		IsComplete:        true,
	}
	if amount.IsZero() {
		return info
	}

	ev := this.Events(a)
	if len(ev.Acquisitions) == 0 {
		this.missingAcquisitions = append(this.missingAcquisitions, MissingAcquisition{
			Asset:         a,
			Time:          ts,
			FoundAmount:   decimal.Zero,
			MissingAmount: amount,
		})
		glog.Warningf("no acquisitions of %s for spend of %s at %s", a, amount, this.settings.TimestampToDate(ts))
		info.TaxableAmount = amount
		info.IsComplete = false
		return info
	}

	remaining := amount
	stop := 0
	partial := false
	for idx, lot := range ev.Acquisitions {
		if remaining.IsZero() {
			break
		}
		taxfree := this.settings.atTaxfreePeriod(lot.Timestamp, ts)

		used := lot.RemainingAmount
		if remaining.LessThan(lot.RemainingAmount) {
			used = remaining
			partial = true
		}
		cost := lot.Rate.Mul(used)
		if taxfree {
			info.TaxfreeAmount = info.TaxfreeAmount.Add(used)
			info.TaxfreeBoughtCost = info.TaxfreeBoughtCost.Add(cost)
		} else {
			info.TaxableAmount = info.TaxableAmount.Add(used)
			info.TaxableBoughtCost = info.TaxableBoughtCost.Add(cost)
		}
		info.MatchedAcquisitions = append(info.MatchedAcquisitions, MatchedAcquisition{
			Amount:  used,
			Event:   lot,
			Taxable: !taxfree,
		})
		if glog.V(3) {
			status := "TAXABLE"
			if taxfree {
				status = "TAX-FREE"
			}
			glog.Infof("%s spend of %s uses %s of %s acquired at %s for %s %s", status, a, used, lot.Amount, this.settings.TimestampToDate(lot.Timestamp), lot.Rate, this.settings.ProfitCurrency)
		}

		remaining = remaining.Sub(used)
		lot.RemainingAmount = lot.RemainingAmount.Sub(used)
		if partial {
			break
		}
		stop = idx + 1
	}

	ev.UsedAcquisitions = append(ev.UsedAcquisitions, ev.Acquisitions[:stop]...)
	ev.Acquisitions = ev.Acquisitions[stop:]

	if !remaining.IsZero() {
		this.missingAcquisitions = append(this.missingAcquisitions, MissingAcquisition{
			Asset:         a,
			Time:          ts,
			FoundAmount:   info.TaxableAmount.Add(info.TaxfreeAmount),
			MissingAmount: remaining,
		})
		glog.Warningf("spend of %s %s at %s is missing %s", amount, a, this.settings.TimestampToDate(ts), remaining)
		info.TaxableAmount = amount.Sub(info.TaxfreeAmount)
		info.IsComplete = false
	}
	return info
}

// CalculatedAssetAmount sums what remains of the asset's lots.  The
// second result is false when the asset was never acquired.
func (this *Calculator) CalculatedAssetAmount(a asset.Asset) (decimal.Decimal, bool) {
	ev, ok := this.events[a.Canonical()]
	if !ok || !ev.seen {
		return decimal.Zero, false
	}
	return ev.remaining(), true
}

func (this *Calculator) MissingAcquisitions() []MissingAcquisition {
	return this.missingAcquisitions
}

func (this *Calculator) AddMissingPrice(p MissingPrice) {
	this.missingPrices[p] = struct{}{}
}

// MissingPrices returns the distinct missing prices, ordered by time.
func (this *Calculator) MissingPrices() []MissingPrice {
	list := make([]MissingPrice, 0, len(this.missingPrices))
	for p := range this.missingPrices {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Time != list[j].Time {
			return list[i].Time < list[j].Time
		}
		if list[i].FromAsset != list[j].FromAsset {
			return list[i].FromAsset < list[j].FromAsset
		}
		return list[i].ToAsset < list[j].ToAsset
	})
	return list
}
