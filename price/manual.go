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

package price

import (
	"context"
	"sort"
	"sync"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type pair struct {
	from, to asset.Asset
}

type point struct {
	ts   types.Timestamp
	rate decimal.Decimal
}

// ManualOracle serves prices entered by the user.  A query returns the
// latest price at or before the requested time.  The inverse pair is
// answered too.
type ManualOracle struct {
	mu     sync.RWMutex
	prices map[pair][]point // sorted by ts
}

func NewManualOracle() *ManualOracle {
	return &ManualOracle{prices: make(map[pair][]point)}
}

func (this *ManualOracle) Name() string { return "manual" }

func (this *ManualOracle) Add(from, to asset.Asset, ts types.Timestamp, rate decimal.Decimal) {
	this.mu.Lock()
	defer this.mu.Unlock()
	k := pair{from, to}
	list := append(this.prices[k], point{ts, rate})
	sort.SliceStable(list, func(i, j int) bool { return list[i].ts < list[j].ts })
	this.prices[k] = list
}

func (this *ManualOracle) lookup(from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, bool) {
	list := this.prices[pair{from, to}]
	i := sort.Search(len(list), func(i int) bool { return list[i].ts > ts })
	if i == 0 {
		return decimal.Zero, false
	}
	return list[i-1].rate, true
}

func (this *ManualOracle) CanQueryHistory(from, to asset.Asset, ts types.Timestamp) bool {
	this.mu.RLock()
	defer this.mu.RUnlock()
	return len(this.prices[pair{from, to}]) > 0 || len(this.prices[pair{to, from}]) > 0
}

func (this *ManualOracle) QueryHistoricalPrice(ctx context.Context, from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, error) {
	this.mu.RLock()
	defer this.mu.RUnlock()
	if rate, ok := this.lookup(from, to, ts); ok {
		return rate, nil
	}
	if rate, ok := this.lookup(to, from, ts); ok && !rate.IsZero() {
		return decimal.NewFromInt(1).DivRound(rate, 18), nil
	}
	return decimal.Zero, errors.Wrapf(ErrNoPrice, "no manual price %s/%s at or before %d", from, to, ts)
}
