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

// Package price answers "how much of one asset did another asset cost
// at a given time", by asking a list of oracles in order.
package price

import (
	"context"
	"fmt"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/golang/glog"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrNoPrice = errors.New("no price for given timestamp")

// Oracle is a source of historical prices.
type Oracle interface {
	Name() string
	CanQueryHistory(from, to asset.Asset, ts types.Timestamp) bool
	QueryHistoricalPrice(ctx context.Context, from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, error)
}

// Querier is what the accounting run needs from a Historian.
type Querier interface {
	QueryHistoricalPrice(ctx context.Context, from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, error)
}

var kfeeUSD = decimal.RequireFromString("0.01")

type Historian struct {
	oracles []Oracle

	// one rate per pair per day
	cache *cache.Cache
}

// NewHistorian returns a historian asking oracles in the given order.
func NewHistorian(oracles ...Oracle) (*Historian, error) {
	if len(oracles) == 0 {
		return nil, errors.New("price historian needs at least one oracle")
	}
	seen := make(map[string]bool)
	for _, o := range oracles {
		if seen[o.Name()] {
			return nil, errors.Errorf("oracle %q listed more than once", o.Name())
		}
		seen[o.Name()] = true
	}
	return &Historian{
		oracles: oracles,
		cache:   cache.New(cache.NoExpiration, 0),
	}, nil
}

func (this *Historian) Oracles() []string {
	var names []string
	for _, o := range this.oracles {
		names = append(names, o.Name())
	}
	return names
}

func cacheKey(from, to asset.Asset, ts types.Timestamp) string {
	return fmt.Sprintf("%s-%s-%s", from, to, ts.Time().UTC().Format("2006-01-02"))
}

// QueryHistoricalPrice returns how much of to one unit of from cost at
// ts.
func (this *Historian) QueryHistoricalPrice(ctx context.Context, from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if from == asset.KFEE {
		if to == asset.USD {
			return kfeeUSD, nil
		}
		usd, err := this.QueryHistoricalPrice(ctx, asset.USD, to, ts)
		if err != nil {
			return decimal.Zero, err
		}
		return kfeeUSD.Mul(usd), nil
	}

	key := cacheKey(from, to, ts)
	if cached, ok := this.cache.Get(key); ok {
		glog.V(3).Infof("using cached rate for %s", key)
		return cached.(decimal.Decimal), nil
	}

	for _, oracle := range this.oracles {
		if !oracle.CanQueryHistory(from, to, ts) {
			continue
		}
		rate, err := oracle.QueryHistoricalPrice(ctx, from, to, ts)
		if err != nil {
			glog.V(2).Infof("%s has no %s/%s price at %d: %s", oracle.Name(), from, to, ts, err)
			continue
		}
		if rate.IsZero() {
			continue
		}
		this.cache.Set(key, rate, cache.NoExpiration)
		return rate, nil
	}

	return decimal.Zero, errors.Wrapf(ErrNoPrice, "%s/%s at %d", from, to, ts)
}
