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

package costbasis

import (
	"time"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
)

const DefaultDateFormat = "02/01/2006 15:04:05 MST"

// Settings in effect for one processing run.
type Settings struct {
	ProfitCurrency asset.Asset

	// Seconds after which a held lot may be disposed of tax free.  Nil
	// means every disposal is taxable.
	TaxfreeAfterPeriod *int64

	DateFormat string
	Location   *time.Location
}

func DefaultSettings() Settings {
	return Settings{
		ProfitCurrency: asset.EUR,
		DateFormat:     DefaultDateFormat,
		Location:       time.UTC,
	}
}

// TaxfreePeriod is a helper for building Settings.
func TaxfreePeriod(seconds int64) *int64 {
	return &seconds
}

func (this Settings) TimestampToDate(ts types.Timestamp) string {
	format := this.DateFormat
	if format == "" {
		format = DefaultDateFormat
	}
	loc := this.Location
	if loc == nil {
		loc = time.UTC
	}
	return ts.Time().In(loc).Format(format)
}

// lot acquired at acquired is tax free when spent at spent.  The
// boundary itself is taxable.
func (this Settings) atTaxfreePeriod(acquired, spent types.Timestamp) bool {
	if this.TaxfreeAfterPeriod == nil {
		return false
	}
	return int64(acquired)+*this.TaxfreeAfterPeriod < int64(spent)
}
