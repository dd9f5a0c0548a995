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
	"fmt"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/shopspring/decimal"
)

// MissingAcquisition is appended whenever a spend finds fewer lots than
// it needs.
type MissingAcquisition struct {
	Asset         asset.Asset
	Time          types.Timestamp
	FoundAmount   decimal.Decimal
	MissingAmount decimal.Decimal
}

func (this MissingAcquisition) String() string {
	return fmt.Sprintf("%s at %d: found %s, missing %s", this.Asset, this.Time, this.FoundAmount, this.MissingAmount)
}

// MissingPrice is a price the run needed and could not find.
type MissingPrice struct {
	FromAsset   asset.Asset
	ToAsset     asset.Asset
	Time        types.Timestamp
	RateLimited bool
}

func (this MissingPrice) String() string {
	return fmt.Sprintf("%s/%s at %d", this.FromAsset, this.ToAsset, this.Time)
}
