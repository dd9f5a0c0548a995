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

// Package types holds primitives shared by the accounting and
// decoding packages.
package types

import "time"

// Timestamp is seconds since the unix epoch.
type Timestamp int64

// TimestampMS is milliseconds since the unix epoch.
type TimestampMS int64

func (this Timestamp) Time() time.Time {
	return time.Unix(int64(this), 0)
}

func (this Timestamp) MS() TimestampMS {
	return TimestampMS(this * 1000)
}

func (this TimestampMS) Seconds() Timestamp {
	return Timestamp(this / 1000)
}

func FromTime(t time.Time) Timestamp {
	return Timestamp(t.Unix())
}

// Location is where an event happened, an exchange or a chain.
type Location string

const (
	LocationExternal   Location = "external"
	LocationBlockchain Location = "blockchain"
	LocationKraken     Location = "kraken"
	LocationBinance    Location = "binance"
	LocationCoinbase   Location = "coinbase"
)
