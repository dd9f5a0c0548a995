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

// Package asset identifies the things we hold.
//
// An Asset is an opaque identifier.  Native assets and fiat use their
// ticker (i.e. "ETH", "EUR").  Ethereum tokens use the prefix "_ceth_"
// followed by the checksummed contract address.
package asset

import "strings"

type Asset string

const ethereumTokenPrefix = "_ceth_"

const (
	ETH   Asset = "ETH"
	BTC   Asset = "BTC"
	KFEE  Asset = "KFEE"
	WETH  Asset = ethereumTokenPrefix + "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	GTC   Asset = ethereumTokenPrefix + "0xDe30da39c46104798bB5aA3fe8B9e0e1F348163F"
	INCH  Asset = ethereumTokenPrefix + "0x111111111117dC0aa78b770fA6A738034120C302"
	DAI   Asset = ethereumTokenPrefix + "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	USDC  Asset = ethereumTokenPrefix + "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	USD   Asset = "USD"
	EUR   Asset = "EUR"
	GBP   Asset = "GBP"
	CHF   Asset = "CHF"
	JPY   Asset = "JPY"
	CAD   Asset = "CAD"
	AUD   Asset = "AUD"
	empty Asset = ""
)

var fiat = map[Asset]bool{
	USD: true, EUR: true, GBP: true, CHF: true, JPY: true, CAD: true, AUD: true,
	"CNY": true, "KRW": true, "SEK": true, "NOK": true, "DKK": true,
	"NZD": true, "SGD": true, "HKD": true, "BRL": true, "RUB": true,
	"INR": true, "ZAR": true, "TRY": true, "PLN": true, "MXN": true,
}

// New normalizes a user supplied identifier.  Tickers are upper cased,
// token identifiers are kept as they are.
func New(identifier string) Asset {
	identifier = strings.TrimSpace(identifier)
	if strings.HasPrefix(identifier, ethereumTokenPrefix) {
		return Asset(identifier)
	}
	return Asset(strings.ToUpper(identifier))
}

// FromEthereumAddress returns the identifier of the token deployed at a
// checksummed address.
func FromEthereumAddress(checksummed string) Asset {
	return Asset(ethereumTokenPrefix + checksummed)
}

func (this Asset) String() string {
	return string(this)
}

func (this Asset) IsFiat() bool {
	return fiat[this]
}

func (this Asset) IsEthereumToken() bool {
	return strings.HasPrefix(string(this), ethereumTokenPrefix)
}

// EthereumAddress returns the contract address of a token asset.
func (this Asset) EthereumAddress() (string, bool) {
	if !this.IsEthereumToken() {
		return "", false
	}
	return strings.TrimPrefix(string(this), ethereumTokenPrefix), true
}

// Canonical returns the asset under which cost basis is tracked.  WETH
// shares its cost basis with ETH.
func (this Asset) Canonical() Asset {
	if this == WETH {
		return ETH
	}
	return this
}

func (this Asset) IsEmpty() bool {
	return this == empty
}
