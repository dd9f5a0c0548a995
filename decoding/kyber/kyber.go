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

// Package kyber recognizes trades through the legacy Kyber network
// proxies.  A trade log turns the matching plain send and receive of
// the same transaction into the two legs of a swap.
package kyber

import (
	"fmt"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

const Counterparty = "kyber legacy"

var (
	TradeLegacy = evm.HexToHash("0xf724b4df6617473612b53d7f88ecc6ea983074b30960a049fcd0657ffe808083")

	LegacyContract         = evm.HexToAddress("0x9ae49C0d7F8F9EF4B864e004FE86Ac8294E20950")
	LegacyContractMigrated = evm.HexToAddress("0x65bF64Ff5f51272f729BDcD7AcFB00677ced86Cd")
	LegacyContractUpgraded = evm.HexToAddress("0x9AAb3f75489902f3a48495025729a0AF77d4b11e")
)

type Decoder struct {
	base   *decoding.BaseTools
	tokens evm.TokenResolver
}

func New(base *decoding.BaseTools, tokens evm.TokenResolver) (decoding.Decoder, error) {
	return &Decoder{base: base, tokens: tokens}, nil
}

func (this *Decoder) Name() string { return "Kyber" }

func (this *Decoder) Counterparties() []string { return []string{Counterparty} }

func (this *Decoder) AddressesToDecoders() map[evm.Address][]decoding.AddressRule {
	return map[evm.Address][]decoding.AddressRule{
		LegacyContract:         {this.decodeLegacyTrade},
		LegacyContractMigrated: {this.decodeLegacyTrade},
		LegacyContractUpgraded: {this.decodeLegacyUpgradedTrade},
	}
}

func (this *Decoder) EventSettings(decoding.SettingsContext) map[string]decoding.TxEventSettings {
	return map[string]decoding.TxEventSettings{
		decoding.TypeIdentifier(decoding.EventTrade, decoding.SubtypeSpend, Counterparty): {
			Taxable:                true,
			CountEntireAmountSpend: false,
			CountCostBasisPnl:      true,
			Method:                 decoding.MethodSpend,
			Take:                   2,
			MultitakeTreatment:     decoding.MultitakeSwap,
		},
	}
}

type side struct {
	asset  asset.Asset
	symbol string
	amount decimal.Decimal
}

type trade struct {
	sender   evm.Address
	src, dst side
}

func (this *Decoder) resolve(word []byte) (side, int, error) {
	addr, err := evm.WordToAddress(word)
	if err != nil {
		return side{}, 0, err
	}
	a, decimals, err := evm.AddressToAsset(this.tokens, addr)
	if err != nil {
		return side{}, 0, err
	}
	s := side{asset: a, symbol: "ETH"}
	if t, ok := this.tokens.Token(addr); ok {
		s.symbol = t.Symbol
	}
	return s, decimals, nil
}

// readTrade decodes the sender, both tokens and the amounts found in
// data words spentWord and returnWord.
func (this *Decoder) readTrade(l *evm.Log, spentWord, returnWord int) (*trade, error) {
	sender, err := evm.WordToAddress(l.Topic(1).Bytes())
	if err != nil {
		return nil, err
	}
	t := &trade{sender: sender}

	words := make([][]byte, 4)
	for i, n := range []int{0, 1, spentWord, returnWord} {
		words[i], err = evm.DataWord(l.Data, n)
		if err != nil {
			return nil, err
		}
	}

	var srcDecimals, dstDecimals int
	t.src, srcDecimals, err = this.resolve(words[0])
	if err != nil {
		return nil, err
	}
	t.dst, dstDecimals, err = this.resolve(words[1])
	if err != nil {
		return nil, err
	}

	spent, err := evm.WordToInt(words[2])
	if err != nil {
		return nil, err
	}
	returned, err := evm.WordToInt(words[3])
	if err != nil {
		return nil, err
	}
	t.src.amount = evm.TokenNormalizedValue(spent, srcDecimals)
	t.dst.amount = evm.TokenNormalizedValue(returned, dstDecimals)
	return t, nil
}

// updateEvents turns the sender's matching send and receive into trade
// legs.
func updateEvents(events []*decoding.HistoryEvent, t *trade) {
	var out, in *decoding.HistoryEvent
	sender := t.sender.Hex()
	for _, event := range events {
		if event.LocationLabel != sender {
			continue
		}
		switch {
		case event.EventType == decoding.EventSpend && event.Asset == t.src.asset && event.Amount.Equal(t.src.amount):
			event.EventType = decoding.EventTrade
			event.EventSubtype = decoding.SubtypeSpend
			event.Counterparty = Counterparty
			event.Notes = fmt.Sprintf("Swap %s %s in kyber", event.Amount, t.src.symbol)
			out = event
		case event.EventType == decoding.EventReceive && event.Asset == t.dst.asset && event.Amount.Equal(t.dst.amount):
			event.EventType = decoding.EventTrade
			event.EventSubtype = decoding.SubtypeReceive
			event.Counterparty = Counterparty
			event.Notes = fmt.Sprintf("Receive %s %s from kyber swap", event.Amount, t.dst.symbol)
			in = event
		}
	}
	if out == nil || in == nil {
		glog.V(2).Infof("kyber trade by %s matched spend=%t receive=%t", sender, out != nil, in != nil)
	}
	decoding.MaybeReshuffleEvents(out, in)
}

// Legacy proxies emit other events besides trades; only TradeLegacy
// logs are ignored here.
func (this *Decoder) decodeLegacyTrade(ctx *decoding.LogContext) (*decoding.HistoryEvent, *decoding.ActionItem, error) {
	if ctx.Log.Topic(0) == TradeLegacy {
		return nil, nil, nil
	}
	t, err := this.readTrade(ctx.Log, 2, 3)
	if err != nil {
		return nil, nil, err
	}
	updateEvents(ctx.Events, t)
	return nil, nil, nil
}

func (this *Decoder) decodeLegacyUpgradedTrade(ctx *decoding.LogContext) (*decoding.HistoryEvent, *decoding.ActionItem, error) {
	if ctx.Log.Topic(0) != TradeLegacy {
		return nil, nil, nil
	}
	t, err := this.readTrade(ctx.Log, 3, 4)
	if err != nil {
		return nil, nil, err
	}
	updateEvents(ctx.Events, t)
	return nil, nil, nil
}
