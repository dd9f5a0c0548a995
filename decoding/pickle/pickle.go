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

// Package pickle enriches token transfers into and out of Pickle
// Finance jars.
package pickle

import (
	"fmt"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
)

const (
	Counterparty = "pickle finance"

	// JarProtocol marks jar tokens in the token registry.
	JarProtocol = "pickle_jar"
)

type Decoder struct {
	jars map[evm.Address]bool
}

// New loads the jar addresses once, from the tokens tagged JarProtocol.
func New(base *decoding.BaseTools, tokens evm.TokenResolver) (decoding.Decoder, error) {
	this := &Decoder{jars: make(map[evm.Address]bool)}
	for _, jar := range tokens.TokensByProtocol(JarProtocol) {
		this.jars[jar.Address] = true
	}
	return this, nil
}

func (this *Decoder) Name() string { return "Pickle Finance" }

func (this *Decoder) Counterparties() []string { return []string{Counterparty} }

func (this *Decoder) EnricherRules() []decoding.EnricherRule {
	return []decoding.EnricherRule{this.maybeEnrichPickleTransfers}
}

func (this *Decoder) EventSettings(decoding.SettingsContext) map[string]decoding.TxEventSettings {
	wrap := decoding.TxEventSettings{
		Taxable:                false,
		CountEntireAmountSpend: false,
		CountCostBasisPnl:      false,
		Method:                 decoding.MethodSpend,
		Take:                   2,
		MultitakeTreatment:     decoding.MultitakeSwap,
	}
	return map[string]decoding.TxEventSettings{
		decoding.TypeIdentifier(decoding.EventDeposit, decoding.SubtypeDepositAsset, Counterparty): wrap,
		decoding.TypeIdentifier(decoding.EventSpend, decoding.SubtypeReturnWrapped, Counterparty):  wrap,
	}
}

func (this *Decoder) maybeEnrichPickleTransfers(token *evm.Token, ctx *decoding.LogContext, event *decoding.HistoryEvent) (bool, error) {
	l := ctx.Log
	tx := ctx.Transaction
	from, err := evm.WordToAddress(l.Topic(1).Bytes())
	if err != nil {
		return false, err
	}
	to, err := evm.WordToAddress(l.Topic(2).Bytes())
	if err != nil {
		return false, err
	}
	if !this.jars[to] && !this.jars[from] && !this.jars[l.Address] {
		return false, nil
	}

	sender := tx.From.Hex()
	logAsset := asset.FromEthereumAddress(l.Address.Hex())
	plain := event.EventSubtype == decoding.SubtypeNone

	// matches reports whether the log moves exactly the event's amount
	matches := func() (bool, error) {
		raw, err := evm.WordToInt(l.Data)
		if err != nil {
			return false, err
		}
		return evm.TokenNormalizedValue(raw, token.Decimals).Equal(event.Amount), nil
	}

	switch {
	case plain && event.EventType == decoding.EventSpend && event.LocationLabel == sender && this.jars[to]:
		if logAsset != event.Asset {
			return true, nil
		}
		ok, err := matches()
		if err != nil || !ok {
			return true, err
		}
		event.EventType = decoding.EventDeposit
		event.EventSubtype = decoding.SubtypeDepositAsset
		event.Counterparty = Counterparty
		event.Notes = fmt.Sprintf("Deposit %s %s in pickle contract", event.Amount, token.Symbol)

	case plain && event.EventType == decoding.EventReceive && this.jars[l.Address]:
		ok, err := matches()
		if err != nil || !ok {
			return true, err
		}
		event.EventSubtype = decoding.SubtypeReceiveWrapped
		event.Counterparty = Counterparty
		event.Notes = fmt.Sprintf("Receive %s %s after depositing in pickle contract", event.Amount, token.Symbol)

	case plain && event.EventType == decoding.EventSpend && event.LocationLabel == sender && to == evm.ZeroAddress && from == tx.From:
		if logAsset != event.Asset {
			return true, nil
		}
		ok, err := matches()
		if err != nil || !ok {
			return true, err
		}
		event.EventSubtype = decoding.SubtypeReturnWrapped
		event.Counterparty = Counterparty
		event.Notes = fmt.Sprintf("Return %s %s to the pickle contract", event.Amount, token.Symbol)

	case plain && event.EventType == decoding.EventReceive && event.LocationLabel == sender && to == tx.From && this.jars[from]:
		if logAsset != event.Asset {
			return true, nil
		}
		ok, err := matches()
		if err != nil || !ok {
			return true, err
		}
		event.EventType = decoding.EventWithdrawal
		event.EventSubtype = decoding.SubtypeRemoveAsset
		event.Counterparty = Counterparty
		event.Notes = fmt.Sprintf("Unstake %s %s from the pickle contract", event.Amount, token.Symbol)
	}
	return true, nil
}
