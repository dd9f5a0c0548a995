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

package decoding

import (
	"fmt"
	"sync"

	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/shopspring/decimal"
)

// txState is the per transaction sequence counter.  Gas and internal
// transactions draw from it first; log events are offset by it.
type txState struct {
	counter int
	actions ActionItems
}

func (this *txState) next() int {
	v := this.counter
	this.counter++
	return v
}

func (this *txState) sequenceIndex(l *evm.Log) int {
	return this.counter + l.LogIndex
}

// Verbs replace "Send" and "Receive" in notes.
type Verbs struct {
	Out, In string
}

// Direction of a movement, relative to the tracked accounts.
type Direction struct {
	EventType     EventType
	LocationLabel string
	Counterparty  string
	Verb          string
}

// BaseTools holds the tracked accounts and decoding helpers shared by
// all decoders.  It is safe for concurrent use.
type BaseTools struct {
	mu      sync.RWMutex
	tracked map[evm.Address]bool
}

func NewBaseTools(tracked []evm.Address) *BaseTools {
	this := &BaseTools{}
	this.RefreshTrackedAccounts(tracked)
	return this
}

func (this *BaseTools) RefreshTrackedAccounts(tracked []evm.Address) {
	m := make(map[evm.Address]bool, len(tracked))
	for _, a := range tracked {
		m[a] = true
	}
	this.mu.Lock()
	this.tracked = m
	this.mu.Unlock()
}

func (this *BaseTools) IsTracked(addr evm.Address) bool {
	this.mu.RLock()
	defer this.mu.RUnlock()
	return this.tracked[addr]
}

// DecodeDirection classifies a movement from from to to.  It returns
// nil when neither side is tracked.
func (this *BaseTools) DecodeDirection(from evm.Address, to *evm.Address, verbs *Verbs, counterparty string) *Direction {
	trackedFrom := this.IsTracked(from)
	trackedTo := to != nil && this.IsTracked(*to)
	if !trackedFrom && !trackedTo {
		return nil
	}

	toLabel := ""
	if to != nil {
		toLabel = to.Hex()
	}

	d := &Direction{}
	switch {
	case trackedFrom && trackedTo:
		d.EventType = EventTransfer
		d.LocationLabel = from.Hex()
		d.Counterparty = toLabel
		d.Verb = "Send"
	case trackedFrom:
		d.EventType = EventSpend
		d.LocationLabel = from.Hex()
		d.Counterparty = toLabel
		d.Verb = "Send"
	default:
		d.EventType = EventReceive
		d.LocationLabel = toLabel
		d.Counterparty = from.Hex()
		d.Verb = "Receive"
	}
	if counterparty != "" {
		d.Counterparty = counterparty
	}
	if verbs != nil {
		if d.EventType == EventReceive {
			d.Verb = verbs.In
		} else {
			d.Verb = verbs.Out
		}
	}
	return d
}

// Contracts emitting ERC721 transfers without the indexed token id.
var naughtyERC721 = map[evm.Address]bool{
	evm.HexToAddress("0x06012c8cf97BEaD5deAe237070F9587f8E7A266d"): true, // CryptoKitties
}

// DecodeERC20721Transfer decodes a log the caller knows to be a token
// Transfer.  ERC20 and ERC721 are told apart by topic count.  It
// returns nil when no tracked account is involved.
func (this *BaseTools) DecodeERC20721Transfer(token *evm.Token, ctx *LogContext, verbs *Verbs, counterparty string) (*HistoryEvent, error) {
	l := ctx.Log
	var erc721 bool
	switch {
	case naughtyERC721[token.Address]:
		erc721 = true
	case len(l.Topics) == 3:
		erc721 = false
	case len(l.Topics) == 4:
		erc721 = true
	default:
		return nil, nil
	}

	from, err := evm.WordToAddress(l.Topics[1].Bytes())
	if err != nil {
		return nil, err
	}
	to, err := evm.WordToAddress(l.Topics[2].Bytes())
	if err != nil {
		return nil, err
	}
	d := this.DecodeDirection(from, &to, verbs, counterparty)
	if d == nil {
		return nil, nil
	}

	var amount decimal.Decimal
	var notes string
	if !erc721 {
		raw, err := evm.WordToInt(l.Data)
		if err != nil {
			return nil, err
		}
		amount = evm.TokenNormalizedValue(raw, token.Decimals)
		if d.EventType == EventSpend {
			notes = fmt.Sprintf("%s %s %s from %s to %s", d.Verb, amount, token.Symbol, d.LocationLabel, d.Counterparty)
		} else {
			notes = fmt.Sprintf("%s %s %s from %s to %s", d.Verb, amount, token.Symbol, d.Counterparty, d.LocationLabel)
		}
	} else {
		idWord := []byte(l.Data)
		if len(l.Topics) == 4 {
			idWord = l.Topics[3].Bytes()
		}
		id, err := evm.WordToInt(idWord)
		if err != nil {
			return nil, err
		}
		amount = decimal.NewFromInt(1)
		if d.EventType == EventSpend {
			notes = fmt.Sprintf("%s %s with id %s from %s to %s", d.Verb, token.Name, id.ToBig().String(), d.LocationLabel, d.Counterparty)
		} else {
			notes = fmt.Sprintf("%s %s with id %s from %s to %s", d.Verb, token.Name, id.ToBig().String(), d.Counterparty, d.LocationLabel)
		}
	}

	return &HistoryEvent{
		EventIdentifier: ctx.Transaction.Hash.Hex(),
		SequenceIndex:   ctx.SequenceIndex(),
		Timestamp:       ctx.Transaction.Timestamp.MS(),
		Location:        types.LocationBlockchain,
		LocationLabel:   d.LocationLabel,
		Asset:           token.Asset(),
		Amount:          amount,
		Notes:           notes,
		EventType:       d.EventType,
		EventSubtype:    SubtypeNone,
		Counterparty:    d.Counterparty,
	}, nil
}
