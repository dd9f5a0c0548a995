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

// Package decodingtest provides an in memory decoding.Store and
// builders for transactions and logs, for use in decoder tests.
package decodingtest

import (
	"context"
	"math/big"
	"sync"

	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Timestamp of every transaction built by Tx.
const Timestamp types.Timestamp = 1600000000

type Store struct {
	mu      sync.Mutex
	order   []evm.Hash
	bundles map[evm.Hash]evm.Bundle
	events  map[string][]decoding.HistoryEvent
	decoded map[evm.Hash]bool

	adds    int
	deletes int
}

func NewStore(bundles ...evm.Bundle) *Store {
	this := &Store{
		bundles: make(map[evm.Hash]evm.Bundle),
		events:  make(map[string][]decoding.HistoryEvent),
		decoded: make(map[evm.Hash]bool),
	}
	for _, b := range bundles {
		this.Add(b)
	}
	return this
}

func (this *Store) Add(b evm.Bundle) {
	this.mu.Lock()
	defer this.mu.Unlock()
	if _, ok := this.bundles[b.Transaction.Hash]; !ok {
		this.order = append(this.order, b.Transaction.Hash)
	}
	this.bundles[b.Transaction.Hash] = b
}

// Adds counts calls to AddHistoryEvents.
func (this *Store) Adds() int {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.adds
}

func (this *Store) Deletes() int {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.deletes
}

func (this *Store) IsDecoded(ctx context.Context, hash evm.Hash) (bool, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.decoded[hash], nil
}

func (this *Store) HistoryEvents(ctx context.Context, identifier string) ([]*decoding.HistoryEvent, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	var list []*decoding.HistoryEvent
	for _, e := range this.events[identifier] {
		e := e
		list = append(list, &e)
	}
	decoding.SortEvents(list)
	return list, nil
}

func (this *Store) AddHistoryEvents(ctx context.Context, hash evm.Hash, events []*decoding.HistoryEvent) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	seen := make(map[int]bool)
	var list []decoding.HistoryEvent
	for _, e := range events {
		if seen[e.SequenceIndex] {
			return errors.Errorf("duplicate sequence index %d in %s", e.SequenceIndex, e.EventIdentifier)
		}
		seen[e.SequenceIndex] = true
		list = append(list, *e)
	}
	this.events[hash.Hex()] = list
	this.decoded[hash] = true
	this.adds++
	return nil
}

func (this *Store) DeleteDecoded(ctx context.Context, hash evm.Hash) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	delete(this.events, hash.Hex())
	delete(this.decoded, hash)
	this.deletes++
	return nil
}

func (this *Store) InternalTransactions(ctx context.Context, parent evm.Hash) ([]evm.InternalTransaction, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.bundles[parent].Internal, nil
}

func (this *Store) TransactionHashesNotDecoded(ctx context.Context, limit int) ([]evm.Hash, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	var list []evm.Hash
	for _, h := range this.order {
		if limit > 0 && len(list) >= limit {
			break
		}
		if !this.decoded[h] {
			list = append(list, h)
		}
	}
	return list, nil
}

func (this *Store) Bundle(ctx context.Context, hash evm.Hash) (*evm.Bundle, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	b, ok := this.bundles[hash]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, hash.Hex())
	}
	return &b, nil
}

// AddressTopic left pads an address to a topic.
func AddressTopic(a evm.Address) evm.Hash {
	return common.BytesToHash(a.Bytes())
}

func IntWord(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

// AmountWord is the raw word of a token amount given in units.
func AmountWord(units string, decimals int) []byte {
	raw := decimal.RequireFromString(units).Shift(int32(decimals)).BigInt()
	return common.LeftPadBytes(raw.Bytes(), 32)
}

// Wei converts units of ETH.
func Wei(units string) *big.Int {
	return decimal.RequireFromString(units).Shift(18).BigInt()
}

func Hash(i int) evm.Hash {
	return common.BigToHash(big.NewInt(int64(i)))
}

// Tx builds a transaction costing 0.000021 ETH in gas.
func Tx(hash evm.Hash, from evm.Address, to *evm.Address, value *big.Int) evm.Transaction {
	if value == nil {
		value = new(big.Int)
	}
	return evm.Transaction{
		Hash:        hash,
		Timestamp:   Timestamp,
		BlockNumber: 1,
		From:        from,
		To:          to,
		Value:       (*hexutil.Big)(value),
		Gas:         50000,
		GasPrice:    (*hexutil.Big)(big.NewInt(1000000000)),
		GasUsed:     21000,
	}
}

func Transfer(index int, token, from, to evm.Address, data []byte) evm.Log {
	return evm.Log{
		LogIndex: index,
		Address:  token,
		Topics:   []evm.Hash{decoding.ERC20OrERC721Transfer, AddressTopic(from), AddressTopic(to)},
		Data:     data,
	}
}

func Addr(a evm.Address) *evm.Address {
	return &a
}
