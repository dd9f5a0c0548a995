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

// Package decoding turns Ethereum transactions and their receipt logs
// into typed history events.
//
// Each log is offered to the rules registered for the emitting
// contract, then to the generic rules (approve, transfer, enrichment,
// governance) followed by protocol rules.  The first rule producing an
// event wins.  Decoder faults are logged and treated as "no match".
//
// Transactions are independent of each other and may be decoded in
// parallel.  For a single transaction, checking whether it was already
// decoded and storing a fresh decoding happen under one lock.
package decoding

import (
	"context"
	"fmt"
	"sync"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/golang/glog"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var ErrDecoderLoading = errors.New("decoder loading error")

// Store persists transactions and their decoded events.
type Store interface {
	IsDecoded(ctx context.Context, hash evm.Hash) (bool, error)
	HistoryEvents(ctx context.Context, identifier string) ([]*HistoryEvent, error)
	// AddHistoryEvents stores events and marks the transaction decoded,
	// atomically.
	AddHistoryEvents(ctx context.Context, hash evm.Hash, events []*HistoryEvent) error
	DeleteDecoded(ctx context.Context, hash evm.Hash) error
	InternalTransactions(ctx context.Context, parent evm.Hash) ([]evm.InternalTransaction, error)
	TransactionHashesNotDecoded(ctx context.Context, limit int) ([]evm.Hash, error)
	Bundle(ctx context.Context, hash evm.Hash) (*evm.Bundle, error)
}

type EVMTransactionDecoder struct {
	store  Store
	tokens evm.TokenResolver
	base   *BaseTools

	decoders        map[string]Decoder
	order           []string // registration order
	addressMappings map[evm.Address][]AddressRule
	eventRules      []EventRule
	enricherRules   []EnricherRule

	decoded       *cache.Cache // tx hash -> true
	flight        singleflight.Group
	locksMu       sync.Mutex
	locks         map[evm.Hash]*hashLock
	undecodedLock sync.Mutex
}

// New builds a decoder from the given protocol decoder constructors.
// Two decoders with the same name fail with ErrDecoderLoading.
func New(store Store, tokens evm.TokenResolver, base *BaseTools, constructors ...Constructor) (*EVMTransactionDecoder, error) {
	this := &EVMTransactionDecoder{
		store:           store,
		tokens:          tokens,
		base:            base,
		decoders:        make(map[string]Decoder),
		addressMappings: make(map[evm.Address][]AddressRule),
		decoded:         cache.New(cache.NoExpiration, 0),
		locks:           make(map[evm.Hash]*hashLock),
	}
	this.eventRules = []EventRule{
		this.maybeDecodeERC20Approve,
		this.maybeDecodeERC20721Transfer,
		this.maybeEnrichTransfers,
		this.maybeDecodeGovernance,
	}

	for _, construct := range constructors {
		decoder, err := construct(base, tokens)
		if err != nil {
			return nil, errors.Wrap(ErrDecoderLoading, err.Error())
		}
		name := decoder.Name()
		if _, ok := this.decoders[name]; ok {
			return nil, errors.Wrapf(ErrDecoderLoading, "decoder with name %s already loaded", name)
		}
		this.decoders[name] = decoder
		this.order = append(this.order, name)

		if d, ok := decoder.(AddressDecoder); ok {
			for addr, rules := range d.AddressesToDecoders() {
				this.addressMappings[addr] = append(this.addressMappings[addr], rules...)
			}
		}
		if d, ok := decoder.(RuleDecoder); ok {
			this.eventRules = append(this.eventRules, d.DecodingRules()...)
		}
		if d, ok := decoder.(EnricherDecoder); ok {
			this.enricherRules = append(this.enricherRules, d.EnricherRules()...)
		}
		glog.V(1).Infof("loaded %s decoder", name)
	}
	return this, nil
}

func (this *EVMTransactionDecoder) Base() *BaseTools {
	return this.base
}

// Decoders returns the loaded decoder names in registration order.
func (this *EVMTransactionDecoder) Decoders() []string {
	return append([]string(nil), this.order...)
}

func (this *EVMTransactionDecoder) Counterparties() []string {
	list := []string{CounterpartyGas, CounterpartyGitcoin, CounterpartyXDAI}
	for _, name := range this.order {
		list = append(list, this.decoders[name].Counterparties()...)
	}
	return list
}

// AccountingSettings merges each decoder's event settings with the
// defaults for gas, plain spends and plain receives.
func (this *EVMTransactionDecoder) AccountingSettings(sc SettingsContext) map[string]TxEventSettings {
	result := make(map[string]TxEventSettings)
	for _, name := range this.order {
		if d, ok := this.decoders[name].(SettingsDecoder); ok {
			for k, v := range d.EventSettings(sc) {
				result[k] = v
			}
		}
	}
	result[TypeIdentifier(EventSpend, SubtypeFee, CounterpartyGas)] = TxEventSettings{
		Taxable:                sc.IncludeGasCosts,
		CountEntireAmountSpend: true,
		CountCostBasisPnl:      true,
		Take:                   1,
		Method:                 MethodSpend,
	}
	result[TypeIdentifier(EventSpend, SubtypeNone, "")] = TxEventSettings{
		Taxable:                true,
		CountEntireAmountSpend: true,
		CountCostBasisPnl:      true,
		Take:                   1,
		Method:                 MethodSpend,
	}
	result[TypeIdentifier(EventReceive, SubtypeNone, "")] = TxEventSettings{
		Taxable:                true,
		CountEntireAmountSpend: true,
		CountCostBasisPnl:      true,
		Take:                   1,
		Method:                 MethodAcquisition,
	}
	return result
}

func logDecodeError(err error, l *evm.Log, tx *evm.Transaction, what string) {
	cause := errors.Cause(err)
	switch cause {
	case evm.ErrDeserialization, evm.ErrConversion, evm.ErrUnknownAsset, evm.ErrNotERC20Conformant:
		glog.V(1).Infof("decoding log %d of %s through %s failed: %s", l.LogIndex, tx.Hash.Hex(), what, err)
	default:
		glog.Warningf("decoding log %d of %s through %s failed: %s", l.LogIndex, tx.Hash.Hex(), what, err)
	}
}

func (this *EVMTransactionDecoder) decodeByAddressRules(lc *LogContext) (*HistoryEvent, *ActionItem) {
	for i, rule := range this.addressMappings[lc.Log.Address] {
		event, item, err := rule(lc)
		if err != nil {
			logDecodeError(err, lc.Log, lc.Transaction, fmt.Sprintf("address rule %d of %s", i, lc.Log.Address.Hex()))
			continue
		}
		if event != nil || item != nil {
			return event, item
		}
	}
	return nil, nil
}

func (this *EVMTransactionDecoder) tryAllRules(token *evm.Token, lc *LogContext) *HistoryEvent {
	for i, rule := range this.eventRules {
		event, err := rule(token, lc)
		if err != nil {
			logDecodeError(err, lc.Log, lc.Transaction, fmt.Sprintf("rule %d", i))
			continue
		}
		if event != nil {
			return event
		}
	}
	return nil
}

// DecodeTransaction decodes a transaction and its receipt, stores the
// events, and returns them ordered by sequence index.
func (this *EVMTransactionDecoder) DecodeTransaction(ctx context.Context, tx *evm.Transaction, receipt *evm.Receipt) ([]*HistoryEvent, error) {
	state := &txState{}
	events, err := this.decodeSimpleTransaction(ctx, state, tx, receipt)
	if err != nil {
		return nil, err
	}

	for i := range receipt.Logs {
		lc := &LogContext{
			Log:         &receipt.Logs[i],
			Transaction: tx,
			Events:      events,
			AllLogs:     receipt.Logs,
			ActionItems: &state.actions,
			state:       state,
		}
		event, item := this.decodeByAddressRules(lc)
		if item != nil {
			state.actions.Add(*item)
		}
		if event != nil {
			events = append(events, event)
			continue
		}

		token, ok := this.tokens.Token(lc.Log.Address)
		if !ok {
			token = nil
		}
		event = this.tryAllRules(token, lc)
		if event != nil {
			events = append(events, event)
		}
	}

	SortEvents(events)
	err = this.store.AddHistoryEvents(ctx, tx.Hash, events)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to store events of %s", tx.Hash.Hex())
	}
	this.decoded.Set(tx.Hash.Hex(), true, cache.NoExpiration)
	glog.V(2).Infof("decoded %d events from %s", len(events), tx.Hash.Hex())
	return events, nil
}

// hashLock is held while a transaction is checked, deleted or decoded.
// It is dropped from the map once nobody waits on it.
type hashLock struct {
	sync.Mutex
	refs int
}

// lock acquires the lock of hash and returns its release.
func (this *EVMTransactionDecoder) lock(hash evm.Hash) func() {
	this.locksMu.Lock()
	l, ok := this.locks[hash]
	if !ok {
		l = &hashLock{}
		this.locks[hash] = l
	}
	l.refs++
	this.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		this.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(this.locks, hash)
		}
		this.locksMu.Unlock()
	}
}

// GetOrDecodeTransactionEvents returns stored events of an already
// decoded transaction, or decodes it now.  With ignoreCache, earlier
// events are deleted and the transaction is decoded again.
func (this *EVMTransactionDecoder) GetOrDecodeTransactionEvents(ctx context.Context, tx *evm.Transaction, receipt *evm.Receipt, ignoreCache bool) ([]*HistoryEvent, error) {
	key := tx.Hash.Hex()
	v, err, shared := this.flight.Do(fmt.Sprintf("%s:%t", key, ignoreCache), func() (interface{}, error) {
		unlock := this.lock(tx.Hash)
		defer unlock()

		if ignoreCache {
			this.decoded.Delete(key)
			err := this.store.DeleteDecoded(ctx, tx.Hash)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to delete events of %s", key)
			}
		} else {
			_, decoded := this.decoded.Get(key)
			if !decoded {
				var err error
				decoded, err = this.store.IsDecoded(ctx, tx.Hash)
				if err != nil {
					return nil, err
				}
			}
			if decoded {
				this.decoded.Set(key, true, cache.NoExpiration)
				return this.store.HistoryEvents(ctx, key)
			}
		}
		return this.DecodeTransaction(ctx, tx, receipt)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		glog.V(2).Infof("joined concurrent decoding of %s", key)
	}
	return v.([]*HistoryEvent), nil
}

// DecodeTransactionHashes decodes stored transactions using up to
// workers goroutines.  Events are returned in the order of hashes.
func (this *EVMTransactionDecoder) DecodeTransactionHashes(ctx context.Context, ignoreCache bool, hashes []evm.Hash, workers int) ([]*HistoryEvent, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([][]*HistoryEvent, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, hash := range hashes {
		i, hash := i, hash
		g.Go(func() error {
			bundle, err := this.store.Bundle(gctx, hash)
			if err != nil {
				return errors.Wrapf(err, "hash %s does not correspond to a stored transaction", hash.Hex())
			}
			events, err := this.GetOrDecodeTransactionEvents(gctx, &bundle.Transaction, &bundle.Receipt, ignoreCache)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, err
	}

	var events []*HistoryEvent
	for _, r := range results {
		events = append(events, r...)
	}
	return events, nil
}

// DecodeUndecoded decodes up to limit stored transactions that have no
// decoded events yet.  Concurrent calls run one after the other.
func (this *EVMTransactionDecoder) DecodeUndecoded(ctx context.Context, limit, workers int) ([]*HistoryEvent, error) {
	this.undecodedLock.Lock()
	defer this.undecodedLock.Unlock()

	hashes, err := this.store.TransactionHashesNotDecoded(ctx, limit)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("decoding %d undecoded transactions", len(hashes))
	return this.DecodeTransactionHashes(ctx, false, hashes, workers)
}

// decodeSimpleTransaction decodes gas, internal transactions and the
// ETH transfer itself.  Gas always gets sequence index 0.
func (this *EVMTransactionDecoder) decodeSimpleTransaction(ctx context.Context, state *txState, tx *evm.Transaction, receipt *evm.Receipt) ([]*HistoryEvent, error) {
	var events []*HistoryEvent
	id := tx.Hash.Hex()
	ts := tx.Timestamp.MS()

	direction := this.base.DecodeDirection(tx.From, tx.To, nil, "")
	if direction != nil && (direction.EventType == EventSpend || direction.EventType == EventTransfer) {
		burned := evm.FromWei(tx.GasCostWei())
		events = append(events, &HistoryEvent{
			EventIdentifier: id,
			SequenceIndex:   state.next(),
			Timestamp:       ts,
			Location:        types.LocationBlockchain,
			LocationLabel:   direction.LocationLabel,
			Asset:           asset.ETH,
			Amount:          burned,
			Notes:           fmt.Sprintf("Burned %s ETH in gas from %s", burned, direction.LocationLabel),
			EventType:       EventSpend,
			EventSubtype:    SubtypeFee,
			Counterparty:    CounterpartyGas,
		})
	}

	if receipt.Status {
		internal, err := this.store.InternalTransactions(ctx, tx.Hash)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read internal transactions of %s", id)
		}
		for _, itx := range internal {
			if itx.To == nil {
				continue
			}
			d := this.base.DecodeDirection(itx.From, itx.To, nil, "")
			if d == nil {
				continue
			}
			amount := evm.FromWei(itx.ValueWei())
			if amount.IsZero() {
				continue
			}
			events = append(events, &HistoryEvent{
				EventIdentifier: id,
				SequenceIndex:   state.next(),
				Timestamp:       ts,
				Location:        types.LocationBlockchain,
				LocationLabel:   d.LocationLabel,
				Asset:           asset.ETH,
				Amount:          amount,
				Notes:           fmt.Sprintf("%s %s ETH %s -> %s", d.Verb, amount, itx.From.Hex(), itx.To.Hex()),
				EventType:       d.EventType,
				EventSubtype:    SubtypeNone,
				Counterparty:    d.Counterparty,
			})
		}
	}

	if !receipt.Status || direction == nil {
		return events, nil
	}

	amount := evm.FromWei(tx.ValueWei())
	if tx.To == nil {
		if !this.base.IsTracked(tx.From) {
			return events, nil
		}
		counterparty := ""
		if receipt.ContractAddress != nil {
			counterparty = receipt.ContractAddress.Hex()
		}
		events = append(events, &HistoryEvent{
			EventIdentifier: id,
			SequenceIndex:   state.next(),
			Timestamp:       ts,
			Location:        types.LocationBlockchain,
			LocationLabel:   tx.From.Hex(),
			Asset:           asset.ETH,
			Amount:          amount,
			Notes:           "Contract deployment",
			EventType:       EventInformational,
			EventSubtype:    SubtypeDeploy,
			Counterparty:    counterparty,
		})
		return events, nil
	}

	if amount.IsZero() {
		return events, nil
	}
	events = append(events, &HistoryEvent{
		EventIdentifier: id,
		SequenceIndex:   state.next(),
		Timestamp:       ts,
		Location:        types.LocationBlockchain,
		LocationLabel:   direction.LocationLabel,
		Asset:           asset.ETH,
		Amount:          amount,
		Notes:           fmt.Sprintf("%s %s ETH %s -> %s", direction.Verb, amount, tx.From.Hex(), tx.To.Hex()),
		EventType:       direction.EventType,
		EventSubtype:    SubtypeNone,
		Counterparty:    direction.Counterparty,
	})
	return events, nil
}

// zero is reused by rules producing informational events.
var zero = decimal.Zero
