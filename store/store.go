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


// Package store persists raw Ethereum transactions, their decoded
// history events and the rows of accounting reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/dncohen/taxlot/accounting"
	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/costbasis"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang/glog"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	blockchainEthereum = "ETH"

	// evm_tx_mappings value of a decoded transaction
	mappingDecoded = 0
)

const schema = `
CREATE TABLE IF NOT EXISTS evm_transactions (
	tx_hash TEXT NOT NULL PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	block_number INTEGER NOT NULL,
	from_address TEXT NOT NULL,
	to_address TEXT,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS evm_receipts (
	tx_hash TEXT NOT NULL PRIMARY KEY,
	contract_address TEXT,
	status INTEGER NOT NULL,
	type INTEGER NOT NULL,
	logs TEXT NOT NULL,
	FOREIGN KEY(tx_hash) REFERENCES evm_transactions(tx_hash) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS evm_internal_transactions (
	parent_tx_hash TEXT NOT NULL,
	trace_id INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	block_number INTEGER NOT NULL,
	from_address TEXT NOT NULL,
	to_address TEXT,
	value TEXT NOT NULL,
	PRIMARY KEY(parent_tx_hash, trace_id)
);
CREATE TABLE IF NOT EXISTS evm_tokens (
	address TEXT NOT NULL PRIMARY KEY,
	name TEXT,
	symbol TEXT,
	decimals INTEGER NOT NULL,
	protocol TEXT
);
CREATE TABLE IF NOT EXISTS history_events (
	identifier INTEGER PRIMARY KEY AUTOINCREMENT,
	event_identifier TEXT NOT NULL,
	sequence_index INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	location TEXT NOT NULL,
	location_label TEXT,
	asset TEXT NOT NULL,
	amount TEXT NOT NULL,
	usd_value TEXT NOT NULL,
	notes TEXT,
	type TEXT NOT NULL,
	subtype TEXT NOT NULL,
	counterparty TEXT,
	UNIQUE(event_identifier, sequence_index)
);
CREATE TABLE IF NOT EXISTS evm_tx_mappings (
	tx_hash TEXT NOT NULL,
	blockchain TEXT NOT NULL,
	value INTEGER NOT NULL,
	UNIQUE(tx_hash, blockchain, value)
);
CREATE TABLE IF NOT EXISTS reports (
	identifier TEXT NOT NULL PRIMARY KEY,
	created INTEGER NOT NULL,
	first_processed INTEGER NOT NULL,
	last_processed INTEGER NOT NULL,
	profit_currency TEXT NOT NULL,
	taxfree_after_period INTEGER,
	include_gas_costs INTEGER NOT NULL,
	include_crypto2crypto INTEGER NOT NULL,
	taxable TEXT NOT NULL,
	free TEXT NOT NULL,
	missing_acquisitions INTEGER NOT NULL,
	missing_prices INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS report_events (
	report_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	kind TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	location TEXT,
	asset TEXT NOT NULL,
	amount TEXT NOT NULL,
	price TEXT NOT NULL,
	taxable INTEGER NOT NULL,
	spend INTEGER NOT NULL,
	pnl_taxable TEXT NOT NULL,
	pnl_free TEXT NOT NULL,
	notes TEXT,
	event_identifier TEXT,
	cost_basis TEXT,
	PRIMARY KEY(report_id, idx),
	FOREIGN KEY(report_id) REFERENCES reports(identifier) ON DELETE CASCADE
);
`

// Store is safe for concurrent use.  SQLite allows one writer, so a
// single connection is shared.
type Store struct {
	db *sql.DB
}

// Open creates the tables when they are missing.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create tables")
	}
	glog.V(1).Infof("opened database %s", path)
	return &Store{db: db}, nil
}

func (this *Store) Close() error {
	return this.db.Close()
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (this *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := this.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rb := tx.Rollback(); rb != nil {
			glog.Errorf("rollback failed: %s", rb)
		}
		return err
	}
	return tx.Commit()
}

func nullAddress(a *evm.Address) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Hex(), Valid: true}
}

func addressOrNil(s sql.NullString) *evm.Address {
	if !s.Valid || s.String == "" {
		return nil
	}
	a := evm.HexToAddress(s.String)
	return &a
}

// AddTransactionBundle stores a transaction with its receipt, internal
// transactions and tokens.  Storing the same bundle again replaces it
// and leaves decoded events alone.
func (this *Store) AddTransactionBundle(ctx context.Context, b evm.Bundle) error {
	t := b.Transaction
	data, err := json.Marshal(t)
	if err != nil {
		return errors.Wrapf(err, "failed to encode transaction %s", t.Hash.Hex())
	}
	logs, err := json.Marshal(b.Receipt.Logs)
	if err != nil {
		return errors.Wrapf(err, "failed to encode logs of %s", t.Hash.Hex())
	}

	return this.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO evm_transactions
			(tx_hash, timestamp, block_number, from_address, to_address, data)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.Hash.Hex(), int64(t.Timestamp), t.BlockNumber, t.From.Hex(), nullAddress(t.To), string(data))
		if err != nil {
			return errors.Wrapf(err, "failed to store transaction %s", t.Hash.Hex())
		}

		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO evm_receipts
			(tx_hash, contract_address, status, type, logs)
			VALUES (?, ?, ?, ?, ?)`,
			t.Hash.Hex(), nullAddress(b.Receipt.ContractAddress), b.Receipt.Status, b.Receipt.Type, string(logs))
		if err != nil {
			return errors.Wrapf(err, "failed to store receipt of %s", t.Hash.Hex())
		}

		for _, it := range b.Internal {
			_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO evm_internal_transactions
				(parent_tx_hash, trace_id, timestamp, block_number, from_address, to_address, value)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.Hash.Hex(), it.TraceID, int64(it.Timestamp), it.BlockNumber, it.From.Hex(), nullAddress(it.To), it.ValueWei().String())
			if err != nil {
				return errors.Wrapf(err, "failed to store internal transaction %d of %s", it.TraceID, t.Hash.Hex())
			}
		}

		for _, token := range b.Tokens {
			if err := addToken(ctx, tx, token); err != nil {
				return err
			}
		}
		return nil
	})
}

func addToken(ctx context.Context, tx *sql.Tx, t evm.Token) error {
	_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO evm_tokens
		(address, name, symbol, decimals, protocol) VALUES (?, ?, ?, ?, ?)`,
		t.Address.Hex(), t.Name, t.Symbol, t.Decimals, t.Protocol)
	return errors.Wrapf(err, "failed to store token %s", t.Address.Hex())
}

// Tokens lists every stored token.
func (this *Store) Tokens(ctx context.Context) ([]evm.Token, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT address, name, symbol, decimals, protocol FROM evm_tokens ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []evm.Token
	for rows.Next() {
		var t evm.Token
		var addr string
		var name, symbol, protocol sql.NullString
		if err := rows.Scan(&addr, &name, &symbol, &t.Decimals, &protocol); err != nil {
			return nil, err
		}
		t.Address = evm.HexToAddress(addr)
		t.Name, t.Symbol, t.Protocol = name.String, symbol.String, protocol.String
		list = append(list, t)
	}
	return list, rows.Err()
}

// TokenRegistry loads the stored tokens for the decoder.
func (this *Store) TokenRegistry(ctx context.Context) (*evm.TokenRegistry, error) {
	tokens, err := this.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	return evm.NewTokenRegistry(tokens...), nil
}

func (this *Store) Transaction(ctx context.Context, hash evm.Hash) (*evm.Transaction, error) {
	var data string
	err := this.db.QueryRowContext(ctx, `SELECT data FROM evm_transactions WHERE tx_hash = ?`, hash.Hex()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "transaction %s", hash.Hex())
	}
	if err != nil {
		return nil, err
	}
	var t evm.Transaction
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, errors.Wrapf(err, "failed to decode transaction %s", hash.Hex())
	}
	return &t, nil
}

func (this *Store) receipt(ctx context.Context, hash evm.Hash) (*evm.Receipt, error) {
	var contract sql.NullString
	var logs string
	r := evm.Receipt{TxHash: hash}
	err := this.db.QueryRowContext(ctx, `SELECT contract_address, status, type, logs FROM evm_receipts WHERE tx_hash = ?`, hash.Hex()).
		Scan(&contract, &r.Status, &r.Type, &logs)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "receipt of %s", hash.Hex())
	}
	if err != nil {
		return nil, err
	}
	r.ContractAddress = addressOrNil(contract)
	if err := json.Unmarshal([]byte(logs), &r.Logs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode logs of %s", hash.Hex())
	}
	return &r, nil
}

// Bundle assembles a stored transaction for decoding.  Tokens are not
// part of it; see TokenRegistry.
func (this *Store) Bundle(ctx context.Context, hash evm.Hash) (*evm.Bundle, error) {
	t, err := this.Transaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	r, err := this.receipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	internal, err := this.InternalTransactions(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &evm.Bundle{Transaction: *t, Receipt: *r, Internal: internal}, nil
}

func (this *Store) InternalTransactions(ctx context.Context, parent evm.Hash) ([]evm.InternalTransaction, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT trace_id, timestamp, block_number, from_address, to_address, value
		FROM evm_internal_transactions WHERE parent_tx_hash = ? ORDER BY trace_id`, parent.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []evm.InternalTransaction
	for rows.Next() {
		var ts int64
		var from, value string
		var to sql.NullString
		it := evm.InternalTransaction{ParentHash: parent}
		if err := rows.Scan(&it.TraceID, &ts, &it.BlockNumber, &from, &to, &value); err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, errors.Wrapf(evm.ErrDeserialization, "internal transaction %d of %s has value %q", it.TraceID, parent.Hex(), value)
		}
		it.Timestamp = types.Timestamp(ts)
		it.From = evm.HexToAddress(from)
		it.To = addressOrNil(to)
		it.Value = (*hexutil.Big)(v)
		list = append(list, it)
	}
	return list, rows.Err()
}

// TransactionHashesNotDecoded lists up to limit stored transactions
// without decoded events, oldest first.  A limit of zero lists all.
func (this *Store) TransactionHashesNotDecoded(ctx context.Context, limit int) ([]evm.Hash, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := this.db.QueryContext(ctx, `SELECT tx_hash FROM evm_transactions
		WHERE tx_hash NOT IN (SELECT tx_hash FROM evm_tx_mappings WHERE blockchain = ? AND value = ?)
		ORDER BY timestamp, tx_hash LIMIT ?`, blockchainEthereum, mappingDecoded, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []evm.Hash
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		list = append(list, evm.HexToHash(h))
	}
	return list, rows.Err()
}

func (this *Store) IsDecoded(ctx context.Context, hash evm.Hash) (bool, error) {
	var n int
	err := this.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evm_tx_mappings WHERE tx_hash = ? AND blockchain = ? AND value = ?`,
		hash.Hex(), blockchainEthereum, mappingDecoded).Scan(&n)
	return n > 0, err
}

const historyEventColumns = `event_identifier, sequence_index, timestamp, location, location_label, asset,
	amount, usd_value, notes, type, subtype, counterparty`

func scanHistoryEvents(rows *sql.Rows) ([]*decoding.HistoryEvent, error) {
	defer rows.Close()
	var list []*decoding.HistoryEvent
	for rows.Next() {
		var e decoding.HistoryEvent
		var ts int64
		var label, notes, counterparty sql.NullString
		err := rows.Scan(&e.EventIdentifier, &e.SequenceIndex, &ts, &e.Location, &label, &e.Asset,
			&e.Amount, &e.USDValue, &notes, &e.EventType, &e.EventSubtype, &counterparty)
		if err != nil {
			return nil, err
		}
		e.Timestamp = types.TimestampMS(ts)
		e.LocationLabel, e.Notes, e.Counterparty = label.String, notes.String, counterparty.String
		list = append(list, &e)
	}
	return list, rows.Err()
}

// HistoryEvents of one transaction, by sequence index.
func (this *Store) HistoryEvents(ctx context.Context, identifier string) ([]*decoding.HistoryEvent, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT `+historyEventColumns+` FROM history_events
		WHERE event_identifier = ? ORDER BY sequence_index`, identifier)
	if err != nil {
		return nil, err
	}
	return scanHistoryEvents(rows)
}

// AllHistoryEvents in chronological order.
func (this *Store) AllHistoryEvents(ctx context.Context) ([]*decoding.HistoryEvent, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT `+historyEventColumns+` FROM history_events
		ORDER BY timestamp, event_identifier, sequence_index`)
	if err != nil {
		return nil, err
	}
	return scanHistoryEvents(rows)
}

// AddHistoryEvents stores the events of hash and marks it decoded.
// Either both happen or neither does.
func (this *Store) AddHistoryEvents(ctx context.Context, hash evm.Hash, events []*decoding.HistoryEvent) error {
	return this.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range events {
			_, err := tx.ExecContext(ctx, `INSERT INTO history_events (`+historyEventColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.EventIdentifier, e.SequenceIndex, int64(e.Timestamp), string(e.Location), e.LocationLabel, string(e.Asset),
				e.Amount, e.USDValue, e.Notes, string(e.EventType), string(e.EventSubtype), e.Counterparty)
			if err != nil {
				return errors.Wrapf(err, "failed to store event %s", e)
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO evm_tx_mappings (tx_hash, blockchain, value) VALUES (?, ?, ?)`,
			hash.Hex(), blockchainEthereum, mappingDecoded)
		return errors.Wrapf(err, "failed to mark %s decoded", hash.Hex())
	})
}

// DeleteDecoded removes the decoded events of hash so it can be
// decoded again.
func (this *Store) DeleteDecoded(ctx context.Context, hash evm.Hash) error {
	return this.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history_events WHERE event_identifier = ?`, hash.Hex()); err != nil {
			return errors.Wrapf(err, "failed to delete events of %s", hash.Hex())
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM evm_tx_mappings WHERE tx_hash = ? AND blockchain = ? AND value = ?`,
			hash.Hex(), blockchainEthereum, mappingDecoded)
		return errors.Wrapf(err, "failed to unmark %s", hash.Hex())
	})
}

// ReportSummary is the stored header of a report.
type ReportSummary struct {
	ID                  uuid.UUID
	Created             types.Timestamp
	FirstProcessed      types.Timestamp
	LastProcessed       types.Timestamp
	ProfitCurrency      asset.Asset
	Overall             accounting.PnL
	MissingAcquisitions int
	MissingPrices       int
}

// SaveReport stores a report and its events.  Cost basis goes into a
// JSON column.
func (this *Store) SaveReport(ctx context.Context, r accounting.Report) error {
	overall := r.Overall()
	var period sql.NullInt64
	if r.Settings.TaxfreeAfterPeriod != nil {
		period = sql.NullInt64{Int64: *r.Settings.TaxfreeAfterPeriod, Valid: true}
	}

	return this.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO reports (identifier, created, first_processed, last_processed,
			profit_currency, taxfree_after_period, include_gas_costs, include_crypto2crypto,
			taxable, free, missing_acquisitions, missing_prices)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), time.Now().Unix(), int64(r.FirstProcessed), int64(r.LastProcessed),
			string(r.Settings.ProfitCurrency), period, r.Settings.IncludeGasCosts, r.Settings.IncludeCrypto2Crypto,
			overall.Taxable, overall.Free, len(r.MissingAcquisitions), len(r.MissingPrices))
		if err != nil {
			return errors.Wrapf(err, "failed to store report %s", r.ID)
		}

		for _, e := range r.Events {
			var cb sql.NullString
			if e.CostBasis != nil {
				b, err := e.CostBasis.MarshalJSON()
				if err != nil {
					return errors.Wrapf(err, "failed to encode cost basis of event %d", e.Index)
				}
				cb = sql.NullString{String: string(b), Valid: true}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO report_events (report_id, idx, kind, timestamp, location,
				asset, amount, price, taxable, spend, pnl_taxable, pnl_free, notes, event_identifier, cost_basis)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID.String(), e.Index, string(e.Kind), int64(e.Timestamp), string(e.Location),
				string(e.Asset), e.Amount, e.Price, e.Taxable, e.Spend, e.PnL.Taxable, e.PnL.Free,
				e.Notes, e.EventIdentifier, cb)
			if err != nil {
				return errors.Wrapf(err, "failed to store event %d of report %s", e.Index, r.ID)
			}
		}
		return nil
	})
}

// Reports lists stored report headers, newest first.
func (this *Store) Reports(ctx context.Context) ([]ReportSummary, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT identifier, created, first_processed, last_processed, profit_currency,
		taxable, free, missing_acquisitions, missing_prices FROM reports ORDER BY created DESC, identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []ReportSummary
	for rows.Next() {
		var s ReportSummary
		var id string
		var created, first, last int64
		err := rows.Scan(&id, &created, &first, &last, &s.ProfitCurrency,
			&s.Overall.Taxable, &s.Overall.Free, &s.MissingAcquisitions, &s.MissingPrices)
		if err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "bad report identifier %q", id)
		}
		s.Created, s.FirstProcessed, s.LastProcessed = types.Timestamp(created), types.Timestamp(first), types.Timestamp(last)
		list = append(list, s)
	}
	return list, rows.Err()
}

// ReportEvents restores the events of a stored report.  Restored cost
// basis carries the matched lots but zero totals.
func (this *Store) ReportEvents(ctx context.Context, id uuid.UUID) ([]accounting.ProcessedEvent, error) {
	rows, err := this.db.QueryContext(ctx, `SELECT idx, kind, timestamp, location, asset, amount, price, taxable, spend,
		pnl_taxable, pnl_free, notes, event_identifier, cost_basis
		FROM report_events WHERE report_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []accounting.ProcessedEvent
	for rows.Next() {
		var e accounting.ProcessedEvent
		var ts int64
		var location, notes, identifier, cb sql.NullString
		err := rows.Scan(&e.Index, &e.Kind, &ts, &location, &e.Asset, &e.Amount, &e.Price, &e.Taxable, &e.Spend,
			&e.PnL.Taxable, &e.PnL.Free, &notes, &identifier, &cb)
		if err != nil {
			return nil, err
		}
		e.Timestamp = types.Timestamp(ts)
		e.Location = types.Location(location.String)
		e.Notes, e.EventIdentifier = notes.String, identifier.String
		if cb.Valid {
			info, err := costbasis.UnmarshalInfo([]byte(cb.String))
			if err != nil {
				return nil, errors.Wrapf(err, "event %d of report %s", e.Index, id)
			}
			e.CostBasis = info
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		var n int
		if err := this.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE identifier = ?`, id.String()).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errors.Wrapf(ErrNotFound, "report %s", id)
		}
	}
	return list, nil
}

var _ decoding.Store = (*Store)(nil)
