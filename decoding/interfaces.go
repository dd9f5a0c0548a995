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
	"github.com/dncohen/taxlot/evm"
)

// LogContext is what a rule sees while one log is decoded.
type LogContext struct {
	Log         *evm.Log
	Transaction *evm.Transaction
	Events      []*HistoryEvent // decoded so far, may be modified in place
	AllLogs     []evm.Log
	ActionItems *ActionItems

	state *txState
}

// SequenceIndex of an event derived from this log.
func (this *LogContext) SequenceIndex() int {
	return this.state.sequenceIndex(this.Log)
}

// NextSequenceIndex is for events with no log of their own.
func (this *LogContext) NextSequenceIndex() int {
	return this.state.next()
}

// AddressRule decodes logs emitted by one contract.  It may return an
// event, an action item for a later transfer, both, or neither.
type AddressRule func(ctx *LogContext) (*HistoryEvent, *ActionItem, error)

// EventRule is tried on every log no address rule claimed.  token is
// the known token at the log's address, or nil.
type EventRule func(token *evm.Token, ctx *LogContext) (*HistoryEvent, error)

// EnricherRule may rewrite a freshly decoded token transfer.  It
// returns true when it took responsibility for the transfer.
type EnricherRule func(token *evm.Token, ctx *LogContext, event *HistoryEvent) (bool, error)

// Decoder is a protocol specific decoder.  It also implements any of
// AddressDecoder, RuleDecoder, EnricherDecoder and SettingsDecoder.
type Decoder interface {
	Name() string
	Counterparties() []string
}

type AddressDecoder interface {
	AddressesToDecoders() map[evm.Address][]AddressRule
}

type RuleDecoder interface {
	DecodingRules() []EventRule
}

type EnricherDecoder interface {
	EnricherRules() []EnricherRule
}

type SettingsDecoder interface {
	EventSettings(SettingsContext) map[string]TxEventSettings
}

// Constructor builds a decoder.  Protocol packages export one each.
type Constructor func(base *BaseTools, tokens evm.TokenResolver) (Decoder, error)
