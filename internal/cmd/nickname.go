// Copyright (C) 2020  David N. Cohen
// This file is part of github.com/dncohen/taxlot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cmd

import (
	"github.com/dncohen/taxlot/cfg"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
	"github.com/pkg/errors"
)

var nicknames *cfg.Config

func initializeNicknames() error {
	// once
	if nicknames != nil {
		return nil
	}
	c, err := Config()
	if err != nil {
		return err
	}
	nicknames = &c
	return nil
}

// returns account nickname if known; otherwise, address string
func FormatAccount(account evm.Address) string {
	if err := initializeNicknames(); err != nil {
		return account.Hex()
	}
	return nicknames.FormatAccountName(account)
}

// FormatLabel shows an event's location label by nickname when it
// names a tracked account.
func FormatLabel(label string) string {
	if err := initializeNicknames(); err != nil {
		return label
	}
	return nicknames.FormatLabel(label)
}

// Helper for operations that expect a list of accounts.  We want to
// accept (and display) accounts by local nickname, as well as normal
// hex address.
func ParseAccountArg(arg []string) ([]evm.Address, error) {
	err := initializeNicknames()
	if err != nil {
		return nil, err
	}

	var account []evm.Address
	for _, a := range arg {
		acct, err := nicknames.AccountFromArg(a)
		if err != nil {
			return account, errors.Wrapf(err, "bad address (%q)", a)
		}
		account = append(account, acct)
	}
	return account, nil
}

// TrackedAccounts are the accounts named in the configuration.
func TrackedAccounts() ([]evm.Address, error) {
	if err := initializeNicknames(); err != nil {
		return nil, err
	}
	return nicknames.TrackedAccounts(), nil
}

// EventsOfAccounts keeps the events located at one of accounts.  With
// no accounts, every event is kept.
func EventsOfAccounts(accounts []evm.Address, events []*decoding.HistoryEvent) []*decoding.HistoryEvent {
	if len(accounts) == 0 {
		return events
	}
	want := make(map[evm.Address]bool, len(accounts))
	for _, a := range accounts {
		want[a] = true
	}
	var list []*decoding.HistoryEvent
	for _, e := range events {
		if evm.IsHexAddress(e.LocationLabel) && want[evm.HexToAddress(e.LocationLabel)] {
			list = append(list, e)
		}
	}
	return list
}
