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


package cfg

import (
	"github.com/dncohen/taxlot/evm"
)

// Return account's nickname, if any.  Otherwise return account's address.
// Format helper lives in config because this is where nicknames are known.
func (config Config) FormatAccountName(account evm.Address) string {
	nick, ok := config.GetAccountNickname(account)
	if ok {
		return nick
	}
	return account.Hex()
}

// FormatLabel formats an event's location label, which is an address
// when the event belongs to a tracked account.
func (config Config) FormatLabel(label string) string {
	if !evm.IsHexAddress(label) {
		return label
	}
	return config.FormatAccountName(evm.HexToAddress(label))
}
