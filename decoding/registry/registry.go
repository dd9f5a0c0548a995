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

// Package registry lists the protocol decoders built into taxlot.
package registry

import (
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/decoding/kyber"
	"github.com/dncohen/taxlot/decoding/pickle"
	"github.com/dncohen/taxlot/evm"
)

// Constructors of all protocol decoders, in load order.  Add new
// protocols here.
func Constructors() []decoding.Constructor {
	return []decoding.Constructor{
		kyber.New,
		pickle.New,
	}
}

// New builds a decoder with every protocol decoder loaded.
func New(store decoding.Store, tokens evm.TokenResolver, tracked []evm.Address) (*decoding.EVMTransactionDecoder, error) {
	return decoding.New(store, tokens, decoding.NewBaseTools(tracked), Constructors()...)
}
