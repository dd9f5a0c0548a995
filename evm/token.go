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

package evm

import (
	"sort"
	"sync"

	"github.com/dncohen/taxlot/asset"
	"github.com/pkg/errors"
)

// Placeholder address some contracts use for native ETH.
var ETHPlaceholder = HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

type Token struct {
	Address  Address `json:"address"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
	Protocol string  `json:"protocol,omitempty"` // i.e. "pickle_jar"
}

func (this Token) Asset() asset.Asset {
	return asset.FromEthereumAddress(this.Address.Hex())
}

// TokenResolver looks up known tokens.
type TokenResolver interface {
	Token(addr Address) (*Token, bool)
	TokensByProtocol(protocol string) []Token
}

// TokenRegistry is an in memory TokenResolver.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[Address]Token
}

func NewTokenRegistry(tokens ...Token) *TokenRegistry {
	this := &TokenRegistry{tokens: make(map[Address]Token)}
	for _, t := range tokens {
		this.Add(t)
	}
	return this
}

func (this *TokenRegistry) Add(t Token) {
	this.mu.Lock()
	defer this.mu.Unlock()
	this.tokens[t.Address] = t
}

func (this *TokenRegistry) Token(addr Address) (*Token, bool) {
	this.mu.RLock()
	defer this.mu.RUnlock()
	t, ok := this.tokens[addr]
	if !ok {
		return nil, false
	}
	return &t, true
}

func (this *TokenRegistry) TokensByProtocol(protocol string) []Token {
	this.mu.RLock()
	defer this.mu.RUnlock()
	var list []Token
	for _, t := range this.tokens {
		if t.Protocol == protocol {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Address.Hex() < list[j].Address.Hex() })
	return list
}

func (this *TokenRegistry) Len() int {
	this.mu.RLock()
	defer this.mu.RUnlock()
	return len(this.tokens)
}

// AddressToAsset resolves a contract address, or the ETH placeholder,
// to an asset and its decimals.
func AddressToAsset(r TokenResolver, addr Address) (asset.Asset, int, error) {
	if addr == ETHPlaceholder {
		return asset.ETH, 18, nil
	}
	t, ok := r.Token(addr)
	if !ok {
		return "", 0, errors.Wrapf(ErrUnknownAsset, "no token at %s", addr.Hex())
	}
	return t.Asset(), t.Decimals, nil
}
