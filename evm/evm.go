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

// Package evm holds the Ethereum records the decoder works on, and
// helpers to pull values out of raw log words.
package evm

import (
	"math/big"

	"github.com/dncohen/taxlot/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	Address = common.Address
	Hash    = common.Hash
)

var (
	ErrDeserialization    = errors.New("deserialization error")
	ErrConversion         = errors.New("conversion error")
	ErrUnknownAsset       = errors.New("unknown asset")
	ErrNotERC20Conformant = errors.New("not erc20 conformant")
)

var ZeroAddress = Address{}

func HexToAddress(s string) Address {
	return common.HexToAddress(s)
}

func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

func HexToHash(s string) Hash {
	return common.HexToHash(s)
}

// EventSignature is topic zero of logs emitted by the event declared
// as sig, i.e. "Transfer(address,address,uint256)".
func EventSignature(sig string) Hash {
	return crypto.Keccak256Hash([]byte(sig))
}

type Transaction struct {
	Hash        Hash            `json:"hash"`
	Timestamp   types.Timestamp `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	From        Address         `json:"from"`
	To          *Address        `json:"to"` // nil for contract creation
	Value       *hexutil.Big    `json:"value"`
	Gas         hexutil.Uint64  `json:"gas"`
	GasPrice    *hexutil.Big    `json:"gas_price"`
	GasUsed     hexutil.Uint64  `json:"gas_used"`
	Input       hexutil.Bytes   `json:"input_data"`
	Nonce       uint64          `json:"nonce"`
}

// ValueWei is never nil.
func (this Transaction) ValueWei() *big.Int {
	if this.Value == nil {
		return new(big.Int)
	}
	return this.Value.ToInt()
}

// GasCostWei is gas used times gas price.
func (this Transaction) GasCostWei() *big.Int {
	price := new(big.Int)
	if this.GasPrice != nil {
		price = this.GasPrice.ToInt()
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(uint64(this.GasUsed)), price)
}

type Log struct {
	LogIndex int           `json:"log_index"`
	Address  Address       `json:"address"`
	Topics   []Hash        `json:"topics"`
	Data     hexutil.Bytes `json:"data"`
}

// Topic returns topic i, or the zero hash when there is none.
func (this Log) Topic(i int) Hash {
	if i < 0 || i >= len(this.Topics) {
		return Hash{}
	}
	return this.Topics[i]
}

type Receipt struct {
	TxHash          Hash     `json:"tx_hash"`
	ContractAddress *Address `json:"contract_address"`
	Status          bool     `json:"status"`
	Type            int      `json:"type"`
	Logs            []Log    `json:"logs"`
}

type InternalTransaction struct {
	ParentHash  Hash            `json:"parent_tx_hash"`
	TraceID     int             `json:"trace_id"`
	Timestamp   types.Timestamp `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	From        Address         `json:"from"`
	To          *Address        `json:"to"`
	Value       *hexutil.Big    `json:"value"`
}

func (this InternalTransaction) ValueWei() *big.Int {
	if this.Value == nil {
		return new(big.Int)
	}
	return this.Value.ToInt()
}

// Bundle is everything needed to decode one transaction.
type Bundle struct {
	Transaction Transaction           `json:"transaction"`
	Receipt     Receipt               `json:"receipt"`
	Internal    []InternalTransaction `json:"internal_transactions,omitempty"`
	Tokens      []Token               `json:"tokens,omitempty"`
}

// WordToAddress reads an address from a topic or data word.
func WordToAddress(b []byte) (Address, error) {
	if len(b) < common.AddressLength {
		return Address{}, errors.Wrapf(ErrDeserialization, "%d bytes is too short for an address", len(b))
	}
	return common.BytesToAddress(b), nil
}

// WordToInt reads an unsigned integer of up to 256 bits.
func WordToInt(b []byte) (*uint256.Int, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrDeserialization, "empty word")
	}
	if len(b) > 32 {
		return nil, errors.Wrapf(ErrConversion, "%d bytes overflow 256 bits", len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

// DataWord returns the 32 byte word i of log data.
func DataWord(data []byte, i int) ([]byte, error) {
	start := i * 32
	if i < 0 || start+32 > len(data) {
		return nil, errors.Wrapf(ErrDeserialization, "word %d out of range of %d bytes", i, len(data))
	}
	return data[start : start+32], nil
}

// ABIString decodes the dynamic string whose offset is stored in word i
// of ABI encoded data.
func ABIString(data []byte, i int) (string, error) {
	word, err := DataWord(data, i)
	if err != nil {
		return "", err
	}
	offset, err := WordToInt(word)
	if err != nil {
		return "", err
	}
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(data)) {
		return "", errors.Wrapf(ErrDeserialization, "string offset %s out of range", offset.ToBig())
	}
	start := offset.Uint64()
	length := new(uint256.Int).SetBytes(data[start : start+32])
	if !length.IsUint64() || start+32+length.Uint64() > uint64(len(data)) {
		return "", errors.Wrapf(ErrDeserialization, "string length %s out of range", length.ToBig())
	}
	return string(data[start+32 : start+32+length.Uint64()]), nil
}

// TokenNormalizedValue converts a raw token amount to units.
func TokenNormalizedValue(raw *uint256.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

// FromWei converts wei to ETH.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
