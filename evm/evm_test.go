package evm

import (
	"math/big"
	"testing"

	"github.com/dncohen/taxlot/asset"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSignature(t *testing.T) {
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		EventSignature("Transfer(address,address,uint256)").Hex())
	assert.Equal(t,
		"0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925",
		EventSignature("Approval(address,address,uint256)").Hex())
}

func TestWordToAddress(t *testing.T) {
	word := common.LeftPadBytes(common.FromHex("0x6b175474e89094c44da98b954eedeac495271d0f"), 32)
	addr, err := WordToAddress(word)
	require.NoError(t, err)
	assert.Equal(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", addr.Hex())

	_, err = WordToAddress([]byte{1, 2})
	assert.True(t, errors.Is(err, ErrDeserialization))
}

func TestWordToInt(t *testing.T) {
	v, err := WordToInt(common.LeftPadBytes(big.NewInt(1500).Bytes(), 32))
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), v.Uint64())

	_, err = WordToInt(nil)
	assert.True(t, errors.Is(err, ErrDeserialization))
	_, err = WordToInt(make([]byte, 33))
	assert.True(t, errors.Is(err, ErrConversion))
}

func TestTokenNormalizedValue(t *testing.T) {
	raw := uint256.NewInt(1234500)
	assert.Equal(t, "1.2345", TokenNormalizedValue(raw, 6).String())
	assert.Equal(t, "0.021", FromWei(big.NewInt(21000000000000000)).String())
}

func abiWord(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

func TestABIString(t *testing.T) {
	text := "Fund the grants round"
	var data []byte
	data = append(data, abiWord(42)...) // word 0
	data = append(data, abiWord(64)...) // word 1, offset of the string
	data = append(data, abiWord(uint64(len(text)))...)
	data = append(data, common.RightPadBytes([]byte(text), 32)...)

	s, err := ABIString(data, 1)
	require.NoError(t, err)
	assert.Equal(t, text, s)

	_, err = ABIString(data, 0) // offset 42 points into garbage length
	assert.Error(t, err)
	_, err = ABIString(data, 9)
	assert.True(t, errors.Is(err, ErrDeserialization))
}

func TestBundleJSON(t *testing.T) {
	raw := `{
		"transaction": {
			"hash": "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060",
			"timestamp": 1600000000,
			"from": "0x9531c059098e3d194ff87febb587ab07b30b1306",
			"to": null,
			"value": "0xde0b6b3a7640000",
			"gas_price": "0x3b9aca00",
			"gas_used": "0x5208"
		},
		"receipt": {"status": true, "logs": []}
	}`
	var b Bundle
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &b))
	assert.Nil(t, b.Transaction.To)
	assert.Equal(t, "1", FromWei(b.Transaction.ValueWei()).String())
	assert.Equal(t, "0.000021", FromWei(b.Transaction.GasCostWei()).String())
	assert.Equal(t, "0x9531C059098e3d194fF87FebB587aB07B30B1306", b.Transaction.From.Hex())
}

func TestAddressToAsset(t *testing.T) {
	dai := Token{Address: HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Symbol: "DAI", Decimals: 18}
	jar := Token{Address: HexToAddress("0x6949Bb624E8e8A90F87cD2058139fcd77D2F3F87"), Symbol: "pDAI", Decimals: 18, Protocol: "pickle_jar"}
	r := NewTokenRegistry(dai, jar)

	a, dec, err := AddressToAsset(r, ETHPlaceholder)
	require.NoError(t, err)
	assert.Equal(t, asset.ETH, a)
	assert.Equal(t, 18, dec)

	a, _, err = AddressToAsset(r, dai.Address)
	require.NoError(t, err)
	assert.Equal(t, asset.DAI, a)

	_, _, err = AddressToAsset(r, HexToAddress("0x01"))
	assert.True(t, errors.Is(err, ErrUnknownAsset))

	jars := r.TokensByProtocol("pickle_jar")
	require.Len(t, jars, 1)
	assert.Equal(t, "pDAI", jars[0].Symbol)
}
