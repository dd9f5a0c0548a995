package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dncohen/taxlot/accounting"
	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrades(t *testing.T) {
	input := `
{"timestamp": 1500000000, "location": "kraken", "base_asset": "BTC", "quote_asset": "EUR", "trade_type": "buy", "amount": "1", "rate": "1000", "fee": "0.01", "fee_currency": "BTC"}
{"timestamp": 1500000100, "location": "kraken", "base_asset": "BTC", "quote_asset": "EUR", "trade_type": "sell", "amount": "0.5", "rate": "3000", "fee": "0", "fee_currency": ""}
`
	trades, err := ReadAll[accounting.Trade](strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, asset.BTC, trades[0].Base)
	assert.Equal(t, accounting.TradeSell, trades[1].Type)
	assert.True(t, decimal.RequireFromString("0.01").Equal(trades[0].Fee))
}

func TestBundles(t *testing.T) {
	input := `{
	"transaction": {
		"hash": "0x0000000000000000000000000000000000000000000000000000000000000001",
		"timestamp": 1600000000,
		"block_number": 1,
		"from": "0x00000000000000000000000000000000000a11ce",
		"to": null,
		"value": "0x0",
		"gas": "0x5208",
		"gas_price": "0x3b9aca00",
		"gas_used": "0x5208",
		"input_data": "0x",
		"nonce": 0
	},
	"receipt": {
		"tx_hash": "0x0000000000000000000000000000000000000000000000000000000000000001",
		"contract_address": "0x00000000000000000000000000000000000000c0",
		"status": true,
		"type": 0,
		"logs": []
	}
}`
	bundles, err := ReadAll[evm.Bundle](strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	b := bundles[0]
	assert.Nil(t, b.Transaction.To)
	require.NotNil(t, b.Receipt.ContractAddress)
	assert.Equal(t, "21000000000000", b.Transaction.GasCostWei().String())
}

func TestMalformed(t *testing.T) {
	_, err := ReadAll[accounting.Trade](strings.NewReader(`{"amount": "1"} {"amount": `))
	assert.Error(t, err)
}

func TestEncodeOutput(t *testing.T) {
	c := make(chan accounting.PnL, 2)
	c <- accounting.PnL{Taxable: decimal.NewFromInt(1), Free: decimal.Zero}
	c <- accounting.PnL{Taxable: decimal.NewFromInt(2), Free: decimal.Zero}
	close(c)

	var buf bytes.Buffer
	require.NoError(t, EncodeOutput(&buf, c))

	again, err := ReadAll[accounting.PnL](&buf)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.True(t, decimal.NewFromInt(2).Equal(again[1].Taxable))
}
