package cfg

import (
	"context"
	"testing"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const example = `
profit_currency=usd
taxfree_after_period=31536000
timezone=Europe/Berlin
include_gas_costs=false
database=/tmp/example.db
workers=8

[hot wallet]
	address=0x00000000000000000000000000000000000A11CE

[ledger]
	address=0x0000000000000000000000000000000000000B0B

[price "ETH"]
	1600000000=310.25
	1600086400=322.50
`

var (
	alice = evm.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = evm.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

func load(t *testing.T, text string) Config {
	config, err := LooseLoad([]byte(text))
	require.NoError(t, err)
	return config
}

func TestSettings(t *testing.T) {
	config := load(t, example)
	s, err := config.Settings()
	require.NoError(t, err)

	assert.Equal(t, asset.USD, s.ProfitCurrency)
	require.NotNil(t, s.TaxfreeAfterPeriod)
	assert.Equal(t, int64(31536000), *s.TaxfreeAfterPeriod)
	assert.Equal(t, "Europe/Berlin", s.Location.String())
	assert.False(t, s.IncludeGasCosts)
	assert.True(t, s.IncludeCrypto2Crypto)
	assert.Equal(t, "/tmp/example.db", config.Database())
	assert.Equal(t, 8, config.Workers())
}

func TestDefaults(t *testing.T) {
	config := load(t, "")
	s, err := config.Settings()
	require.NoError(t, err)

	assert.Equal(t, asset.EUR, s.ProfitCurrency)
	assert.Nil(t, s.TaxfreeAfterPeriod)
	assert.True(t, s.IncludeGasCosts)
	assert.Equal(t, DefaultDatabase, config.Database())
	assert.Equal(t, DefaultWorkers, config.Workers())
	assert.Empty(t, config.TrackedAccounts())

	h, err := config.Historian()
	require.NoError(t, err)
	assert.Equal(t, []string{"manual"}, h.Oracles())
}

func TestBadSettings(t *testing.T) {
	for _, text := range []string{
		"taxfree_after_period=a year",
		"taxfree_after_period=-1",
		"timezone=Nowhere/Special",
	} {
		_, err := load(t, text).Settings()
		assert.Error(t, err, text)
	}

	_, err := LooseLoad([]byte("[bad]\naddress=0x1234"))
	assert.Error(t, err)

	_, err = load(t, "oracles=manual,coingecko").Historian()
	assert.Error(t, err)
}

func TestAccounts(t *testing.T) {
	config := load(t, example)
	assert.Equal(t, []evm.Address{alice, bob}, config.TrackedAccounts())

	a, err := config.AccountFromArg("ledger")
	require.NoError(t, err)
	assert.Equal(t, bob, a)

	a, err = config.AccountFromArg(alice.Hex())
	require.NoError(t, err)
	assert.Equal(t, alice, a)

	_, err = config.AccountFromArg("cold wallet")
	assert.Error(t, err)

	assert.Equal(t, "hot wallet", config.FormatAccountName(alice))
	stranger := evm.HexToAddress("0x0000000000000000000000000000000000005eed")
	assert.Equal(t, stranger.Hex(), config.FormatAccountName(stranger))
	assert.Equal(t, "ledger", config.FormatLabel(bob.Hex()))
	assert.Equal(t, "kraken", config.FormatLabel("kraken"))
}

func TestManualPrices(t *testing.T) {
	config := load(t, example)
	h, err := config.Historian()
	require.NoError(t, err)

	rate, err := h.QueryHistoricalPrice(context.Background(), asset.ETH, asset.USD, types.Timestamp(1600086400))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("322.50").Equal(rate), rate.String())

	_, err = load(t, "[price \"ETH\"]\nyesterday=1").ManualOracle()
	assert.Error(t, err)
}
