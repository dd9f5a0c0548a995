package price

import (
	"context"
	"testing"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOracle struct {
	name  string
	rate  decimal.Decimal
	calls int
}

func (this *countingOracle) Name() string { return this.name }
func (this *countingOracle) CanQueryHistory(from, to asset.Asset, ts types.Timestamp) bool {
	return from == asset.BTC
}
func (this *countingOracle) QueryHistoricalPrice(ctx context.Context, from, to asset.Asset, ts types.Timestamp) (decimal.Decimal, error) {
	this.calls++
	if this.rate.IsZero() {
		return decimal.Zero, ErrNoPrice
	}
	return this.rate, nil
}

func TestNewHistorianValidatesOrder(t *testing.T) {
	_, err := NewHistorian()
	assert.Error(t, err)

	m := NewManualOracle()
	_, err = NewHistorian(m, m)
	assert.Error(t, err)

	h, err := NewHistorian(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"manual"}, h.Oracles())
}

func TestOracleOrder(t *testing.T) {
	failing := &countingOracle{name: "first"}
	second := &countingOracle{name: "second", rate: decimal.NewFromInt(30000)}
	h, err := NewHistorian(failing, second)
	require.NoError(t, err)

	ctx := context.Background()
	rate, err := h.QueryHistoricalPrice(ctx, asset.BTC, asset.EUR, 1600000000)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30000).Equal(rate))
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, second.calls)

	// same day comes from the cache
	_, err = h.QueryHistoricalPrice(ctx, asset.BTC, asset.EUR, 1600000000+60)
	require.NoError(t, err)
	assert.Equal(t, 1, second.calls)

	_, err = h.QueryHistoricalPrice(ctx, asset.ETH, asset.EUR, 1600000000)
	assert.True(t, errors.Is(err, ErrNoPrice))
}

func TestSpecialAssets(t *testing.T) {
	m := NewManualOracle()
	m.Add(asset.USD, asset.EUR, 0, decimal.RequireFromString("0.9"))
	h, err := NewHistorian(m)
	require.NoError(t, err)
	ctx := context.Background()

	rate, err := h.QueryHistoricalPrice(ctx, asset.ETH, asset.ETH, 5)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(rate))

	rate, err = h.QueryHistoricalPrice(ctx, asset.KFEE, asset.USD, 5)
	require.NoError(t, err)
	assert.Equal(t, "0.01", rate.String())

	rate, err = h.QueryHistoricalPrice(ctx, asset.KFEE, asset.EUR, 5)
	require.NoError(t, err)
	assert.Equal(t, "0.009", rate.String())
}

func TestManualOracle(t *testing.T) {
	m := NewManualOracle()
	m.Add(asset.ETH, asset.EUR, 200, decimal.NewFromInt(400))
	m.Add(asset.ETH, asset.EUR, 100, decimal.NewFromInt(200))
	ctx := context.Background()

	_, err := m.QueryHistoricalPrice(ctx, asset.ETH, asset.EUR, 99)
	assert.Error(t, err)

	rate, err := m.QueryHistoricalPrice(ctx, asset.ETH, asset.EUR, 150)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(rate))

	rate, err = m.QueryHistoricalPrice(ctx, asset.ETH, asset.EUR, 200)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(400).Equal(rate))

	rate, err = m.QueryHistoricalPrice(ctx, asset.EUR, asset.ETH, 300)
	require.NoError(t, err)
	assert.Equal(t, "0.0025", rate.String())

	assert.True(t, m.CanQueryHistory(asset.EUR, asset.ETH, 0))
	assert.False(t, m.CanQueryHistory(asset.BTC, asset.ETH, 0))
}
