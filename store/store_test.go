package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dncohen/taxlot/accounting"
	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/decoding"
	dt "github.com/dncohen/taxlot/decoding/decodingtest"
	"github.com/dncohen/taxlot/decoding/registry"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/price"
	"github.com/dncohen/taxlot/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = evm.HexToAddress("0x00000000000000000000000000000000000A11CE")
	stranger = evm.HexToAddress("0x0000000000000000000000000000000000005eed")
	contract = evm.HexToAddress("0x00000000000000000000000000000000000000c0")
	daiToken = evm.Token{Address: evm.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Name: "Dai Stablecoin", Symbol: "DAI", Decimals: 18}
)

func open(t *testing.T) *Store {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "taxlot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bundle(i int) evm.Bundle {
	tx := dt.Tx(dt.Hash(i), alice, dt.Addr(contract), dt.Wei("1"))
	tx.Timestamp += types.Timestamp(i)
	return evm.Bundle{
		Transaction: tx,
		Receipt: evm.Receipt{
			TxHash: tx.Hash,
			Status: true,
			Logs:   []evm.Log{dt.Transfer(3, daiToken.Address, alice, stranger, dt.AmountWord("10", 18))},
		},
		Internal: []evm.InternalTransaction{{
			ParentHash: tx.Hash,
			TraceID:    1,
			Timestamp:  tx.Timestamp,
			From:       contract,
			To:         dt.Addr(alice),
			Value:      (*hexutil.Big)(dt.Wei("0.25")),
		}},
		Tokens: []evm.Token{daiToken},
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBundle(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	b := bundle(1)
	require.NoError(t, s.AddTransactionBundle(ctx, b))
	require.NoError(t, s.AddTransactionBundle(ctx, b), "adding again replaces")

	got, err := s.Bundle(ctx, b.Transaction.Hash)
	require.NoError(t, err)
	assert.Equal(t, b.Transaction.Hash, got.Transaction.Hash)
	assert.Equal(t, b.Transaction.From, got.Transaction.From)
	require.NotNil(t, got.Transaction.To)
	assert.Equal(t, contract, *got.Transaction.To)
	assert.Equal(t, 0, b.Transaction.ValueWei().Cmp(got.Transaction.ValueWei()))
	assert.Equal(t, 0, b.Transaction.GasCostWei().Cmp(got.Transaction.GasCostWei()))
	assert.Equal(t, b.Transaction.Timestamp, got.Transaction.Timestamp)

	assert.True(t, got.Receipt.Status)
	assert.Nil(t, got.Receipt.ContractAddress)
	require.Len(t, got.Receipt.Logs, 1)
	assert.Equal(t, b.Receipt.Logs[0].Topics, got.Receipt.Logs[0].Topics)
	assert.Equal(t, []byte(b.Receipt.Logs[0].Data), []byte(got.Receipt.Logs[0].Data))

	require.Len(t, got.Internal, 1)
	assert.Equal(t, alice, *got.Internal[0].To)
	assert.Equal(t, 0, dt.Wei("0.25").Cmp(got.Internal[0].ValueWei()))

	tokens, err := s.TokenRegistry(ctx)
	require.NoError(t, err)
	token, ok := tokens.Token(daiToken.Address)
	require.True(t, ok)
	assert.Equal(t, daiToken, *token)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	_, err := s.Bundle(ctx, dt.Hash(9))
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.ReportEvents(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func historyEvent(hash evm.Hash, seq int, amount string) *decoding.HistoryEvent {
	return &decoding.HistoryEvent{
		EventIdentifier: hash.Hex(),
		SequenceIndex:   seq,
		Timestamp:       dt.Timestamp.MS(),
		Location:        types.LocationBlockchain,
		LocationLabel:   alice.Hex(),
		Asset:           asset.ETH,
		Amount:          d(amount),
		EventType:       decoding.EventSpend,
		EventSubtype:    decoding.SubtypeNone,
		Notes:           "Send " + amount + " ETH",
		Counterparty:    stranger.Hex(),
	}
}

func TestHistoryEvents(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.AddTransactionBundle(ctx, bundle(i)))
	}

	pending, err := s.TransactionHashesNotDecoded(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []evm.Hash{dt.Hash(1), dt.Hash(2), dt.Hash(3)}, pending)

	hash := dt.Hash(2)
	require.NoError(t, s.AddHistoryEvents(ctx, hash, []*decoding.HistoryEvent{
		historyEvent(hash, 1, "0.5"),
		historyEvent(hash, 0, "0.000021"),
	}))

	decoded, err := s.IsDecoded(ctx, hash)
	require.NoError(t, err)
	assert.True(t, decoded)

	events, err := s.HistoryEvents(ctx, hash.Hex())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].SequenceIndex)
	assert.True(t, d("0.5").Equal(events[1].Amount))
	assert.Equal(t, *historyEvent(hash, 1, "0.5"), func() decoding.HistoryEvent {
		e := *events[1]
		e.Amount = d("0.5")
		e.USDValue = decimal.Decimal{}
		return e
	}())

	pending, err = s.TransactionHashesNotDecoded(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []evm.Hash{dt.Hash(1)}, pending)

	all, err := s.AllHistoryEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteDecoded(ctx, hash))
	decoded, err = s.IsDecoded(ctx, hash)
	require.NoError(t, err)
	assert.False(t, decoded)
	events, err = s.HistoryEvents(ctx, hash.Hex())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAddHistoryEventsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	hash := dt.Hash(1)
	require.NoError(t, s.AddTransactionBundle(ctx, bundle(1)))

	err := s.AddHistoryEvents(ctx, hash, []*decoding.HistoryEvent{
		historyEvent(hash, 0, "1"),
		historyEvent(hash, 0, "2"),
	})
	require.Error(t, err, "sequence indices are unique per transaction")

	decoded, err := s.IsDecoded(ctx, hash)
	require.NoError(t, err)
	assert.False(t, decoded)
	events, err := s.HistoryEvents(ctx, hash.Hex())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeStoredTransactions(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.AddTransactionBundle(ctx, bundle(i)))
	}
	tokens, err := s.TokenRegistry(ctx)
	require.NoError(t, err)
	decoder, err := registry.New(s, tokens, []evm.Address{alice})
	require.NoError(t, err)

	events, err := decoder.DecodeUndecoded(ctx, 0, 2)
	require.NoError(t, err)
	// gas, ETH sent, ETH received internally, DAI sent
	assert.Len(t, events, 16)

	pending, err := s.TransactionHashesNotDecoded(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := s.HistoryEvents(ctx, dt.Hash(1).Hex())
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, decoding.SubtypeFee, stored[0].EventSubtype)
	assert.Equal(t, decoding.EventReceive, stored[1].EventType)
	assert.Equal(t, asset.FromEthereumAddress(daiToken.Address.Hex()), stored[3].Asset)

	again, err := decoder.DecodeTransactionHashes(ctx, false, []evm.Hash{dt.Hash(1)}, 1)
	require.NoError(t, err)
	assert.Len(t, again, 4, "decoded events come from the database")
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	historian, err := price.NewHistorian(price.NewManualOracle())
	require.NoError(t, err)
	pot := accounting.NewPot(historian, nil)
	pot.Reset(accounting.DefaultSettings())
	t0 := types.Timestamp(1500000000)
	require.NoError(t, pot.Process(ctx, []accounting.Trade{
		{Timestamp: t0, Base: asset.BTC, Quote: asset.EUR, Type: accounting.TradeBuy, Amount: d("1"), Rate: d("1000")},
		{Timestamp: t0 + 10, Base: asset.BTC, Quote: asset.EUR, Type: accounting.TradeSell, Amount: d("0.5"), Rate: d("3000")},
	}, nil))
	report := pot.Report()
	require.NoError(t, s.SaveReport(ctx, report))

	events, err := s.ReportEvents(ctx, report.ID)
	require.NoError(t, err)
	require.Len(t, events, len(report.Events))

	sold := events[2]
	assert.Equal(t, asset.BTC, sold.Asset)
	assert.True(t, sold.Spend)
	assert.True(t, d("1000").Equal(sold.PnL.Taxable))
	require.NotNil(t, sold.CostBasis)
	assert.True(t, sold.CostBasis.IsComplete)
	require.Len(t, sold.CostBasis.MatchedAcquisitions, 1)
	assert.True(t, d("0.5").Equal(sold.CostBasis.MatchedAcquisitions[0].Amount))
	assert.True(t, sold.CostBasis.TaxableBoughtCost.IsZero(), "totals are not persisted")
	assert.Nil(t, events[1].CostBasis)

	summaries, err := s.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, report.ID, summaries[0].ID)
	assert.True(t, d("1000").Equal(summaries[0].Overall.Taxable))
	assert.Equal(t, asset.EUR, summaries[0].ProfitCurrency)
}
