package decoding

import (
	"testing"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = evm.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob      = evm.HexToAddress("0x0000000000000000000000000000000000000B0B")
	stranger = evm.HexToAddress("0x0000000000000000000000000000000000005eed")
)

func TestDecodeDirection(t *testing.T) {
	base := NewBaseTools([]evm.Address{alice, bob})

	d := base.DecodeDirection(alice, &bob, nil, "")
	require.NotNil(t, d)
	assert.Equal(t, EventTransfer, d.EventType)
	assert.Equal(t, alice.Hex(), d.LocationLabel)
	assert.Equal(t, bob.Hex(), d.Counterparty)

	d = base.DecodeDirection(alice, &stranger, nil, "")
	require.NotNil(t, d)
	assert.Equal(t, EventSpend, d.EventType)
	assert.Equal(t, "Send", d.Verb)

	d = base.DecodeDirection(stranger, &alice, &Verbs{Out: "Donate", In: "Receive donation"}, "gitcoin")
	require.NotNil(t, d)
	assert.Equal(t, EventReceive, d.EventType)
	assert.Equal(t, alice.Hex(), d.LocationLabel)
	assert.Equal(t, "gitcoin", d.Counterparty)
	assert.Equal(t, "Receive donation", d.Verb)

	assert.Nil(t, base.DecodeDirection(stranger, &stranger, nil, ""))
	assert.Nil(t, base.DecodeDirection(stranger, nil, nil, ""))

	base.RefreshTrackedAccounts([]evm.Address{stranger})
	assert.False(t, base.IsTracked(alice))
	assert.NotNil(t, base.DecodeDirection(stranger, nil, nil, ""))
}

func TestActionItemsConsumedOnce(t *testing.T) {
	amount := decimal.RequireFromString("2.5")
	items := &ActionItems{}
	items.Add(ActionItem{
		Action:           ActionTransform,
		Asset:            asset.DAI,
		Amount:           amount,
		FromEventType:    EventReceive,
		FromEventSubtype: SubtypeNone,
		ToEventType:      EventWithdrawal,
		ToEventSubtype:   SubtypeRemoveAsset,
		ToCounterparty:   "vault",
	})

	first := &HistoryEvent{Asset: asset.DAI, Amount: amount, EventType: EventReceive, EventSubtype: SubtypeNone, Notes: "Receive", Counterparty: "x"}
	matched, skip := items.Apply(first)
	assert.True(t, matched)
	assert.False(t, skip)
	assert.Equal(t, EventWithdrawal, first.EventType)
	assert.Equal(t, SubtypeRemoveAsset, first.EventSubtype)
	assert.Equal(t, "vault", first.Counterparty)
	assert.Equal(t, "Receive", first.Notes, "unset fields are left alone")
	assert.Equal(t, 0, items.Len())

	second := &HistoryEvent{Asset: asset.DAI, Amount: amount, EventType: EventReceive, EventSubtype: SubtypeNone}
	matched, _ = items.Apply(second)
	assert.False(t, matched)
	assert.Equal(t, EventReceive, second.EventType)
}

func TestActionItemSkip(t *testing.T) {
	items := &ActionItems{}
	items.Add(ActionItem{Action: ActionSkip, Asset: asset.DAI, Amount: decimal.NewFromInt(1), FromEventType: EventSpend, FromEventSubtype: SubtypeNone})

	other := &HistoryEvent{Asset: asset.USDC, Amount: decimal.NewFromInt(1), EventType: EventSpend, EventSubtype: SubtypeNone}
	matched, skip := items.Apply(other)
	assert.False(t, matched)
	assert.False(t, skip)
	assert.Equal(t, 1, items.Len())

	event := &HistoryEvent{Asset: asset.DAI, Amount: decimal.RequireFromString("1.000"), EventType: EventSpend, EventSubtype: SubtypeNone}
	matched, skip = items.Apply(event)
	assert.True(t, matched)
	assert.True(t, skip)
	assert.Equal(t, 0, items.Len())
}

func TestTypeIdentifier(t *testing.T) {
	assert.Equal(t, "spend__fee__gas", TypeIdentifier(EventSpend, SubtypeFee, "gas"))
	assert.Equal(t, "receive__none", TypeIdentifier(EventReceive, SubtypeNone, ""))
	assert.Equal(t, "trade__spend__kyber legacy", HistoryEvent{EventType: EventTrade, EventSubtype: SubtypeSpend, Counterparty: "kyber legacy"}.TypeIdentifier())
}

func TestMaybeReshuffleEvents(t *testing.T) {
	out := &HistoryEvent{SequenceIndex: 7}
	in := &HistoryEvent{SequenceIndex: 4}
	MaybeReshuffleEvents(out, in)
	assert.Equal(t, 4, out.SequenceIndex)
	assert.Equal(t, 7, in.SequenceIndex)

	MaybeReshuffleEvents(out, in)
	assert.Equal(t, 4, out.SequenceIndex)
	MaybeReshuffleEvents(nil, in)
}
