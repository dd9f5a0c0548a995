package cmd

import (
	"testing"

	"github.com/dncohen/taxlot/cfg"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/evm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = evm.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob      = evm.HexToAddress("0x0000000000000000000000000000000000000B0B")
	stranger = evm.HexToAddress("0x0000000000000000000000000000000000005eed")
)

func withNicknames(t *testing.T) {
	c, err := cfg.LooseLoad([]byte(`
[hot]
	address=0x00000000000000000000000000000000000A11CE
[cold]
	address=0x0000000000000000000000000000000000000B0B
`))
	require.NoError(t, err)
	nicknames = &c
	t.Cleanup(func() { nicknames = nil })
}

func TestParseAccountArg(t *testing.T) {
	withNicknames(t)

	accounts, err := ParseAccountArg([]string{"cold", stranger.Hex(), "hot"})
	require.NoError(t, err)
	assert.Equal(t, []evm.Address{bob, stranger, alice}, accounts)

	_, err = ParseAccountArg([]string{"hot", "nobody"})
	assert.Error(t, err)
}

func TestFormatAccount(t *testing.T) {
	withNicknames(t)

	assert.Equal(t, "hot", FormatAccount(alice))
	assert.Equal(t, stranger.Hex(), FormatAccount(stranger))
	assert.Equal(t, "cold", FormatLabel(bob.Hex()))
	assert.Equal(t, "gas", FormatLabel("gas"))

	tracked, err := TrackedAccounts()
	require.NoError(t, err)
	assert.Equal(t, []evm.Address{alice, bob}, tracked)
}

func TestEventsOfAccounts(t *testing.T) {
	events := []*decoding.HistoryEvent{
		{SequenceIndex: 0, LocationLabel: alice.Hex()},
		{SequenceIndex: 1, LocationLabel: bob.Hex()},
		{SequenceIndex: 2, LocationLabel: ""},
		{SequenceIndex: 3, LocationLabel: alice.Hex()},
	}

	assert.Len(t, EventsOfAccounts(nil, events), 4)

	mine := EventsOfAccounts([]evm.Address{alice}, events)
	require.Len(t, mine, 2)
	assert.Equal(t, 0, mine[0].SequenceIndex)
	assert.Equal(t, 3, mine[1].SequenceIndex)

	assert.Empty(t, EventsOfAccounts([]evm.Address{stranger}, events))
}
