package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, ETH, WETH.Canonical())
	assert.Equal(t, ETH, ETH.Canonical())
	assert.Equal(t, DAI, DAI.Canonical())
}

func TestIsFiat(t *testing.T) {
	assert.True(t, EUR.IsFiat())
	assert.True(t, New("usd").IsFiat())
	assert.False(t, ETH.IsFiat())
	assert.False(t, WETH.IsFiat())
}

func TestEthereumToken(t *testing.T) {
	a := FromEthereumAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	assert.Equal(t, DAI, a)
	assert.True(t, a.IsEthereumToken())
	addr, ok := a.EthereumAddress()
	assert.True(t, ok)
	assert.Equal(t, "0x6B175474E89094C44Da98b954EedeAC495271d0F", addr)

	_, ok = BTC.EthereumAddress()
	assert.False(t, ok)

	// token identifiers keep their case
	assert.Equal(t, DAI, New(string(DAI)))
}
