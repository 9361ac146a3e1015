package httpserver

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestReplayGuard(t *testing.T) {
	g := newReplayGuard()
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")

	assert.True(t, g.use(alice, 1, 200, 100))
	assert.False(t, g.use(alice, 1, 200, 100))
	assert.True(t, g.use(bob, 1, 200, 100))
	assert.True(t, g.use(alice, 2, 150, 100))

	// Still remembered at its deadline
	assert.False(t, g.use(alice, 2, 150, 150))
	assert.Equal(t, 3, g.len())

	// Forgotten once the deadline has passed
	assert.True(t, g.use(alice, 3, 300, 151))
	assert.Equal(t, 3, g.len())
	assert.True(t, g.use(alice, 2, 300, 151))
}
