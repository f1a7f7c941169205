package chaintip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChainTipAccessors(t *testing.T) {
	var prevHash [32]byte
	prevHash[0] = 0xaa

	tip := New(prevHash, 0x1d00ffff, 1700000000)

	assert.Equal(t, prevHash, tip.PrevHash())
	assert.Equal(t, uint32(0x1d00ffff), tip.NBits())
	assert.Equal(t, uint32(1700000000), tip.HeaderTimestamp())
}
