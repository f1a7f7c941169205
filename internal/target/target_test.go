package target

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxIsAllOnes(t *testing.T) {
	m := Max()
	for _, b := range m {
		assert.Equal(t, byte(0xff), b)
	}
}

func TestBigIntRoundTrip(t *testing.T) {
	want := big.NewInt(0x1234abcd)
	tg := FromBigInt(want)
	assert.Equal(t, 0, want.Cmp(tg.BigInt()))
}

func TestCmpAndLessOrEqual(t *testing.T) {
	low := FromBigInt(big.NewInt(100))
	high := FromBigInt(big.NewInt(200))

	assert.Equal(t, -1, low.Cmp(high))
	assert.Equal(t, 1, high.Cmp(low))
	assert.Equal(t, 0, low.Cmp(low))

	assert.True(t, low.LessOrEqual(high))
	assert.True(t, low.LessOrEqual(low))
	assert.False(t, high.LessOrEqual(low))
}

func TestHashrateToTargetRejectsInvalidInputs(t *testing.T) {
	_, err := HashrateToTarget(0, 10)
	assert.ErrorIs(t, err, ErrInvalidNominalHashrate)

	_, err = HashrateToTarget(-5, 10)
	assert.ErrorIs(t, err, ErrInvalidNominalHashrate)

	_, err = HashrateToTarget(1e12, 0)
	assert.ErrorIs(t, err, ErrInvalidNominalHashrate)
}

func TestHashrateToTargetMonotonicity(t *testing.T) {
	low, err := HashrateToTarget(1e9, 10)
	require.NoError(t, err)
	high, err := HashrateToTarget(1e15, 10)
	require.NoError(t, err)

	// A higher declared hashrate implies a smaller (harder) target for the
	// same expected share rate.
	assert.Equal(t, 1, low.Cmp(high))
}

func TestToDifficultyOfDifficulty1TargetIsOne(t *testing.T) {
	tg := FromBigInt(difficulty1Target)
	diff := ToDifficulty(tg)
	assert.InDelta(t, 1.0, diff, 0.0001)
}

func TestDecodeCompactZeroMantissaIsZeroTarget(t *testing.T) {
	tg := DecodeCompact(0x03000000)
	assert.Equal(t, FromBigInt(big.NewInt(0)), tg)
}

func TestDecodeCompactKnownValue(t *testing.T) {
	// 0x1d00ffff is the historical Bitcoin genesis difficulty-1 nBits.
	tg := DecodeCompact(0x1d00ffff)
	assert.Equal(t, 0, tg.BigInt().Cmp(difficulty1Target))
}

func TestFromBigIntPlacesLeastSignificantByteFirst(t *testing.T) {
	tg := FromBigInt(big.NewInt(0x1234abcd))
	assert.Equal(t, byte(0xcd), tg[0])
	assert.Equal(t, byte(0xab), tg[1])
	assert.Equal(t, byte(0x12), tg[2])
	assert.Equal(t, byte(0x34), tg[3])
	for i := 4; i < Size; i++ {
		assert.Equal(t, byte(0), tg[i])
	}
}

func TestHexRendersBigEndian(t *testing.T) {
	tg := FromBigInt(big.NewInt(0xdeadbeef))
	h := tg.Hex()
	assert.Len(t, h, 64)
	assert.Equal(t, strings.Repeat("0", 56)+"deadbeef", h)
}
