// Package target implements 256-bit proof-of-work target arithmetic: the
// conversions between a declared hashrate, a share-rate expectation, a
// difficulty value, and the underlying 256-bit target threshold.
package target

import (
	"encoding/hex"
	"errors"
	"math"
	"math/big"
)

// ErrInvalidNominalHashrate is returned when a hashrate or expected
// share-per-minute rate cannot be used to derive a target.
var ErrInvalidNominalHashrate = errors.New("target: invalid nominal hashrate")

// Size is the byte length of a target value.
const Size = 32

// Target is an unsigned 256-bit proof-of-work threshold, stored internally
// in little-endian byte order (consensus order). Smaller targets are
// numerically harder to satisfy.
type Target [Size]byte

var (
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)

	// difficulty1Target is the historical Bitcoin difficulty-1 target:
	// 0x00000000FFFF0000000000000000000000000000000000000000000000000000,
	// expressed as the classic 8-bit-exponent/24-bit-mantissa compact
	// value 0x1d00ffff decoded in full precision.
	difficulty1Target = func() *big.Int {
		t, _ := new(big.Int).SetString("00000000ffff0000000000000000000000000000000000000000000000000000", 16)
		return t
	}()
)

// Max is the all-ones target, the loosest possible threshold.
func Max() Target {
	var t Target
	for i := range t {
		t[i] = 0xff
	}
	return t
}

// BigInt interprets the target's little-endian bytes as an unsigned integer.
func (t Target) BigInt() *big.Int {
	be := make([]byte, Size)
	for i := 0; i < Size; i++ {
		be[i] = t[Size-1-i]
	}
	return new(big.Int).SetBytes(be)
}

// FromBigInt renders an unsigned integer (must fit in 256 bits) into a
// little-endian Target.
func FromBigInt(v *big.Int) Target {
	be := v.Bytes()
	var t Target
	for i := 0; i < len(be) && i < Size; i++ {
		t[i] = be[len(be)-1-i]
	}
	return t
}

// Cmp compares two targets numerically: -1 if t < other, 0 if equal, 1 if
// t > other.
func (t Target) Cmp(other Target) int {
	for i := Size - 1; i >= 0; i-- {
		if t[i] != other[i] {
			if t[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// LessOrEqual reports whether t <= other.
func (t Target) LessOrEqual(other Target) bool {
	return t.Cmp(other) <= 0
}

// Hex renders the target in big-endian display order, matching the hex
// strings block explorers and the Sv2 reference test vectors use.
func (t Target) Hex() string {
	be := make([]byte, Size)
	for i := 0; i < Size; i++ {
		be[i] = t[Size-1-i]
	}
	return hex.EncodeToString(be)
}

// BytesToHex renders arbitrary big-endian bytes as lowercase hex, for
// logging values that aren't full Targets (partial hashes, prefixes).
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HashrateToTarget derives the target T such that a miner hashing at
// hashrate h (hashes/second) is expected to produce sharesPerMinute shares
// every 60 seconds against T:
//
//	T = 2^256 / (h * 60 / sharesPerMinute) - 1
func HashrateToTarget(hashrate, sharesPerMinute float64) (Target, error) {
	if math.IsNaN(hashrate) || math.IsInf(hashrate, 0) || hashrate <= 0 {
		return Target{}, ErrInvalidNominalHashrate
	}
	if math.IsNaN(sharesPerMinute) || math.IsInf(sharesPerMinute, 0) || sharesPerMinute <= 0 {
		return Target{}, ErrInvalidNominalHashrate
	}

	// hashesPerShare = h * 60 / sharesPerMinute, computed in big.Float for
	// enough precision across the full practical hashrate range, then
	// converted to an exact big.Int divisor.
	hr := new(big.Float).SetPrec(256).SetFloat64(hashrate)
	spm := new(big.Float).SetPrec(256).SetFloat64(sharesPerMinute)
	sixty := new(big.Float).SetPrec(256).SetFloat64(60)

	hashesPerShare := new(big.Float).SetPrec(256).Mul(hr, sixty)
	hashesPerShare.Quo(hashesPerShare, spm)

	divisor, _ := hashesPerShare.Int(nil)
	if divisor.Sign() <= 0 {
		return Target{}, ErrInvalidNominalHashrate
	}

	result := new(big.Int).Quo(two256, divisor)
	result.Sub(result, big.NewInt(1))
	if result.Sign() < 0 {
		result.SetInt64(0)
	}
	if result.Cmp(new(big.Int).Sub(two256, big.NewInt(1))) > 0 {
		result.Set(new(big.Int).Sub(two256, big.NewInt(1)))
	}

	return FromBigInt(result), nil
}

// ToDifficulty returns difficulty_1_target / T, the standard Bitcoin
// difficulty measure for a given target.
func ToDifficulty(t Target) float64 {
	ti := t.BigInt()
	if ti.Sign() == 0 {
		return math.Inf(1)
	}
	// Compute with big.Float to retain precision across the wide dynamic
	// range difficulty spans, rather than truncating to a float64-on-
	// leading-bytes approximation.
	num := new(big.Float).SetPrec(256).SetInt(difficulty1Target)
	den := new(big.Float).SetPrec(256).SetInt(ti)
	diff := new(big.Float).SetPrec(256).Quo(num, den)
	f, _ := diff.Float64()
	return f
}

// DecodeCompact decodes a Bitcoin "compact bits" (nBits) encoding into a
// Target, following the standard exponent/mantissa/sign layout.
func DecodeCompact(nBits uint32) Target {
	exponent := nBits >> 24
	mantissa := nBits & 0x007fffff
	negative := nBits&0x00800000 != 0

	result := new(big.Int)
	if negative || mantissa == 0 {
		return FromBigInt(result)
	}

	m := big.NewInt(int64(mantissa))
	if exponent <= 3 {
		shift := uint((3 - exponent) * 8)
		result.Rsh(m, shift)
	} else {
		shift := uint((exponent - 3) * 8)
		result.Lsh(m, shift)
	}

	if result.Cmp(new(big.Int).Sub(two256, big.NewInt(1))) > 0 {
		result.Set(new(big.Int).Sub(two256, big.NewInt(1)))
	}
	return FromBigInt(result)
}
