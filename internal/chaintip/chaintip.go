// Package chaintip holds the immutable snapshot of chain state a Standard
// Channel uses to activate jobs and validate shares against the network
// target.
package chaintip

// ChainTip is an immutable snapshot of the consensus state announced by the
// most recent SetNewPrevHash message: the previous block hash, its compact
// target encoding, and the header timestamp that future job activations
// inherit as their min_ntime lower bound.
type ChainTip struct {
	prevHash        [32]byte
	nBits           uint32
	headerTimestamp uint32
}

// New builds a ChainTip from its three consensus fields. prevHash is stored
// exactly as given, in little-endian consensus byte order.
func New(prevHash [32]byte, nBits uint32, headerTimestamp uint32) ChainTip {
	return ChainTip{prevHash: prevHash, nBits: nBits, headerTimestamp: headerTimestamp}
}

// PrevHash returns the previous block hash in little-endian consensus order.
func (c ChainTip) PrevHash() [32]byte { return c.prevHash }

// NBits returns the compact target encoding announced for this tip.
func (c ChainTip) NBits() uint32 { return c.nBits }

// HeaderTimestamp returns the header timestamp a job activated under this
// tip inherits as its min_ntime.
func (c ChainTip) HeaderTimestamp() uint32 { return c.headerTimestamp }
