package noise

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSignatureNoiseMessageEncodesValidityWindow(t *testing.T) {
	authority, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var h [32]byte
	h[0] = 0xab

	out, err := buildSignatureNoiseMessage(h, protocolVersion, 1000, 2000, authority, cryptoRandReader{})
	require.NoError(t, err)

	assert.Equal(t, uint16(protocolVersion), binary.LittleEndian.Uint16(out[0:2]))
	assert.Equal(t, uint32(1000), binary.LittleEndian.Uint32(out[2:6]))
	assert.Equal(t, uint32(2000), binary.LittleEndian.Uint32(out[6:10]))
}

func TestBuildSignatureNoiseMessageProducesVerifiableSignature(t *testing.T) {
	authority, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var h [32]byte
	h[0] = 0xcd

	out, err := buildSignatureNoiseMessage(h, protocolVersion, 1000, 2000, authority, cryptoRandReader{})
	require.NoError(t, err)

	msg := make([]byte, 0, 32+10)
	msg = append(msg, h[:]...)
	msg = append(msg, out[0:10]...)
	digest := sha256.Sum256(msg)

	sig, err := schnorr.ParseSignature(out[10:])
	require.NoError(t, err)
	assert.True(t, sig.Verify(digest[:], authority.PubKey()))
}

// cryptoRandReader is a deterministic stand-in for crypto/rand.Reader: it
// fills each buffer with the bytes 0, 1, 2, ... so the test doesn't depend
// on package-level mutable state.
type cryptoRandReader struct{}

func (cryptoRandReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)
	}
	return len(p), nil
}
