package noise

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEllswiftSharedSecretIsSymmetric(t *testing.T) {
	// The shared secret is derived from the ECDH point's x-coordinate only,
	// which two honest parties computing the same two-key product always
	// agree on regardless of which y-parity their peer's ellswift encoding
	// happened to decode to; this is the algebraic property the handshake's
	// key agreement depends on.
	a, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	b, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	bEllswift, err := ellswiftEncode(b.PubKey())
	require.NoError(t, err)
	aEllswift, err := ellswiftEncode(a.PubKey())
	require.NoError(t, err)

	sharedAB := ellswiftSharedSecret(bEllswift, a)
	sharedBA := ellswiftSharedSecret(aEllswift, b)

	assert.Equal(t, sharedAB, sharedBA)
}

func TestResponderStep1ProducesDistinctSessionCiphers(t *testing.T) {
	authority, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	r, err := New(authority, time.Hour)
	require.NoError(t, err)

	initiatorEphemeral, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	theirsEllswift, err := ellswiftEncode(initiatorEphemeral.PubKey())
	require.NoError(t, err)

	out, c1, c2, err := r.Step1(theirsEllswift, 1_700_000_000)
	require.NoError(t, err)

	assert.Len(t, out, StepOneMessageSize)
	require.NotNil(t, c1)
	require.NotNil(t, c2)
	assert.NotEqual(t, c1.key, c2.key)
}

func TestResponderStep1IsSingleUseAndErasesSecrets(t *testing.T) {
	authority, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	r, err := New(authority, time.Hour)
	require.NoError(t, err)

	initiatorEphemeral, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	theirsEllswift, err := ellswiftEncode(initiatorEphemeral.PubKey())
	require.NoError(t, err)

	_, _, _, err = r.Step1(theirsEllswift, 1_700_000_000)
	require.NoError(t, err)

	assert.Equal(t, [32]byte{}, r.hs.ck)
	assert.Equal(t, [32]byte{}, r.hs.h)

	_, c1, c2, err := r.Step1(theirsEllswift, 1_700_000_000)
	assert.ErrorIs(t, err, ErrHandshakeAlreadyComplete)
	assert.Nil(t, c1)
	assert.Nil(t, c2)
}

func TestFromAuthorityKeyPairRejectsZeroPrivateKey(t *testing.T) {
	var zeroPriv, pub [32]byte
	_, err := FromAuthorityKeyPair(pub, zeroPriv, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRawPrivateKey)
}

func TestFromAuthorityKeyPairRejectsMismatchedPublicKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var privBytes, wrongPub [32]byte
	copy(privBytes[:], priv.Serialize())

	_, err = FromAuthorityKeyPair(wrongPub, privBytes, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRawPublicKey)
}

func TestFromAuthorityKeyPairAcceptsMatchingPublicKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var privBytes, pub [32]byte
	copy(privBytes[:], priv.Serialize())
	x, _ := fromPublicKey(priv.PubKey())
	pub = x

	r, err := FromAuthorityKeyPair(pub, privBytes, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
