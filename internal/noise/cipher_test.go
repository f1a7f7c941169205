package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCipherEncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	key[0] = 0x42

	sender := newSessionCipher(key)
	receiver := newSessionCipher(key)

	ad := []byte("channel=1")
	plaintext := []byte("submit_shares_standard")

	ciphertext, err := sender.Encrypt(ad, plaintext)
	require.NoError(t, err)

	got, err := receiver.Decrypt(ad, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSessionCipherNonceAdvancesEachCall(t *testing.T) {
	var key [32]byte
	c := newSessionCipher(key)

	first, err := c.Encrypt(nil, []byte("a"))
	require.NoError(t, err)
	second, err := c.Encrypt(nil, []byte("a"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "identical plaintexts must produce different ciphertexts once the nonce counter advances")
}

func TestSessionCipherRejectsWrongAssociatedData(t *testing.T) {
	var key [32]byte
	sender := newSessionCipher(key)
	receiver := newSessionCipher(key)

	ciphertext, err := sender.Encrypt([]byte("channel=1"), []byte("payload"))
	require.NoError(t, err)

	_, err = receiver.Decrypt([]byte("channel=2"), ciphertext)
	assert.ErrorIs(t, err, ErrAEADDecryptFailed)
}

func TestSessionCipherEraseZeroesKey(t *testing.T) {
	var key [32]byte
	key[0] = 0x99
	c := newSessionCipher(key)
	c.Erase()
	assert.Equal(t, [32]byte{}, c.key)
}

func TestNonceFromCounterIsLittleEndianPaddedLeft(t *testing.T) {
	nonce := nonceFromCounter(1)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}, nonce)
}
