package noise

import (
	"golang.org/x/crypto/chacha20poly1305"
)

// SessionCipher is one direction of the post-handshake transport: a
// ChaCha20-Poly1305 key plus a strictly incrementing nonce counter. The
// Responder's Step1 produces two of these, c1 (initiator → responder) and
// c2 (responder → initiator); callers split them across their read/write
// halves.
type SessionCipher struct {
	key     [32]byte
	counter uint64
}

func newSessionCipher(key [32]byte) *SessionCipher {
	return &SessionCipher{key: key}
}

// Encrypt seals plaintext with the current nonce and advances the counter.
func (c *SessionCipher) Encrypt(associatedData, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}
	out := aead.Seal(nil, nonceFromCounter(c.counter), plaintext, associatedData)
	c.counter++
	return out, nil
}

// Decrypt opens ciphertext with the current nonce and advances the
// counter.
func (c *SessionCipher) Decrypt(associatedData, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}
	out, err := aead.Open(nil, nonceFromCounter(c.counter), ciphertext, associatedData)
	if err != nil {
		return nil, ErrAEADDecryptFailed
	}
	c.counter++
	return out, nil
}

// Erase overwrites the session key with zeros.
func (c *SessionCipher) Erase() {
	volatileZero(c.key[:])
}
