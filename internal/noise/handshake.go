package noise

import (
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const protocolName = "Noise_NX_secp256k1_ChaChaPoly_SHA256"

// handshakeState carries the symmetric half of the Noise handshake: the
// running transcript hash, chaining key, and the AEAD key/nonce once one
// has been derived via mix_key.
type handshakeState struct {
	h  [32]byte
	ck [32]byte

	hasKey bool
	k      [32]byte
	n      uint64
}

func newHandshakeState() handshakeState {
	h := sha256.Sum256([]byte(protocolName))
	return handshakeState{h: h, ck: h}
}

func (s *handshakeState) mixHash(data []byte) {
	hasher := sha256.New()
	hasher.Write(s.h[:])
	hasher.Write(data)
	copy(s.h[:], hasher.Sum(nil))
}

// mixKey derives a new chaining key and AEAD key from the current chaining
// key and fresh input key material, mirroring Noise's HKDF(ck, ikm, 2). The
// two outputs come from golang.org/x/crypto/hkdf (Extract with salt ck,
// then Expand with empty info) rather than a hand-written HMAC chain; for
// 32-byte SHA-256 outputs the two constructions yield identical bytes.
func (s *handshakeState) mixKey(ikm []byte) {
	reader := hkdf.New(sha256.New, ikm, s.ck[:], nil)
	var newCK, tempK [32]byte
	_, _ = reader.Read(newCK[:])
	_, _ = reader.Read(tempK[:])
	s.ck = newCK
	s.k = tempK
	s.hasKey = true
	s.n = 0
}

func hkdf2(ck, ikm []byte) (k1, k2 [32]byte) {
	reader := hkdf.New(sha256.New, ikm, ck, nil)
	_, _ = reader.Read(k1[:])
	_, _ = reader.Read(k2[:])
	return
}

// encryptAndHash encrypts plaintext (if a key is established) under the
// running transcript hash as AAD, advances the nonce, and mixes the
// ciphertext into the transcript hash. With no key established it is the
// identity transform over the transcript hash alone.
func (s *handshakeState) encryptAndHash(plaintext []byte) ([]byte, error) {
	if !s.hasKey {
		s.mixHash(plaintext)
		return append([]byte(nil), plaintext...), nil
	}
	aead, err := chacha20poly1305.New(s.k[:])
	if err != nil {
		return nil, err
	}
	nonce := nonceFromCounter(s.n)
	ciphertext := aead.Seal(nil, nonce, plaintext, s.h[:])
	s.n++
	s.mixHash(ciphertext)
	return ciphertext, nil
}

func (s *handshakeState) decryptAndHash(ciphertext []byte) ([]byte, error) {
	if !s.hasKey {
		s.mixHash(ciphertext)
		return append([]byte(nil), ciphertext...), nil
	}
	aead, err := chacha20poly1305.New(s.k[:])
	if err != nil {
		return nil, err
	}
	nonce := nonceFromCounter(s.n)
	plaintext, err := aead.Open(nil, nonce, ciphertext, s.h[:])
	if err != nil {
		return nil, ErrAEADDecryptFailed
	}
	s.n++
	s.mixHash(ciphertext)
	return plaintext, nil
}

// nonceFromCounter renders a ChaCha20-Poly1305 nonce from Noise's 8-byte
// little-endian counter, left-padded with four zero bytes per RFC 7539's
// 12-byte nonce layout.
func nonceFromCounter(n uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	for i := 0; i < 8; i++ {
		nonce[4+i] = byte(n >> (8 * i))
	}
	return nonce
}
