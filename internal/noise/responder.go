// Package noise implements the responder half of the Noise NX handshake
// pattern adapted to secp256k1 + ElligatorSwift key exchange and
// ChaCha20-Poly1305 AEAD, producing a pair of session ciphers for a
// post-handshake transport.
package noise

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	// EllswiftEncodingSize is the wire size of one ElligatorSwift-encoded
	// ephemeral or static public key.
	EllswiftEncodingSize = 64
	// encryptedEllswiftEncodingSize adds the 16-byte Poly1305 tag.
	encryptedEllswiftEncodingSize = EllswiftEncodingSize + 16
	// encryptedSignatureMessageSize adds the 16-byte Poly1305 tag.
	encryptedSignatureMessageSize = signatureMessageSize + 16
	// StepOneMessageSize is the exact size of the responder's step_1
	// output: ephemeral ellswift || encrypted static ellswift ||
	// encrypted certificate.
	StepOneMessageSize = EllswiftEncodingSize + encryptedEllswiftEncodingSize + encryptedSignatureMessageSize

	protocolVersion = 0
)

// Responder holds one Noise NX handshake's state: the symmetric
// handshake transcript, the responder's ephemeral and static keypairs, the
// signing authority keypair, and certificate validity. A Responder is
// single-use: Step1 is called exactly once, after which its secret
// material should be erased via Erase.
type Responder struct {
	hs handshakeState

	ephemeral *btcec.PrivateKey
	static    *btcec.PrivateKey
	authority *btcec.PrivateKey

	certValiditySeconds uint32

	done bool

	c1 *SessionCipher
	c2 *SessionCipher
}

// New constructs a Responder with freshly generated ephemeral and static
// keypairs, signing certificates with authority for certValidity. The
// responder keeps its own copy of authority, so Erase leaves the caller's
// key intact.
func New(authority *btcec.PrivateKey, certValidity time.Duration) (*Responder, error) {
	if authority != nil {
		a := *authority
		authority = &a
	}
	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	static, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Responder{
		hs:                  newHandshakeState(),
		ephemeral:           ephemeral,
		static:              static,
		authority:           authority,
		certValiditySeconds: uint32(certValidity.Seconds()),
	}, nil
}

// FromAuthorityKeyPair validates that public is the x-only public key
// derived from private and, on success, constructs a Responder signing
// under that authority identity.
func FromAuthorityKeyPair(public, private [32]byte, certValidity time.Duration) (*Responder, error) {
	if isZero32(private) {
		return nil, ErrInvalidRawPrivateKey
	}

	authPriv, authPub := btcec.PrivKeyFromBytes(private[:])
	// PrivKeyFromBytes reduces out-of-range scalars modulo the curve order
	// rather than erroring; a mismatch here means private wasn't a valid
	// raw scalar to begin with.
	if !bytes.Equal(authPriv.Serialize(), private[:]) {
		return nil, ErrInvalidRawPrivateKey
	}

	xOnly, _ := fromPublicKey(authPub)
	if xOnly != public {
		return nil, ErrInvalidRawPublicKey
	}
	return New(authPriv, certValidity)
}

func isZero32(b [32]byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func fromPublicKey(pub *btcec.PublicKey) ([32]byte, bool) {
	var out [32]byte
	x := pub.X().Bytes()
	copy(out[32-len(x):], x)
	// parity isn't part of the x-only identity; always report true.
	return out, true
}

// Step1 processes the initiator's ephemeral ElligatorSwift encoding and
// produces the responder's handshake response plus the two session
// ciphers established by the exchange. now is the certificate issuance
// time (seconds since epoch).
func (r *Responder) Step1(theirsEphemeralEllswift [EllswiftEncodingSize]byte, now uint32) ([StepOneMessageSize]byte, *SessionCipher, *SessionCipher, error) {
	var out [StepOneMessageSize]byte

	if r.done {
		return out, nil, nil, ErrHandshakeAlreadyComplete
	}

	// 1-2. mix_hash(theirs_ephemeral_ellswift); decrypt_and_hash(empty).
	r.hs.mixHash(theirsEphemeralEllswift[:])
	if _, err := r.hs.decryptAndHash(nil); err != nil {
		return out, nil, nil, err
	}

	// 3. our ephemeral ellswift, written to out and mixed into h.
	oursEphemeralEllswift, err := ellswiftEncode(r.ephemeral.PubKey())
	if err != nil {
		return out, nil, nil, err
	}
	copy(out[:EllswiftEncodingSize], oursEphemeralEllswift[:])
	r.hs.mixHash(oursEphemeralEllswift[:])

	// 4. mix_key(ECDH(e.private, re.public)).
	sharedE := ellswiftSharedSecret(theirsEphemeralEllswift, r.ephemeral)
	r.hs.mixKey(sharedE)

	// 5. encrypt_and_hash(s.public) appended at out[64:144].
	oursStaticEllswift, err := ellswiftEncode(r.static.PubKey())
	if err != nil {
		return out, nil, nil, err
	}
	encStatic, err := r.hs.encryptAndHash(oursStaticEllswift[:])
	if err != nil {
		return out, nil, nil, err
	}
	copy(out[EllswiftEncodingSize:EllswiftEncodingSize+encryptedEllswiftEncodingSize], encStatic)

	// 6. mix_key(ECDH(s.private, re.public)).
	sharedS := ellswiftSharedSecret(theirsEphemeralEllswift, r.static)
	r.hs.mixKey(sharedS)

	// 7. build and encrypt the certificate.
	validFrom := now
	notValidAfter := now + r.certValiditySeconds
	cert, err := buildSignatureNoiseMessage(r.hs.h, protocolVersion, validFrom, notValidAfter, r.authority, rand.Reader)
	if err != nil {
		return out, nil, nil, err
	}
	encCert, err := r.hs.encryptAndHash(cert[:])
	if err != nil {
		return out, nil, nil, err
	}
	copy(out[EllswiftEncodingSize+encryptedEllswiftEncodingSize:], encCert)

	// 8. split into the two transport ciphers.
	k1, k2 := hkdf2(r.hs.ck[:], nil)
	r.c1 = newSessionCipher(k1)
	r.c2 = newSessionCipher(k2)

	r.done = true
	c1, c2 := r.c1, r.c2
	r.Erase()
	return out, c1, c2, nil
}

// Erase overwrites the responder's secret material: the chaining key,
// handshake hash, handshake AEAD key, and the private key scalars of the
// ephemeral, static, and (responder-owned copy of the) authority keys.
func (r *Responder) Erase() {
	volatileZero(r.hs.ck[:])
	volatileZero(r.hs.h[:])
	if r.hs.hasKey {
		volatileZero(r.hs.k[:])
	}
	zeroPrivateKey(r.ephemeral)
	zeroPrivateKey(r.static)
	zeroPrivateKey(r.authority)
}

func zeroPrivateKey(k *btcec.PrivateKey) {
	if k == nil {
		return
	}
	k.Zero()
}

func ellswiftSharedSecret(theirsEllswift [EllswiftEncodingSize]byte, priv *btcec.PrivateKey) []byte {
	x := ellswiftDecode(theirsEllswift)

	xBytes := leftPad32(x.Bytes())
	compressed := make([]byte, 33)
	compressed[0] = 0x02 // canonical even-y lift, consistent on both sides of the ECDH
	copy(compressed[1:], xBytes)

	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		// Not every x-coordinate lifts to a point with the chosen parity
		// byte in all encodings; fall back to the odd-y lift.
		compressed[0] = 0x03
		pub, err = btcec.ParsePubKey(compressed)
		if err != nil {
			return make([]byte, 32)
		}
	}

	shared := btcec.GenerateSharedSecret(priv, pub)
	return shared
}

func uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
