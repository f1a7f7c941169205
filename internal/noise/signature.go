package noise

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// signatureMessageSize is the plaintext size of the certificate carried in
// the handshake: a 2-byte version, two 4-byte validity bounds, and a
// 64-byte Schnorr signature.
const signatureMessageSize = 74

// buildSignatureNoiseMessage produces the 74-byte certificate attesting to
// the responder's static key: version and validity window in the clear,
// followed by an authority-key Schnorr signature over the handshake hash
// and those three fields.
func buildSignatureNoiseMessage(h [32]byte, version uint16, validFrom, notValidAfter uint32, authority *btcec.PrivateKey, rng io.Reader) ([signatureMessageSize]byte, error) {
	var out [signatureMessageSize]byte
	binary.LittleEndian.PutUint16(out[0:2], version)
	binary.LittleEndian.PutUint32(out[2:6], validFrom)
	binary.LittleEndian.PutUint32(out[6:10], notValidAfter)

	msg := make([]byte, 0, 32+10)
	msg = append(msg, h[:]...)
	msg = append(msg, out[0:10]...)
	digest := sha256.Sum256(msg)

	sig, err := schnorr.Sign(authority, digest[:], schnorr.CustomNonce(nonceFromReader(rng)))
	if err != nil {
		return out, err
	}
	copy(out[10:], sig.Serialize())
	return out, nil
}

// nonceFromReader draws 32 bytes of auxiliary randomness for Schnorr
// signing. schnorr.CustomNonce wants a fixed [32]byte, so errors here fall
// back to the zero nonce rather than failing certificate issuance outright;
// btcec's BIP340 signer still mixes in the message and key, so a zero aux
// only removes nonce-side defense in depth, not correctness.
func nonceFromReader(rng io.Reader) [32]byte {
	var aux [32]byte
	_, _ = io.ReadFull(rng, aux[:])
	return aux
}
