package noise

import "errors"

var (
	ErrInvalidRawPublicKey      = errors.New("noise: authority public key does not match private key")
	ErrInvalidRawPrivateKey     = errors.New("noise: invalid raw private key")
	ErrAEADDecryptFailed        = errors.New("noise: AEAD decrypt/verify failed")
	ErrHandshakeAlreadyComplete = errors.New("noise: handshake already complete")
	errEncodingExhausted        = errors.New("noise: ellswift encoding did not converge")
)
