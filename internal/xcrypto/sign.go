package xcrypto

import (
	"crypto/ed25519"
	"errors"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the payload under the given public key.
var ErrInvalidSignature = errors.New("xcrypto: invalid signature")

// Sign signs a canonical payload with an Ed25519 private key.
func Sign(priv ed25519.PrivateKey, canonicalPayload []byte) []byte {
	return ed25519.Sign(priv, canonicalPayload)
}

// Verify checks an Ed25519 signature over a canonical payload. A one-byte
// mutation of canonicalPayload must make this return ErrInvalidSignature.
func Verify(pub ed25519.PublicKey, canonicalPayload, signature []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, canonicalPayload, signature) {
		return ErrInvalidSignature
	}
	return nil
}
