package xcrypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"math/rand/v2"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// SealAEAD encrypts plaintext with ChaCha20-Poly1305 under key/nonce,
// returning ciphertext||tag. key must be 32 bytes, nonce 12 bytes.
func SealAEAD(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("xcrypto: bad nonce size")
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// OpenAEAD decrypts ciphertext||tag produced by SealAEAD. An AEAD failure
// (tampering) is reported verbatim and must be treated as fatal by callers.
func OpenAEAD(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("xcrypto: bad nonce size")
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// StreamXOR runs the bare ChaCha20 stream cipher over data in place and
// returns the result. Being length-preserving and unauthenticated, this is
// used only for the self-authenticating shared-secret URL hash (§4.6),
// which carries its own checksum.
func StreamXOR(key, nonce, data []byte) ([]byte, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// X25519 performs a Curve25519 Diffie-Hellman agreement.
func X25519(priv, pub []byte) ([]byte, error) {
	return curve25519.X25519(priv, pub)
}

// X25519Base multiplies priv by the curve25519 base point to obtain the
// matching public key.
func X25519Base(priv []byte) ([]byte, error) {
	return curve25519.X25519(priv, curve25519.Basepoint)
}

// DeriveEd25519FromSeed32 reproduces the server-keypair derivation of
// spec §4.2: a ChaCha8-based CSPRNG is seeded with a 32-byte content hash
// and its first 32 output bytes become the raw Ed25519 seed. math/rand/v2's
// ChaCha8 source is the stdlib's own implementation of the "ChaCha8Rng"
// named by the specification, so no third-party RNG crate stands in for it.
func DeriveEd25519FromSeed32(seed32 []byte) ed25519.PrivateKey {
	var seed [32]byte
	copy(seed[:], seed32)

	src := rand.NewChaCha8(seed)
	rawSeed := make([]byte, ed25519.SeedSize)
	for i := 0; i < ed25519.SeedSize; i += 8 {
		binary.LittleEndian.PutUint64(rawSeed[i:i+8], src.Uint64())
	}
	return ed25519.NewKeyFromSeed(rawSeed)
}
