// Package identity implements the zero-knowledge user-identity derivation
// of spec §4.2: a one-way, deterministic mapping from an email address to
// a 16-byte user_id, and the per-user server keypair derivations used by
// the session layer.
package identity

import (
	"crypto/ed25519"
	"strings"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

const (
	userIDLen  = 16
	dbIndexLen = 16
)

// Keys bundles the server secrets that parameterize every derivation in
// this package. All are required to be at least 64 bytes;
// config.LoadSecrets enforces that before a Keys value is ever constructed.
type Keys struct {
	UserIDDerivation  []byte
	DBIndexDerivation []byte
	Ed25519Derivation []byte
	X25519Derivation  []byte
}

// Normalize applies the canonical email normalisation: trim surrounding
// whitespace, lowercase. The same normalised form must be used on every
// call path that derives a user_id from an email.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveUserID computes the 16-byte user_id for a normalised email. Given
// only the returned value, the email cannot be recovered (Blake3 KDF is a
// one-way function); calling this twice with the same email yields a
// bit-identical result.
func DeriveUserID(keys Keys, normalizedEmail string) [userIDLen]byte {
	out := xcrypto.KDF(keys.UserIDDerivation, []byte(normalizedEmail), userIDLen)
	var id [userIDLen]byte
	copy(id[:], out)
	return id
}

// DeriveDBIndex computes the UserPrivkeyContext primary key from a user_id.
func DeriveDBIndex(keys Keys, userID [userIDLen]byte) [dbIndexLen]byte {
	out := xcrypto.KDF(keys.DBIndexDerivation, userID[:], dbIndexLen)
	var idx [dbIndexLen]byte
	copy(idx[:], out)
	return idx
}

// DeriveServerEd25519 derives the per-user server Ed25519 keypair bound to
// the client's current Ed25519 public key (spec §4.2). The server never
// persists this key; it is recomputed on demand from user_id and the
// client's currently-bound public key, so rotating the client key
// atomically rotates the server key.
func DeriveServerEd25519(keys Keys, userID [userIDLen]byte, clientPubHex string) ed25519.PrivateKey {
	combined := append(append([]byte{}, userID[:]...), []byte(clientPubHex)...)
	seed64 := xcrypto.KDF(keys.Ed25519Derivation, combined, 64)
	seed32 := xcrypto.Hash(seed64, 32)
	return xcrypto.DeriveEd25519FromSeed32(seed32)
}

// DeriveServerX25519 derives the per-user server X25519 keypair bound to
// the client's current Ed25519 public key, used to ECDH-seal the
// privkey_context to the client during magic-link redemption.
func DeriveServerX25519(keys Keys, userID [userIDLen]byte, clientPubHex string) (priv, pub []byte, err error) {
	combined := append(append([]byte{}, userID[:]...), []byte(clientPubHex)...)
	seed64 := xcrypto.KDF(keys.X25519Derivation, combined, 64)
	seed32 := xcrypto.Hash(seed64, 32)

	priv = clampX25519(seed32)
	pub, err = xcrypto.X25519Base(priv)
	return priv, pub, err
}

// clampX25519 applies the standard Curve25519 scalar clamping so the
// derived private scalar is a valid X25519 key regardless of its source.
func clampX25519(seed []byte) []byte {
	priv := make([]byte, 32)
	copy(priv, seed)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return priv
}
