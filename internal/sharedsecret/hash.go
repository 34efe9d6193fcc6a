// Package sharedsecret implements the self-authenticating 40-byte URL
// hash of spec §4.6: construction per role, three-layer validation on
// access, and the derived database index that keeps the role byte out of
// the store entirely.
package sharedsecret

import (
	"crypto/rand"
	"errors"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
)

// Role distinguishes the two addresses that point at one logical secret.
// It is never persisted — it lives only inside the URL hash.
type Role byte

const (
	RoleSender   Role = 1
	RoleReceiver Role = 2
)

const (
	referenceLen = 16
	userIDLen    = 16
	checksumLen  = 7
	hashLen      = referenceLen + userIDLen + checksumLen + 1 // 40
)

var urlCipherDomain = []byte("URL_CIPHER_V1")

// ErrChecksumMismatch is returned when the checksum region of a decrypted
// hash doesn't match its own content — tampering or a random guess.
var ErrChecksumMismatch = errors.New("sharedsecret: checksum mismatch")

// Hash is the decoded 40-byte structure.
type Hash struct {
	ReferenceHash [referenceLen]byte
	UserID        [userIDLen]byte
	Role          Role
}

func checksum(checksumKey []byte, referenceHash [referenceLen]byte, userID [userIDLen]byte, role Role) [checksumLen]byte {
	data := make([]byte, 0, referenceLen+userIDLen+1)
	data = append(data, referenceHash[:]...)
	data = append(data, userID[:]...)
	data = append(data, byte(role))
	sum := xcrypto.KDF(checksumKey, data, checksumLen)
	var out [checksumLen]byte
	copy(out[:], sum)
	return out
}

// urlCipherNonceKey derives the fixed-domain nonce/key pair used to
// encrypt/decrypt every hash_40, per spec §4.6: deterministic, so no
// per-row IV needs storing.
func urlCipherNonceKey(urlCipherKey []byte) (nonce, key []byte) {
	out := xcrypto.KDF(urlCipherKey, urlCipherDomain, 44)
	return out[:12], out[12:44]
}

// Build constructs and encrypts the URL hash for one role of a pair.
func Build(checksumKey, urlCipherKey []byte, referenceHash [referenceLen]byte, userID [userIDLen]byte, role Role) ([]byte, error) {
	sum := checksum(checksumKey, referenceHash, userID, role)

	plain := make([]byte, 0, hashLen)
	plain = append(plain, referenceHash[:]...)
	plain = append(plain, userID[:]...)
	plain = append(plain, sum[:]...)
	plain = append(plain, byte(role))

	nonce, key := urlCipherNonceKey(urlCipherKey)
	return xcrypto.StreamXOR(key, nonce, plain)
}

// Encode wraps Build's output as the Base58 URL tail.
func Encode(checksumKey, urlCipherKey []byte, referenceHash [referenceLen]byte, userID [userIDLen]byte, role Role) (string, error) {
	encrypted, err := Build(checksumKey, urlCipherKey, referenceHash, userID, role)
	if err != nil {
		return "", err
	}
	return xcrypto.Base58(encrypted), nil
}

// Decode reverses Encode: Base58-decode, decrypt, and verify the
// checksum region. A checksum mismatch is ErrChecksumMismatch, the
// self-authentication layer of spec §4.6 step 2.
func Decode(checksumKey, urlCipherKey []byte, b58 string) (Hash, error) {
	encrypted, err := xcrypto.DecodeBase58(b58)
	if err != nil {
		return Hash{}, err
	}
	if len(encrypted) != hashLen {
		return Hash{}, ErrChecksumMismatch
	}

	nonce, key := urlCipherNonceKey(urlCipherKey)
	plain, err := xcrypto.StreamXOR(key, nonce, encrypted)
	if err != nil {
		return Hash{}, err
	}

	var h Hash
	copy(h.ReferenceHash[:], plain[0:16])
	copy(h.UserID[:], plain[16:32])
	var gotSum [checksumLen]byte
	copy(gotSum[:], plain[32:39])
	h.Role = Role(plain[39])

	wantSum := checksum(checksumKey, h.ReferenceHash, h.UserID, h.Role)
	if gotSum != wantSum {
		return Hash{}, ErrChecksumMismatch
	}
	return h, nil
}

// NewReferenceHash samples the 16 random bytes shared between a pair.
func NewReferenceHash() ([referenceLen]byte, error) {
	var ref [referenceLen]byte
	if _, err := rand.Read(ref[:]); err != nil {
		return ref, err
	}
	return ref, nil
}

// DBIndex computes the primary-key derivation of spec §4.6: keyed by
// reference_hash||user_id only, so role never reaches the database.
func DBIndex(dbIndexKey []byte, referenceHash [referenceLen]byte, userID [userIDLen]byte) [32]byte {
	data := make([]byte, 0, referenceLen+userIDLen)
	data = append(data, referenceHash[:]...)
	data = append(data, userID[:]...)
	sum := xcrypto.KDF(dbIndexKey, data, 32)
	var out [32]byte
	copy(out[:], sum)
	return out
}
