// Package xcrypto implements the cryptographic primitives shared by every
// other component: the Blake3 KDF, canonical JSON, Base58/Base64url framing,
// Ed25519 signing, X25519 agreement and the ChaCha20 family of ciphers.
package xcrypto

import (
	"lukechampine.com/blake3"
)

// KDF derives outLen bytes from key and data using Blake3 as a keyed hash.
//
// The Blake3 key API requires exactly 32 bytes, so a key of exactly 32
// bytes is used as-is and a key of any other length (shorter or longer,
// such as the 64-byte server secrets) is first content-hashed to 32 bytes.
func KDF(key []byte, data []byte, outLen int) []byte {
	k := normalizeKey(key)

	h := blake3.New(outLen, k[:])
	h.Write(data)
	return h.Sum(nil)
}

// Hash returns the unkeyed Blake3 content hash of data, truncated/extended
// to outLen bytes. Used where the spec calls for a plain content hash (the
// seed-32 step of the server-keypair derivation), never as a MAC.
func Hash(data []byte, outLen int) []byte {
	h := blake3.New(outLen, nil)
	h.Write(data)
	return h.Sum(nil)
}

func normalizeKey(key []byte) [32]byte {
	var out [32]byte
	if len(key) == 32 {
		copy(out[:], key)
		return out
	}
	digest := blake3.Sum256(key)
	return digest
}
