package xcrypto

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// Base64URL encodes data unpadded, as used for every envelope/token
// transport value.
func Base64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes an unpadded base64url string.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Base58 encodes data using the Bitcoin alphabet, for human-facing
// identifiers: the displayed user-id and the shared-secret URL tail.
func Base58(data []byte) string {
	return base58.Encode(data)
}

// DecodeBase58 decodes a Bitcoin-alphabet Base58 string.
func DecodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}

// MustDecodeBase58 decodes s, panicking on malformed input. Only safe to
// call on values this process itself produced with Base58, such as a
// user_id re-encoded for an internal call between trusted components.
func MustDecodeBase58(s string) []byte {
	out, err := base58.Decode(s)
	if err != nil {
		panic("xcrypto: invalid base58 in trusted-internal value: " + err.Error())
	}
	return out
}

// Hex lowercases and strips padding by construction; used for keys and
// signatures that travel inside JSON payloads.
func Hex(data []byte) string {
	return hex.EncodeToString(data)
}

// DecodeHex decodes a lowercase hex string.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
