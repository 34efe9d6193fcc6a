package xcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenAEADRoundTrip(t *testing.T) {
	key := KDF([]byte("test-key-material"), []byte("domain"), 32)
	nonce := KDF([]byte("test-key-material"), []byte("nonce-domain"), 12)

	ct, err := SealAEAD(key, nonce, []byte("secret payload"))
	require.NoError(t, err)

	pt, err := OpenAEAD(key, nonce, ct)
	require.NoError(t, err)
	require.Equal(t, "secret payload", string(pt))

	ct[0] ^= 0xFF
	_, err = OpenAEAD(key, nonce, ct)
	require.Error(t, err)
}

func TestStreamXORIsLengthPreservingAndInvertible(t *testing.T) {
	key := KDF([]byte("k"), []byte("stream"), 32)
	nonce := KDF([]byte("k"), []byte("stream-nonce"), 12)

	plain := []byte("0123456789abcdef0123456789abcdef01234567")
	enc, err := StreamXOR(key, nonce, plain)
	require.NoError(t, err)
	require.Len(t, enc, len(plain))

	dec, err := StreamXOR(key, nonce, enc)
	require.NoError(t, err)
	require.Equal(t, plain, dec)
}

func TestDeriveEd25519FromSeed32IsDeterministic(t *testing.T) {
	seed := Hash([]byte("some combined input"), 32)
	k1 := DeriveEd25519FromSeed32(seed)
	k2 := DeriveEd25519FromSeed32(seed)
	require.Equal(t, k1, k2)
}
