package xcrypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	payload, err := Canonical(map[string]interface{}{"hello": "world"})
	require.NoError(t, err)

	sig := Sign(priv, payload)
	require.NoError(t, Verify(pub, payload, sig))

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0xFF
	require.ErrorIs(t, Verify(pub, mutated, sig), ErrInvalidSignature)
}
