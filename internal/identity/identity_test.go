package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeys() Keys {
	mk := func(tag byte) []byte {
		b := make([]byte, 64)
		for i := range b {
			b[i] = tag
		}
		return b
	}
	return Keys{
		UserIDDerivation:  mk(1),
		DBIndexDerivation: mk(2),
		Ed25519Derivation: mk(3),
		X25519Derivation:  mk(4),
	}
}

func TestDeriveUserIDIsDeterministicAndOneWay(t *testing.T) {
	keys := testKeys()
	email := Normalize("  User@Example.com ")
	require.Equal(t, "user@example.com", email)

	id1 := DeriveUserID(keys, email)
	id2 := DeriveUserID(keys, email)
	require.Equal(t, id1, id2)

	other := DeriveUserID(keys, Normalize("other@example.com"))
	require.NotEqual(t, id1, other)
}

func TestDeriveServerEd25519IsBoundToClientPubKey(t *testing.T) {
	keys := testKeys()
	userID := DeriveUserID(keys, "a@b.c")

	k1 := DeriveServerEd25519(keys, userID, "aaaa")
	k2 := DeriveServerEd25519(keys, userID, "aaaa")
	require.Equal(t, k1, k2, "derivation must be stable across processes")

	k3 := DeriveServerEd25519(keys, userID, "bbbb")
	require.NotEqual(t, k1, k3, "rotating the client key must rotate the server key")
}

func TestDeriveServerX25519ProducesValidKeypair(t *testing.T) {
	keys := testKeys()
	userID := DeriveUserID(keys, "a@b.c")

	priv, pub, err := DeriveServerX25519(keys, userID, "aaaa")
	require.NoError(t, err)
	require.Len(t, priv, 32)
	require.Len(t, pub, 32)
}
