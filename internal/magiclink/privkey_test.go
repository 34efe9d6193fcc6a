package magiclink

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/storage/memory"
)

func TestGetOrCreatePrivkeyContextIsIdempotent(t *testing.T) {
	store := memory.New()
	key := make([]byte, 64)
	for i := range key {
		key[i] = 7
	}
	var dbIndex [16]byte
	copy(dbIndex[:], []byte("dbindex0123456"))

	p1, err := GetOrCreatePrivkeyContext(store, key, dbIndex, 2026)
	require.NoError(t, err)

	p2, err := GetOrCreatePrivkeyContext(store, key, dbIndex, 2026)
	require.NoError(t, err)

	require.Equal(t, p1, p2)
}

func TestSealToClientRoundTripsThroughSharedSecret(t *testing.T) {
	keys := testKeys()
	uid := identity.DeriveUserID(keys.Identity, "a@b.c")

	clientPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	serverPriv, _, err := identity.DeriveServerX25519(keys.Identity, uid, xcrypto.Hex(clientPub))
	require.NoError(t, err)

	var plaintext [64]byte
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	sealed, err := SealToClient(serverPriv, clientPub, plaintext)
	require.NoError(t, err)
	require.Len(t, sealed.Nonce, 12)
	require.NotEmpty(t, sealed.Ciphertext)
}
