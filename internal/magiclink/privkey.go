package magiclink

import (
	"crypto/rand"

	"github.com/arkaitz-dev/hashrand-sub000/internal/xcrypto"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// SealedPrivkeyContext is the ECDH-sealed form of the opaque 64-byte
// privkey context handed to the client on every redemption (spec §4.3
// step 8): ciphertext plus the nonce needed to open it.
type SealedPrivkeyContext struct {
	Ciphertext []byte
	Nonce      []byte
}

// GetOrCreatePrivkeyContext implements spec §3's UserPrivkeyContext
// invariant and §4.3 step 6: the stored value is idempotent for the life
// of the user, sealed under USER_PRIVKEY_CONTEXT_KEY keyed by db_index.
func GetOrCreatePrivkeyContext(store storage.Storage, privkeyContextKey []byte, dbIndex [16]byte, createdYear uint16) (plaintext [64]byte, err error) {
	ctx, _, err := store.GetOrCreatePrivkeyContext(dbIndex, func() (storage.PrivkeyContext, error) {
		raw := make([]byte, 64)
		if _, err := rand.Read(raw); err != nil {
			return storage.PrivkeyContext{}, err
		}
		ciphertext, err := sealPrivkeyContext(privkeyContextKey, dbIndex, raw)
		if err != nil {
			return storage.PrivkeyContext{}, err
		}
		return storage.PrivkeyContext{DBIndex: dbIndex, EncryptedPrivkey: ciphertext, CreatedYear: createdYear}, nil
	})
	if err != nil {
		return plaintext, err
	}

	raw, err := openPrivkeyContext(privkeyContextKey, dbIndex, ctx.EncryptedPrivkey)
	if err != nil {
		return plaintext, err
	}
	copy(plaintext[:], raw)
	return plaintext, nil
}

// SealToClient ECDH-seals plaintext to the client, using the server's
// per-user X25519 key (derived from the client's Ed25519-bound public
// key) and the client's Ed25519 public key converted to its
// birationally-equivalent X25519 form — the client never separately
// publishes an X25519 key.
func SealToClient(serverX25519Priv []byte, clientEd25519Pub []byte, plaintext [64]byte) (SealedPrivkeyContext, error) {
	clientX25519Pub, err := xcrypto.Ed25519PubToX25519(clientEd25519Pub)
	if err != nil {
		return SealedPrivkeyContext{}, err
	}
	shared, err := xcrypto.X25519(serverX25519Priv, clientX25519Pub)
	if err != nil {
		return SealedPrivkeyContext{}, err
	}
	derived := xcrypto.KDF(shared, []byte("PRIVKEY_CONTEXT_SEAL_V1"), 44)
	nonce, key := derived[0:12], derived[12:44]

	ciphertext, err := xcrypto.SealAEAD(key, nonce, plaintext[:])
	if err != nil {
		return SealedPrivkeyContext{}, err
	}
	return SealedPrivkeyContext{Ciphertext: ciphertext, Nonce: nonce}, nil
}

func sealPrivkeyContext(key []byte, dbIndex [16]byte, plaintext []byte) ([]byte, error) {
	derived := xcrypto.KDF(key, dbIndex[:], 44)
	nonce, cipherKey := derived[0:12], derived[12:44]
	return xcrypto.SealAEAD(cipherKey, nonce, plaintext)
}

func openPrivkeyContext(key []byte, dbIndex [16]byte, ciphertext []byte) ([]byte, error) {
	derived := xcrypto.KDF(key, dbIndex[:], 44)
	nonce, cipherKey := derived[0:12], derived[12:44]
	return xcrypto.OpenAEAD(cipherKey, nonce, ciphertext)
}
