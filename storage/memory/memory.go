// Package memory provides an in-memory implementation of storage.Storage,
// used for development and as the reference implementation exercised by
// the conformance suite in storage/storage_test.go.
package memory

import (
	"sync"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

var _ storage.Storage = (*Store)(nil)

// Store is an in-memory storage.Storage. The zero value is not usable;
// construct with New.
type Store struct {
	mu sync.Mutex

	users          map[storage.UserID]storage.User
	ed25519Keys    map[storage.UserID][]storage.Ed25519Key
	x25519Keys     map[storage.UserID][]storage.X25519Key
	privkeyCtx     map[[16]byte]storage.PrivkeyContext
	magicLinks     map[[32]byte]storage.MagicLink
	sharedSecrets  map[[32]byte]storage.SharedSecret
	sharedTracking map[[16]byte]storage.SharedSecretTracking
}

// New returns an in-memory storage.Storage.
func New() *Store {
	return &Store{
		users:          make(map[storage.UserID]storage.User),
		ed25519Keys:    make(map[storage.UserID][]storage.Ed25519Key),
		x25519Keys:     make(map[storage.UserID][]storage.X25519Key),
		privkeyCtx:     make(map[[16]byte]storage.PrivkeyContext),
		magicLinks:     make(map[[32]byte]storage.MagicLink),
		sharedSecrets:  make(map[[32]byte]storage.SharedSecret),
		sharedTracking: make(map[[16]byte]storage.SharedSecretTracking),
	}
}

func (s *Store) tx(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
}

func (s *Store) Close() error { return nil }
