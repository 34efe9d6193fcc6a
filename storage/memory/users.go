package memory

import (
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

func (s *Store) GetUser(id storage.UserID) (u storage.User, err error) {
	s.tx(func() {
		var ok bool
		u, ok = s.users[id]
		if !ok {
			err = storage.ErrNotFound
		}
	})
	return u, err
}

func (s *Store) UpsertUser(id storage.UserID, now time.Time) (u storage.User, err error) {
	s.tx(func() {
		existing, ok := s.users[id]
		if !ok {
			existing = storage.User{UserID: id, CreatedAt: now.Unix()}
		}
		existing.LastLogin = now.Unix()
		s.users[id] = existing
		u = existing
	})
	return u, err
}

func (s *Store) InsertEd25519Key(k storage.Ed25519Key) error {
	s.tx(func() {
		for _, existing := range s.ed25519Keys[k.UserID] {
			if existing.PubKeyHex == k.PubKeyHex {
				return
			}
		}
		s.ed25519Keys[k.UserID] = append(s.ed25519Keys[k.UserID], k)
	})
	return nil
}

func (s *Store) InsertX25519Key(k storage.X25519Key) error {
	s.tx(func() {
		for _, existing := range s.x25519Keys[k.UserID] {
			if existing.PubKeyHex == k.PubKeyHex {
				return
			}
		}
		s.x25519Keys[k.UserID] = append(s.x25519Keys[k.UserID], k)
	})
	return nil
}

func (s *Store) ListEd25519Keys(id storage.UserID) (keys []storage.Ed25519Key, err error) {
	s.tx(func() {
		keys = append(keys, s.ed25519Keys[id]...)
	})
	return keys, nil
}

func (s *Store) ListX25519Keys(id storage.UserID) (keys []storage.X25519Key, err error) {
	s.tx(func() {
		keys = append(keys, s.x25519Keys[id]...)
	})
	return keys, nil
}

func (s *Store) GetOrCreatePrivkeyContext(dbIndex [16]byte, newCtx func() (storage.PrivkeyContext, error)) (ctx storage.PrivkeyContext, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.privkeyCtx[dbIndex]; ok {
		return existing, false, nil
	}

	ctx, err = newCtx()
	if err != nil {
		return storage.PrivkeyContext{}, false, err
	}
	s.privkeyCtx[dbIndex] = ctx
	return ctx, true, nil
}
