package memory

import (
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

func (s *Store) CreateMagicLink(m storage.MagicLink) error {
	var err error
	s.tx(func() {
		if _, ok := s.magicLinks[m.EncryptedTokenHash]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		s.magicLinks[m.EncryptedTokenHash] = m
	})
	return err
}

func (s *Store) GetMagicLink(tokenHash [32]byte, now time.Time) (m storage.MagicLink, err error) {
	s.tx(func() {
		row, ok := s.magicLinks[tokenHash]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if row.Consumed {
			err = storage.ErrConsumed
			return
		}
		if row.ExpiresAt < now.Unix() {
			err = storage.ErrExpired
			return
		}
		m = row
	})
	return m, err
}

func (s *Store) ConsumeMagicLink(tokenHash [32]byte, now time.Time) (m storage.MagicLink, err error) {
	s.tx(func() {
		row, ok := s.magicLinks[tokenHash]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if row.Consumed {
			err = storage.ErrConsumed
			return
		}
		if row.ExpiresAt < now.Unix() {
			err = storage.ErrExpired
			return
		}
		row.Consumed = true
		s.magicLinks[tokenHash] = row
		m = row
	})
	return m, err
}
