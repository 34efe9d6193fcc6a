package memory

import (
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

func (s *Store) CreateSharedSecretPair(sender, receiver storage.SharedSecret, tracking storage.SharedSecretTracking) error {
	s.tx(func() {
		s.sharedSecrets[sender.DBIndex] = sender
		s.sharedSecrets[receiver.DBIndex] = receiver
		s.sharedTracking[tracking.ReferenceHash] = tracking
	})
	return nil
}

func (s *Store) GetSharedSecretTracking(referenceHash [16]byte) (t storage.SharedSecretTracking, err error) {
	s.tx(func() {
		row, ok := s.sharedTracking[referenceHash]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		t = row
	})
	return t, err
}

func (s *Store) GetSharedSecret(dbIndex [32]byte, now time.Time) (sec storage.SharedSecret, err error) {
	s.tx(func() {
		row, ok := s.sharedSecrets[dbIndex]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if row.ExpiresAt < now.Unix() {
			err = storage.ErrExpired
			return
		}
		sec = row
	})
	return sec, err
}

// DecrementPendingReads implements the conditional-update strategy named in
// spec §9's open question: a zero-row match (pending_reads already 0) is
// reported as ErrExhausted rather than silently going negative.
func (s *Store) DecrementPendingReads(referenceHash [16]byte, now time.Time) error {
	var err error
	s.tx(func() {
		row, ok := s.sharedTracking[referenceHash]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if row.PendingReads == 0 {
			err = storage.ErrExhausted
			return
		}
		row.PendingReads--
		if row.PendingReads == 0 {
			t := now.Unix()
			row.ReadAt = &t
		}
		s.sharedTracking[referenceHash] = row
	})
	return err
}

// DeleteSharedSecretPair deletes only the sender's own row and zeroes the
// tracking row's pending_reads, making the pair inaccessible to both roles
// without ever reading or storing which db_index belongs to the receiver
// (spec §4.6). The orphaned receiver row is reclaimed by GarbageCollect.
func (s *Store) DeleteSharedSecretPair(referenceHash [16]byte, senderDBIndex [32]byte) error {
	s.tx(func() {
		delete(s.sharedSecrets, senderDBIndex)
		if row, ok := s.sharedTracking[referenceHash]; ok {
			row.PendingReads = 0
			s.sharedTracking[referenceHash] = row
		}
	})
	return nil
}
