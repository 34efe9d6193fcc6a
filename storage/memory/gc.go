package memory

import (
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

func (s *Store) GarbageCollect(now time.Time) (result storage.GCResult, err error) {
	s.tx(func() {
		for hash, m := range s.magicLinks {
			if m.ExpiresAt < now.Unix() {
				delete(s.magicLinks, hash)
				result.MagicLinks++
			}
		}

		for dbIndex, sec := range s.sharedSecrets {
			if sec.ExpiresAt < now.Unix() {
				delete(s.sharedSecrets, dbIndex)
				result.SharedSecrets++
			}
		}
		for ref, tracking := range s.sharedTracking {
			if tracking.ExpiresAt < now.Unix() {
				delete(s.sharedTracking, ref)
				result.TrackingRows++
			}
		}
	})
	return result, nil
}
