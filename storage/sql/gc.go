package sql

import (
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// GarbageCollect removes every MagicLink, SharedSecret and
// shared_secret_tracking row whose own expiry has passed, mirroring the
// periodic purge job the teacher runs as a background loop. shared_secret
// and shared_secret_tracking are purged independently by their own
// expires_at columns rather than by a join between them, since no column
// anywhere links a tracking row's reference_hash to either side's db_index
// (spec §4.6); a sender-deleted pair's orphaned receiver row is reclaimed
// here once shared_secret.expires_at passes, same as any other expiry.
func (c *conn) GarbageCollect(now time.Time) (storage.GCResult, error) {
	result := storage.GCResult{}

	r, err := c.Exec(`delete from magic_link where expires_at < $1;`, now.Unix())
	if err != nil {
		return result, err
	}
	if n, err := r.RowsAffected(); err == nil {
		result.MagicLinks = n
	}

	r, err = c.Exec(`delete from shared_secret where expires_at < $1;`, now.Unix())
	if err != nil {
		return result, err
	}
	if n, err := r.RowsAffected(); err == nil {
		result.SharedSecrets = n
	}

	r, err = c.Exec(`delete from shared_secret_tracking where expires_at < $1;`, now.Unix())
	if err != nil {
		return result, err
	}
	if n, err := r.RowsAffected(); err == nil {
		result.TrackingRows = n
	}

	return result, nil
}
