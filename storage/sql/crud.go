package sql

import (
	"database/sql"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

var _ storage.Storage = (*conn)(nil)

func (c *conn) GetUser(id storage.UserID) (u storage.User, err error) {
	row := c.QueryRow(`select last_login, created_at from app_user where user_id = $1;`, id[:])
	if err := row.Scan(&u.LastLogin, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, err
	}
	u.UserID = id
	return u, nil
}

func (c *conn) UpsertUser(id storage.UserID, now time.Time) (u storage.User, err error) {
	err = c.ExecTx(func(tx *trans) error {
		var lastLogin, createdAt int64
		scanErr := tx.QueryRow(`select last_login, created_at from app_user where user_id = $1;`, id[:]).
			Scan(&lastLogin, &createdAt)
		switch scanErr {
		case sql.ErrNoRows:
			createdAt = now.Unix()
			if _, err := tx.Exec(`insert into app_user (user_id, last_login, created_at) values ($1, $2, $3);`,
				id[:], now.Unix(), createdAt); err != nil {
				return err
			}
		case nil:
			if _, err := tx.Exec(`update app_user set last_login = $2 where user_id = $1;`, id[:], now.Unix()); err != nil {
				return err
			}
		default:
			return scanErr
		}
		u = storage.User{UserID: id, LastLogin: now.Unix(), CreatedAt: createdAt}
		return nil
	})
	return u, err
}

func (c *conn) InsertEd25519Key(k storage.Ed25519Key) error {
	_, err := c.Exec(`insert into ed25519_key (user_id, pub_key_hex, created_at) values ($1, $2, $3);`,
		k.UserID[:], k.PubKeyHex, k.CreatedAt)
	if err != nil && c.alreadyExistsCheck(err) {
		return nil
	}
	return err
}

func (c *conn) InsertX25519Key(k storage.X25519Key) error {
	_, err := c.Exec(`insert into x25519_key (user_id, pub_key_hex, created_at) values ($1, $2, $3);`,
		k.UserID[:], k.PubKeyHex, k.CreatedAt)
	if err != nil && c.alreadyExistsCheck(err) {
		return nil
	}
	return err
}

func (c *conn) ListEd25519Keys(id storage.UserID) ([]storage.Ed25519Key, error) {
	rows, err := c.Query(`select pub_key_hex, created_at from ed25519_key where user_id = $1 order by created_at;`, id[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Ed25519Key
	for rows.Next() {
		k := storage.Ed25519Key{UserID: id}
		if err := rows.Scan(&k.PubKeyHex, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (c *conn) ListX25519Keys(id storage.UserID) ([]storage.X25519Key, error) {
	rows, err := c.Query(`select pub_key_hex, created_at from x25519_key where user_id = $1 order by created_at;`, id[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.X25519Key
	for rows.Next() {
		k := storage.X25519Key{UserID: id}
		if err := rows.Scan(&k.PubKeyHex, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// GetOrCreatePrivkeyContext implements the idempotent-creation invariant of
// spec §3/§4.3 step 6 as a single SERIALIZABLE transaction: concurrent
// first-redemptions for the same user race to insert, and the loser simply
// reads back what the winner wrote.
func (c *conn) GetOrCreatePrivkeyContext(dbIndex [16]byte, newCtx func() (storage.PrivkeyContext, error)) (ctx storage.PrivkeyContext, created bool, err error) {
	err = c.ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select encrypted_privkey, created_year from privkey_context where db_index = $1;`, dbIndex[:])
		scanErr := row.Scan(&ctx.EncryptedPrivkey, &ctx.CreatedYear)
		if scanErr == nil {
			ctx.DBIndex = dbIndex
			created = false
			return nil
		}
		if scanErr != sql.ErrNoRows {
			return scanErr
		}

		fresh, err := newCtx()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`insert into privkey_context (db_index, encrypted_privkey, created_year) values ($1, $2, $3);`,
			dbIndex[:], fresh.EncryptedPrivkey, fresh.CreatedYear); err != nil {
			if c.alreadyExistsCheck(err) {
				row := tx.QueryRow(`select encrypted_privkey, created_year from privkey_context where db_index = $1;`, dbIndex[:])
				if err := row.Scan(&ctx.EncryptedPrivkey, &ctx.CreatedYear); err != nil {
					return err
				}
				ctx.DBIndex = dbIndex
				created = false
				return nil
			}
			return err
		}
		ctx = fresh
		created = true
		return nil
	})
	return ctx, created, err
}

func (c *conn) CreateMagicLink(m storage.MagicLink) error {
	_, err := c.Exec(`insert into magic_link (encrypted_token_hash, encrypted_payload, expires_at, consumed) values ($1, $2, $3, $4);`,
		m.EncryptedTokenHash[:], m.EncryptedPayload, m.ExpiresAt, m.Consumed)
	if err != nil && c.alreadyExistsCheck(err) {
		return storage.ErrAlreadyExists
	}
	return err
}

func (c *conn) GetMagicLink(tokenHash [32]byte, now time.Time) (m storage.MagicLink, err error) {
	row := c.QueryRow(`select encrypted_payload, expires_at, consumed from magic_link where encrypted_token_hash = $1;`, tokenHash[:])
	if err := row.Scan(&m.EncryptedPayload, &m.ExpiresAt, &m.Consumed); err != nil {
		if err == sql.ErrNoRows {
			return storage.MagicLink{}, storage.ErrNotFound
		}
		return storage.MagicLink{}, err
	}
	if m.Consumed {
		return storage.MagicLink{}, storage.ErrConsumed
	}
	if m.ExpiresAt < now.Unix() {
		return storage.MagicLink{}, storage.ErrExpired
	}
	m.EncryptedTokenHash = tokenHash
	return m, nil
}

func (c *conn) ConsumeMagicLink(tokenHash [32]byte, now time.Time) (m storage.MagicLink, err error) {
	err = c.ExecTx(func(tx *trans) error {
		row := tx.QueryRow(`select encrypted_payload, expires_at, consumed from magic_link where encrypted_token_hash = $1;`, tokenHash[:])
		if err := row.Scan(&m.EncryptedPayload, &m.ExpiresAt, &m.Consumed); err != nil {
			if err == sql.ErrNoRows {
				return storage.ErrNotFound
			}
			return err
		}
		if m.Consumed {
			return storage.ErrConsumed
		}
		if m.ExpiresAt < now.Unix() {
			return storage.ErrExpired
		}
		if _, err := tx.Exec(`update magic_link set consumed = true where encrypted_token_hash = $1;`, tokenHash[:]); err != nil {
			return err
		}
		m.EncryptedTokenHash = tokenHash
		m.Consumed = true
		return nil
	})
	return m, err
}

// CreateSharedSecretPair never writes a row linking reference_hash to either
// side's db_index: a database-level observer with full read access sees two
// unlinked shared_secret rows and one tracking row keyed only by
// reference_hash, and cannot tell which is the sender's (spec §4.6).
func (c *conn) CreateSharedSecretPair(sender, receiver storage.SharedSecret, tracking storage.SharedSecretTracking) error {
	return c.ExecTx(func(tx *trans) error {
		if _, err := tx.Exec(`insert into shared_secret (db_index, encrypted_payload, expires_at) values ($1, $2, $3);`,
			sender.DBIndex[:], sender.EncryptedPayload, sender.ExpiresAt); err != nil {
			return err
		}
		if _, err := tx.Exec(`insert into shared_secret (db_index, encrypted_payload, expires_at) values ($1, $2, $3);`,
			receiver.DBIndex[:], receiver.EncryptedPayload, receiver.ExpiresAt); err != nil {
			return err
		}
		if _, err := tx.Exec(`insert into shared_secret_tracking (reference_hash, pending_reads, read_at, expires_at) values ($1, $2, $3, $4);`,
			tracking.ReferenceHash[:], tracking.PendingReads, nil, tracking.ExpiresAt); err != nil {
			return err
		}
		return nil
	})
}

func (c *conn) GetSharedSecret(dbIndex [32]byte, now time.Time) (sec storage.SharedSecret, err error) {
	row := c.QueryRow(`select encrypted_payload, expires_at from shared_secret where db_index = $1;`, dbIndex[:])
	if err := row.Scan(&sec.EncryptedPayload, &sec.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return storage.SharedSecret{}, storage.ErrNotFound
		}
		return storage.SharedSecret{}, err
	}
	if sec.ExpiresAt < now.Unix() {
		return storage.SharedSecret{}, storage.ErrExpired
	}
	sec.DBIndex = dbIndex
	return sec, nil
}

func (c *conn) GetSharedSecretTracking(referenceHash [16]byte) (t storage.SharedSecretTracking, err error) {
	row := c.QueryRow(`select pending_reads, read_at, expires_at from shared_secret_tracking where reference_hash = $1;`, referenceHash[:])
	if err := row.Scan(&t.PendingReads, &t.ReadAt, &t.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return storage.SharedSecretTracking{}, storage.ErrNotFound
		}
		return storage.SharedSecretTracking{}, err
	}
	t.ReferenceHash = referenceHash
	return t, nil
}

// DecrementPendingReads implements the conditional-update strategy named in
// spec §9's open question: the update only affects rows where
// pending_reads is still positive, so a concurrent double-read can't drive
// the counter negative; an affected-rows count of zero means the quota was
// already exhausted.
func (c *conn) DecrementPendingReads(referenceHash [16]byte, now time.Time) error {
	return c.ExecTx(func(tx *trans) error {
		res, err := tx.Exec(`update shared_secret_tracking set pending_reads = pending_reads - 1,
			read_at = case when pending_reads = 1 then $2 else read_at end
			where reference_hash = $1 and pending_reads > 0;`, referenceHash[:], now.Unix())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			row := tx.QueryRow(`select true from shared_secret_tracking where reference_hash = $1;`, referenceHash[:])
			if scanErr := row.Scan(&exists); scanErr == sql.ErrNoRows {
				return storage.ErrNotFound
			}
			return storage.ErrExhausted
		}
		return nil
	})
}

// DeleteSharedSecretPair deletes only the sender's own row and zeroes
// pending_reads on the tracking row, making the pair inaccessible to both
// roles (spec §3) without ever reading or storing the receiver's db_index
// alongside referenceHash.
func (c *conn) DeleteSharedSecretPair(referenceHash [16]byte, senderDBIndex [32]byte) error {
	return c.ExecTx(func(tx *trans) error {
		if _, err := tx.Exec(`delete from shared_secret where db_index = $1;`, senderDBIndex[:]); err != nil {
			return err
		}
		if _, err := tx.Exec(`update shared_secret_tracking set pending_reads = 0 where reference_hash = $1;`, referenceHash[:]); err != nil {
			return err
		}
		return nil
	})
}
