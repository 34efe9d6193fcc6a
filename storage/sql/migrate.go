package sql

import (
	"database/sql"
	"fmt"
)

func (c *conn) migrate() (int, error) {
	_, err := c.Exec(`
		create table if not exists migrations (
			num integer not null,
			at timestamptz not null
		);
	`)
	if err != nil {
		return 0, fmt.Errorf("creating migration table: %v", err)
	}

	i := 0
	done := false
	for {
		err := c.ExecTx(func(tx *trans) error {
			var (
				num sql.NullInt64
				n   int
			)
			if err := tx.QueryRow(`select max(num) from migrations;`).Scan(&num); err != nil {
				return fmt.Errorf("select max migration: %v", err)
			}
			if num.Valid {
				n = int(num.Int64)
			}
			if n >= len(migrations) {
				done = true
				return nil
			}

			migrationNum := n + 1
			m := migrations[n]
			if _, err := tx.Exec(m.stmt); err != nil {
				return fmt.Errorf("migration %d failed: %v", migrationNum, err)
			}

			q := `insert into migrations (num, at) values ($1, now());`
			if _, err := tx.Exec(q, migrationNum); err != nil {
				return fmt.Errorf("update migration table: %v", err)
			}
			return nil
		})
		if err != nil {
			return i, err
		}
		if done {
			break
		}
		i++
	}

	return i, nil
}

type migration struct {
	stmt string
}

// All SQL flavors share the same migration strategy; the schema follows
// the zero-knowledge data model: every table is keyed by the opaque
// user_id, never by email.
var migrations = []migration{
	{
		stmt: `
			create table app_user (
				user_id bytea not null primary key,
				last_login bigint not null,
				created_at bigint not null
			);
		`,
	},
	{
		stmt: `
			create table ed25519_key (
				user_id bytea not null references app_user(user_id),
				pub_key_hex text not null,
				created_at bigint not null,
				primary key (user_id, pub_key_hex)
			);
		`,
	},
	{
		stmt: `
			create table x25519_key (
				user_id bytea not null references app_user(user_id),
				pub_key_hex text not null,
				created_at bigint not null,
				primary key (user_id, pub_key_hex)
			);
		`,
	},
	{
		stmt: `
			create table privkey_context (
				db_index bytea not null primary key,
				encrypted_privkey bytea not null,
				created_year integer not null
			);
		`,
	},
	{
		stmt: `
			create table magic_link (
				encrypted_token_hash bytea not null primary key,
				encrypted_payload bytea not null,
				expires_at bigint not null,
				consumed boolean not null default false
			);
		`,
	},
	{
		stmt: `
			create table shared_secret (
				db_index bytea not null primary key,
				encrypted_payload bytea not null,
				expires_at bigint not null
			);
		`,
	},
	{
		// Keyed only by reference_hash: it never stores either side's
		// db_index, so it cannot be joined against shared_secret to
		// recover which row is the sender's and which is the receiver's
		// (spec §4.6).
		stmt: `
			create table shared_secret_tracking (
				reference_hash bytea not null primary key,
				pending_reads integer not null,
				read_at bigint,
				expires_at bigint not null
			);
		`,
	},
	{
		stmt: `create index magic_link_expires_at_idx on magic_link (expires_at);`,
	},
	{
		stmt: `create index shared_secret_expires_at_idx on shared_secret (expires_at);`,
	},
	{
		stmt: `create index shared_secret_tracking_expires_at_idx on shared_secret_tracking (expires_at);`,
	},
}
