// Package storage defines the persistence interface of the data model
// (spec §3): users, their published keys, the one privkey context row per
// user, magic links, and shared-secret pairs. Every row is keyed by
// user_id or a derived index — never by email or any other PII.
package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned by a Create call that would violate a
	// unique constraint.
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrConsumed is returned when a MagicLink row has already been
	// redeemed.
	ErrConsumed = errors.New("storage: magic link already consumed")

	// ErrExpired is returned when a row's expires_at has passed.
	ErrExpired = errors.New("storage: expired")

	// ErrExhausted is returned when a SharedSecret's pending_reads has
	// reached zero.
	ErrExhausted = errors.New("storage: pending reads exhausted")
)

// UserID is the one-way derived 16-byte identity of spec §4.2.
type UserID [16]byte

// User is the zero-PII account row of spec §3.
type User struct {
	UserID    UserID
	LastLogin int64
	CreatedAt int64
}

// Ed25519Key is a published long-lived public key, spec §3's
// UserEd25519Key.
type Ed25519Key struct {
	UserID    UserID
	PubKeyHex string
	CreatedAt int64
}

// X25519Key is the X25519 counterpart of Ed25519Key.
type X25519Key struct {
	UserID    UserID
	PubKeyHex string
	CreatedAt int64
}

// PrivkeyContext is the single sealed privkey-context row per user
// (spec §3's UserPrivkeyContext).
type PrivkeyContext struct {
	DBIndex          [16]byte
	EncryptedPrivkey []byte // 64 bytes sealed under USER_PRIVKEY_CONTEXT_KEY
	CreatedYear      uint16
}

// MagicLink is one pending or consumed issuance (spec §3).
type MagicLink struct {
	EncryptedTokenHash [32]byte
	EncryptedPayload   []byte
	ExpiresAt          int64
	Consumed           bool
}

// SharedSecret is one half of a sender/receiver pair (spec §3 and §4.6).
// The role byte is intentionally absent: it lives only in the URL hash.
type SharedSecret struct {
	DBIndex          [32]byte
	EncryptedPayload []byte
	ExpiresAt        int64
}

// SharedSecretTracking records the one-time-read state shared by a pair
// (spec §3). It is the only row keyed by reference_hash; it never stores
// either half's db_index, so it cannot be joined against the shared_secret
// table to recover which row belongs to the sender and which to the
// receiver (spec §4.6).
type SharedSecretTracking struct {
	ReferenceHash [16]byte
	PendingReads  uint32
	ReadAt        *int64
	ExpiresAt     int64
}

// GCResult reports how many expired rows a GarbageCollect pass removed.
type GCResult struct {
	MagicLinks    int64
	SharedSecrets int64
	TrackingRows  int64
}

// IsEmpty reports whether the pass found nothing to remove.
func (g GCResult) IsEmpty() bool {
	return g.MagicLinks == 0 && g.SharedSecrets == 0 && g.TrackingRows == 0
}

// Storage is the persistence interface the server depends on. All write
// methods must be atomic. The newCtx callback of GetOrCreatePrivkeyContext
// may be invoked more than once by a single call when an implementation
// retries its transaction.
type Storage interface {
	Close() error

	// GetUser returns ErrNotFound if no row exists for id.
	GetUser(id UserID) (User, error)

	// UpsertUser creates the row if absent (created_at = now, last_login =
	// now) or updates last_login if present. Idempotent per spec §3.
	UpsertUser(id UserID, now time.Time) (User, error)

	// InsertEd25519Key is a no-op if (user_id, pub_key_hex) already
	// exists; created_at is preserved from the first publication.
	InsertEd25519Key(k Ed25519Key) error

	// InsertX25519Key mirrors InsertEd25519Key for the X25519 table.
	InsertX25519Key(k X25519Key) error

	// ListEd25519Keys returns every published Ed25519 key for id.
	ListEd25519Keys(id UserID) ([]Ed25519Key, error)

	// ListX25519Keys returns every published X25519 key for id.
	ListX25519Keys(id UserID) ([]X25519Key, error)

	// GetOrCreatePrivkeyContext returns the existing row for dbIndex, or
	// creates one by invoking newCtx to sample fresh ciphertext when
	// absent. The return value's second field reports whether the row was
	// newly created.
	GetOrCreatePrivkeyContext(dbIndex [16]byte, newCtx func() (PrivkeyContext, error)) (PrivkeyContext, bool, error)

	// CreateMagicLink inserts a new row; ErrAlreadyExists on a hash
	// collision (astronomically unlikely, but reported rather than
	// silently overwritten).
	CreateMagicLink(m MagicLink) error

	// ConsumeMagicLink atomically fetches and marks consumed=true, never
	// in the other order. Returns ErrNotFound, ErrConsumed, or ErrExpired
	// (as distinguished store-side errors; the HTTP layer flattens them
	// to one client-visible kind per spec §7).
	ConsumeMagicLink(tokenHash [32]byte, now time.Time) (MagicLink, error)

	// GetMagicLink fetches a row without mutating it, returning the same
	// ErrNotFound/ErrConsumed/ErrExpired distinctions as ConsumeMagicLink.
	// Callers use it to decrypt the payload and verify the redemption
	// envelope before calling ConsumeMagicLink, so a token holder who
	// cannot produce a valid envelope never burns the link.
	GetMagicLink(tokenHash [32]byte, now time.Time) (MagicLink, error)

	// CreateSharedSecretPair inserts both rows of a sender/receiver pair
	// plus their shared tracking row in one atomic unit. No table anywhere
	// records which db_index belongs to the sender and which to the
	// receiver (spec §4.6); the tracking row carries only reference_hash.
	CreateSharedSecretPair(sender, receiver SharedSecret, tracking SharedSecretTracking) error

	// GetSharedSecret returns ErrNotFound or ErrExpired for dbIndex.
	GetSharedSecret(dbIndex [32]byte, now time.Time) (SharedSecret, error)

	// GetSharedSecretTracking returns the tracking row for referenceHash,
	// used to gate sender reads on the same pending_reads state that
	// already gates receiver reads (spec §3: both halves of a pair "become
	// inaccessible" together once reads are exhausted).
	GetSharedSecretTracking(referenceHash [16]byte) (SharedSecretTracking, error)

	// DecrementPendingReads performs the conditional update of spec §9's
	// open question ("UPDATE … WHERE pending_reads > 0"): it returns
	// ErrExhausted if pending_reads was already zero, otherwise
	// decrements it and sets read_at when it reaches zero.
	DecrementPendingReads(referenceHash [16]byte, now time.Time) error

	// DeleteSharedSecretPair deletes only the sender's own row (identified
	// by senderDBIndex, which the caller recomputes from
	// reference_hash||sender_user_id) and sets the tracking row's
	// pending_reads to zero, making the pair inaccessible per spec §3. It
	// never deletes the receiver's row directly and never reads or stores
	// any mapping between referenceHash and either side's db_index, so a
	// full-read-access database observer cannot use this path to correlate
	// sender and receiver (spec §4.6). The orphaned receiver row is
	// reclaimed later by GarbageCollect. Only the sender role may call
	// this; the caller is responsible for that authorization check.
	DeleteSharedSecretPair(referenceHash [16]byte, senderDBIndex [32]byte) error

	// GarbageCollect removes every MagicLink, SharedSecret and tracking
	// row whose expiry has passed as of now.
	GarbageCollect(now time.Time) (GCResult, error)
}
