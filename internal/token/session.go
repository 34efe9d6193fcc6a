package token

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// NewSessionID mints the session_id that ties a refresh token to the
// access token it was issued alongside (spec §4.4). A UUIDv4's leading
// eight bytes carry enough entropy for a collision-free session handle
// without pulling in a second random source.
func NewSessionID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}
