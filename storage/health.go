package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// NewCustomHealthCheckFunc returns a go-sundheit check function that
// exercises a real write-then-read round trip against the store: insert
// a throwaway MagicLink row and immediately consume it, the way the
// teacher's health check creates and deletes a throwaway AuthRequest.
// A short expiry means a failed consume still gets swept up by the next
// GarbageCollect pass.
func NewCustomHealthCheckFunc(s Storage, now func() time.Time) func(context.Context) (details interface{}, err error) {
	return func(_ context.Context) (details interface{}, err error) {
		var tokenHash [32]byte
		if _, err := rand.Read(tokenHash[:]); err != nil {
			return nil, fmt.Errorf("health check: sampling probe hash: %v", err)
		}

		probe := MagicLink{
			EncryptedTokenHash: tokenHash,
			EncryptedPayload:   []byte("healthcheck"),
			ExpiresAt:          now().Add(time.Minute).Unix(),
		}
		if err := s.CreateMagicLink(probe); err != nil {
			return nil, fmt.Errorf("health check: create probe row: %v", err)
		}
		if _, err := s.ConsumeMagicLink(tokenHash, now()); err != nil {
			return nil, fmt.Errorf("health check: consume probe row: %v", err)
		}
		return nil, nil
	}
}
