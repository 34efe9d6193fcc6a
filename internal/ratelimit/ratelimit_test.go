package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowEnforcesBurstThenRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(1, 2, time.Hour)

	require.True(t, l.Allow("1.2.3.4", now))
	require.True(t, l.Allow("1.2.3.4", now))
	require.False(t, l.Allow("1.2.3.4", now))

	later := now.Add(time.Second)
	require.True(t, l.Allow("1.2.3.4", later))
}

func TestAllowTracksKeysIndependently(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(1, 1, time.Hour)

	require.True(t, l.Allow("a@example.com", now))
	require.False(t, l.Allow("a@example.com", now))
	require.True(t, l.Allow("b@example.com", now))
}

func TestEvictIdleRemovesStaleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(1, 1, time.Minute)

	l.Allow("1.2.3.4", now)
	require.Equal(t, 0, l.EvictIdle(now.Add(30*time.Second)))
	require.Equal(t, 1, l.EvictIdle(now.Add(2*time.Minute)))

	require.Len(t, l.buckets, 0)
}
