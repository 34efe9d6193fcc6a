// Package ratelimit implements the best-effort, in-memory sliding-window
// table of spec §5: a small per-key token bucket built on
// golang.org/x/time/rate, used to throttle magic-link issuance (spec §7
// RateLimited).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a map of per-key token buckets with idle eviction, so a
// long-lived process does not accumulate one bucket per source forever.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       rate.Limit
	burst     int
	idleAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a Limiter allowing rps requests per second per key, with
// bursts up to burst, evicting buckets untouched for idleAfter.
func New(rps float64, burst int, idleAfter time.Duration) *Limiter {
	return &Limiter{
		buckets:   make(map[string]*bucket),
		rps:       rate.Limit(rps),
		burst:     burst,
		idleAfter: idleAfter,
	}
}

// Allow reports whether a request keyed by key (typically source IP or
// normalised email) may proceed now.
func (l *Limiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// EvictIdle removes buckets that have not been touched since idleAfter
// ago, the memory-bound counterpart to storage's GarbageCollect.
func (l *Limiter) EvictIdle(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleAfter {
			delete(l.buckets, key)
			evicted++
		}
	}
	return evicted
}
