package auth

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// pruneAbove bounds the number of tracked keys before stale ones are dropped.
const pruneAbove = 4096

// AttemptLimiter locks a key (a client IP) for a while after too many
// failed attempts.
type AttemptLimiter struct {
	max     int
	lockout time.Duration
	clock   clockwork.Clock

	mu   sync.Mutex
	keys map[string]*attempts
}

type attempts struct {
	failed      int
	lockedUntil time.Time
	last        time.Time
}

func NewAttemptLimiter(maxAttempts int, lockout time.Duration, clock clockwork.Clock) *AttemptLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AttemptLimiter{max: maxAttempts, lockout: lockout, clock: clock, keys: map[string]*attempts{}}
}

// Allow reports whether key may try again now.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.keys[key]
	if !ok {
		return true
	}
	return !l.clock.Now().Before(a.lockedUntil)
}

// Fail records a failed attempt. The max-th failure locks key for the
// lockout period and resets its counter.
func (l *AttemptLimiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if len(l.keys) > pruneAbove {
		l.prune(now)
	}

	a, ok := l.keys[key]
	if !ok {
		a = &attempts{}
		l.keys[key] = a
	}
	a.failed++
	a.last = now
	if a.failed >= l.max {
		a.lockedUntil = now.Add(l.lockout)
		a.failed = 0
	}
}

// Reset forgets key after a successful attempt.
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}

func (l *AttemptLimiter) prune(now time.Time) {
	for k, a := range l.keys {
		if now.After(a.lockedUntil) && now.Sub(a.last) > l.lockout {
			delete(l.keys, k)
		}
	}
}
