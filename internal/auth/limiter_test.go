package auth

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestAttemptLimiter_LocksAfterMaxFailures(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	l := NewAttemptLimiter(3, 10*time.Minute, clock)

	for i := 0; i < 2; i++ {
		l.Fail("192.0.2.1")
		assert.True(t, l.Allow("192.0.2.1"))
	}
	l.Fail("192.0.2.1")
	assert.False(t, l.Allow("192.0.2.1"))
	assert.True(t, l.Allow("192.0.2.2"), "other clients are unaffected")

	clock.Advance(10*time.Minute - time.Second)
	assert.False(t, l.Allow("192.0.2.1"))
	clock.Advance(time.Second)
	assert.True(t, l.Allow("192.0.2.1"))

	// the counter restarted with the lock
	l.Fail("192.0.2.1")
	assert.True(t, l.Allow("192.0.2.1"))
}

func TestAttemptLimiter_ResetClearsFailures(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	l := NewAttemptLimiter(2, time.Minute, clock)

	l.Fail("ip")
	l.Reset("ip")
	l.Fail("ip")
	assert.True(t, l.Allow("ip"))
}
