// Package backoff provides the jittered-delay primitives shared by the
// reliable provider caller and the component supervisor.
//
// Randomness is drawn from an OS-CSPRNG-backed source (a v4 UUID's first
// four bytes) rather than a seeded PRNG, matching this codebase's
// preference for crypto/rand-backed identifiers over math/rand wherever
// the value influences externally observable timing.
package backoff

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Jitter maps base to a uniformly random factor in [0.75, 1.25] and
// returns max(1, floor(base*factor)). The factor is derived from the
// first four bytes of a freshly generated v4 UUID, interpreted as a
// little-endian uint32 and scaled to [0, 1].
func Jitter(base time.Duration) time.Duration {
	id := uuid.New()
	raw := uint32(id[0]) | uint32(id[1])<<8 | uint32(id[2])<<16 | uint32(id[3])<<24
	factor := 0.75 + (float64(raw)/float64(^uint32(0)))*0.5

	jittered := time.Duration(float64(base) * factor)
	if jittered < 1 {
		return 1
	}
	return jittered
}

// NextDelay doubles current, capped at max.
func NextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next <= 0 {
		return max
	}
	return next
}

// WaitWithContext blocks for delay or until ctx is cancelled, whichever
// comes first. Returns false if ctx was cancelled first.
func WaitWithContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
