// Package pairing implements first-connect authentication for the
// daemon's gateway.
//
// On startup, if no token has been paired yet, the guard generates a
// one-time six-digit pairing code printed to the terminal. The first
// client must present this code via the X-Pairing-Code header on a
// POST /pair request; the server responds with a bearer token that must
// be sent on all subsequent requests as "Authorization: Bearer <token>".
// Tokens listed in config are loaded at construction, so they survive
// restarts. Tokens issued by TryPair are held in memory only and are
// not written back to config; after a restart they are no longer
// accepted unless they were added to config.
package pairing

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-labs/agentd/pkg/metrics"
)

const (
	maxPairAttempts = 5
	pairLockoutSecs = 300

	tokenPrefix = "bh_"

	codeUpperBound     = 1_000_000
	codeRejectThreshold = (^uint32(0) / codeUpperBound) * codeUpperBound
)

// Guard enforces pairing-code authentication for the gateway.
type Guard struct {
	requirePairing bool
	pairingCode    string // empty if no pairing is pending

	mu            sync.Mutex
	pairedTokens  map[string]struct{}
	failedCount   uint32
	lockedAt      time.Time
	hasLockedAt   bool
}

// New constructs a Guard. If requirePairing is true and existingTokens
// is empty, a fresh pairing code is generated immediately.
func New(requirePairing bool, existingTokens []string) *Guard {
	tokens := make(map[string]struct{}, len(existingTokens))
	for _, t := range existingTokens {
		tokens[t] = struct{}{}
	}

	code := ""
	if requirePairing && len(tokens) == 0 {
		code = generateCode()
	}

	return &Guard{
		requirePairing: requirePairing,
		pairingCode:    code,
		pairedTokens:   tokens,
	}
}

// PairingCode returns the pending pairing code, or "" if none is
// outstanding (pairing already completed, or pairing is disabled).
func (g *Guard) PairingCode() string {
	return g.pairingCode
}

// RequirePairing reports whether the gateway was configured to require
// pairing at all.
func (g *Guard) RequirePairing() bool {
	return g.requirePairing
}

// TryPair attempts to redeem code for a bearer token. On brute-force
// lockout it returns (ok=false, lockoutRemaining>0, ""). A wrong code
// while not locked out returns (false, 0, ""). The correct code
// returns (true, 0, token).
func (g *Guard) TryPair(code string) (ok bool, lockoutRemaining time.Duration, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasLockedAt && g.failedCount >= maxPairAttempts {
		elapsed := time.Since(g.lockedAt)
		if elapsed < pairLockoutSecs*time.Second {
			metrics.DefaultRegistry().Pairing().AttemptsTotal.WithLabelValues("locked_out").Inc()
			return false, pairLockoutSecs*time.Second - elapsed, ""
		}
	}

	if g.pairingCode != "" && ConstantTimeEqual(strings.TrimSpace(code), strings.TrimSpace(g.pairingCode)) {
		g.failedCount = 0
		g.hasLockedAt = false

		tok := generateToken()
		g.pairedTokens[tok] = struct{}{}
		metrics.DefaultRegistry().Pairing().AttemptsTotal.WithLabelValues("success").Inc()
		return true, 0, tok
	}

	g.failedCount++
	if g.failedCount >= maxPairAttempts {
		g.lockedAt = time.Now()
		g.hasLockedAt = true
		metrics.DefaultRegistry().Pairing().LockoutsTotal.Inc()
	}
	metrics.DefaultRegistry().Pairing().AttemptsTotal.WithLabelValues("failure").Inc()
	return false, 0, ""
}

// IsAuthenticated reports whether token is a valid paired token. Always
// true when pairing was never required.
func (g *Guard) IsAuthenticated(token string) bool {
	if !g.requirePairing {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pairedTokens[token]
	return ok
}

// IsPaired reports whether at least one token has been paired.
func (g *Guard) IsPaired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pairedTokens) > 0
}

// Tokens returns every currently paired token.
func (g *Guard) Tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	tokens := make([]string, 0, len(g.pairedTokens))
	for t := range g.pairedTokens {
		tokens = append(tokens, t)
	}
	return tokens
}

// generateCode produces a six-digit pairing code using rejection
// sampling against a v4 UUID's first four bytes, so the result is
// uniform over [0, 1_000_000) with no modulo bias.
func generateCode() string {
	for {
		id := uuid.New()
		raw := uint32(id[0]) | uint32(id[1])<<8 | uint32(id[2])<<16 | uint32(id[3])<<24
		if raw < codeRejectThreshold {
			return padCode(raw % codeUpperBound)
		}
	}
}

func padCode(n uint32) string {
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[:])
}

func generateToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ConstantTimeEqual compares a and b without leaking timing information
// about where (or whether) they differ, including their relative
// lengths. crypto/subtle.ConstantTimeCompare is deliberately not used
// here: it returns 0 immediately when len(a) != len(b), which leaks
// length via timing before ever reaching the byte comparison. This
// implementation folds the length difference into the accumulator and
// always walks max(len(a), len(b)) bytes.
func ConstantTimeEqual(a, b string) bool {
	ab, bb := []byte(a), []byte(b)
	maxLen := len(ab)
	if len(bb) > maxLen {
		maxLen = len(bb)
	}

	diff := len(ab) ^ len(bb)
	for i := 0; i < maxLen; i++ {
		var x, y byte
		if i < len(ab) {
			x = ab[i]
		}
		if i < len(bb) {
			y = bb[i]
		}
		diff |= int(x ^ y)
	}
	return diff == 0
}

// IsPublicBind reports whether host is something other than a
// loopback address, meaning the gateway would be reachable from outside
// the local machine if bound to it.
func IsPublicBind(host string) bool {
	switch host {
	case "127.0.0.1", "localhost", "::1", "[::1]", "0:0:0:0:0:0:0:1":
		return false
	default:
		return true
	}
}
