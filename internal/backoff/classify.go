package backoff

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ClassifyError labels an error for use in provider-call failure logs.
//
// Labels:
//   - "timeout": timeout or deadline exceeded
//   - "network": connection refused/reset/unreachable
//   - "rate_limit": rate limiting or too-many-requests responses
//   - "context_cancelled": context cancellation
//   - "context_deadline": context deadline exceeded
//   - "dns": DNS resolution errors
//   - "unknown": everything else
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	if errors.Is(err, context.Canceled) {
		return "context_cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "context_deadline"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "network"
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "rate limit") ||
		strings.Contains(errMsg, "too many requests") ||
		strings.Contains(errMsg, "429") {
		return "rate_limit"
	}

	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "timed out") ||
		strings.Contains(errMsg, "i/o timeout") {
		return "timeout"
	}

	if strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "network") {
		return "network"
	}

	return "unknown"
}
