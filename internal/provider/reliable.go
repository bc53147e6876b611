package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fenwick-labs/agentd/internal/backoff"
	"github.com/fenwick-labs/agentd/pkg/metrics"
)

const minBaseBackoff = 50 * time.Millisecond
const maxBackoff = 10000 * time.Millisecond

// ReliableCaller wraps an ordered list of providers with per-provider
// retry, cross-provider fallback, and a shared response cache. Each
// provider is retried up to maxRetries times with exponential backoff
// before the caller moves on to the next one; only when every provider
// has exhausted its retries does ChatWithSystem return an error.
type ReliableCaller struct {
	providers     []Named
	maxRetries    int
	baseBackoff   time.Duration
	cache         *responseCache
	logger        *slog.Logger
}

// NewReliableCaller builds a caller over providers. baseBackoff is
// floored at 50ms.
func NewReliableCaller(providers []Named, maxRetries int, baseBackoff time.Duration, logger *slog.Logger) *ReliableCaller {
	if baseBackoff < minBaseBackoff {
		baseBackoff = minBaseBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReliableCaller{
		providers:   providers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		cache:       newResponseCache(),
		logger:      logger,
	}
}

// ChatWithSystem satisfies Provider. It checks the response cache
// first, then calls each configured provider in order, retrying each
// one up to maxRetries times before falling back to the next.
func (c *ReliableCaller) ChatWithSystem(ctx context.Context, systemPrompt, message, model string, temperature float64) (string, error) {
	key := cacheKey(message, model)
	if cached, ok := c.cache.get(key); ok {
		metrics.DefaultRegistry().Cache().HitsTotal.Inc()
		return cached, nil
	}
	metrics.DefaultRegistry().Cache().MissesTotal.Inc()

	var failures []string

	for _, p := range c.providers {
		delay := c.baseBackoff

		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			resp, err := p.ChatWithSystem(ctx, systemPrompt, message, model, temperature)
			if err == nil {
				if attempt > 0 {
					c.logger.Info("provider recovered after retries",
						"provider", p.Name, "attempt", attempt)
				}
				c.cache.set(key, resp)
				return resp, nil
			}

			failures = append(failures, fmt.Sprintf("%s attempt %d/%d: %v",
				p.Name, attempt+1, c.maxRetries+1, err))

			if attempt < c.maxRetries {
				c.logger.Warn("provider call failed, retrying",
					"provider", p.Name,
					"attempt", attempt+1,
					"max_retries", c.maxRetries,
					"error_class", backoff.ClassifyError(err),
				)

				jittered := backoff.Jitter(delay)
				if !backoff.WaitWithContext(ctx, jittered) {
					return "", ctx.Err()
				}
				delay = backoff.NextDelay(delay, maxBackoff)
			}
		}

		c.logger.Warn("switching to fallback provider", "exhausted_provider", p.Name)
	}

	return "", fmt.Errorf("all providers failed. Attempts:\n%s", strings.Join(failures, "\n"))
}
