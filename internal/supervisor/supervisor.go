// Package supervisor restarts a long-running component forever,
// applying exponential backoff with jitter between restarts so a
// component that keeps failing doesn't spin the CPU or thunder the
// herd when several components fail at once.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/fenwick-labs/agentd/internal/backoff"
	"github.com/fenwick-labs/agentd/internal/health"
	"github.com/fenwick-labs/agentd/pkg/metrics"
)

// Component is a long-running unit of work. It should only return when
// it is done for good (ctx cancelled) or has failed; any other return
// is treated as an unexpected exit and restarted like an error.
type Component func(ctx context.Context) error

// Run supervises component under name until ctx is cancelled. Each
// restart applies exponential backoff, starting at initialBackoff and
// doubling up to maxBackoff, with +/-25% jitter applied to the sleep
// itself so simultaneous failures across components don't restart in
// lockstep.
func Run(ctx context.Context, name string, initialBackoff, maxBackoff time.Duration, logger *slog.Logger, component Component) {
	if logger == nil {
		logger = slog.Default()
	}
	if initialBackoff < time.Second {
		initialBackoff = time.Second
	}
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	delay := initialBackoff
	statusGauge := metrics.DefaultRegistry().Health().ComponentStatus.WithLabelValues(name)
	restarts := metrics.DefaultRegistry().Supervisor().RestartsTotal.WithLabelValues(name)
	backoffObserved := metrics.DefaultRegistry().Supervisor().BackoffSeconds.WithLabelValues(name)

	for {
		if ctx.Err() != nil {
			return
		}

		health.MarkOK(name)
		statusGauge.Set(1)
		err := component(ctx)

		if ctx.Err() != nil {
			return
		}

		statusGauge.Set(0)
		if err != nil {
			health.MarkError(name, err)
			logger.Error("component failed", "component", name, "error", err)
		} else {
			health.MarkError(name, errComponentExitedUnexpectedly)
			logger.Warn("component exited unexpectedly", "component", name)
		}

		health.BumpRestart(name)
		restarts.Inc()

		jittered := backoff.Jitter(delay)
		backoffObserved.Observe(jittered.Seconds())
		if !backoff.WaitWithContext(ctx, jittered) {
			return
		}
		delay = backoff.NextDelay(delay, maxBackoff)
	}
}

type componentExitedErr struct{}

func (componentExitedErr) Error() string { return "component exited unexpectedly" }

var errComponentExitedUnexpectedly error = componentExitedErr{}
