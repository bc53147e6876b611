// Package daemon is the orchestrator: it acquires the single-instance
// lock, starts the state writer and one supervisor per enabled worker,
// and waits for SIGINT/SIGTERM to cancel everything and exit.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fenwick-labs/agentd/internal/atomicfile"
	"github.com/fenwick-labs/agentd/internal/config"
	"github.com/fenwick-labs/agentd/internal/gateway"
	"github.com/fenwick-labs/agentd/internal/health"
	"github.com/fenwick-labs/agentd/internal/lock"
	"github.com/fenwick-labs/agentd/internal/observability"
	"github.com/fenwick-labs/agentd/internal/pairing"
	"github.com/fenwick-labs/agentd/internal/supervisor"
	"github.com/fenwick-labs/agentd/internal/tunnel"
)

const statusFlushInterval = 5 * time.Second

// Orchestrator owns the daemon's top-level lifecycle.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	guard     *pairing.Guard
	observer  observability.Observer
	tunnel    tunnel.Tunnel
	writePool *atomicfile.Pool
}

// New builds an Orchestrator for cfg. The pairing guard is constructed
// here (and may immediately generate a pairing code, which Run does not
// log; callers read it through Guard) so callers can surface it before
// the gateway starts accepting connections.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		guard:     pairing.New(cfg.Pairing.RequirePairing, cfg.Pairing.PairedTokens),
		observer:  observability.NewObserver(cfg.Observability.Backend, logger),
		tunnel:    selectTunnel(cfg.Tunnel.Provider),
		writePool: atomicfile.NewPool(4),
	}
}

func selectTunnel(provider string) tunnel.Tunnel {
	switch provider {
	case "", "none":
		return tunnel.NoneTunnel{}
	default:
		return tunnel.NoneTunnel{}
	}
}

// Guard returns the daemon's pairing guard, so the caller (cmd/agentd)
// can print the pending pairing code at startup.
func (o *Orchestrator) Guard() *pairing.Guard {
	return o.guard
}

// Run acquires the single-instance lock and blocks until parent is
// cancelled or SIGINT/SIGTERM is received, at which point every
// supervised component is cancelled and joined before returning.
func (o *Orchestrator) Run(parent context.Context) error {
	if err := os.MkdirAll(o.cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir %s: %w", o.cfg.ConfigDir, err)
	}

	fileLock := lock.New(o.cfg.LockPath(), o.logger)
	ok, err := fileLock.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s", health.StructuredError(
			"Failed to start daemon",
			fmt.Sprintf("another instance holds the lock (%s)", o.cfg.LockPath()),
			"stop the existing daemon with Ctrl+C or remove the lock file",
		))
	}
	defer fileLock.Release()

	health.MarkOK("daemon")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	initial := o.cfg.Reliability.InitialBackoff()
	max := o.cfg.Reliability.MaxBackoff()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.runStateWriter(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx, "gateway", initial, max, o.logger, o.gatewayComponent())
	}()

	if o.cfg.Channels.HasAny() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			supervisor.Run(ctx, "channels", initial, max, o.logger, idleUntilCancelled)
		}()
	} else {
		health.MarkOK("channels")
		o.logger.Info("no channel adapters configured; channel supervisor disabled")
	}

	if o.cfg.Heartbeat.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			supervisor.Run(ctx, "heartbeat", initial, max, o.logger, idleUntilCancelled)
		}()
	} else {
		health.MarkOK("heartbeat")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx, "scheduler", initial, max, o.logger, idleUntilCancelled)
	}()

	startPlatformMaintenance(ctx, &wg, o.logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		health.MarkError("daemon", errShutdownRequested)
		o.logger.Info("shutdown requested")
	case <-parent.Done():
	}

	cancel()
	wg.Wait()
	return nil
}

type shutdownRequestedErr struct{}

func (shutdownRequestedErr) Error() string { return "shutdown requested" }

var errShutdownRequested error = shutdownRequestedErr{}

// idleUntilCancelled is the illustrative placeholder supervised in
// place of a real channels/heartbeat/scheduler worker: none of those
// domain implementations ship here, so the supervisor has a real
// cancellable unit of work to restart-loop around without pretending
// to do the domain's job.
func idleUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (o *Orchestrator) gatewayComponent() supervisor.Component {
	return func(ctx context.Context) error {
		metricsPath := ""
		if o.cfg.Metrics.Enabled {
			metricsPath = o.cfg.Metrics.Path
		}
		gw := gateway.New(o.guard, o.logger, metricsPath)
		addr := fmt.Sprintf("%s:%d", o.cfg.Gateway.Host, o.cfg.Gateway.Port)
		srv := &http.Server{Addr: addr, Handler: gw.Router()}

		publicURL, err := o.tunnel.Start(ctx, o.cfg.Gateway.Host, o.cfg.Gateway.Port)
		if err != nil {
			o.logger.Warn("tunnel failed to start", "error", err)
		} else {
			o.logger.Info("gateway reachable", "url", publicURL)
		}
		defer o.tunnel.Stop(ctx)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}
	}
}

type stateFile struct {
	PID           int                                `json:"pid"`
	UpdatedAt     string                             `json:"updated_at"`
	UptimeSeconds uint64                             `json:"uptime_seconds"`
	WrittenAt     string                             `json:"written_at"`
	Components    map[string]health.ComponentHealth `json:"components"`
}

func stateSnapshotJSON() []byte {
	snap := health.Snapshot()
	sf := stateFile{
		PID:           snap.PID,
		UpdatedAt:     snap.UpdatedAt,
		UptimeSeconds: snap.UptimeSeconds,
		WrittenAt:     time.Now().UTC().Format(time.RFC3339),
		Components:    snap.Components,
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return []byte(`{"status":"error","message":"failed to serialize health snapshot"}`)
	}
	return data
}

func (o *Orchestrator) runStateWriter(ctx context.Context) {
	path := o.cfg.StateFilePath()

	ticker := time.NewTicker(statusFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			errCh := o.writePool.WriteAsync(ctx, path, stateSnapshotJSON())
			go func() {
				if err := <-errCh; err != nil {
					o.logger.Debug("failed to write daemon state file", "error", err)
				}
			}()
		}
	}
}
