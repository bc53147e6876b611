package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenwick-labs/agentd/internal/health"
)

func TestRun_MarksErrorAndRestartOnFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	name := "test-fail-component"

	go Run(ctx, name, time.Millisecond, time.Millisecond, nil, func(ctx context.Context) error {
		return errors.New("boom")
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	snap := health.Snapshot()
	c, ok := snap.Components[name]
	if !ok {
		t.Fatal("expected component to appear in snapshot")
	}
	if c.Status != "error" {
		t.Fatalf("status = %q, want \"error\"", c.Status)
	}
	if c.RestartCount < 1 {
		t.Fatalf("RestartCount = %d, want >= 1", c.RestartCount)
	}
	if c.LastError != "boom" {
		t.Fatalf("LastError = %q, want \"boom\"", c.LastError)
	}
}

func TestRun_MarksUnexpectedExitAsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	name := "test-exit-component"

	go Run(ctx, name, time.Millisecond, time.Millisecond, nil, func(ctx context.Context) error {
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)

	snap := health.Snapshot()
	c, ok := snap.Components[name]
	if !ok {
		t.Fatal("expected component to appear in snapshot")
	}
	if c.Status != "error" {
		t.Fatalf("status = %q, want \"error\"", c.Status)
	}
	if c.RestartCount < 1 {
		t.Fatalf("RestartCount = %d, want >= 1", c.RestartCount)
	}
	if c.LastError != "component exited unexpectedly" {
		t.Fatalf("LastError = %q, want \"component exited unexpectedly\"", c.LastError)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64

	done := make(chan struct{})
	go func() {
		Run(ctx, "test-stop-component", time.Millisecond, time.Millisecond, nil, func(ctx context.Context) error {
			calls.Add(1)
			<-ctx.Done()
			return ctx.Err()
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
