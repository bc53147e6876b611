//go:build !windows

package daemon

import (
	"context"
	"log/slog"
	"sync"
)

// startPlatformMaintenance is a no-op outside Windows: there is no
// equivalent working-set trim on other platforms worth emulating.
func startPlatformMaintenance(_ context.Context, _ *sync.WaitGroup, _ *slog.Logger) {}
