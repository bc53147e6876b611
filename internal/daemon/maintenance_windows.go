//go:build windows

package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

var (
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procSetProcessWorkingSetSize = kernel32.NewProc("SetProcessWorkingSetSize")
)

const workingSetTrimInterval = 5 * time.Minute

// startPlatformMaintenance trims the process working set periodically
// on Windows, releasing physical pages the OS would otherwise keep
// resident indefinitely for a long-running daemon.
func startPlatformMaintenance(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		handle := windows.CurrentProcess()
		ticker := time.NewTicker(workingSetTrimInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				procSetProcessWorkingSetSize.Call(uintptr(handle), ^uintptr(0), ^uintptr(0))
				logger.Debug("trimmed process working set")
			}
		}
	}()
}
