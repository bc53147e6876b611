// Package lock enforces that only one instance of the daemon runs
// against a given state directory at a time, via an exclusive,
// non-blocking lock on a file on disk.
package lock

import (
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
)

// FileLock wraps an exclusive, non-blocking file lock. Unlike a
// distributed lock backed by an external store, acquisition here never
// waits or retries: a second instance of the daemon must fail fast and
// exit, not queue up behind the first.
type FileLock struct {
	path     string
	fl       *flock.Flock
	logger   *slog.Logger
	acquired bool
}

// New returns a FileLock bound to path. The lock file itself is not
// created or touched until Acquire is called.
func New(path string, logger *slog.Logger) *FileLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLock{
		path:   path,
		fl:     flock.New(path),
		logger: logger,
	}
}

// Acquire attempts to take the lock without blocking. ok is false if
// another process already holds it; err is non-nil only on an
// unexpected I/O failure.
func (l *FileLock) Acquire() (ok bool, err error) {
	l.logger.Debug("attempting to acquire exclusive lock", "path", l.path)

	locked, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.path, err)
	}
	if !locked {
		l.logger.Debug("lock already held by another process", "path", l.path)
		return false, nil
	}

	l.acquired = true
	l.logger.Info("exclusive lock acquired", "path", l.path)
	return true, nil
}

// Release drops the lock. Safe to call even if Acquire was never
// called or did not succeed.
func (l *FileLock) Release() error {
	if !l.acquired {
		return nil
	}

	l.logger.Debug("releasing lock", "path", l.path)
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	l.acquired = false
	l.logger.Info("lock released", "path", l.path)
	return nil
}

// IsAcquired reports whether this FileLock currently holds the lock.
func (l *FileLock) IsAcquired() bool {
	return l.acquired
}

// Path returns the underlying lock file path.
func (l *FileLock) Path() string {
	return l.path
}
