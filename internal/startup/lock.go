// Package startup holds the steps reelarr runs before its first sync pass.
package startup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another reelarr instance is already running")

// InstanceLock keeps two processes from syncing into the same catalog.
type InstanceLock struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// AcquireLock takes the lock at path without blocking.
func AcquireLock(path string, logger *slog.Logger) (*InstanceLock, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating lock directory: %w", err)
		}
	}

	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}

	logger.Debug("instance lock acquired", slog.String("lock", path))
	return &InstanceLock{path: path, lock: l, logger: logger}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string { return l.path }

// Release unlocks. It is safe to call more than once.
func (l *InstanceLock) Release() {
	if l == nil || !l.lock.Locked() {
		return
	}
	if err := l.lock.Unlock(); err != nil {
		l.logger.Warn("failed to release instance lock", slog.String("lock", l.path), slog.String("error", err.Error()))
		return
	}
	l.logger.Debug("instance lock released", slog.String("lock", l.path))
}
