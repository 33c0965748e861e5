package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an optional per-key advisory lock. Held across
// decide/run/persist it serializes concurrent invocations of one key so
// the command executes once. The default mode never takes it: lock-free
// last-writer-wins is the documented baseline behavior.
type Lock struct {
	fl *flock.Flock
}

// NewLock creates (but does not acquire) the lock for key under root.
func NewLock(root, key string) (*Lock, error) {
	dir := filepath.Join(root, "locks")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	return &Lock{fl: flock.New(filepath.Join(dir, key+".lock"))}, nil
}

// Acquire blocks until the lock is held.
func (l *Lock) Acquire() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}

	return nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
