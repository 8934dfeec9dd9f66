package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Lock is an exclusive lock on a cache directory, shared by every process
// that rebuilds caches there.
type Lock struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewLock returns a lock backed by the ".lock" file in dir.
func NewLock(dir string) *Lock {
	return &Lock{path: filepath.Join(dir, ".lock")}
}

// Lock blocks until the lock is held.
func (l *Lock) Lock() error {
	l.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("lock: mkdir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("lock: open: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		l.mu.Unlock()
		return fmt.Errorf("lock: %w", err)
	}
	l.f = f
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	defer l.mu.Unlock()
	f := l.f
	l.f = nil
	if f == nil {
		return nil
	}
	err := unlockFile(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
