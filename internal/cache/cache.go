// Package cache owns cached payloads derived from the document tree: reading
// them, deciding whether they are still fresh and rebuilding them when not.
package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Fresh reports whether a payload stamped at builtAt (epoch seconds) is still
// valid given the newest document mtime. An empty tree has a zero mtime.
func Fresh(builtAt int64, maxMod time.Time) bool {
	var newest int64
	if !maxMod.IsZero() {
		newest = maxMod.Unix()
	}
	return builtAt >= newest
}

// Backend persists a single payload. Read returns nil, nil on a miss; a
// corrupt payload is also a miss.
type Backend[T any] interface {
	Read() (*T, error)
	Write(v *T) error
}

// Service reads, validates and rebuilds a payload of type T.
type Service[T any] struct {
	name    string
	backend Backend[T]
	oracle  func() (time.Time, error)
	stamp   func(*T) int64
	build   func() (*T, error)
	valid   func(*T) bool
	lock    *Lock
	logger  *slog.Logger

	mu sync.Mutex
}

// Spec configures a Service.
type Spec[T any] struct {
	// Name labels log lines.
	Name    string
	Backend Backend[T]
	// Oracle reports the newest document mtime.
	Oracle func() (time.Time, error)
	// Stamp extracts the build timestamp from a payload.
	Stamp func(*T) int64
	// Build produces a new payload from the document tree.
	Build func() (*T, error)
	// Valid optionally rejects a cached payload that is fresh by timestamp
	// but no longer matches the tree.
	Valid func(*T) bool
	// Lock serializes rebuilds across processes. Optional.
	Lock   *Lock
	Logger *slog.Logger
}

// New creates a Service.
func New[T any](s Spec[T]) *Service[T] {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service[T]{
		name:    s.Name,
		backend: s.Backend,
		oracle:  s.Oracle,
		stamp:   s.Stamp,
		build:   s.Build,
		valid:   s.Valid,
		lock:    s.Lock,
		logger:  logger,
	}
}

// Get returns the cached payload when it is fresh and valid, otherwise it
// rebuilds and stores a new one.
func (s *Service[T]) Get() (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cached(); ok {
		return v, nil
	}
	return s.rebuildLocked()
}

// Rebuild unconditionally replaces the payload.
func (s *Service[T]) Rebuild() (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked()
}

func (s *Service[T]) cached() (*T, bool) {
	v, err := s.backend.Read()
	if err != nil {
		s.logger.Debug("cache read failed", slog.String("cache", s.name), slog.String("error", err.Error()))
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	maxMod, err := s.oracle()
	if err != nil {
		s.logger.Debug("cache oracle failed", slog.String("cache", s.name), slog.String("error", err.Error()))
		return nil, false
	}
	if !Fresh(s.stamp(v), maxMod) {
		s.logger.Debug("cache stale", slog.String("cache", s.name))
		return nil, false
	}
	if s.valid != nil && !s.valid(v) {
		s.logger.Info("cache references missing documents", slog.String("cache", s.name))
		return nil, false
	}
	return v, true
}

func (s *Service[T]) rebuildLocked() (*T, error) {
	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			return nil, fmt.Errorf("cache: %s: %w", s.name, err)
		}
		defer s.lock.Unlock() //nolint:errcheck // released on close as well

		// Another process may have finished a rebuild while we waited.
		if v, ok := s.cached(); ok {
			return v, nil
		}
	}

	start := time.Now()
	v, err := s.build()
	if err != nil {
		return nil, fmt.Errorf("cache: %s: build: %w", s.name, err)
	}
	if err := s.backend.Write(v); err != nil {
		s.logger.Warn("cache write failed", slog.String("cache", s.name), slog.String("error", err.Error()))
	}
	s.logger.Info("cache rebuilt", slog.String("cache", s.name), slog.Duration("duration", time.Since(start)))
	return v, nil
}
