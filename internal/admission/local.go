package admission

import (
	"context"
	"sync"
	"time"
)

// windowEntry is one live counting window. resetAt is set when the entry
// is created and never changes; only count moves.
type windowEntry struct {
	count   int64
	resetAt time.Time
}

// LocalStore is an in-process WindowStore guarded by a single mutex. It
// is the fallback when no shared backend is configured or the shared
// backend is unreachable. Limits enforced through it are per-process
// only; it is not coordinated across instances.
//
// Expired entries are replaced lazily on access and removed by a
// background sweep so the map stays bounded.
type LocalStore struct {
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry
	done    chan struct{}
	closed  bool
}

// NewLocalStore creates a local window store and starts its background
// sweep goroutine.
func NewLocalStore(sweepInterval time.Duration) *LocalStore {
	s := &LocalStore{
		sweepInterval: sweepInterval,
		entries:       make(map[string]*windowEntry),
		done:          make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Incr implements WindowStore. It never returns an error.
func (s *LocalStore) Incr(_ context.Context, key string, window time.Duration) (Usage, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.resetAt.After(now) {
		e = &windowEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
	} else {
		e.count++
	}

	return Usage{Count: e.count, ResetAt: e.resetAt}, nil
}

// ActiveKeys counts buckets with a live window, dropping expired ones
// on the way.
func (s *LocalStore) ActiveKeys(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if !e.resetAt.After(now) {
			delete(s.entries, key)
		}
	}

	return len(s.entries), nil
}

// Healthy always succeeds; there is no external service to probe.
func (s *LocalStore) Healthy(_ context.Context) error {
	return nil
}

// Close stops the background sweep goroutine. Safe to call twice.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// sweep periodically evicts entries whose window has passed.
func (s *LocalStore) sweep() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *LocalStore) evictExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if !e.resetAt.After(now) {
			delete(s.entries, key)
		}
	}
}
