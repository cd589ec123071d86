// Package admission implements the rate-limiting gate that fronts the
// trading-analysis API. It counts requests per (client, route) bucket in
// fixed, non-overlapping windows and denies requests over budget before
// they reach expensive downstream operations.
//
// The counter lives in a WindowStore. A shared backend (Redis or SQL)
// coordinates limits across process instances; a local in-memory store
// takes over transparently whenever the shared backend is unreachable.
// Infrastructure failures never surface to callers: the gate degrades to
// coarser, per-process limiting instead of refusing traffic.
//
// This is a fixed-window counter, not a sliding window. A burst straddling
// a window boundary can admit up to twice the configured limit (at most
// the full budget at the tail of one window and again at the head of the
// next). That bound is part of the documented behavior.
package admission

import (
	"context"
	"errors"
	"time"
)

// keyPrefix namespaces admission buckets in shared stores so that stats
// and sweeps can enumerate them without touching unrelated keys.
const keyPrefix = "rate_limit:"

// ErrStoreUnavailable marks a shared store that could not be reached or
// timed out. The engine recovers from it by retrying against the local
// store; it never propagates past the gate.
var ErrStoreUnavailable = errors.New("window store unavailable")

// Key identifies one counting bucket: client identity plus route. Two
// requests with the same key in the same window share a counter.
type Key struct {
	Client string
	Route  string
}

func (k Key) String() string {
	return keyPrefix + k.Client + ":" + k.Route
}

// Usage is the state of one bucket after an increment. ResetAt is fixed
// when the window is created and does not move on subsequent increments.
type Usage struct {
	Count   int64
	ResetAt time.Time
}

// WindowStore is the counting capability behind the admission engine.
// Implementations must be safe for concurrent use from many request
// handlers, across process instances for the shared backends.
type WindowStore interface {
	// Incr atomically increments the bucket for key, creating a fresh
	// window of the given length when none is live, and returns the
	// post-increment state. The increment and the expiry must be one
	// atomic unit; a get-then-set sequence would lose counts under
	// concurrent callers.
	Incr(ctx context.Context, key string, window time.Duration) (Usage, error)

	// ActiveKeys reports the number of buckets with a live window.
	ActiveKeys(ctx context.Context) (int, error)

	// Healthy probes the backing service. Purely in-memory stores
	// always report healthy.
	Healthy(ctx context.Context) error

	// Close releases resources and stops background goroutines.
	Close() error
}
