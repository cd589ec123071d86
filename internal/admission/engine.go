package admission

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Decision is the outcome of one admission check. The gate derives the
// response headers and the deny body from it.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int
	ResetAt time.Time
}

// Stats is a read-only snapshot of the engine for operational dashboards.
type Stats struct {
	Backend      string
	ActiveKeys   int
	DefaultLimit int
	Window       time.Duration
	Routes       map[string]int
}

// Engine decides whether a request is admitted. It prefers the shared
// store when one is configured and healthy; any shared-store failure
// degrades every subsequent call for this process to the local store
// until a health probe on a later call succeeds. The degraded flag is
// process-wide, not per-request.
type Engine struct {
	table      *Table
	shared     WindowStore // nil when no shared backend is configured
	sharedName string      // "redis" or "sql"
	local      WindowStore
	timeout    time.Duration

	degraded atomic.Bool
}

// NewEngine creates an admission engine. shared may be nil, in which
// case the local store is used exclusively and no fallback logic runs.
// timeout bounds every shared-store call.
func NewEngine(table *Table, shared WindowStore, sharedName string, local WindowStore, timeout time.Duration) *Engine {
	return &Engine{
		table:      table,
		shared:     shared,
		sharedName: sharedName,
		local:      local,
		timeout:    timeout,
	}
}

// Decide increments the bucket for key under the given policy and
// returns the verdict. Store unavailability is absorbed by falling back
// to the local store; a returned error is a genuine internal fault and
// the caller is expected to fail open on it.
func (e *Engine) Decide(ctx context.Context, key Key, policy Policy) (Decision, error) {
	usage, err := e.incr(ctx, key.String(), policy.Window)
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed: usage.Count <= int64(policy.Limit),
		Count:   usage.Count,
		Limit:   policy.Limit,
		ResetAt: usage.ResetAt,
	}, nil
}

// incr routes the increment to the active store. Store calls run on a
// context detached from the request's cancellation: once issued, an
// increment always completes, so an aborted caller cannot leave the
// counter half-updated.
func (e *Engine) incr(ctx context.Context, key string, window time.Duration) (Usage, error) {
	ctx = context.WithoutCancel(ctx)

	if e.shared == nil {
		return e.local.Incr(ctx, key, window)
	}

	if e.degraded.Load() {
		// Probe eagerly on this call; stay on the local store until the
		// shared backend answers again.
		if !e.probeShared(ctx) {
			return e.local.Incr(ctx, key, window)
		}
	}

	sctx, cancel := context.WithTimeout(ctx, e.timeout)
	usage, err := e.shared.Incr(sctx, key, window)
	cancel()
	if err == nil {
		return usage, nil
	}

	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		e.markDegraded(err)
		return e.local.Incr(ctx, key, window)
	}

	return Usage{}, err
}

func (e *Engine) probeShared(ctx context.Context) bool {
	hctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.shared.Healthy(hctx); err != nil {
		return false
	}

	if e.degraded.CompareAndSwap(true, false) {
		slog.Info("shared window store recovered", "backend", e.sharedName)
	}
	return true
}

func (e *Engine) markDegraded(err error) {
	if e.degraded.CompareAndSwap(false, true) {
		slog.Warn("shared window store unavailable, falling back to local store",
			"backend", e.sharedName,
			"error", err,
		)
	}
}

// Backend names the store currently serving decisions.
func (e *Engine) Backend() string {
	if e.shared == nil || e.degraded.Load() {
		return "local"
	}
	return e.sharedName
}

// Healthy probes the preferred store; used by the readiness endpoint.
func (e *Engine) Healthy(ctx context.Context) error {
	if e.shared == nil {
		return e.local.Healthy(ctx)
	}

	hctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.shared.Healthy(hctx)
}

// Stats returns the operational snapshot. The snapshot is read-only: an
// unreachable shared store makes this response report the local store,
// but the degraded flag is left for the next Decide to set.
func (e *Engine) Stats(ctx context.Context) Stats {
	stats := Stats{
		Backend:      e.Backend(),
		DefaultLimit: e.table.Default().Limit,
		Window:       e.table.Default().Window,
		Routes:       e.table.Routes(),
	}

	store := e.local
	if stats.Backend != "local" {
		store = e.shared
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	keys, err := store.ActiveKeys(sctx)
	if err != nil {
		stats.Backend = "local"
		keys, _ = e.local.ActiveKeys(sctx)
	}
	stats.ActiveKeys = keys

	return stats
}

// Close closes both stores.
func (e *Engine) Close() error {
	var errs []error
	if e.shared != nil {
		if err := e.shared.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.local.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
