package admission

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore is a WindowStore test double whose availability can be
// toggled. When failing, every call reports ErrStoreUnavailable.
type flakyStore struct {
	inner   *LocalStore
	failing atomic.Bool
	calls   atomic.Int64
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: NewLocalStore(time.Minute)}
}

func (s *flakyStore) Incr(ctx context.Context, key string, window time.Duration) (Usage, error) {
	s.calls.Add(1)
	if s.failing.Load() {
		return Usage{}, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	return s.inner.Incr(ctx, key, window)
}

func (s *flakyStore) ActiveKeys(ctx context.Context) (int, error) {
	if s.failing.Load() {
		return 0, fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	return s.inner.ActiveKeys(ctx)
}

func (s *flakyStore) Healthy(ctx context.Context) error {
	if s.failing.Load() {
		return fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
	}
	return nil
}

func (s *flakyStore) Close() error {
	return s.inner.Close()
}

func newTestEngine(shared WindowStore) *Engine {
	table := NewTable(3, time.Minute, map[string]int{"/api/v1/trade": 5}, nil)
	name := ""
	if shared != nil {
		name = "redis"
	}
	return NewEngine(table, shared, name, NewLocalStore(time.Minute), 100*time.Millisecond)
}

func TestEngine_Decide_AllowsUnderLimit(t *testing.T) {
	engine := newTestEngine(nil)
	defer engine.Close()

	ctx := context.Background()
	key := Key{Client: "1.2.3.4", Route: "/api/v1/portfolio"}
	policy := Policy{Limit: 3, Window: time.Minute}

	for i := int64(1); i <= 3; i++ {
		d, err := engine.Decide(ctx, key, policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be within budget", i)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 3, d.Limit)
	}
}

func TestEngine_Decide_DeniesOverLimit(t *testing.T) {
	engine := newTestEngine(nil)
	defer engine.Close()

	ctx := context.Background()
	key := Key{Client: "1.2.3.4", Route: "/api/v1/portfolio"}
	policy := Policy{Limit: 2, Window: time.Minute}

	engine.Decide(ctx, key, policy)
	engine.Decide(ctx, key, policy)

	d, err := engine.Decide(ctx, key, policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(3), d.Count)
	assert.False(t, d.ResetAt.IsZero())
}

func TestEngine_Decide_FallsBackWhenSharedUnavailable(t *testing.T) {
	shared := newFlakyStore()
	shared.failing.Store(true)

	engine := newTestEngine(shared)
	defer engine.Close()

	ctx := context.Background()
	key := Key{Client: "1.2.3.4", Route: "/api/v1/portfolio"}
	policy := Policy{Limit: 3, Window: time.Minute}

	// The first call hits the shared store, fails, and lands on local.
	d, err := engine.Decide(ctx, key, policy)
	require.NoError(t, err, "store failure must not surface to the caller")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
	assert.Equal(t, "local", engine.Backend())

	// Subsequent calls keep counting on local without retrying Incr on
	// the shared store (only the health probe touches it).
	d, err = engine.Decide(ctx, key, policy)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Count)
	assert.Equal(t, int64(1), shared.calls.Load(), "degraded engine must not issue shared increments")
}

func TestEngine_Decide_RecoversWhenSharedReturns(t *testing.T) {
	shared := newFlakyStore()
	shared.failing.Store(true)

	engine := newTestEngine(shared)
	defer engine.Close()

	ctx := context.Background()
	key := Key{Client: "1.2.3.4", Route: "/api/v1/portfolio"}
	policy := Policy{Limit: 10, Window: time.Minute}

	engine.Decide(ctx, key, policy)
	require.Equal(t, "local", engine.Backend())

	shared.failing.Store(false)

	// The next call probes, sees the store healthy, and resumes there.
	d, err := engine.Decide(ctx, key, policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count, "shared store starts a fresh bucket")
	assert.Equal(t, "redis", engine.Backend())
}

func TestEngine_Decide_TimeoutTreatedAsUnavailable(t *testing.T) {
	slow := &slowStore{delay: time.Second}
	table := NewTable(3, time.Minute, nil, nil)
	engine := NewEngine(table, slow, "redis", NewLocalStore(time.Minute), 10*time.Millisecond)
	defer engine.Close()

	d, err := engine.Decide(context.Background(), Key{Client: "c", Route: "/r"}, Policy{Limit: 3, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "local", engine.Backend())
}

// slowStore blocks until the context expires.
type slowStore struct {
	delay time.Duration
}

func (s *slowStore) Incr(ctx context.Context, key string, window time.Duration) (Usage, error) {
	select {
	case <-time.After(s.delay):
		return Usage{Count: 1, ResetAt: time.Now().Add(window)}, nil
	case <-ctx.Done():
		return Usage{}, ctx.Err()
	}
}

func (s *slowStore) ActiveKeys(ctx context.Context) (int, error) { return 0, nil }

func (s *slowStore) Healthy(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowStore) Close() error { return nil }

func TestEngine_Backend(t *testing.T) {
	localOnly := newTestEngine(nil)
	defer localOnly.Close()
	assert.Equal(t, "local", localOnly.Backend())

	shared := newFlakyStore()
	engine := newTestEngine(shared)
	defer engine.Close()
	assert.Equal(t, "redis", engine.Backend())
}

func TestEngine_Healthy(t *testing.T) {
	shared := newFlakyStore()
	engine := newTestEngine(shared)
	defer engine.Close()

	assert.NoError(t, engine.Healthy(context.Background()))

	shared.failing.Store(true)
	assert.Error(t, engine.Healthy(context.Background()))
}

func TestEngine_Stats(t *testing.T) {
	shared := newFlakyStore()
	engine := newTestEngine(shared)
	defer engine.Close()

	ctx := context.Background()
	policy := Policy{Limit: 3, Window: time.Minute}
	engine.Decide(ctx, Key{Client: "a", Route: "/x"}, policy)
	engine.Decide(ctx, Key{Client: "b", Route: "/x"}, policy)

	stats := engine.Stats(ctx)
	assert.Equal(t, "redis", stats.Backend)
	assert.Equal(t, 2, stats.ActiveKeys)
	assert.Equal(t, 3, stats.DefaultLimit)
	assert.Equal(t, time.Minute, stats.Window)
	assert.Equal(t, map[string]int{"/api/v1/trade": 5}, stats.Routes)
}

func TestEngine_Stats_ReportsLocalOnSharedFailure(t *testing.T) {
	shared := newFlakyStore()
	engine := newTestEngine(shared)
	defer engine.Close()

	shared.failing.Store(true)

	stats := engine.Stats(context.Background())
	assert.Equal(t, "local", stats.Backend)
	assert.Equal(t, 0, stats.ActiveKeys)

	// The snapshot is a pure read: it must not flip the engine into the
	// degraded state.
	assert.Equal(t, "redis", engine.Backend())

	shared.failing.Store(false)
	d, err := engine.Decide(context.Background(), Key{Client: "c", Route: "/r"}, Policy{Limit: 3, Window: time.Minute})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "redis", engine.Backend(), "a later decision still goes to the shared store")
	assert.Equal(t, int64(1), shared.calls.Load())
}
