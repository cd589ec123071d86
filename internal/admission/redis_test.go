package admission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/models"
)

// newRedisStoreForTest connects to the Redis instance named by
// TEST_REDIS_ADDR, skipping the test when none is configured.
func newRedisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis store tests")
	}

	store, err := NewRedisStore(models.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// testBucket returns a unique bucket key so parallel test runs against a
// shared Redis do not interfere.
func testBucket(route string) string {
	return Key{Client: uuid.NewString(), Route: route}.String()
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(models.RedisConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address is required")
}

func TestNewRedisStore_UnreachableServer(t *testing.T) {
	_, err := NewRedisStore(models.RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedisStore_Incr_CountsUp(t *testing.T) {
	store := newRedisStoreForTest(t)
	ctx := context.Background()

	key := testBucket("/api/v1/analyze")
	for i := int64(1); i <= 5; i++ {
		usage, err := store.Incr(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, usage.Count)
	}
}

func TestRedisStore_Incr_WindowDoesNotSlide(t *testing.T) {
	store := newRedisStoreForTest(t)
	ctx := context.Background()

	key := testBucket("/api/v1/trade")

	first, err := store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	second, err := store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)

	// EXPIRE NX leaves the original TTL in place, so the second reset
	// estimate must not land later than the first.
	assert.False(t, second.ResetAt.After(first.ResetAt.Add(50*time.Millisecond)),
		"window expiry must not be pushed out by later increments")
}

func TestRedisStore_Incr_WindowExpiry(t *testing.T) {
	store := newRedisStoreForTest(t)
	ctx := context.Background()

	key := testBucket("/api/v1/backtest")

	usage, err := store.Incr(ctx, key, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), usage.Count)

	time.Sleep(150 * time.Millisecond)

	usage, err = store.Incr(ctx, key, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Count, "expired key restarts at 1")
}

func TestRedisStore_ActiveKeys(t *testing.T) {
	store := newRedisStoreForTest(t)
	ctx := context.Background()

	before, err := store.ActiveKeys(ctx)
	require.NoError(t, err)

	_, err = store.Incr(ctx, testBucket("/a"), time.Minute)
	require.NoError(t, err)
	_, err = store.Incr(ctx, testBucket("/b"), time.Minute)
	require.NoError(t, err)

	after, err := store.ActiveKeys(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after, before+2)
}

func TestRedisStore_Healthy(t *testing.T) {
	store := newRedisStoreForTest(t)
	assert.NoError(t, store.Healthy(context.Background()))
}

func TestRedisStore_ErrorsWrapStoreUnavailable(t *testing.T) {
	store := newRedisStoreForTest(t)
	store.Close()

	_, err := store.Incr(context.Background(), testBucket("/x"), time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable),
		fmt.Sprintf("expected ErrStoreUnavailable, got %v", err))
}
