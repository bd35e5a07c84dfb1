package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableStockKey(t *testing.T) {
	assert.Equal(t, "product_42_available_stock", AvailableStockKey(42))
	assert.Equal(t,
		[]string{"product_1_available_stock", "product_9_available_stock"},
		AvailableStockKeys([]int64{1, 9}))
}

func TestMemoryCache_PutGetForget(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))

	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	has, err := c.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, c.Forget(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Put(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after TTL")
}

func TestMemoryCache_ForgetMany(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Put(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Put(ctx, "b", "2", time.Minute))
	require.NoError(t, c.Put(ctx, "c", "3", time.Minute))

	require.NoError(t, c.ForgetMany(ctx, []string{"a", "b"}))

	_, okA, _ := c.Get(ctx, "a")
	_, okB, _ := c.Get(ctx, "b")
	_, okC, _ := c.Get(ctx, "c")
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

// failingCache always errors, standing in for a broken backend.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("backend down")
}
func (failingCache) Has(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}
func (failingCache) Put(context.Context, string, string, time.Duration) error {
	return errors.New("backend down")
}
func (failingCache) Forget(context.Context, string) error {
	return errors.New("backend down")
}
func (failingCache) ForgetMany(context.Context, []string) error {
	return errors.New("backend down")
}
func (failingCache) Close() error { return nil }

func TestBestEffort_SwallowsFailures(t *testing.T) {
	ctx := context.Background()
	c := NewBestEffort(failingCache{}, zerolog.Nop())

	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err, "cache failure must never surface")
	assert.False(t, ok)

	assert.NoError(t, c.Put(ctx, "k", "v", time.Minute))
	assert.NoError(t, c.Forget(ctx, "k"))
	assert.NoError(t, c.ForgetMany(ctx, []string{"a", "b"}))
}

func TestBestEffort_BreakerOpensOnRepeatedFailure(t *testing.T) {
	ctx := context.Background()
	c := NewBestEffort(failingCache{}, zerolog.Nop())

	// Five consecutive failures trip the breaker; the call after that
	// short-circuits but still behaves like a miss.
	for i := 0; i < 6; i++ {
		_, ok, err := c.Get(ctx, "k")
		assert.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestBestEffort_PassThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryCache()
	defer inner.Close()
	c := NewBestEffort(inner, zerolog.Nop())

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))
	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	c := NewNopCache()

	require.NoError(t, c.Put(ctx, "k", "v", time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "nop cache never stores")
}
