package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a string-keyed TTL store for advisory snapshots. Every
// implementation is allowed to be stale up to the TTL of an entry;
// correctness never depends on it. Callers that must not fail on cache
// trouble should wrap the backend with BestEffort.
type Cache interface {
	// Get returns the value and true when the key is present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Has reports presence without returning the value.
	Has(ctx context.Context, key string) (bool, error)
	// Put stores the value under key for ttl.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Forget removes a single key.
	Forget(ctx context.Context, key string) error
	// ForgetMany removes a batch of keys.
	ForgetMany(ctx context.Context, keys []string) error

	Close() error
}

// AvailableStockKey is the cache key for a product's available-stock snapshot.
func AvailableStockKey(productID int64) string {
	return fmt.Sprintf("product_%d_available_stock", productID)
}

// AvailableStockKeys maps a set of product ids to their snapshot keys, for
// batch invalidation after a sweep.
func AvailableStockKeys(productIDs []int64) []string {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, AvailableStockKey(id))
	}
	return keys
}

// NopCache ignores writes and always misses. It stands in when caching is
// disabled and in tests that assert the cache is an unobservable optimization.
type NopCache struct{}

func NewNopCache() NopCache { return NopCache{} }

func (NopCache) Get(context.Context, string) (string, bool, error)       { return "", false, nil }
func (NopCache) Has(context.Context, string) (bool, error)               { return false, nil }
func (NopCache) Put(context.Context, string, string, time.Duration) error { return nil }
func (NopCache) Forget(context.Context, string) error                    { return nil }
func (NopCache) ForgetMany(context.Context, []string) error              { return nil }
func (NopCache) Close() error                                            { return nil }
