package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BestEffort decorates a Cache so that backend failures never reach the
// caller: errors are logged, reads degrade to misses, and writes are
// silently dropped. A circuit breaker keeps a failing backend from being
// hammered on every request; while the breaker is open, all operations
// short-circuit to the miss path.
type BestEffort struct {
	inner   Cache
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewBestEffort wraps inner with failure swallowing and a circuit breaker.
func NewBestEffort(inner Cache, logger zerolog.Logger) *BestEffort {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache.breaker_state_changed")
		},
	})

	return &BestEffort{inner: inner, breaker: breaker, logger: logger}
}

func (b *BestEffort) Get(ctx context.Context, key string) (string, bool, error) {
	type result struct {
		value string
		ok    bool
	}
	res, err := b.breaker.Execute(func() (any, error) {
		value, ok, err := b.inner.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return result{value: value, ok: ok}, nil
	})
	if err != nil {
		b.logFailure("get", key, err)
		return "", false, nil
	}
	r := res.(result)
	return r.value, r.ok, nil
}

func (b *BestEffort) Has(ctx context.Context, key string) (bool, error) {
	_, ok, _ := b.Get(ctx, key)
	return ok, nil
}

func (b *BestEffort) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.Put(ctx, key, value, ttl)
	})
	if err != nil {
		b.logFailure("put", key, err)
	}
	return nil
}

func (b *BestEffort) Forget(ctx context.Context, key string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.Forget(ctx, key)
	})
	if err != nil {
		b.logFailure("forget", key, err)
	}
	return nil
}

func (b *BestEffort) ForgetMany(ctx context.Context, keys []string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.ForgetMany(ctx, keys)
	})
	if err != nil {
		b.logFailure("forget_many", "", err)
	}
	return nil
}

func (b *BestEffort) Close() error {
	return b.inner.Close()
}

func (b *BestEffort) logFailure(op, key string, err error) {
	event := b.logger.Warn().Str("op", op).Err(err)
	if key != "" {
		event = event.Str("key", key)
	}
	event.Msg("cache.operation_failed")
}
