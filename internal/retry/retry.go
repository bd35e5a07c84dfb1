package retry

import (
	"context"
	"time"

	"github.com/surgecart/server/internal/database"
	apperrors "github.com/surgecart/server/internal/errors"
	"github.com/surgecart/server/internal/logger"
	"github.com/surgecart/server/internal/metrics"
)

// ContentionMessage is the client-facing message when the retry budget for a
// contended transaction is exhausted.
const ContentionMessage = "service temporarily unavailable due to database contention"

// Config defines the retry policy for contended transactions.
type Config struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // backoff doubles from this per retry
}

// DefaultConfig matches the production policy: three attempts with backoff
// of 10ms then 20ms between them.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
	}
}

// Retrier re-runs closures that fail with a database contention error.
// Non-contention errors propagate immediately without retry.
type Retrier struct {
	cfg     Config
	metrics *metrics.Metrics
}

// New creates a Retrier. A nil metrics collector disables counting.
func New(cfg Config, m *metrics.Metrics) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 10 * time.Millisecond
	}
	return &Retrier{cfg: cfg, metrics: m}
}

// OnContention runs fn, re-running it with exponential backoff while it
// fails with a contention error. After the final attempt still contends, the
// error is surfaced as a database_contention domain error. The backoff sleep
// honors context cancellation.
func (r *Retrier) OnContention(ctx context.Context, op string, fn func() error) error {
	log := logger.FromContext(ctx)

	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !database.IsContention(err) {
			return err
		}

		if attempt == r.cfg.MaxAttempts {
			break
		}

		if r.metrics != nil {
			r.metrics.ObserveDeadlockRetry()
		}

		// 10ms, 20ms, 40ms, ...
		delay := r.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
		log.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Int("max_attempts", r.cfg.MaxAttempts).
			Dur("retry_delay", delay).
			Msg("tx.contention_retry")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	log.Error().
		Err(err).
		Str("operation", op).
		Int("attempts", r.cfg.MaxAttempts).
		Msg("tx.contention_retries_exhausted")

	return apperrors.Wrap(apperrors.ErrCodeDatabaseContention, ContentionMessage, err)
}
