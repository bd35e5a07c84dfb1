package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/surgecart/server/internal/inventory"
)

// Sweeper runs the hold expiry sweep on a fixed interval. A TryLock around
// each run guarantees at most one sweep is active; a tick arriving while a
// run is still in flight is skipped rather than queued.
type Sweeper struct {
	inventory *inventory.Service
	interval  time.Duration
	logger    zerolog.Logger

	running sync.Mutex
	done    chan struct{}
	stop    sync.Once
	cancel  context.CancelFunc
}

// NewSweeper creates a sweeper that fires every interval.
func NewSweeper(inv *inventory.Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		inventory: inv,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately; the loop runs until
// Close or the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().
			Dur("interval", s.interval).
			Msg("sweeper.started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweeper.stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// runOnce performs a single sweep unless one is already in flight.
func (s *Sweeper) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("sweeper.run_skipped_overlap")
		return
	}
	defer s.running.Unlock()

	runID := uuid.NewString()
	start := time.Now()

	result, err := s.inventory.ExpireHolds(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("run_id", runID).
			Msg("sweeper.run_failed")
		return
	}

	if result.Expired == 0 {
		s.logger.Debug().
			Str("run_id", runID).
			Dur("took", time.Since(start)).
			Msg("sweeper.run_empty")
		return
	}

	s.logger.Info().
		Str("run_id", runID).
		Int64("expired", result.Expired).
		Ints64("product_ids", result.ProductIDs).
		Dur("took", time.Since(start)).
		Msg("sweeper.run_completed")
}

// Close stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Close() error {
	s.stop.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
	return nil
}
