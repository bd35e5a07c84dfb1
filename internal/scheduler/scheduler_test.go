package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgecart/server/internal/cache"
	"github.com/surgecart/server/internal/database"
	"github.com/surgecart/server/internal/inventory"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/retry"
)

func newTestSweeper(t *testing.T, interval time.Duration) (*Sweeper, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	inv := inventory.NewService(store, cache.NewNopCache(), retry.New(retry.DefaultConfig(), m), m, inventory.Config{})
	return NewSweeper(inv, interval, zerolog.Nop()), store
}

func TestSweeper_ExpiresDueHolds(t *testing.T) {
	sweeper, store := newTestSweeper(t, 10*time.Millisecond)
	ctx := context.Background()

	product, err := store.InsertProduct(ctx, database.Product{
		Name:  "flash-widget",
		Price: decimal.NewFromInt(10),
		Stock: 10,
	})
	require.NoError(t, err)

	var hold database.Hold
	err = store.WithinTx(ctx, func(tx database.Tx) error {
		hold, err = tx.InsertHold(ctx, database.Hold{
			ProductID: product.ID,
			Quantity:  3,
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		return err
	})
	require.NoError(t, err)

	sweeper.Start(ctx)
	defer sweeper.Close()

	require.Eventually(t, func() bool {
		got, err := store.GetHold(ctx, hold.ID)
		return err == nil && got.IsUsed
	}, time.Second, 5*time.Millisecond, "sweep retires the due hold")
}

func TestSweeper_CloseStopsLoop(t *testing.T) {
	sweeper, _ := newTestSweeper(t, 10*time.Millisecond)

	sweeper.Start(context.Background())
	require.NoError(t, sweeper.Close())
	require.NoError(t, sweeper.Close(), "close is idempotent")
}

func TestSweeper_CloseWithoutStart(t *testing.T) {
	sweeper, _ := newTestSweeper(t, time.Minute)
	assert.NoError(t, sweeper.Close())
}
