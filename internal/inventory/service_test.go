package inventory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgecart/server/internal/cache"
	"github.com/surgecart/server/internal/database"
	apperrors "github.com/surgecart/server/internal/errors"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/retry"
)

func newTestService(t *testing.T, c cache.Cache) (*Service, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(store, c, retry.New(retry.DefaultConfig(), m), m, Config{
		HoldTTL:  120 * time.Second,
		StockTTL: 10 * time.Second,
	})
	return svc, store
}

func seedProduct(t *testing.T, store *database.MemoryStore, stock int64) database.Product {
	t.Helper()
	p, err := store.InsertProduct(context.Background(), database.Product{
		Name:  "flash-widget",
		Price: decimal.NewFromFloat(19.99),
		Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func seedHold(t *testing.T, store *database.MemoryStore, h database.Hold) database.Hold {
	t.Helper()
	var out database.Hold
	err := store.WithinTx(context.Background(), func(tx database.Tx) error {
		var err error
		out, err = tx.InsertHold(context.Background(), h)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestCreateHold_ReservesStock(t *testing.T) {
	svc, store := newTestService(t, cache.NewNopCache())
	product := seedProduct(t, store, 10)

	before := time.Now()
	hold, err := svc.CreateHold(context.Background(), product.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, product.ID, hold.ProductID)
	assert.Equal(t, int64(4), hold.Quantity)
	assert.False(t, hold.IsUsed)
	assert.WithinDuration(t, before.Add(120*time.Second), hold.ExpiresAt, 5*time.Second)

	_, available, err := svc.ProductWithAvailability(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), available)
}

func TestCreateHold_InsufficientStock(t *testing.T) {
	svc, store := newTestService(t, cache.NewNopCache())
	product := seedProduct(t, store, 3)

	_, err := svc.CreateHold(context.Background(), product.ID, 4)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInsufficientStock, apperrors.CodeOf(err))
	assert.Equal(t, "Insufficient stock available", apperrors.MessageOf(err))

	// The failed attempt reserved nothing.
	_, available, err := svc.ProductWithAvailability(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), available)
}

func TestCreateHold_ProductNotFound(t *testing.T) {
	svc, _ := newTestService(t, cache.NewNopCache())

	_, err := svc.CreateHold(context.Background(), 999, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProductNotFound, apperrors.CodeOf(err))
}

func TestCreateHold_BoundaryConcurrency(t *testing.T) {
	svc, store := newTestService(t, cache.NewMemoryCache())
	product := seedProduct(t, store, 10)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateHold(context.Background(), product.ID, 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var granted, rejected int
	for err := range results {
		if err == nil {
			granted++
			continue
		}
		require.Equal(t, apperrors.ErrCodeInsufficientStock, apperrors.CodeOf(err))
		rejected++
	}
	assert.Equal(t, 10, granted, "exactly stock-many holds succeed")
	assert.Equal(t, 10, rejected)

	sum, err := store.SumActiveHolds(context.Background(), product.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum, "active quantities never exceed stock")
}

func TestCreateHold_MixedQuantities(t *testing.T) {
	svc, store := newTestService(t, cache.NewNopCache())
	product := seedProduct(t, store, 15)

	var granted, rejected int
	for _, qty := range []int64{5, 5, 5, 5, 1} {
		if _, err := svc.CreateHold(context.Background(), product.ID, qty); err == nil {
			granted++
		} else {
			assert.Equal(t, apperrors.ErrCodeInsufficientStock, apperrors.CodeOf(err))
			rejected++
		}
	}
	assert.Equal(t, 3, granted)
	assert.Equal(t, 2, rejected)

	sum, err := store.SumActiveHolds(context.Background(), product.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum)
}

func TestCreateHold_ExpiredHoldsIgnored(t *testing.T) {
	svc, store := newTestService(t, cache.NewNopCache())
	product := seedProduct(t, store, 10)

	seedHold(t, store, database.Hold{
		ProductID: product.ID,
		Quantity:  5,
		ExpiresAt: time.Now().Add(-10 * time.Minute),
	})

	for i := 0; i < 10; i++ {
		_, err := svc.CreateHold(context.Background(), product.ID, 1)
		require.NoError(t, err, "expired hold must not count against availability")
	}

	sum, err := store.SumActiveHolds(context.Background(), product.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum)
}

func TestReleaseHold(t *testing.T) {
	svc, store := newTestService(t, cache.NewNopCache())
	product := seedProduct(t, store, 10)

	hold := seedHold(t, store, database.Hold{
		ProductID: product.ID,
		Quantity:  5,
		ExpiresAt: time.Now().Add(time.Minute),
		IsUsed:    true,
	})

	require.NoError(t, svc.ReleaseHold(context.Background(), hold.ID))

	got, err := store.GetHold(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.False(t, got.IsUsed)

	err = svc.ReleaseHold(context.Background(), 999)
	assert.Equal(t, apperrors.ErrCodeHoldNotFound, apperrors.CodeOf(err))
}

func TestExpireHolds_Idempotent(t *testing.T) {
	svc, store := newTestService(t, cache.NewMemoryCache())
	a := seedProduct(t, store, 10)
	b := seedProduct(t, store, 10)

	seedHold(t, store, database.Hold{ProductID: a.ID, Quantity: 2, ExpiresAt: time.Now().Add(-time.Minute)})
	seedHold(t, store, database.Hold{ProductID: b.ID, Quantity: 3, ExpiresAt: time.Now().Add(-time.Minute)})
	live := seedHold(t, store, database.Hold{ProductID: a.ID, Quantity: 1, ExpiresAt: time.Now().Add(time.Hour)})

	result, err := svc.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Expired)
	assert.ElementsMatch(t, []int64{a.ID, b.ID}, result.ProductIDs)

	// Second sweep finds nothing left to transition.
	result, err = svc.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Expired)
	assert.Empty(t, result.ProductIDs)

	got, err := store.GetHold(context.Background(), live.ID)
	require.NoError(t, err)
	assert.False(t, got.IsUsed, "unexpired hold untouched by the sweep")
}

func TestProductWithAvailability_ReadThrough(t *testing.T) {
	mem := cache.NewMemoryCache()
	svc, store := newTestService(t, mem)
	product := seedProduct(t, store, 10)

	ctx := context.Background()

	// Miss populates the snapshot.
	_, available, err := svc.ProductWithAvailability(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)

	raw, ok, err := mem.Get(ctx, cache.AvailableStockKey(product.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10", raw)

	// A fresh snapshot is served as-is, even when stale.
	require.NoError(t, mem.Put(ctx, cache.AvailableStockKey(product.ID), "7", 10*time.Second))
	_, available, err = svc.ProductWithAvailability(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), available)
}

func TestProductWithAvailability_HoldInvalidatesSnapshot(t *testing.T) {
	mem := cache.NewMemoryCache()
	svc, store := newTestService(t, mem)
	product := seedProduct(t, store, 10)

	ctx := context.Background()

	_, _, err := svc.ProductWithAvailability(ctx, product.ID)
	require.NoError(t, err)

	_, err = svc.CreateHold(ctx, product.ID, 4)
	require.NoError(t, err)

	_, ok, err := mem.Get(ctx, cache.AvailableStockKey(product.ID))
	require.NoError(t, err)
	assert.False(t, ok, "hold creation drops the snapshot")

	_, available, err := svc.ProductWithAvailability(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), available)
}

func TestProductWithAvailability_UnparseableSnapshot(t *testing.T) {
	mem := cache.NewMemoryCache()
	svc, store := newTestService(t, mem)
	product := seedProduct(t, store, 10)

	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, cache.AvailableStockKey(product.ID), "garbage", 10*time.Second))

	_, available, err := svc.ProductWithAvailability(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)

	raw, ok, err := mem.Get(ctx, cache.AvailableStockKey(product.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(10, 10), raw, "bad snapshot replaced with the recomputed value")
}

func TestProductWithAvailability_NotFound(t *testing.T) {
	svc, _ := newTestService(t, cache.NewNopCache())

	_, _, err := svc.ProductWithAvailability(context.Background(), 42)
	assert.Equal(t, apperrors.ErrCodeProductNotFound, apperrors.CodeOf(err))
}
