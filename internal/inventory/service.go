package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/surgecart/server/internal/cache"
	"github.com/surgecart/server/internal/database"
	apperrors "github.com/surgecart/server/internal/errors"
	"github.com/surgecart/server/internal/logger"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/retry"
)

// Service owns the hold lifecycle: creation with availability validation,
// release after payment failure, and the expiry sweep. All writes run inside
// retryable transactions; cache invalidation happens only after commit.
type Service struct {
	store   database.Store
	cache   cache.Cache
	retrier *retry.Retrier
	metrics *metrics.Metrics

	holdTTL  time.Duration
	stockTTL time.Duration
}

// Config holds the service's tunables.
type Config struct {
	HoldTTL  time.Duration // how long a hold reserves stock (default 120s)
	StockTTL time.Duration // available-stock snapshot TTL (default 10s)
}

// NewService wires the hold manager.
func NewService(store database.Store, c cache.Cache, retrier *retry.Retrier, m *metrics.Metrics, cfg Config) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 120 * time.Second
	}
	if cfg.StockTTL <= 0 {
		cfg.StockTTL = 10 * time.Second
	}
	return &Service{
		store:    store,
		cache:    c,
		retrier:  retrier,
		metrics:  m,
		holdTTL:  cfg.HoldTTL,
		stockTTL: cfg.StockTTL,
	}
}

// CreateHold reserves quantity against a product for the hold TTL. The
// exclusive lock on the product row linearizes every availability check for
// that product, so two concurrent requests cannot both read an availability
// that ignores the other's uncommitted hold. Requests for different products
// proceed in parallel.
func (s *Service) CreateHold(ctx context.Context, productID, quantity int64) (database.Hold, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	var hold database.Hold
	err := s.retrier.OnContention(ctx, "hold.create", func() error {
		return s.store.WithinTx(ctx, func(tx database.Tx) error {
			product, err := tx.GetProductForUpdate(ctx, productID)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.New(apperrors.ErrCodeProductNotFound, "Product not found")
			}
			if err != nil {
				return err
			}

			now := time.Now()
			activeSum, err := tx.SumActiveHolds(ctx, productID, now)
			if err != nil {
				return err
			}
			if quantity > database.AvailableStock(product.Stock, activeSum) {
				return apperrors.New(apperrors.ErrCodeInsufficientStock, "Insufficient stock available")
			}

			hold, err = tx.InsertHold(ctx, database.Hold{
				ProductID: productID,
				Quantity:  quantity,
				ExpiresAt: now.Add(s.holdTTL),
			})
			return err
		})
	})
	if err != nil {
		if code := apperrors.CodeOf(err); code == apperrors.ErrCodeInsufficientStock {
			s.metrics.ObserveHoldRejected("insufficient_stock")
			log.Info().
				Int64("product_id", productID).
				Int64("quantity", quantity).
				Msg("hold.create.insufficient_stock")
		}
		return database.Hold{}, err
	}

	_ = s.cache.Forget(ctx, cache.AvailableStockKey(productID))
	s.metrics.ObserveHoldCreation(time.Since(start))

	log.Info().
		Int64("hold_id", hold.ID).
		Int64("product_id", productID).
		Int64("quantity", quantity).
		Time("expires_at", hold.ExpiresAt).
		Msg("hold.created")
	return hold, nil
}

// ReleaseHold returns a hold's quantity to the available pool by flipping
// is_used back to false. Only the failed-payment path calls this. Releasing
// an already-expired hold is allowed; it simply stays outside the
// availability sum.
func (s *Service) ReleaseHold(ctx context.Context, holdID int64) error {
	var productID int64
	err := s.retrier.OnContention(ctx, "hold.release", func() error {
		return s.store.WithinTx(ctx, func(tx database.Tx) error {
			hold, err := tx.GetHoldForUpdate(ctx, holdID)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.New(apperrors.ErrCodeHoldNotFound, "Hold not found")
			}
			if err != nil {
				return err
			}
			productID = hold.ProductID
			return tx.SetHoldUsed(ctx, holdID, false)
		})
	})
	if err != nil {
		return err
	}

	_ = s.cache.Forget(ctx, cache.AvailableStockKey(productID))
	log := logger.FromContext(ctx)
	log.Info().
		Int64("hold_id", holdID).
		Int64("product_id", productID).
		Msg("hold.released")
	return nil
}

// SweepResult reports one expiry sweep run.
type SweepResult struct {
	Expired    int64
	ProductIDs []int64
}

// ExpireHolds retires every due unused hold, freeing its reserved quantity.
// The update re-checks is_used so the sweep is idempotent; the scheduler
// guarantees a single active invocation, and the contention wrapper covers
// races with concurrent order creation locking the same hold rows.
func (s *Service) ExpireHolds(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := s.retrier.OnContention(ctx, "hold.expiry_sweep", func() error {
		return s.store.WithinTx(ctx, func(tx database.Tx) error {
			count, productIDs, err := tx.ExpireDueHolds(ctx, time.Now())
			if err != nil {
				return err
			}
			result = SweepResult{Expired: count, ProductIDs: productIDs}
			return nil
		})
	})
	if err != nil {
		return SweepResult{}, err
	}

	if len(result.ProductIDs) > 0 {
		_ = s.cache.ForgetMany(ctx, cache.AvailableStockKeys(result.ProductIDs))
	}
	s.metrics.HoldsExpiredTotal.Add(float64(result.Expired))
	return result, nil
}

// ProductWithAvailability returns the product and its available stock. The
// availability comes from the snapshot cache when fresh; on a miss the
// authoritative database sum is computed and cached for the snapshot TTL.
func (s *Service) ProductWithAvailability(ctx context.Context, productID int64) (database.Product, int64, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, database.ErrNotFound) {
		return database.Product{}, 0, apperrors.New(apperrors.ErrCodeProductNotFound, "Product not found")
	}
	if err != nil {
		return database.Product{}, 0, err
	}

	available, err := s.availableStock(ctx, product)
	if err != nil {
		return database.Product{}, 0, err
	}
	return product, available, nil
}

// availableStock is the read-through path for the snapshot cache.
func (s *Service) availableStock(ctx context.Context, product database.Product) (int64, error) {
	key := cache.AvailableStockKey(product.ID)

	if raw, ok, _ := s.cache.Get(ctx, key); ok {
		if cached, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.metrics.ObserveCacheHit()
			return cached, nil
		}
		// Unparseable snapshot: drop it and fall through to the database.
		_ = s.cache.Forget(ctx, key)
	}
	s.metrics.ObserveCacheMiss()

	activeSum, err := s.store.SumActiveHolds(ctx, product.ID, time.Now())
	if err != nil {
		return 0, err
	}
	available := database.AvailableStock(product.Stock, activeSum)

	_ = s.cache.Put(ctx, key, strconv.FormatInt(available, 10), s.stockTTL)
	return available, nil
}
