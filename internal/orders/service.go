package orders

import (
	"context"
	"errors"
	"time"

	"github.com/surgecart/server/internal/cache"
	"github.com/surgecart/server/internal/database"
	apperrors "github.com/surgecart/server/internal/errors"
	"github.com/surgecart/server/internal/logger"
	"github.com/surgecart/server/internal/metrics"
	"github.com/surgecart/server/internal/retry"
)

// Service converts holds into orders and drives order status transitions.
type Service struct {
	store   database.Store
	cache   cache.Cache
	retrier *retry.Retrier
	metrics *metrics.Metrics
}

// NewService wires the order manager.
func NewService(store database.Store, c cache.Cache, retrier *retry.Retrier, m *metrics.Metrics) *Service {
	return &Service{store: store, cache: c, retrier: retrier, metrics: m}
}

// CreateFromHold converts a hold into a pending order. The hold row is
// locked for the duration of the transaction, so a concurrent conversion or
// the expiry sweep touching the same hold serializes behind it. Each hold
// converts at most once: the lock plus the validity check enforce it, and a
// unique constraint on orders.hold_id backstops both.
func (s *Service) CreateFromHold(ctx context.Context, holdID int64) (database.Order, error) {
	log := logger.FromContext(ctx)

	var order database.Order
	var productID int64
	err := s.retrier.OnContention(ctx, "order.create", func() error {
		return s.store.WithinTx(ctx, func(tx database.Tx) error {
			hold, err := tx.GetHoldForUpdate(ctx, holdID)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.New(apperrors.ErrCodeHoldNotFound, "Hold not found")
			}
			if err != nil {
				return err
			}
			productID = hold.ProductID

			// Expiry is checked before is_used so a sweep-retired hold
			// reports expiry, not prior use.
			if hold.Expired(time.Now()) {
				return apperrors.New(apperrors.ErrCodeHoldExpired, "Hold has expired")
			}
			if hold.IsUsed {
				return apperrors.New(apperrors.ErrCodeHoldAlreadyUsed, "Hold has already been used")
			}

			order, err = tx.InsertOrder(ctx, database.Order{
				HoldID: holdID,
				Status: database.OrderStatusPending,
			})
			if database.IsDuplicateKey(err) {
				return apperrors.New(apperrors.ErrCodeHoldAlreadyUsed, "Hold has already been used")
			}
			if err != nil {
				return err
			}

			return tx.SetHoldUsed(ctx, holdID, true)
		})
	})
	if err != nil {
		return database.Order{}, err
	}

	_ = s.cache.Forget(ctx, cache.AvailableStockKey(productID))
	s.metrics.OrdersCreatedTotal.Inc()
	log.Info().
		Int64("order_id", order.ID).
		Int64("hold_id", holdID).
		Msg("order.created")
	return order, nil
}

// MarkPaid transitions an order to paid.
func (s *Service) MarkPaid(ctx context.Context, orderID int64) error {
	return s.transition(ctx, orderID, database.OrderStatusPaid, "order.marked_paid")
}

// Cancel transitions an order to cancelled. The caller decides whether the
// underlying hold should also be released.
func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	return s.transition(ctx, orderID, database.OrderStatusCancelled, "order.cancelled")
}

func (s *Service) transition(ctx context.Context, orderID int64, status database.OrderStatus, event string) error {
	var productID int64
	err := s.retrier.OnContention(ctx, "order.transition", func() error {
		return s.store.WithinTx(ctx, func(tx database.Tx) error {
			order, err := tx.GetOrderForUpdate(ctx, orderID)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.New(apperrors.ErrCodeOrderNotFound, "Order not found")
			}
			if err != nil {
				return err
			}

			// Plain read: only the product id is needed, and locking the
			// hold here would invert the Product then Hold then Order lock
			// order.
			hold, err := tx.GetHold(ctx, order.HoldID)
			if err != nil {
				return err
			}
			productID = hold.ProductID

			return tx.UpdateOrderStatus(ctx, orderID, status)
		})
	})
	if err != nil {
		return err
	}

	_ = s.cache.Forget(ctx, cache.AvailableStockKey(productID))
	log := logger.FromContext(ctx)
	log.Info().
		Int64("order_id", orderID).
		Str("status", string(status)).
		Msg(event)
	return nil
}
