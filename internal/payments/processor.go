package payments

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

// Result is the webhook response body. Duplicate deliveries of the same
// idempotency key always produce a byte-identical Result.
type Result struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// Processor applies payment provider webhooks to orders exactly once per
// idempotency key. The key, not the order id, is the identity of a delivery:
// a replay carrying a different order id still resolves to the original
// payment's order.
type Processor struct {
	store   database.Store
	cache   cache.Cache
	retrier *retry.Retrier
	metrics *metrics.Metrics
}

// NewProcessor wires the webhook processor.
func NewProcessor(store database.Store, c cache.Cache, retrier *retry.Retrier, m *metrics.Metrics) *Processor {
	return &Processor{store: store, cache: c, retrier: retrier, metrics: m}
}

// Process records a payment outcome for an order. Success marks the order
// paid. Failure cancels the order and releases its hold back to the
// available pool. Duplicate deliveries short-circuit to the original
// payment's current order status.
func (p *Processor) Process(ctx context.Context, orderID int64, idempotencyKey, status string) (Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	// Fast path: a payment with this key already exists, no transaction
	// needed. A miss here is not authoritative; the in-transaction re-probe
	// and the unique constraint close the race window.
	if result, found, err := p.lookupByKey(ctx, idempotencyKey); err != nil {
		return Result{}, err
	} else if found {
		p.metrics.ObserveWebhookDuplicate()
		log.Info().
			Str("idempotency_key", idempotencyKey).
			Int64("order_id", result.OrderID).
			Msg("webhook.duplicate")
		return result, nil
	}

	paymentStatus, err := parseStatus(status)
	if err != nil {
		return Result{}, err
	}

	var (
		result    Result
		duplicate bool
		productID int64
	)
	err = p.retrier.OnContention(ctx, "webhook.process", func() error {
		duplicate = false
		return p.store.WithinTx(ctx, func(tx database.Tx) error {
			order, err := tx.GetOrder(ctx, orderID)
			if errors.Is(err, database.ErrNotFound) {
				return apperrors.New(apperrors.ErrCodeOrderNotFound, "Order not found")
			}
			if err != nil {
				return err
			}

			// Re-probe inside the transaction: another delivery may have
			// committed between the fast path and here.
			if existing, err := tx.GetPaymentByKey(ctx, idempotencyKey); err == nil {
				result, err = p.resolveTx(ctx, tx, existing)
				duplicate = true
				return err
			} else if !errors.Is(err, database.ErrNotFound) {
				return err
			}

			_, err = tx.InsertPayment(ctx, database.Payment{
				OrderID:        order.ID,
				IdempotencyKey: idempotencyKey,
				Status:         paymentStatus,
			})
			if database.IsDuplicateKey(err) {
				existing, lookupErr := tx.GetPaymentByKey(ctx, idempotencyKey)
				if lookupErr != nil {
					return lookupErr
				}
				result, err = p.resolveTx(ctx, tx, existing)
				duplicate = true
				return err
			}
			if err != nil {
				return err
			}

			hold, err := tx.GetHoldForUpdate(ctx, order.HoldID)
			if err != nil {
				return err
			}
			productID = hold.ProductID

			newStatus := database.OrderStatusPaid
			if paymentStatus == database.PaymentStatusFailed {
				newStatus = database.OrderStatusCancelled
				if err := tx.SetHoldUsed(ctx, hold.ID, false); err != nil {
					return err
				}
			}
			if err := tx.UpdateOrderStatus(ctx, order.ID, newStatus); err != nil {
				return err
			}

			result = Result{OrderID: order.ID, Status: string(newStatus)}
			return nil
		})
	})
	if err != nil {
		return Result{}, err
	}

	if duplicate {
		p.metrics.ObserveWebhookDuplicate()
		log.Info().
			Str("idempotency_key", idempotencyKey).
			Int64("order_id", result.OrderID).
			Msg("webhook.duplicate")
		return result, nil
	}

	_ = p.cache.Forget(ctx, cache.AvailableStockKey(productID))
	p.metrics.ObserveWebhook(result.Status, time.Since(start))

	log.Info().
		Int64("order_id", result.OrderID).
		Str("idempotency_key", idempotencyKey).
		Str("payment_status", string(paymentStatus)).
		Str("order_status", result.Status).
		Msg("webhook.processed")
	return result, nil
}

// lookupByKey resolves an existing payment to its order's current status.
func (p *Processor) lookupByKey(ctx context.Context, idempotencyKey string) (Result, bool, error) {
	payment, err := p.store.GetPaymentByKey(ctx, idempotencyKey)
	if errors.Is(err, database.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	order, err := p.store.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return Result{}, false, err
	}
	return Result{OrderID: order.ID, Status: string(order.Status)}, true, nil
}

func (p *Processor) resolveTx(ctx context.Context, tx database.Tx, payment database.Payment) (Result, error) {
	order, err := tx.GetOrder(ctx, payment.OrderID)
	if err != nil {
		return Result{}, err
	}
	return Result{OrderID: order.ID, Status: string(order.Status)}, nil
}

func parseStatus(status string) (database.PaymentStatus, error) {
	switch status {
	case "success":
		return database.PaymentStatusSuccess, nil
	case "failed":
		return database.PaymentStatusFailed, nil
	default:
		return "", apperrors.New(apperrors.ErrCodeInvalidPaymentStatus, "Invalid payment status")
	}
}
