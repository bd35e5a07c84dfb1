package database

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("database: not found")

// ErrDuplicateKey is returned when an insert violates a unique constraint.
var ErrDuplicateKey = errors.New("database: duplicate key")

// OrderStatus enumerates the order lifecycle. Status progresses monotonically
// out of pending; paid and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates webhook outcomes. Payment rows are never updated.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Product is a sale item. Stock is the immutable ceiling for all active
// commitments; the core never mutates it.
type Product struct {
	ID        int64           `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Stock     int64           `db:"stock"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Hold is a time-bounded, non-consuming reservation of product quantity.
// IsUsed flips to true when an order consumes the hold or the expiry sweep
// retires it; it reverts to false only when a failed payment releases it.
type Hold struct {
	ID        int64     `db:"id"`
	ProductID int64     `db:"product_id"`
	Quantity  int64     `db:"quantity"`
	ExpiresAt time.Time `db:"expires_at"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Active reports whether the hold still counts against available stock.
func (h Hold) Active(now time.Time) bool {
	return !h.IsUsed && h.ExpiresAt.After(now)
}

// Expired reports whether the hold has passed its expiry instant.
func (h Hold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// Order references the hold it consumed. At most one order exists per hold.
type Order struct {
	ID        int64       `db:"id"`
	HoldID    int64       `db:"hold_id"`
	Status    OrderStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

// Payment records one webhook delivery. The idempotency key is globally
// unique; the UNIQUE constraint is the hard safeguard against double effects.
type Payment struct {
	ID             int64         `db:"id"`
	OrderID        int64         `db:"order_id"`
	IdempotencyKey string        `db:"idempotency_key"`
	Status         PaymentStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Store captures the persistence requirements for the inventory and payment
// state machine. Plain reads run outside any transaction; everything that
// mutates state goes through WithinTx.
type Store interface {
	// InsertProduct creates a product row. Products are created
	// administratively (seeding, fixtures); the core never deletes them.
	InsertProduct(ctx context.Context, p Product) (Product, error)

	GetProduct(ctx context.Context, id int64) (Product, error)
	GetHold(ctx context.Context, id int64) (Hold, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	GetPaymentByKey(ctx context.Context, key string) (Payment, error)

	// SumActiveHolds returns the total quantity of holds for the product that
	// are unused and expire strictly after now.
	SumActiveHolds(ctx context.Context, productID int64, now time.Time) (int64, error)

	// WithinTx runs fn inside a read-committed transaction. The transaction
	// commits when fn returns nil and rolls back on any error, leaving no
	// partial state.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the per-transaction surface. ForUpdate reads take an exclusive row
// lock held until commit or rollback. Callers must acquire locks in the order
// Product then Hold then Order when locking multiple rows.
type Tx interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	GetHold(ctx context.Context, id int64) (Hold, error)
	GetHoldForUpdate(ctx context.Context, id int64) (Hold, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	GetPaymentByKey(ctx context.Context, key string) (Payment, error)
	SumActiveHolds(ctx context.Context, productID int64, now time.Time) (int64, error)

	InsertHold(ctx context.Context, h Hold) (Hold, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)

	SetHoldUsed(ctx context.Context, holdID int64, used bool) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error

	// ExpireDueHolds marks every hold with expires_at <= now and is_used =
	// false as used. The update is idempotent; it returns the count actually
	// transitioned and the distinct product ids touched.
	ExpireDueHolds(ctx context.Context, now time.Time) (int64, []int64, error)
}

// AvailableStock computes product stock minus the active-hold sum, clamped at
// zero. Expired and used holds are excluded from the sum by the caller.
func AvailableStock(stock, activeHoldSum int64) int64 {
	available := stock - activeHoldSum
	if available < 0 {
		return 0
	}
	return available
}
