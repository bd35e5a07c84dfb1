package database

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests. Transactions
// are serialized by a single mutex, which gives the same linearization the
// SQL stores get from row locks; rollback restores a snapshot taken at
// transaction start.
type MemoryStore struct {
	mu       sync.Mutex
	products map[int64]Product
	holds    map[int64]Hold
	orders   map[int64]Order
	payments map[string]Payment // keyed by idempotency_key

	ordersByHold map[int64]int64

	nextProductID int64
	nextHoldID    int64
	nextOrderID   int64
	nextPaymentID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[int64]Product),
		holds:        make(map[int64]Hold),
		orders:       make(map[int64]Order),
		payments:     make(map[string]Payment),
		ordersByHold: make(map[int64]int64),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

// InsertProduct creates a product row (administrative seeding).
func (s *MemoryStore) InsertProduct(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	now := time.Now().UTC()
	p.ID = s.nextProductID
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getProduct(id)
}

func (s *MemoryStore) GetHold(_ context.Context, id int64) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getHold(id)
}

func (s *MemoryStore) GetOrder(_ context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrder(id)
}

func (s *MemoryStore) GetPaymentByKey(_ context.Context, key string) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPaymentByKey(key)
}

func (s *MemoryStore) SumActiveHolds(_ context.Context, productID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumActiveHolds(productID, now), nil
}

// WithinTx serializes the closure against all other transactions and rolls
// the maps back to a snapshot if fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	products     map[int64]Product
	holds        map[int64]Hold
	orders       map[int64]Order
	payments     map[string]Payment
	ordersByHold map[int64]int64

	nextProductID, nextHoldID, nextOrderID, nextPaymentID int64
}

func (s *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		products:      copyMap(s.products),
		holds:         copyMap(s.holds),
		orders:        copyMap(s.orders),
		payments:      copyMap(s.payments),
		ordersByHold:  copyMap(s.ordersByHold),
		nextProductID: s.nextProductID,
		nextHoldID:    s.nextHoldID,
		nextOrderID:   s.nextOrderID,
		nextPaymentID: s.nextPaymentID,
	}
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.products = snap.products
	s.holds = snap.holds
	s.orders = snap.orders
	s.payments = snap.payments
	s.ordersByHold = snap.ordersByHold
	s.nextProductID = snap.nextProductID
	s.nextHoldID = snap.nextHoldID
	s.nextOrderID = snap.nextOrderID
	s.nextPaymentID = snap.nextPaymentID
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Unlocked accessors shared by the store and its transactions. The store
// mutex is always held when these run.

func (s *MemoryStore) getProduct(id int64) (Product, error) {
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) getHold(id int64) (Hold, error) {
	h, ok := s.holds[id]
	if !ok {
		return Hold{}, ErrNotFound
	}
	return h, nil
}

func (s *MemoryStore) getOrder(id int64) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) getPaymentByKey(key string) (Payment, error) {
	p, ok := s.payments[key]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) sumActiveHolds(productID int64, now time.Time) int64 {
	var sum int64
	for _, h := range s.holds {
		if h.ProductID == productID && h.Active(now) {
			sum += h.Quantity
		}
	}
	return sum
}

// memoryTx implements Tx against the locked store. ForUpdate reads are plain
// reads because the store mutex already excludes concurrent transactions.
type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) GetProductForUpdate(_ context.Context, id int64) (Product, error) {
	return t.store.getProduct(id)
}

func (t *memoryTx) GetHold(_ context.Context, id int64) (Hold, error) {
	return t.store.getHold(id)
}

func (t *memoryTx) GetHoldForUpdate(_ context.Context, id int64) (Hold, error) {
	return t.store.getHold(id)
}

func (t *memoryTx) GetOrder(_ context.Context, id int64) (Order, error) {
	return t.store.getOrder(id)
}

func (t *memoryTx) GetOrderForUpdate(_ context.Context, id int64) (Order, error) {
	return t.store.getOrder(id)
}

func (t *memoryTx) GetPaymentByKey(_ context.Context, key string) (Payment, error) {
	return t.store.getPaymentByKey(key)
}

func (t *memoryTx) SumActiveHolds(_ context.Context, productID int64, now time.Time) (int64, error) {
	return t.store.sumActiveHolds(productID, now), nil
}

func (t *memoryTx) InsertHold(_ context.Context, h Hold) (Hold, error) {
	s := t.store
	s.nextHoldID++
	now := time.Now().UTC()
	h.ID = s.nextHoldID
	h.CreatedAt = now
	h.UpdatedAt = now
	s.holds[h.ID] = h
	return h, nil
}

func (t *memoryTx) InsertOrder(_ context.Context, o Order) (Order, error) {
	s := t.store
	if _, exists := s.ordersByHold[o.HoldID]; exists {
		return Order{}, ErrDuplicateKey
	}
	s.nextOrderID++
	now := time.Now().UTC()
	o.ID = s.nextOrderID
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.ID] = o
	s.ordersByHold[o.HoldID] = o.ID
	return o, nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	s := t.store
	if _, exists := s.payments[p.IdempotencyKey]; exists {
		return Payment{}, ErrDuplicateKey
	}
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	p.CreatedAt = time.Now().UTC()
	s.payments[p.IdempotencyKey] = p
	return p, nil
}

func (t *memoryTx) SetHoldUsed(_ context.Context, holdID int64, used bool) error {
	s := t.store
	h, ok := s.holds[holdID]
	if !ok {
		return ErrNotFound
	}
	h.IsUsed = used
	h.UpdatedAt = time.Now().UTC()
	s.holds[holdID] = h
	return nil
}

func (t *memoryTx) UpdateOrderStatus(_ context.Context, orderID int64, status OrderStatus) error {
	s := t.store
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

func (t *memoryTx) ExpireDueHolds(_ context.Context, now time.Time) (int64, []int64, error) {
	s := t.store
	var count int64
	productSet := make(map[int64]struct{})
	for id, h := range s.holds {
		if h.IsUsed || h.ExpiresAt.After(now) {
			continue
		}
		h.IsUsed = true
		h.UpdatedAt = time.Now().UTC()
		s.holds[id] = h
		count++
		productSet[h.ProductID] = struct{}{}
	}
	productIDs := make([]int64, 0, len(productSet))
	for id := range productSet {
		productIDs = append(productIDs, id)
	}
	return count, productIDs, nil
}
