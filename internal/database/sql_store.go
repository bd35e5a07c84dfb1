package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLStore implements Store on PostgreSQL or MySQL. Both engines provide the
// row-level locking and UNIQUE enforcement the protocol depends on; dialect
// differences (placeholders, RETURNING) are handled per query.
type SQLStore struct {
	db     *sqlx.DB
	ownsDB bool
	queries
}

// NewSQLStore opens a connection for the given driver ("postgres" or "mysql")
// and bootstraps the schema.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		// Close() failure during init cleanup is not actionable; the ping
		// error is what the caller needs.
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store := &SQLStore{
		db:      db,
		ownsDB:  true,
		queries: queries{ext: db, driver: driver},
	}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStoreWithDB builds a store on an existing connection pool, allowing
// the pool to be shared with other components (the cache backend).
func NewSQLStoreWithDB(db *sqlx.DB) (*SQLStore, error) {
	store := &SQLStore{
		db:      db,
		ownsDB:  false,
		queries: queries{ext: db, driver: db.DriverName()},
	}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

// createTables creates the four core tables if they don't exist.
func (s *SQLStore) createTables() error {
	var schema string
	switch s.driver {
	case "mysql":
		schema = mysqlSchema
	default:
		schema = postgresSchema
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	stock BIGINT NOT NULL CHECK (stock >= 0),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS holds (
	id BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	expires_at TIMESTAMPTZ NOT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	hold_id BIGINT NOT NULL UNIQUE REFERENCES holds(id),
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS payments (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	idempotency_key TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_holds_product_active ON holds(product_id, is_used, expires_at);
CREATE INDEX IF NOT EXISTS idx_holds_due ON holds(expires_at) WHERE is_used = FALSE;
`

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS products (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	price DECIMAL(12,2) NOT NULL,
	stock BIGINT NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL
);
CREATE TABLE IF NOT EXISTS holds (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	product_id BIGINT NOT NULL,
	quantity BIGINT NOT NULL,
	expires_at DATETIME(6) NOT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	INDEX idx_holds_product_active (product_id, is_used, expires_at),
	INDEX idx_holds_due (expires_at, is_used),
	CONSTRAINT fk_holds_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS orders (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	hold_id BIGINT NOT NULL UNIQUE,
	status VARCHAR(16) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	CONSTRAINT fk_orders_hold FOREIGN KEY (hold_id) REFERENCES holds(id)
);
CREATE TABLE IF NOT EXISTS payments (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	order_id BIGINT NOT NULL,
	idempotency_key VARCHAR(255) NOT NULL UNIQUE,
	status VARCHAR(16) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	CONSTRAINT fk_payments_order FOREIGN KEY (order_id) REFERENCES orders(id)
);
`

// splitStatements breaks a multi-statement schema into single statements;
// the MySQL driver rejects multi-statement Exec by default.
func splitStatements(schema string) []string {
	var out []string
	var current []byte
	for i := 0; i < len(schema); i++ {
		c := schema[i]
		current = append(current, c)
		if c == ';' {
			stmt := string(current)
			current = current[:0]
			if trimmed := trimSpace(stmt); trimmed != ";" && trimmed != "" {
				out = append(out, stmt)
			}
		}
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// WithinTx runs fn inside a read-committed transaction, committing on nil and
// rolling back on any error.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&sqlTx{queries: queries{ext: tx, driver: s.driver}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Close releases the connection pool when the store owns it.
func (s *SQLStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// InsertProduct creates a product row (administrative seeding).
func (s *SQLStore) InsertProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	id, err := s.insertReturningID(ctx,
		`INSERT INTO products (name, price, stock, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	p.ID = id
	return p, nil
}

// sqlTx implements Tx on top of a live *sqlx.Tx.
type sqlTx struct {
	queries
}

// queries holds the query implementations shared between the pool-backed
// store and in-flight transactions.
type queries struct {
	ext    sqlx.ExtContext
	driver string
}

func (q queries) rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(q.driver), query)
}

func (q queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return q.getProduct(ctx, id, false)
}

func (q queries) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return q.getProduct(ctx, id, true)
}

func (q queries) getProduct(ctx context.Context, id int64, forUpdate bool) (Product, error) {
	query := `SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p Product
	if err := sqlx.GetContext(ctx, q.ext, &p, q.rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (q queries) GetHold(ctx context.Context, id int64) (Hold, error) {
	return q.getHold(ctx, id, false)
}

func (q queries) GetHoldForUpdate(ctx context.Context, id int64) (Hold, error) {
	return q.getHold(ctx, id, true)
}

func (q queries) getHold(ctx context.Context, id int64, forUpdate bool) (Hold, error) {
	query := `SELECT id, product_id, quantity, expires_at, is_used, created_at, updated_at FROM holds WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var h Hold
	if err := sqlx.GetContext(ctx, q.ext, &h, q.rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Hold{}, ErrNotFound
		}
		return Hold{}, fmt.Errorf("get hold %d: %w", id, err)
	}
	return h, nil
}

func (q queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return q.getOrder(ctx, id, false)
}

func (q queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return q.getOrder(ctx, id, true)
}

func (q queries) getOrder(ctx context.Context, id int64, forUpdate bool) (Order, error) {
	query := `SELECT id, hold_id, status, created_at, updated_at FROM orders WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var o Order
	if err := sqlx.GetContext(ctx, q.ext, &o, q.rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

func (q queries) GetPaymentByKey(ctx context.Context, key string) (Payment, error) {
	query := `SELECT id, order_id, idempotency_key, status, created_at FROM payments WHERE idempotency_key = ?`
	var p Payment
	if err := sqlx.GetContext(ctx, q.ext, &p, q.rebind(query), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, fmt.Errorf("get payment by key: %w", err)
	}
	return p, nil
}

func (q queries) SumActiveHolds(ctx context.Context, productID int64, now time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM holds WHERE product_id = ? AND is_used = FALSE AND expires_at > ?`
	var sum int64
	if err := sqlx.GetContext(ctx, q.ext, &sum, q.rebind(query), productID, now); err != nil {
		return 0, fmt.Errorf("sum active holds for product %d: %w", productID, err)
	}
	return sum, nil
}

func (q queries) InsertHold(ctx context.Context, h Hold) (Hold, error) {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	id, err := q.insertReturningID(ctx,
		`INSERT INTO holds (product_id, quantity, expires_at, is_used, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ProductID, h.Quantity, h.ExpiresAt, h.IsUsed, h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return Hold{}, fmt.Errorf("insert hold: %w", err)
	}
	h.ID = id
	return h, nil
}

func (q queries) InsertOrder(ctx context.Context, o Order) (Order, error) {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	id, err := q.insertReturningID(ctx,
		`INSERT INTO orders (hold_id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		o.HoldID, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if IsDuplicateKey(err) {
			return Order{}, ErrDuplicateKey
		}
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	o.ID = id
	return o, nil
}

func (q queries) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	p.CreatedAt = time.Now().UTC()
	id, err := q.insertReturningID(ctx,
		`INSERT INTO payments (order_id, idempotency_key, status, created_at) VALUES (?, ?, ?, ?)`,
		p.OrderID, p.IdempotencyKey, p.Status, p.CreatedAt)
	if err != nil {
		if IsDuplicateKey(err) {
			return Payment{}, ErrDuplicateKey
		}
		return Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	p.ID = id
	return p, nil
}

func (q queries) SetHoldUsed(ctx context.Context, holdID int64, used bool) error {
	query := q.rebind(`UPDATE holds SET is_used = ?, updated_at = ? WHERE id = ?`)
	res, err := q.ext.ExecContext(ctx, query, used, time.Now().UTC(), holdID)
	if err != nil {
		return fmt.Errorf("set hold %d used=%t: %w", holdID, used, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	query := q.rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := q.ext.ExecContext(ctx, query, status, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) ExpireDueHolds(ctx context.Context, now time.Time) (int64, []int64, error) {
	// Lock the due rows first so the update cannot race a concurrent
	// create-from-hold on the same rows; the is_used re-check in the UPDATE
	// keeps the operation idempotent either way.
	type dueRow struct {
		ID        int64 `db:"id"`
		ProductID int64 `db:"product_id"`
	}
	var due []dueRow
	selectQuery := q.rebind(`SELECT id, product_id FROM holds WHERE expires_at <= ? AND is_used = FALSE FOR UPDATE`)
	if err := sqlx.SelectContext(ctx, q.ext, &due, selectQuery, now); err != nil {
		return 0, nil, fmt.Errorf("select due holds: %w", err)
	}
	if len(due) == 0 {
		return 0, nil, nil
	}

	ids := make([]int64, 0, len(due))
	productSet := make(map[int64]struct{}, len(due))
	for _, row := range due {
		ids = append(ids, row.ID)
		productSet[row.ProductID] = struct{}{}
	}

	updateQuery, args, err := sqlx.In(`UPDATE holds SET is_used = TRUE, updated_at = ? WHERE id IN (?) AND is_used = FALSE`, time.Now().UTC(), ids)
	if err != nil {
		return 0, nil, fmt.Errorf("build expire query: %w", err)
	}
	res, err := q.ext.ExecContext(ctx, q.rebind(updateQuery), args...)
	if err != nil {
		return 0, nil, fmt.Errorf("expire due holds: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, nil, fmt.Errorf("expire due holds rows affected: %w", err)
	}

	productIDs := make([]int64, 0, len(productSet))
	for id := range productSet {
		productIDs = append(productIDs, id)
	}
	return count, productIDs, nil
}

// insertReturningID handles the dialect split for returning generated keys:
// PostgreSQL needs RETURNING, MySQL exposes LastInsertId.
func (q queries) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if q.driver == "mysql" {
		res, err := q.ext.ExecContext(ctx, q.rebind(query), args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	row := q.ext.QueryRowxContext(ctx, q.rebind(query+` RETURNING id`), args...)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
