package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// newMockStore wires an SQLStore to sqlmock using the mysql dialect so the
// "?" placeholders in queries pass through Rebind untouched.
func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "mysql")
	store := &SQLStore{
		db:      sqlxDB,
		queries: queries{ext: sqlxDB, driver: "mysql"},
	}
	return store, mock
}

func TestSQLStore_GetProduct(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock", "created_at", "updated_at"}).
		AddRow(7, "flash widget", "19.99", 100, now, now)
	mock.ExpectQuery(`SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	p, err := store.GetProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.ID != 7 || p.Name != "flash widget" || p.Stock != 100 {
		t.Errorf("unexpected product: %+v", p)
	}
	if p.Price.String() != "19.99" {
		t.Errorf("price = %s, want 19.99", p.Price)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_GetProduct_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = \?`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "stock", "created_at", "updated_at"}))

	_, err := store.GetProduct(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLStore_SumActiveHolds(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM holds WHERE product_id = \? AND is_used = FALSE AND expires_at > \?`).
		WithArgs(int64(3), now).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(12))

	sum, err := store.SumActiveHolds(context.Background(), 3, now)
	if err != nil {
		t.Fatalf("SumActiveHolds: %v", err)
	}
	if sum != 12 {
		t.Errorf("sum = %d, want 12", sum)
	}
}

func TestSQLStore_WithinTx_CommitAndRollback(t *testing.T) {
	t.Run("commit on nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE holds SET is_used = \?, updated_at = \? WHERE id = \?`).
			WithArgs(true, sqlmock.AnyArg(), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(context.Background(), func(tx Tx) error {
			return tx.SetHoldUsed(context.Background(), 5, true)
		})
		if err != nil {
			t.Fatalf("WithinTx: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("rollback on error", func(t *testing.T) {
		store, mock := newMockStore(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := store.WithinTx(context.Background(), func(tx Tx) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestSQLStore_InsertHold_MySQLLastInsertID(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Now().Add(2 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO holds \(product_id, quantity, expires_at, is_used, created_at, updated_at\) VALUES \(\?, \?, \?, \?, \?, \?\)`).
		WithArgs(int64(3), int64(2), expires, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	var hold Hold
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		hold, err = tx.InsertHold(context.Background(), Hold{ProductID: 3, Quantity: 2, ExpiresAt: expires})
		return err
	})
	if err != nil {
		t.Fatalf("InsertHold: %v", err)
	}
	if hold.ID != 11 {
		t.Errorf("hold id = %d, want 11", hold.ID)
	}
}
