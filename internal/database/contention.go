package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// IsContention reports whether err is a deadlock or serialization failure
// that is safe to retry after rollback. It recognizes PostgreSQL SQLSTATE
// 40001 (serialization_failure) and 40P01 (deadlock_detected), MySQL errors
// 1213 (ER_LOCK_DEADLOCK) and 1205 (ER_LOCK_WAIT_TIMEOUT), and falls back to
// message matching for drivers that do not expose structured codes.
func IsContention(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, 1205:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "try restarting transaction")
}

// IsDuplicateKey reports whether err is a unique constraint violation:
// PostgreSQL SQLSTATE 23505, MySQL error 1062, or the store's own
// ErrDuplicateKey sentinel.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDuplicateKey) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}

	return false
}
