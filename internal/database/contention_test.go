package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestIsContention(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pq serialization failure", &pq.Error{Code: "40001"}, true},
		{"pq deadlock detected", &pq.Error{Code: "40P01"}, true},
		{"pq unique violation", &pq.Error{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}, true},
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"message deadlock", errors.New("Deadlock found when trying to get lock; try restarting transaction"), true},
		{"message restart hint", errors.New("try restarting transaction"), true},
		{"wrapped pq error", fmt.Errorf("exec: %w", &pq.Error{Code: "40001"}), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsContention(tt.err); got != tt.want {
				t.Errorf("IsContention(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrDuplicateKey, true},
		{"wrapped sentinel", fmt.Errorf("insert: %w", ErrDuplicateKey), true},
		{"pq unique violation", &pq.Error{Code: "23505"}, true},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"pq deadlock", &pq.Error{Code: "40P01"}, false},
		{"unrelated", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKey(tt.err); got != tt.want {
				t.Errorf("IsDuplicateKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAvailableStock(t *testing.T) {
	tests := []struct {
		stock, sum, want int64
	}{
		{10, 0, 10},
		{10, 4, 6},
		{10, 10, 0},
		{10, 12, 0}, // clamped, never negative
		{0, 0, 0},
	}

	for _, tt := range tests {
		if got := AvailableStock(tt.stock, tt.sum); got != tt.want {
			t.Errorf("AvailableStock(%d, %d) = %d, want %d", tt.stock, tt.sum, got, tt.want)
		}
	}
}
