package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeProductNotFound, http.StatusNotFound},
		{ErrCodeHoldNotFound, http.StatusNotFound},
		{ErrCodeOrderNotFound, http.StatusNotFound},
		{ErrCodeInsufficientStock, http.StatusBadRequest},
		{ErrCodeHoldExpired, http.StatusBadRequest},
		{ErrCodeHoldAlreadyUsed, http.StatusBadRequest},
		{ErrCodeInvalidPaymentStatus, http.StatusBadRequest},
		{ErrCodeValidationFailed, http.StatusUnprocessableEntity},
		{ErrCodeDatabaseContention, http.StatusInternalServerError},
		{ErrCodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), string(tt.code))
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, ErrCodeDatabaseContention.IsRetryable())
	assert.False(t, ErrCodeInsufficientStock.IsRetryable())
	assert.False(t, ErrCodeInternalError.IsRetryable())
}

func TestCodeOfAndMessageOf(t *testing.T) {
	err := New(ErrCodeHoldExpired, "Hold has expired")
	assert.Equal(t, ErrCodeHoldExpired, CodeOf(err))
	assert.Equal(t, "Hold has expired", MessageOf(err))

	wrapped := Wrap(ErrCodeDatabaseContention, "service temporarily unavailable due to database contention", stderrors.New("deadlock detected"))
	assert.Equal(t, ErrCodeDatabaseContention, CodeOf(wrapped))
	assert.ErrorContains(t, wrapped, "deadlock detected")

	plain := stderrors.New("boom")
	assert.Equal(t, ErrCodeInternalError, CodeOf(plain))
}
