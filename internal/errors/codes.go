package errors

// ErrorCode represents a machine-readable error identifier for frontend error handling.
type ErrorCode string

// Resource/State Errors (resource not found)
const (
	ErrCodeProductNotFound ErrorCode = "product_not_found"
	ErrCodeHoldNotFound    ErrorCode = "hold_not_found"
	ErrCodeOrderNotFound   ErrorCode = "order_not_found"
)

// Business Rule Errors (request is well-formed but cannot be satisfied)
const (
	ErrCodeInsufficientStock    ErrorCode = "insufficient_stock"
	ErrCodeHoldExpired          ErrorCode = "hold_expired"
	ErrCodeHoldAlreadyUsed      ErrorCode = "hold_already_used"
	ErrCodeInvalidPaymentStatus ErrorCode = "invalid_payment_status"
)

// Validation Errors (request body fails schema/type validation)
const (
	ErrCodeValidationFailed ErrorCode = "validation_failed"
	ErrCodeInvalidField     ErrorCode = "invalid_field"
)

// Internal/System Errors
const (
	ErrCodeDatabaseContention ErrorCode = "database_contention"
	ErrCodeInternalError      ErrorCode = "internal_error"
	ErrCodeDatabaseError      ErrorCode = "database_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Contention is the only condition a client should retry; validation and
// business-rule failures are permanent for a given request.
func (e ErrorCode) IsRetryable() bool {
	return e == ErrCodeDatabaseContention
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - business rule violations
	case ErrCodeInsufficientStock,
		ErrCodeHoldExpired,
		ErrCodeHoldAlreadyUsed,
		ErrCodeInvalidPaymentStatus,
		ErrCodeInvalidField:
		return 400

	// 404 Not Found
	case ErrCodeProductNotFound,
		ErrCodeHoldNotFound,
		ErrCodeOrderNotFound:
		return 404

	// 422 Unprocessable Entity - schema/type violations
	case ErrCodeValidationFailed:
		return 422

	// 500 Internal Server Error - contention limit exceeded and system errors
	default:
		return 500
	}
}
