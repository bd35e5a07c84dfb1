package httpserver

import (
	"net/http"

	apperrors "github.com/surgecart/server/internal/errors"
)

type webhookRequest struct {
	OrderID        int64  `json:"order_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1"`
	Status         string `json:"status" validate:"required"`
}

// paymentWebhook applies a payment provider notification to an order.
// Replays with a known idempotency key return the prior outcome with a 200,
// never an error.
func (h handlers) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apperrors.WriteValidationErrors(w, decodeErrors(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperrors.WriteValidationErrors(w, validationErrors(err))
		return
	}

	result, err := h.payments.Process(r.Context(), req.OrderID, req.IdempotencyKey, req.Status)
	if err != nil {
		apperrors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
