package httpserver

import (
	"net/http"

	apperrors "github.com/surgecart/server/internal/errors"
)

type createOrderRequest struct {
	HoldID int64 `json:"hold_id" validate:"required"`
}

type orderResponse struct {
	OrderID int64  `json:"order_id"`
	HoldID  int64  `json:"hold_id"`
	Status  string `json:"status"`
}

// createOrder converts a hold into a pending order.
func (h handlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apperrors.WriteValidationErrors(w, decodeErrors(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperrors.WriteValidationErrors(w, validationErrors(err))
		return
	}

	order, err := h.orders.CreateFromHold(r.Context(), req.HoldID)
	if err != nil {
		apperrors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		OrderID: order.ID,
		HoldID:  order.HoldID,
		Status:  string(order.Status),
	})
}
