package httpserver

import (
	"net/http"
	"time"

	apperrors "github.com/surgecart/server/internal/errors"
)

type createHoldRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Qty       int64 `json:"qty" validate:"required,gte=1"`
}

type holdResponse struct {
	HoldID    int64  `json:"hold_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	ExpiresAt string `json:"expires_at"`
}

// createHold reserves stock for a buyer for the hold TTL.
func (h handlers) createHold(w http.ResponseWriter, r *http.Request) {
	var req createHoldRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apperrors.WriteValidationErrors(w, decodeErrors(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apperrors.WriteValidationErrors(w, validationErrors(err))
		return
	}

	hold, err := h.inventory.CreateHold(r.Context(), req.ProductID, req.Qty)
	if err != nil {
		apperrors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, holdResponse{
		HoldID:    hold.ID,
		ProductID: hold.ProductID,
		Quantity:  hold.Quantity,
		ExpiresAt: hold.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
