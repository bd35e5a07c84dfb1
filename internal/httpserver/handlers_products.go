package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/surgecart/server/internal/errors"
)

type productResponse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	TotalStock     int64           `json:"total_stock"`
	AvailableStock int64           `json:"available_stock"`
}

// getProduct returns a product with its live available stock. The
// availability figure may be up to the snapshot TTL stale.
func (h handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperrors.WriteSimpleError(w, apperrors.ErrCodeProductNotFound, "Product not found")
		return
	}

	product, available, err := h.inventory.ProductWithAvailability(r.Context(), id)
	if err != nil {
		apperrors.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, productResponse{
		ID:             product.ID,
		Name:           product.Name,
		Price:          product.Price,
		TotalStock:     product.Stock,
		AvailableStock: available,
	})
}
