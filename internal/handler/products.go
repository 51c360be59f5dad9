package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// GetAllProducts returns the live product catalog assembled from the POS
// inventory feed of the caller's business.
func (h *Handler) GetAllProducts(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.currentBusiness(w, r)
	if !ok {
		return
	}

	products, err := h.service.GetAllProducts(r.Context(), businessID)
	if err != nil {
		h.internalError(w, "get products error", err, zap.Int64("businessID", businessID))
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}
