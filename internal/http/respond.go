package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/service"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, log *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, log *zap.Logger, status int, code, message string) {
	respondJSON(w, log, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts cart service errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, log, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrInvalidProduct):
		respondError(w, log, http.StatusUnprocessableEntity, "invalid_product", err.Error())
	case errors.Is(err, service.ErrMissingSession):
		respondError(w, log, http.StatusBadRequest, "missing_session", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, log, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, catalog.ErrVariantNotFound):
		respondError(w, log, http.StatusNotFound, "variant_not_found", "variant not found")
	case errors.Is(err, service.ErrStorageUnavailable):
		respondError(w, log, http.StatusServiceUnavailable, "storage_unavailable", "cart storage is temporarily unavailable")
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		respondError(w, log, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is temporarily unavailable")
	default:
		log.Error("cart request failed", zap.Error(err))
		respondError(w, log, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
