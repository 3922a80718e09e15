package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront-cart/internal/cart"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxQuantity = 99

// CartService is the part of the cart service the handlers use.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (cart.Snapshot, error)
	AddItem(ctx context.Context, sessionID, productID, variantID string, quantity int) (cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, sessionID, productID, variantID string, quantity int) (cart.Snapshot, error)
	RemoveItem(ctx context.Context, sessionID, productID, variantID string) (cart.Snapshot, error)
	ClearCart(ctx context.Context, sessionID string) (cart.Snapshot, error)
	ToggleDrawer(ctx context.Context, sessionID string) (cart.Snapshot, error)
	SetDrawer(ctx context.Context, sessionID string, open bool) (cart.Snapshot, error)
}

type CartHandler struct {
	service CartService
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(service CartService, timeout time.Duration, log *zap.Logger) *CartHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartHandler{
		service: service,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type DrawerRequestDTO struct {
	Open bool `json:"open"`
}

type CartResponse struct {
	SessionID string `json:"sessionId"`
	cart.Snapshot
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int, sessionID string, snap cart.Snapshot) {
	respondJSON(w, h.log, status, CartResponse{SessionID: sessionID, Snapshot: snap})
}

// withCart runs fn with a timeout-bound context and the caller's session id,
// writing either the resulting cart or the mapped error.
func (h *CartHandler) withCart(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, sessionID string) (cart.Snapshot, error)) {

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, h.log, http.StatusBadRequest, "missing_session", "missing cart session")
		return
	}

	snap, err := fn(ctx, sessionID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	h.respondCart(w, status, sessionID, snap)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, http.StatusOK, h.service.GetCart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	h.withCart(w, r, http.StatusCreated, func(ctx context.Context, sessionID string) (cart.Snapshot, error) {
		return h.service.AddItem(ctx, sessionID, req.ProductID, strings.TrimSpace(req.VariantID), req.Quantity)
	})
}

// UpdateQuantity sets a line's quantity. Zero or a negative quantity removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	productID, variantID := lineParams(r)
	h.withCart(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (cart.Snapshot, error) {
		return h.service.UpdateQuantity(ctx, sessionID, productID, variantID, req.Quantity)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, variantID := lineParams(r)
	h.withCart(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (cart.Snapshot, error) {
		return h.service.RemoveItem(ctx, sessionID, productID, variantID)
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, http.StatusOK, h.service.ClearCart)
}

func (h *CartHandler) ToggleDrawer(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, http.StatusOK, h.service.ToggleDrawer)
}

func (h *CartHandler) SetDrawer(w http.ResponseWriter, r *http.Request) {
	var req DrawerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	h.withCart(w, r, http.StatusOK, func(ctx context.Context, sessionID string) (cart.Snapshot, error) {
		return h.service.SetDrawer(ctx, sessionID, req.Open)
	})
}

func lineParams(r *http.Request) (productID, variantID string) {
	return chi.URLParam(r, "product_id"), chi.URLParam(r, "variant_id")
}
