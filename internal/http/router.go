package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func NewRouter(h *CartHandler, log *zap.Logger, timeout time.Duration) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)

		r.Post("/items", h.AddItem)
		r.Put("/items/{product_id}", h.UpdateQuantity)
		r.Delete("/items/{product_id}", h.RemoveItem)
		r.Put("/items/{product_id}/variants/{variant_id}", h.UpdateQuantity)
		r.Delete("/items/{product_id}/variants/{variant_id}", h.RemoveItem)

		r.Post("/drawer/toggle", h.ToggleDrawer)
		r.Put("/drawer", h.SetDrawer)
	})

	return otelhttp.NewHandler(r, "storefront-cart")
}
