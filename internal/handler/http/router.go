package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shoplite/promotion/internal/service"
	"github.com/shoplite/promotion/pkg/health"
	"github.com/shoplite/promotion/pkg/middleware"
)

// NewRouter creates a chi router with all promotion service routes registered.
func NewRouter(
	promotionService *service.PromotionService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS)
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("promotion"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Promotion API endpoints
	promotionHandler := NewPromotionHandler(promotionService, logger)

	r.Route("/api/v1/promotions", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", promotionHandler.CreatePromotion)
		r.Get("/", promotionHandler.ListPromotions)

		// Item validation endpoint (must come before /{id} to avoid conflict).
		r.Post("/validate-items", promotionHandler.ValidateItems)

		r.Get("/{id}", promotionHandler.GetPromotion)
		r.Put("/{id}", promotionHandler.UpdatePromotion)
		r.Delete("/{id}", promotionHandler.DeletePromotion)
		r.Post("/{id}/evaluate", promotionHandler.EvaluatePromotion)
		r.Post("/{id}/redeem", promotionHandler.RedeemPromotion)
	})

	r.Route("/api/v1/carts/{cartId}/promo-code", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", promotionHandler.ApplyCode)
		r.Delete("/", promotionHandler.RemoveCode)
	})

	return r
}
