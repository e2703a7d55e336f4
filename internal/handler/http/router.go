package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vipogroup/vipo-orders/internal/config"
	"github.com/vipogroup/vipo-orders/internal/service"
	"github.com/vipogroup/vipo-orders/pkg/health"
	"github.com/vipogroup/vipo-orders/pkg/middleware"
)

// NewRouter creates a chi router with all order lifecycle routes registered.
func NewRouter(
	cfg *config.Config,
	orderService *service.OrderService,
	reconciler *service.Reconciler,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ExposedHeaders: []string{"X-Correlation-ID"},
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("orders"))
	r.Use(middleware.Tracing("orders"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	orderHandler := NewOrderHandler(orderService, logger)
	paymentHandler := NewPaymentHandler(reconciler, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
		r.Put("/{id}/status", orderHandler.UpdateOrderStatus)
		r.Post("/{id}/cancel", orderHandler.CancelOrder)
		r.Get("/{id}/audit", orderHandler.GetOrderAudit)
		r.Get("/{id}/payment-events", paymentHandler.ListOrderPaymentEvents)
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/events", paymentHandler.IngestPaymentEvent)
	})

	return r
}
