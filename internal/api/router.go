package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/handlers"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
)

// NewRouter creates a new Chi router with all routes and middleware configured.
// redis and leader may be nil.
func NewRouter(status handlers.StatusProvider, redis handlers.Pinger, leader handlers.LeaderChecker, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// Apply middleware stack
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Initialize handlers
	statusHandler := handlers.NewStatusHandler(status, redis, leader, logger)
	healthHandler := handlers.NewHealthHandler(redis, logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler.Handle)

		// Health and readiness endpoints
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/ready", healthHandler.HandleReady)

		// Metrics endpoint
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	})

	return r
}
