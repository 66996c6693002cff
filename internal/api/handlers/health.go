package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// Pinger checks a dependency the autoscaler needs to make decisions.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health and readiness checks
type HealthHandler struct {
	redis  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler. redis may be nil when no
// decision source is configured.
func NewHealthHandler(redis Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		redis:  redis,
		logger: logger,
	}
}

// HandleHealth handles GET /api/v1/health (liveness probe)
// Returns 200 unconditionally. Liveness must not depend on Redis or Azure.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status: "ok",
	}
	respondWithJSON(w, http.StatusOK, response)
}

// HandleReady handles GET /api/v1/ready (readiness probe)
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.redis != nil {
		if err := h.redis.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed: redis unavailable", zap.Error(err))
			respondWithError(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
	}

	response := map[string]string{
		"status": "ready",
	}
	respondWithJSON(w, http.StatusOK, response)
}
