package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// StatusProvider exposes the state of the control loop.
type StatusProvider interface {
	Snapshot() models.StatusResponse
}

// LeaderChecker provides leader election status
type LeaderChecker interface {
	IsLeader() bool
}

// StatusHandler handles status requests
type StatusHandler struct {
	status StatusProvider
	redis  Pinger
	leader LeaderChecker
	logger *zap.Logger
}

// NewStatusHandler creates a new status handler. redis and leader may be nil.
func NewStatusHandler(status StatusProvider, redis Pinger, leader LeaderChecker, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{
		status: status,
		redis:  redis,
		leader: leader,
		logger: logger,
	}
}

// Handle handles GET /api/v1/status
func (h *StatusHandler) Handle(w http.ResponseWriter, r *http.Request) {
	response := h.status.Snapshot()

	response.Redis = "disabled"
	if h.redis != nil {
		response.Redis = "up"
		if err := h.redis.Ping(r.Context()); err != nil {
			response.Redis = "down"
			h.logger.Error("status check: redis down", zap.Error(err))
		}
	}

	// without election every replica scales
	response.Leader = h.leader == nil || h.leader.IsLeader()

	respondWithJSON(w, http.StatusOK, response)
}
