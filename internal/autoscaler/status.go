package autoscaler

import (
	"sync"
	"time"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// Status keeps the outcome of the most recent pass for the status endpoint.
type Status struct {
	mu       sync.RWMutex
	cluster  string
	topology string
	dryRun   bool
	last     models.PassStatus
	backoff  time.Duration
	pending  func() models.PoolSizes
}

// NewStatus creates an empty tracker. pending may be nil.
func NewStatus(cluster, topology string, dryRun bool, pending func() models.PoolSizes) *Status {
	return &Status{
		cluster:  cluster,
		topology: topology,
		dryRun:   dryRun,
		pending:  pending,
	}
}

// Record replaces the last pass.
func (s *Status) Record(pass models.PassStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = pass
}

// SetBackoff records the delay before the next pass.
func (s *Status) SetBackoff(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backoff = d
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot() models.StatusResponse {
	s.mu.RLock()
	last := s.last
	backoff := s.backoff
	s.mu.RUnlock()

	if backoff > 0 {
		last.Backoff = backoff.String()
	}
	if s.pending != nil {
		last.Pending = s.pending()
	}
	return models.StatusResponse{
		Cluster:  s.cluster,
		Topology: s.topology,
		DryRun:   s.dryRun,
		LastPass: last,
	}
}
