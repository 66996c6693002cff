// Package leader keeps a single autoscaler replica active per cluster using
// a Kubernetes Lease.
package leader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
)

// ErrLostLeadership is returned by Run when the lease is lost while the
// workload was still running.
var ErrLostLeadership = errors.New("lost leadership")

// Config controls the lease.
type Config struct {
	Enabled       bool
	Namespace     string
	LockName      string
	Identity      string
	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
}

// Elector runs a workload only while holding the lease.
type Elector struct {
	client   kubernetes.Interface
	config   Config
	logger   *zap.Logger
	isLeader atomic.Bool
}

// NewElector creates an Elector.
func NewElector(client kubernetes.Interface, cfg Config, logger *zap.Logger) *Elector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Elector{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// IsLeader returns true if this instance is currently the leader.
func (e *Elector) IsLeader() bool {
	return e.isLeader.Load()
}

// Run blocks until ctx is cancelled, the workload returns, or leadership is
// lost. With election disabled the workload runs directly.
func (e *Elector) Run(ctx context.Context, workload func(ctx context.Context) error) error {
	if !e.config.Enabled {
		e.logger.Info("Leader election disabled, running as leader directly")
		e.setLeader(true)
		defer e.setLeader(false)
		return workload(ctx)
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.config.LockName,
			Namespace: e.config.Namespace,
		},
		Client: e.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.config.Identity,
		},
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var started atomic.Bool
	done := make(chan error, 1)

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		ReleaseOnCancel: true,
		LeaseDuration:   e.config.LeaseDuration,
		RenewDeadline:   e.config.RenewDeadline,
		RetryPeriod:     e.config.RetryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				e.logger.Info("Acquired lease, starting control loop")
				started.Store(true)
				e.setLeader(true)
				err := workload(ctx)
				done <- err
				// the workload is over, release the lease
				cancel()
			},
			OnStoppedLeading: func() {
				e.logger.Info("Released lease")
				e.setLeader(false)
			},
			OnNewLeader: func(identity string) {
				if identity == e.config.Identity {
					return
				}
				e.logger.Info("Leader elected", zap.String("leader", identity))
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create leader elector: %w", err)
	}

	e.logger.Info("Starting leader election",
		zap.String("lock_name", e.config.LockName),
		zap.String("namespace", e.config.Namespace),
		zap.String("identity", e.config.Identity),
	)
	elector.Run(runCtx)

	if !started.Load() {
		return nil
	}
	err = <-done
	if err == nil && ctx.Err() == nil {
		return ErrLostLeadership
	}
	return err
}

func (e *Elector) setLeader(v bool) {
	e.isLeader.Store(v)
	if v {
		middleware.LeaderStatus.Set(1)
	} else {
		middleware.LeaderStatus.Set(0)
	}
}
