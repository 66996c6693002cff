package autoscaler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
)

// Passer runs one control loop pass.
type Passer interface {
	ScaleLoop(ctx context.Context) (bool, error)
}

// Loop repeats passes: after a pass that scaled it sleeps the base interval,
// otherwise it doubles the backoff and sleeps that.
type Loop struct {
	cluster    Passer
	sleep      time.Duration
	maxBackoff time.Duration
	debug      bool
	status     *Status
	wait       func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

// NewLoop creates a Loop. maxBackoff of zero leaves the backoff unbounded;
// debug makes the first failed pass end Run with its error.
func NewLoop(cluster Passer, sleep, maxBackoff time.Duration, debug bool, status *Status, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cluster:    cluster,
		sleep:      sleep,
		maxBackoff: maxBackoff,
		debug:      debug,
		status:     status,
		wait:       sleepCtx,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, or until a pass fails in debug mode.
func (l *Loop) Run(ctx context.Context) error {
	backoff := l.sleep
	for {
		scaled, err := l.runPass(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.logger.Error("Reconciliation pass failed", zap.Error(err))
			if l.debug {
				return err
			}
		}

		var delay time.Duration
		if scaled {
			backoff = l.sleep
			delay = l.sleep
		} else {
			backoff = l.next(backoff)
			delay = backoff
			l.logger.Info("Backing off", zap.Duration("backoff", backoff))
		}

		middleware.BackoffSeconds.Set(delay.Seconds())
		if l.status != nil {
			l.status.SetBackoff(delay)
		}
		if err := l.wait(ctx, delay); err != nil {
			return nil
		}
	}
}

// runPass recovers a panicking pass into an error so one bad pass never
// kills the loop.
func (l *Loop) runPass(ctx context.Context) (scaled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			middleware.PanicsRecoveredTotal.Inc()
			l.logger.Error("Reconciliation pass panicked", zap.Any("panic", r), zap.Stack("stack"))
			scaled = false
			err = &panicError{value: r}
		}
	}()
	return l.cluster.ScaleLoop(ctx)
}

func (l *Loop) next(backoff time.Duration) time.Duration {
	backoff *= 2
	if l.maxBackoff > 0 && backoff > l.maxBackoff {
		backoff = l.maxBackoff
	}
	return backoff
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("pass panicked: %v", e.value)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
