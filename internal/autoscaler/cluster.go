// Package autoscaler runs the outer control loop: discover nodes, decide,
// reconcile, remove idle nodes and report.
package autoscaler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/decider"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/naming"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/notifier"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/pool"
)

// NodeSource lists the agent nodes of the cluster.
type NodeSource interface {
	ListAgentNodes(ctx context.Context) ([]models.Node, error)
}

// Decider plans a pass from a pool snapshot.
type Decider interface {
	Decide(ctx context.Context, pools []models.AgentPool, now time.Time) (decider.Decision, error)
}

// Applier applies intents and node deletions.
type Applier interface {
	Reconcile(ctx context.Context, pools []models.AgentPool, intent models.ScaleIntent) (models.ReconcileResult, error)
	DeleteNode(ctx context.Context, pools []models.AgentPool, poolName string, node models.Node, dryRun bool) (models.Outcome, error)
}

// ClusterOptions wires a Cluster.
type ClusterOptions struct {
	Name        string
	Nodes       NodeSource
	Names       naming.Strategy
	MaxPoolSize int
	Decider     Decider
	Applier     Applier
	Notifier    notifier.Notifier
	Status      *Status
	DryRun      bool
}

// Cluster runs single passes over one cluster.
type Cluster struct {
	name        string
	nodes       NodeSource
	names       naming.Strategy
	maxPoolSize int
	decider     Decider
	applier     Applier
	notifier    notifier.Notifier
	status      *Status
	dryRun      bool
	now         func() time.Time
	logger      *zap.Logger
}

// NewCluster creates a Cluster. Notifier and Status are optional.
func NewCluster(opts ClusterOptions, logger *zap.Logger) *Cluster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cluster{
		name:        opts.Name,
		nodes:       opts.Nodes,
		names:       opts.Names,
		maxPoolSize: opts.MaxPoolSize,
		decider:     opts.Decider,
		applier:     opts.Applier,
		notifier:    opts.Notifier,
		status:      opts.Status,
		dryRun:      opts.DryRun,
		now:         time.Now,
		logger:      logger.With(zap.String("cluster", opts.Name)),
	}
}

// ScaleLoop runs one pass and reports whether capacity was changed.
func (c *Cluster) ScaleLoop(ctx context.Context) (bool, error) {
	pass := models.PassStatus{StartedAt: c.now()}
	scaled, err := c.scale(ctx, &pass)

	pass.FinishedAt = c.now()
	switch {
	case err != nil:
		pass.Outcome = models.OutcomeFailed
		pass.Error = err.Error()
	case pass.Outcome == "":
		pass.Outcome = models.OutcomeNoChange
	}
	middleware.PassesTotal.WithLabelValues(string(pass.Outcome)).Inc()
	if c.status != nil {
		c.status.Record(pass)
	}
	return scaled, err
}

func (c *Cluster) scale(ctx context.Context, pass *models.PassStatus) (bool, error) {
	nodes, err := c.nodes.ListAgentNodes(ctx)
	if err != nil {
		return false, err
	}

	pools, err := pool.Partition(nodes, c.names, c.maxPoolSize)
	if err != nil {
		if errors.Is(err, models.ErrMalformedNodeName) {
			c.logger.Error("Skipping pass", zap.Error(err))
			pass.Outcome = models.OutcomeSkipped
			pass.Error = err.Error()
			return false, nil
		}
		return false, err
	}
	for _, p := range pools {
		middleware.PoolActualCapacity.WithLabelValues(p.Name).Set(float64(p.ActualCapacity))
	}
	c.logger.Debug("Discovered agent pools", zap.Int("pools", len(pools)), zap.Int("nodes", len(nodes)))

	decision, err := c.decider.Decide(ctx, pools, c.now())
	if err != nil {
		pass.Pools = poolInfo(pools, nil)
		return false, err
	}

	scaled := false
	if decision.Intent != nil {
		intent := *decision.Intent
		intent.DryRun = c.dryRun
		result, err := c.applier.Reconcile(ctx, pools, intent)
		pass.Pools = poolInfo(pools, result.Targets)
		pass.Outcome = result.Outcome
		if err != nil {
			return false, err
		}
		if result.Outcome == models.OutcomeChanged || result.Outcome == models.OutcomeDryRun {
			kind := notifier.EventScaleDown
			if intent.ScaleUp {
				kind = notifier.EventScaleUp
			}
			c.notify(ctx, notifier.Event{Kind: kind, Targets: result.Targets, DryRun: intent.DryRun})
		}
		scaled = result.Outcome.Scaled()
	} else {
		pass.Pools = poolInfo(pools, nil)
	}

	deleted, err := c.deleteNodes(ctx, pools, decision.Deletions, pass)
	if deleted {
		scaled = true
	}
	return scaled, err
}

// deleteNodes removes nominated nodes one at a time, keeping the local
// snapshot current so every deletion sees the pool sizes left by the
// previous one.
func (c *Cluster) deleteNodes(ctx context.Context, pools []models.AgentPool, deletions []models.NodeDeletion, pass *models.PassStatus) (bool, error) {
	var errs []error
	deleted := false
	for _, d := range deletions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outcome, err := c.applier.DeleteNode(ctx, pools, d.Pool, d.Node, c.dryRun)
		if err != nil {
			c.logger.Error("Failed to delete node",
				zap.String("pool", d.Pool),
				zap.String("node", d.Node.Name),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		c.notify(ctx, notifier.Event{Kind: notifier.EventNodeDelete, Pool: d.Pool, Node: d.Node.Name, DryRun: c.dryRun})
		if outcome != models.OutcomeChanged {
			continue
		}
		deleted = true
		pass.Deleted = append(pass.Deleted, d.Node.Name)
		pass.Outcome = models.OutcomeChanged
		for i := range pools {
			if pools[i].Name == d.Pool {
				pools[i].ActualCapacity--
			}
		}
	}
	if len(errs) > 0 {
		return deleted, fmt.Errorf("node deletion failed: %w", errors.Join(errs...))
	}
	return deleted, nil
}

func (c *Cluster) notify(ctx context.Context, event notifier.Event) {
	if c.notifier == nil {
		return
	}
	event.Cluster = c.name
	event.Time = c.now()
	// delivery failures are logged by the notifier
	_ = c.notifier.Notify(ctx, event)
}

func poolInfo(pools []models.AgentPool, targets models.PoolSizes) []models.PoolInfo {
	info := make([]models.PoolInfo, 0, len(pools))
	for _, p := range pools {
		target, ok := targets[p.Name]
		if !ok {
			target = p.ActualCapacity
		}
		info = append(info, models.PoolInfo{
			Name:           p.Name,
			ActualCapacity: p.ActualCapacity,
			MaxSize:        p.MaxSize,
			Target:         target,
		})
	}
	return info
}
