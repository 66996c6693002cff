// Package reconciler computes safe per-pool target sizes and applies them
// through the cluster topology.
package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/deployments"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/pool"
)

// NodeRemover tears down the resources of one node.
type NodeRemover interface {
	Teardown(ctx context.Context, node models.Node) error
}

// Reclaimer makes cordoned agents of a pool schedulable again before new
// agents are requested.
type Reclaimer interface {
	Reclaim(ctx context.Context, pool models.AgentPool, count int) (int, error)
}

// Reconciler drives one reconciliation pass over a pool snapshot.
type Reconciler struct {
	topology   Topology
	serializer *deployments.Serializer
	remover    NodeRemover
	reclaimer  Reclaimer
	logger     *zap.Logger
}

// New creates a Reconciler. reclaimer may be nil.
func New(topology Topology, serializer *deployments.Serializer, remover NodeRemover, reclaimer Reclaimer, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		topology:   topology,
		serializer: serializer,
		remover:    remover,
		reclaimer:  reclaimer,
		logger:     logger,
	}
}

// Topology returns the name of the configured topology.
func (r *Reconciler) Topology() string {
	return r.topology.Name()
}

// ScaleUp grows pools to the absolute sizes given, clamped to each pool's
// maximum.
func (r *Reconciler) ScaleUp(ctx context.Context, pools []models.AgentPool, sizes models.PoolSizes, dryRun bool) (models.ReconcileResult, error) {
	return r.Reconcile(ctx, pools, models.ScaleIntent{ScaleUp: true, Pools: sizes, DryRun: dryRun})
}

// ScaleDown removes trim[pool] agents from each pool.
func (r *Reconciler) ScaleDown(ctx context.Context, pools []models.AgentPool, trim models.PoolSizes, dryRun bool) (models.ReconcileResult, error) {
	return r.Reconcile(ctx, pools, models.ScaleIntent{ScaleUp: false, Pools: trim, DryRun: dryRun})
}

// Reconcile computes clamped targets for intent and applies them unless every
// pool is already at target or the intent is a dry run.
func (r *Reconciler) Reconcile(ctx context.Context, pools []models.AgentPool, intent models.ScaleIntent) (models.ReconcileResult, error) {
	targets, err := Targets(pools, intent)
	if err != nil {
		return models.ReconcileResult{Outcome: models.OutcomeFailed}, err
	}
	result := models.ReconcileResult{Targets: targets}

	hasChanges := false
	for _, p := range pools {
		target := targets[p.Name]
		middleware.PoolTargetCapacity.WithLabelValues(p.Name).Set(float64(target))
		if target == p.ActualCapacity {
			r.logger.Info("Pool already at desired capacity",
				zap.String("pool", p.Name),
				zap.Int("capacity", p.ActualCapacity),
			)
			continue
		}
		hasChanges = true
		if intent.DryRun {
			r.logger.Info("[Dry run] Would have scaled pool",
				zap.String("pool", p.Name),
				zap.Int("target", target),
				zap.Int("current", p.ActualCapacity),
			)
		}
	}

	if !hasChanges {
		result.Outcome = models.OutcomeNoChange
		return result, nil
	}
	if intent.DryRun {
		result.Outcome = models.OutcomeDryRun
		return result, nil
	}

	if intent.ScaleUp {
		r.reclaim(ctx, pools, targets)
	}

	if err := r.topology.Apply(ctx, pools, targets, intent.ScaleUp); err != nil {
		result.Outcome = models.OutcomeFailed
		return result, err
	}
	result.Outcome = models.OutcomeChanged
	return result, nil
}

// Targets computes the clamped target of every pool. It fails without side
// effects if any pool would drop below one agent.
func Targets(pools []models.AgentPool, intent models.ScaleIntent) (models.PoolSizes, error) {
	targets := make(models.PoolSizes, len(pools))
	for _, p := range pools {
		var candidate int
		if intent.ScaleUp {
			size, ok := intent.Pools[p.Name]
			if !ok {
				size = p.ActualCapacity
			}
			if size < 1 {
				return nil, fmt.Errorf("%w: tried to scale pool %s to %d agents", models.ErrInvalidScaleUp, p.Name, size)
			}
			candidate = size
		} else {
			trim := intent.Pools[p.Name]
			if trim < 0 {
				return nil, fmt.Errorf("%w: negative trim %d for pool %s", models.ErrInvalidScaleDown, trim, p.Name)
			}
			candidate = p.ActualCapacity - trim
			if candidate <= 0 {
				return nil, fmt.Errorf("%w: tried to scale down pool %s to less than 1 agent", models.ErrInvalidScaleDown, p.Name)
			}
		}
		targets[p.Name] = Clamp(candidate, p.MaxSize)
	}
	return targets, nil
}

// Clamp bounds candidate by the pool maximum.
func Clamp(candidate, maxSize int) int {
	return min(candidate, maxSize)
}

func (r *Reconciler) reclaim(ctx context.Context, pools []models.AgentPool, targets models.PoolSizes) {
	if r.reclaimer == nil {
		return
	}
	for _, p := range pools {
		grow := targets[p.Name] - p.ActualCapacity
		if grow <= 0 {
			continue
		}
		n, err := r.reclaimer.Reclaim(ctx, p, grow)
		if err != nil {
			r.logger.Warn("Failed to reclaim unschedulable nodes",
				zap.String("pool", p.Name),
				zap.Error(err),
			)
			continue
		}
		if n > 0 {
			r.logger.Info("Reclaimed unschedulable nodes", zap.String("pool", p.Name), zap.Int("count", n))
		}
	}
}

// DeleteNode removes a single node from poolName. The accompanying snapshot
// is the current pool sizes with the owning pool decremented by one.
func (r *Reconciler) DeleteNode(ctx context.Context, pools []models.AgentPool, poolName string, node models.Node, dryRun bool) (models.Outcome, error) {
	p, ok := pool.Find(pools, poolName)
	if !ok {
		return models.OutcomeFailed, fmt.Errorf("delete node %s: unknown pool %s", node.Name, poolName)
	}
	if p.ActualCapacity-1 <= 0 {
		return models.OutcomeFailed, fmt.Errorf("%w: deleting %s would empty pool %s", models.ErrInvalidScaleDown, node.Name, poolName)
	}

	sizes := models.SizesOf(pools)
	sizes[poolName] = p.ActualCapacity - 1

	if dryRun {
		r.logger.Info("[Dry run] Would have deleted node",
			zap.String("pool", poolName),
			zap.String("node", node.Name),
		)
		return models.OutcomeDryRun, nil
	}

	err := r.serializer.Deploy(ctx, func(ctx context.Context) error {
		return r.remover.Teardown(ctx, node)
	}, sizes)
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("delete node %s from pool %s: %w", node.Name, poolName, err)
	}
	return models.OutcomeChanged, nil
}
