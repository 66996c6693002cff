package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/deployments"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	tmpl "github.com/QSFT/Kubernetes-acs-autoscaler/internal/template"
)

// Topology applies already-clamped pool targets to the provider.
type Topology interface {
	Name() string
	Apply(ctx context.Context, pools []models.AgentPool, targets models.PoolSizes, scaleUp bool) error
}

// PoolResizer sets the agent count of a managed container service pool in
// place.
type PoolResizer interface {
	ResizeFixedPool(ctx context.Context, pool string, count int) error
}

// TemplateDeployer redeploys an ARM template with the given parameters.
type TemplateDeployer interface {
	RedeployTemplate(ctx context.Context, template, parameters map[string]any) error
}

// Fixed is a cluster managed by a container service object whose agent count
// is set directly. Each changed pool is resized by its own serialized call and
// committed independently of the others.
type Fixed struct {
	resizer    PoolResizer
	serializer *deployments.Serializer
	logger     *zap.Logger
}

// NewFixed creates a fixed topology.
func NewFixed(resizer PoolResizer, serializer *deployments.Serializer, logger *zap.Logger) *Fixed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fixed{resizer: resizer, serializer: serializer, logger: logger}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Apply(ctx context.Context, pools []models.AgentPool, targets models.PoolSizes, scaleUp bool) error {
	for _, p := range pools {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, ok := targets[p.Name]
		if !ok || target == p.ActualCapacity {
			continue
		}
		if err := f.resize(ctx, p.Name, target, targets); err != nil {
			return err
		}
	}
	return nil
}

// resize takes pool and size by value so each deferred call resizes exactly
// the pool it was issued for.
func (f *Fixed) resize(ctx context.Context, pool string, size int, snapshot models.PoolSizes) error {
	f.logger.Info("Resizing pool", zap.String("pool", pool), zap.Int("size", size))
	err := f.serializer.Deploy(ctx, func(ctx context.Context) error {
		return f.resizer.ResizeFixedPool(ctx, pool, size)
	}, snapshot)
	if err != nil {
		return fmt.Errorf("resize pool %s to %d: %w", pool, size, err)
	}
	return nil
}

// Templated is a cluster whose capacity is changed by redeploying its ARM
// template. All pools go out in one combined deployment.
type Templated struct {
	deployer   TemplateDeployer
	serializer *deployments.Serializer
	template   map[string]any
	parameters map[string]any
	logger     *zap.Logger
}

// NewTemplated creates a templated topology from the base template and
// parameters. Both are treated as read-only.
func NewTemplated(deployer TemplateDeployer, serializer *deployments.Serializer, template, parameters map[string]any, logger *zap.Logger) *Templated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Templated{
		deployer:   deployer,
		serializer: serializer,
		template:   template,
		parameters: parameters,
		logger:     logger,
	}
}

func (t *Templated) Name() string { return "templated" }

func (t *Templated) Apply(ctx context.Context, pools []models.AgentPool, targets models.PoolSizes, scaleUp bool) error {
	params := tmpl.WithPoolSizes(t.parameters, pools, targets, scaleUp)

	template := t.template
	if scaleUp {
		mutated, err := tmpl.MutateForScaleUp(t.template)
		if err != nil {
			return fmt.Errorf("prepare template for scale up: %w", err)
		}
		template = mutated
	}

	t.logger.Info("Redeploying template",
		zap.Any("pool_sizes", targets),
		zap.Bool("scale_up", scaleUp),
	)
	err := t.serializer.Deploy(ctx, func(ctx context.Context) error {
		return t.deployer.RedeployTemplate(ctx, template, params)
	}, targets)
	if err != nil {
		return fmt.Errorf("redeploy template: %w", err)
	}
	return nil
}
