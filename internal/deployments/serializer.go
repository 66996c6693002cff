// Package deployments serializes capacity-mutating operations against a
// cluster. The provider rejects overlapping deployments in one resource
// group, so every resize, redeploy and node teardown goes through a single
// slot per cluster.
package deployments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// Operation is a single mutating provider call.
type Operation func(ctx context.Context) error

// Serializer owns the deployment slot of one cluster.
type Serializer struct {
	cluster string
	slot    chan struct{}
	logger  *zap.Logger

	mu   sync.Mutex
	last models.PoolSizes
}

// NewSerializer creates a serializer for the given cluster identity.
func NewSerializer(cluster string, logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{
		cluster: cluster,
		slot:    make(chan struct{}, 1),
		logger:  logger.With(zap.String("cluster", cluster)),
	}
}

// Cluster returns the cluster identity this serializer guards.
func (s *Serializer) Cluster() string {
	return s.cluster
}

// Deploy runs op once the slot is free. Waiting for the slot honours ctx; once
// op has started it runs to completion with a context that cannot be
// cancelled. The provider's error is returned unchanged and never retried.
func (s *Serializer) Deploy(ctx context.Context, op Operation, sizes models.PoolSizes) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for deployment slot: %w", err)
	}
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for deployment slot: %w", ctx.Err())
	}
	defer func() { <-s.slot }()

	// select picks randomly when both cases are ready.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for deployment slot: %w", err)
	}

	snapshot := sizes.Clone()
	s.mu.Lock()
	s.last = snapshot
	s.mu.Unlock()

	s.logger.Info("Starting deployment", zap.Any("pool_sizes", snapshot))
	inFlight := middleware.DeploymentsInFlight.WithLabelValues(s.cluster)
	inFlight.Inc()
	defer inFlight.Dec()
	start := time.Now()

	err := op(context.WithoutCancel(ctx))

	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start)
	middleware.DeploymentDuration.WithLabelValues(s.cluster, status).Observe(duration.Seconds())

	if err != nil {
		s.logger.Error("Deployment failed",
			zap.Any("pool_sizes", snapshot),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("Deployment completed",
		zap.Any("pool_sizes", snapshot),
		zap.Duration("duration", duration),
	)
	return nil
}

// LastSubmitted returns the pool sizes accompanying the most recent operation.
func (s *Serializer) LastSubmitted() models.PoolSizes {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last.Clone()
}

// Registry hands out one Serializer per cluster identity.
type Registry struct {
	mu          sync.Mutex
	serializers map[string]*Serializer
	logger      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		serializers: make(map[string]*Serializer),
		logger:      logger,
	}
}

// For returns the serializer for cluster, creating it on first use.
func (r *Registry) For(cluster string) *Serializer {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.serializers[cluster]
	if !ok {
		s = NewSerializer(cluster, r.logger)
		r.serializers[cluster] = s
	}
	return s
}

// ClusterID builds the identity of a cluster from its resource group and,
// for fixed topologies, its container service name.
func ClusterID(resourceGroup, containerService string) string {
	if containerService == "" {
		return resourceGroup
	}
	return resourceGroup + "/" + containerService
}
