// Package teardown removes the backing resources of a single agent node.
package teardown

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/naming"
)

// Operation is a long-running provider operation.
type Operation interface {
	Wait(ctx context.Context) error
}

// Infrastructure is the subset of provider calls teardown consumes.
// Deleting an absent resource must succeed; GetInstanceMetadata returns
// models.ErrNotFound for an absent instance.
type Infrastructure interface {
	GetInstanceMetadata(ctx context.Context, name string) (models.InstanceMetadata, error)
	DeleteInstance(ctx context.Context, name string) (Operation, error)
	DeleteNetworkInterface(ctx context.Context, name string) (Operation, error)
	ListStorageKeys(ctx context.Context, account string) ([]string, error)
	DeleteBlob(ctx context.Context, account, key, container, blob string) error
}

// Sequencer deletes a node's VM, NIC and OS disk blob, in that order. It must
// only run while holding the cluster's deployment slot.
type Sequencer struct {
	infra  Infrastructure
	names  naming.Strategy
	logger *zap.Logger
}

// NewSequencer creates a new Sequencer.
func NewSequencer(infra Infrastructure, names naming.Strategy, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		infra:  infra,
		names:  names,
		logger: logger,
	}
}

// Teardown removes every resource backing node. Resources already gone are
// skipped, so a teardown interrupted by a failure can be re-run from scratch.
func (s *Sequencer) Teardown(ctx context.Context, node models.Node) error {
	log := s.logger.With(zap.String("node", node.Name))
	log.Info("Deleting node")

	// The NIC name is derived up front so a malformed name fails before any
	// resource is touched.
	nicName, err := s.names.NICNameOf(node.Name)
	if err != nil {
		return err
	}

	// 1. Resolve the disk location while the VM still exists.
	instanceGone := false
	meta, err := s.infra.GetInstanceMetadata(ctx, node.Name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn("VM already deleted, disk location cannot be resolved")
		instanceGone = true
	case err != nil:
		return s.fail("resolve_disk", node.Name, err)
	}

	// 2. Delete the VM.
	if !instanceGone {
		log.Info("Deleting VM")
		if err := wait(ctx, s.infra.DeleteInstance, node.Name); err != nil {
			return s.fail("delete_vm", node.Name, err)
		}
		middleware.TeardownStepsTotal.WithLabelValues("delete_vm", "success").Inc()
	}

	// 3. Delete the NIC.
	log.Info("Deleting NIC", zap.String("nic", nicName))
	if err := wait(ctx, s.infra.DeleteNetworkInterface, nicName); err != nil {
		return s.fail("delete_nic", node.Name, err)
	}
	middleware.TeardownStepsTotal.WithLabelValues("delete_nic", "success").Inc()

	// 4. Delete the OS disk blob.
	if instanceGone {
		// An unmanaged disk left by an earlier failed run is no longer
		// reachable from the VM and has to be removed by hand.
		log.Warn("OS disk blob may be leaked, VM was gone before its disk could be resolved",
			zap.String("nic", nicName),
		)
		return nil
	}
	if meta.Disk.IsZero() {
		log.Info("No OS disk blob to delete")
		return nil
	}
	log.Info("Deleting OS disk",
		zap.String("account", meta.Disk.Account),
		zap.String("container", meta.Disk.Container),
		zap.String("blob", meta.Disk.Blob),
	)
	keys, err := s.infra.ListStorageKeys(ctx, meta.Disk.Account)
	if err != nil {
		return s.fail("delete_disk", node.Name, err)
	}
	if len(keys) == 0 {
		return s.fail("delete_disk", node.Name, fmt.Errorf("storage account %s has no keys", meta.Disk.Account))
	}
	if err := s.infra.DeleteBlob(ctx, meta.Disk.Account, keys[0], meta.Disk.Container, meta.Disk.Blob); err != nil {
		return s.fail("delete_disk", node.Name, err)
	}
	middleware.TeardownStepsTotal.WithLabelValues("delete_disk", "success").Inc()

	log.Info("Node deleted")
	return nil
}

func (s *Sequencer) fail(step, node string, err error) error {
	middleware.TeardownStepsTotal.WithLabelValues(step, "error").Inc()
	return fmt.Errorf("teardown %s: %s: %w", node, step, err)
}

func wait(ctx context.Context, begin func(context.Context, string) (Operation, error), name string) error {
	op, err := begin(ctx, name)
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}
