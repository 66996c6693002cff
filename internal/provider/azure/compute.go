package azure

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/teardown"
)

// GetInstanceMetadata reads the VM and resolves its OS disk blob. VMs on
// managed disks have no blob and return a zero DiskLocation.
func (p *Provider) GetInstanceMetadata(ctx context.Context, name string) (models.InstanceMetadata, error) {
	resp, err := p.vms.Get(ctx, p.resourceGroup, name, nil)
	if err != nil {
		return models.InstanceMetadata{}, notFound(fmt.Errorf("get vm %s: %w", name, err))
	}

	meta := models.InstanceMetadata{Name: name}
	props := resp.VirtualMachine.Properties
	if props == nil || props.StorageProfile == nil || props.StorageProfile.OSDisk == nil ||
		props.StorageProfile.OSDisk.Vhd == nil || props.StorageProfile.OSDisk.Vhd.URI == nil {
		p.logger.Debug("VM has no VHD, assuming managed disk", zap.String("node", name))
		return meta, nil
	}

	disk, err := ParseVHDURI(*props.StorageProfile.OSDisk.Vhd.URI)
	if err != nil {
		return models.InstanceMetadata{}, fmt.Errorf("vm %s: %w", name, err)
	}
	meta.Disk = disk
	return meta, nil
}

// DeleteInstance starts deleting the VM.
func (p *Provider) DeleteInstance(ctx context.Context, name string) (teardown.Operation, error) {
	poller, err := p.vms.BeginDelete(ctx, p.resourceGroup, name, nil)
	if err != nil {
		if isNotFound(err) {
			return completed{}, nil
		}
		return nil, fmt.Errorf("delete vm %s: %w", name, err)
	}
	return operation(poller), nil
}

// ParseVHDURI splits https://<account>.blob.core.windows.net/<container>/<blob>
// into its parts.
func ParseVHDURI(raw string) (models.DiskLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return models.DiskLocation{}, fmt.Errorf("invalid vhd uri %q: %w", raw, err)
	}
	account, _, _ := strings.Cut(u.Host, ".")
	container, blob, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if account == "" || !ok || container == "" || blob == "" {
		return models.DiskLocation{}, fmt.Errorf("invalid vhd uri %q", raw)
	}
	return models.DiskLocation{Account: account, Container: container, Blob: blob}, nil
}
