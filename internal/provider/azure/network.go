package azure

import (
	"context"
	"fmt"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/teardown"
)

// DeleteNetworkInterface starts deleting the NIC.
func (p *Provider) DeleteNetworkInterface(ctx context.Context, name string) (teardown.Operation, error) {
	poller, err := p.nics.BeginDelete(ctx, p.resourceGroup, name, nil)
	if err != nil {
		if isNotFound(err) {
			return completed{}, nil
		}
		return nil, fmt.Errorf("delete nic %s: %w", name, err)
	}
	return operation(poller), nil
}
