package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"go.uber.org/zap"
)

// RedeployTemplate submits an incremental deployment of template with
// parameters and blocks until ARM reports a terminal state.
func (p *Provider) RedeployTemplate(ctx context.Context, template, parameters map[string]any) error {
	deployment := armresources.Deployment{
		Properties: &armresources.DeploymentProperties{
			Mode:       to.Ptr(armresources.DeploymentModeIncremental),
			Template:   template,
			Parameters: parameters,
		},
	}

	p.logger.Info("Submitting deployment",
		zap.String("resource_group", p.resourceGroup),
		zap.String("deployment", DeploymentName),
	)
	poller, err := p.deployments.BeginCreateOrUpdate(ctx, p.resourceGroup, DeploymentName, deployment, nil)
	if err != nil {
		return fmt.Errorf("create deployment %s: %w", DeploymentName, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return fmt.Errorf("deployment %s: %w", DeploymentName, err)
	}
	if resp.Properties != nil && resp.Properties.ProvisioningState != nil {
		p.logger.Info("Deployment finished",
			zap.String("deployment", DeploymentName),
			zap.String("state", string(*resp.Properties.ProvisioningState)),
		)
	}
	return nil
}
