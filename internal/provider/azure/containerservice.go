package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"go.uber.org/zap"
)

// ResizeFixedPool sets the agent count of a container service pool in place.
// Clusters with a single agent pool profile accept any pool name.
func (p *Provider) ResizeFixedPool(ctx context.Context, pool string, count int) error {
	resp, err := p.clusters.Get(ctx, p.resourceGroup, p.containerService, nil)
	if err != nil {
		return fmt.Errorf("get container service %s: %w", p.containerService, err)
	}
	cluster := resp.ManagedCluster

	if err := setAgentCount(&cluster, pool, count); err != nil {
		return err
	}

	p.logger.Info("Updating container service",
		zap.String("container_service", p.containerService),
		zap.String("pool", pool),
		zap.Int("count", count),
	)
	poller, err := p.clusters.BeginCreateOrUpdate(ctx, p.resourceGroup, p.containerService, cluster, nil)
	if err != nil {
		return fmt.Errorf("update container service %s: %w", p.containerService, err)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return fmt.Errorf("update container service %s: %w", p.containerService, err)
	}
	return nil
}

// setAgentCount updates the matching agent pool profile and clears the
// service principal profile, which the API rejects on update-in-place.
func setAgentCount(cluster *armcontainerservice.ManagedCluster, pool string, count int) error {
	if cluster.Properties == nil || len(cluster.Properties.AgentPoolProfiles) == 0 {
		return fmt.Errorf("container service has no agent pool profiles")
	}
	profiles := cluster.Properties.AgentPoolProfiles

	var profile *armcontainerservice.ManagedClusterAgentPoolProfile
	for _, prof := range profiles {
		if prof != nil && prof.Name != nil && *prof.Name == pool {
			profile = prof
			break
		}
	}
	if profile == nil {
		if len(profiles) > 1 {
			return fmt.Errorf("container service has no agent pool profile %q", pool)
		}
		profile = profiles[0]
	}

	profile.Count = to.Ptr(int32(count))
	cluster.Properties.ServicePrincipalProfile = nil
	return nil
}
