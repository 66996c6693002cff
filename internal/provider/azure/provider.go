// Package azure implements the infrastructure provider on top of the Azure
// Resource Manager SDK.
package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/teardown"
)

// DeploymentName is the ARM deployment every redeploy is submitted under.
const DeploymentName = "autoscaler-deployment"

// Credentials identifies the service principal the autoscaler runs as.
type Credentials struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
}

// Provider talks to the resource group hosting the cluster.
type Provider struct {
	resourceGroup    string
	containerService string

	vms         *armcompute.VirtualMachinesClient
	nics        *armnetwork.InterfacesClient
	accounts    *armstorage.AccountsClient
	deployments *armresources.DeploymentsClient
	clusters    *armcontainerservice.ManagedClustersClient
	blobs       BlobDeleter

	logger *zap.Logger
}

// NewProvider logs in with the service principal and creates the ARM clients.
func NewProvider(creds Credentials, resourceGroup, containerService string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cred, err := azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service principal credential: %w", err)
	}

	vms, err := armcompute.NewVirtualMachinesClient(creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}
	nics, err := armnetwork.NewInterfacesClient(creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network client: %w", err)
	}
	accounts, err := armstorage.NewAccountsClient(creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	deployments, err := armresources.NewDeploymentsClient(creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create deployments client: %w", err)
	}
	clusters, err := armcontainerservice.NewManagedClustersClient(creds.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create container service client: %w", err)
	}

	return &Provider{
		resourceGroup:    resourceGroup,
		containerService: containerService,
		vms:              vms,
		nics:             nics,
		accounts:         accounts,
		deployments:      deployments,
		clusters:         clusters,
		blobs:            sharedKeyBlobs{},
		logger:           logger,
	}, nil
}

var _ teardown.Infrastructure = (*Provider)(nil)

// isNotFound reports whether err is an ARM 404.
func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// notFound maps ARM 404s to models.ErrNotFound.
func notFound(err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	return err
}

// pollerOperation waits for an ARM long-running delete. A resource that
// disappears while being deleted counts as deleted.
type pollerOperation[T any] struct {
	poller *runtime.Poller[T]
}

func (o pollerOperation[T]) Wait(ctx context.Context) error {
	if _, err := o.poller.PollUntilDone(ctx, nil); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func operation[T any](poller *runtime.Poller[T]) teardown.Operation {
	return pollerOperation[T]{poller: poller}
}

// completed is returned for deletes of resources that are already absent.
type completed struct{}

func (completed) Wait(context.Context) error { return nil }
