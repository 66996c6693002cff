package azure

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

func TestParseVHDURI(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		want        models.DiskLocation
		expectError bool
	}{
		{
			name: "acs-engine os disk",
			uri:  "https://00agentsa0.blob.core.windows.net/osdisk/k8s-agentpool1-12345678-0-osdisk.vhd",
			want: models.DiskLocation{Account: "00agentsa0", Container: "osdisk", Blob: "k8s-agentpool1-12345678-0-osdisk.vhd"},
		},
		{
			name: "nested blob path",
			uri:  "https://acct.blob.core.windows.net/vhds/dir/disk.vhd",
			want: models.DiskLocation{Account: "acct", Container: "vhds", Blob: "dir/disk.vhd"},
		},
		{name: "missing blob", uri: "https://acct.blob.core.windows.net/vhds", expectError: true},
		{name: "not a url", uri: "://", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVHDURI(tt.uri)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetAgentCount(t *testing.T) {
	newCluster := func(names ...string) *armcontainerservice.ManagedCluster {
		var profiles []*armcontainerservice.ManagedClusterAgentPoolProfile
		for _, n := range names {
			profiles = append(profiles, &armcontainerservice.ManagedClusterAgentPoolProfile{
				Name:  to.Ptr(n),
				Count: to.Ptr(int32(3)),
			})
		}
		return &armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{
				AgentPoolProfiles: profiles,
				ServicePrincipalProfile: &armcontainerservice.ManagedClusterServicePrincipalProfile{
					ClientID: to.Ptr("app-id"),
				},
			},
		}
	}

	t.Run("single profile accepts any pool name", func(t *testing.T) {
		c := newCluster("agentpool")
		require.NoError(t, setAgentCount(c, "agentpool1", 5))
		assert.Equal(t, int32(5), *c.Properties.AgentPoolProfiles[0].Count)
		assert.Nil(t, c.Properties.ServicePrincipalProfile)
	})

	t.Run("matches by name", func(t *testing.T) {
		c := newCluster("a", "b")
		require.NoError(t, setAgentCount(c, "b", 7))
		assert.Equal(t, int32(3), *c.Properties.AgentPoolProfiles[0].Count)
		assert.Equal(t, int32(7), *c.Properties.AgentPoolProfiles[1].Count)
	})

	t.Run("unknown pool with several profiles", func(t *testing.T) {
		c := newCluster("a", "b")
		require.Error(t, setAgentCount(c, "c", 7))
	})

	t.Run("no profiles", func(t *testing.T) {
		require.Error(t, setAgentCount(&armcontainerservice.ManagedCluster{}, "a", 1))
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&azcore.ResponseError{StatusCode: 404}))
	assert.False(t, isNotFound(&azcore.ResponseError{StatusCode: 409}))
	assert.False(t, isNotFound(errors.New("boom")))
}

type recordingBlobs struct {
	calls []string
}

func (r *recordingBlobs) DeleteBlob(ctx context.Context, account, key, container, blob string) error {
	r.calls = append(r.calls, account+"/"+container+"/"+blob)
	return nil
}

func TestDeleteBlobDelegates(t *testing.T) {
	blobs := &recordingBlobs{}
	p := &Provider{resourceGroup: "rg", blobs: blobs}

	require.NoError(t, p.DeleteBlob(context.Background(), "acct", "key", "vhds", "disk.vhd"))
	assert.Equal(t, []string{"acct/vhds/disk.vhd"}, blobs.calls)
}

func TestCompletedOperation(t *testing.T) {
	assert.NoError(t, completed{}.Wait(context.Background()))
}
