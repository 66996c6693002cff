package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/naming"
)

func nodes(names ...string) []models.Node {
	out := make([]models.Node, 0, len(names))
	for _, n := range names {
		out = append(out, models.Node{Name: n})
	}
	return out
}

func TestPartition(t *testing.T) {
	strategy, err := naming.New(naming.VMSuffix)
	require.NoError(t, err)

	pools, err := Partition(nodes(
		"pool-a-12345-vm-0",
		"pool-b-12345-vm-0",
		"pool-a-12345-vm-1",
		"pool-a-12345-vm-2",
	), strategy, 5)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, "pool-a", pools[0].Name)
	assert.Equal(t, 3, pools[0].ActualCapacity)
	assert.Equal(t, 5, pools[0].MaxSize)
	assert.Equal(t, []string{"pool-a-12345-vm-0", "pool-a-12345-vm-1", "pool-a-12345-vm-2"},
		[]string{pools[0].Nodes[0].Name, pools[0].Nodes[1].Name, pools[0].Nodes[2].Name})

	assert.Equal(t, "pool-b", pools[1].Name)
	assert.Equal(t, 1, pools[1].ActualCapacity)
}

func TestPartitionDefaultsMaxSize(t *testing.T) {
	strategy, err := naming.New(naming.ACSEngine)
	require.NoError(t, err)

	pools, err := Partition(nodes("k8s-agentpool1-1234-0"), strategy, 0)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, DefaultMaxSize, pools[0].MaxSize)
}

func TestPartitionMalformedName(t *testing.T) {
	strategy, err := naming.New(naming.ACSEngine)
	require.NoError(t, err)

	pools, err := Partition(nodes("k8s-agentpool1-1234-0", "not_an_agent"), strategy, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMalformedNodeName)
	assert.Nil(t, pools)
}

func TestFind(t *testing.T) {
	pools := []models.AgentPool{{Name: "a", ActualCapacity: 1}, {Name: "b", ActualCapacity: 2}}

	p, ok := Find(pools, "b")
	require.True(t, ok)
	assert.Equal(t, 2, p.ActualCapacity)

	_, ok = Find(pools, "c")
	assert.False(t, ok)
}
