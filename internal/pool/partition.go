// Package pool groups agent nodes into named agent pools.
package pool

import (
	"fmt"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/naming"
)

// DefaultMaxSize is the agent count ceiling ACS enforces per pool.
const DefaultMaxSize = 100

// Partition groups nodes into agent pools using the naming strategy. Pools are
// returned in order of first appearance and nodes keep discovery order. A
// single malformed name fails the whole partition.
func Partition(nodes []models.Node, names naming.Strategy, maxSize int) ([]models.AgentPool, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	index := make(map[string]int)
	var pools []models.AgentPool
	for _, node := range nodes {
		name, err := names.PoolOf(node.Name)
		if err != nil {
			return nil, fmt.Errorf("partition nodes: %w", err)
		}
		i, ok := index[name]
		if !ok {
			i = len(pools)
			index[name] = i
			pools = append(pools, models.AgentPool{Name: name, MaxSize: maxSize})
		}
		pools[i].Nodes = append(pools[i].Nodes, node)
		pools[i].ActualCapacity++
	}
	return pools, nil
}

// Find returns the pool named name.
func Find(pools []models.AgentPool, name string) (models.AgentPool, bool) {
	for _, p := range pools {
		if p.Name == name {
			return p, true
		}
	}
	return models.AgentPool{}, false
}
