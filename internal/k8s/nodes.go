package k8s

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

var masterRoleLabels = []string{
	"node-role.kubernetes.io/master",
	"node-role.kubernetes.io/control-plane",
}

// ListAgentNodes returns every agent (non-master) node in the cluster.
func (c *Client) ListAgentNodes(ctx context.Context) ([]models.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]models.Node, 0, len(list.Items))
	for i := range list.Items {
		n := &list.Items[i]
		if isMaster(n) {
			continue
		}
		nodes = append(nodes, models.Node{
			Name:          n.Name,
			Unschedulable: n.Spec.Unschedulable,
			CreatedAt:     n.CreationTimestamp.Time,
		})
	}
	return nodes, nil
}

func isMaster(n *corev1.Node) bool {
	if n.Labels["kubernetes.io/role"] == "master" {
		return true
	}
	for _, l := range masterRoleLabels {
		if _, ok := n.Labels[l]; ok {
			return true
		}
	}
	return strings.Contains(n.Name, "-master-")
}

// Reclaim uncordons up to count unschedulable nodes of the pool and returns
// how many were made schedulable again.
func (c *Client) Reclaim(ctx context.Context, pool models.AgentPool, count int) (int, error) {
	reclaimed := 0
	for _, node := range pool.Nodes {
		if reclaimed >= count {
			break
		}
		if !node.Unschedulable {
			continue
		}
		if err := c.uncordon(ctx, node.Name); err != nil {
			return reclaimed, err
		}
		c.logger.Info("Uncordoned node", zap.String("pool", pool.Name), zap.String("node", node.Name))
		reclaimed++
	}
	return reclaimed, nil
}

func (c *Client) uncordon(ctx context.Context, name string) error {
	node, err := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get node %s: %w", name, err)
	}
	if !node.Spec.Unschedulable {
		return nil
	}
	nodeCopy := node.DeepCopy()
	nodeCopy.Spec.Unschedulable = false
	if _, err := c.clientset.CoreV1().Nodes().Update(ctx, nodeCopy, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to uncordon node %s: %w", name, err)
	}
	return nil
}
