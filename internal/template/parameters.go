package template

import (
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// CountKey names the template parameter holding a pool's agent count.
func CountKey(pool string) string { return pool + "Count" }

// OffsetKey names the template parameter holding the first new agent index
// of a pool.
func OffsetKey(pool string) string { return pool + "Offset" }

// WithPoolSizes returns a copy of params with every pool's Count set to its
// target. On scale-up, pools that grow also get an Offset equal to their
// pre-change capacity so the template starts new agent indices after the
// existing ones.
func WithPoolSizes(params map[string]any, pools []models.AgentPool, targets models.PoolSizes, scaleUp bool) map[string]any {
	out, _ := deepCopy(params).(map[string]any)
	if out == nil {
		out = make(map[string]any)
	}
	for _, p := range pools {
		target, ok := targets[p.Name]
		if !ok {
			target = p.ActualCapacity
		}
		if scaleUp && p.ActualCapacity < target {
			out[OffsetKey(p.Name)] = map[string]any{"value": p.ActualCapacity}
		}
		out[CountKey(p.Name)] = map[string]any{"value": target}
	}
	return out
}
