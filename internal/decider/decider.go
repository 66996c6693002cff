// Package decider turns the desired pool sizes and idle-node reports stored
// in Redis into scale intents and node deletions.
package decider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/redisclient"
)

// Policy holds the scaling knobs applied to the raw decision data.
type Policy struct {
	SpareAgents        int
	OverProvision      int
	IdleThreshold      time.Duration
	InstanceInitTime   time.Duration
	ScaleEnabled       bool
	MaintenanceEnabled bool
}

// Decision is what one pass should do. Intent is nil when no pool needs
// resizing.
type Decision struct {
	Intent    *models.ScaleIntent
	Deletions []models.NodeDeletion
}

// Decider reads decision data for one cluster.
type Decider struct {
	rdb    *redis.Client
	keys   redisclient.Keys
	policy Policy
	logger *zap.Logger
}

// New creates a Decider backed by client. With a nil client every pool is
// desired at its actual size, so only the spare-agent floor is enforced.
func New(client *redisclient.Client, policy Policy, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Decider{policy: policy, logger: logger}
	if client != nil {
		d.rdb = client.GetRedis()
		d.keys = client.Keys()
	}
	return d
}

// Decide loads the desired sizes and idle nodes and plans the pass.
func (d *Decider) Decide(ctx context.Context, pools []models.AgentPool, now time.Time) (Decision, error) {
	if d.rdb == nil {
		return Plan(pools, nil, nil, d.policy, now), nil
	}

	raw, err := d.rdb.HGetAll(ctx, d.keys.Desired()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read desired sizes: %w", err)
	}
	desired := make(map[string]int, len(raw))
	for pool, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			d.logger.Warn("Ignoring non-integer desired size",
				zap.String("pool", pool),
				zap.String("value", v),
			)
			continue
		}
		desired[pool] = n
	}

	var idle map[string]time.Time
	if d.policy.MaintenanceEnabled {
		idle, err = d.idleSince(ctx)
		if err != nil {
			return Decision{}, err
		}
	}

	return Plan(pools, desired, idle, d.policy, now), nil
}

func (d *Decider) idleSince(ctx context.Context) (map[string]time.Time, error) {
	members, err := d.rdb.ZRangeWithScores(ctx, d.keys.Idle(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read idle nodes: %w", err)
	}
	idle := make(map[string]time.Time, len(members))
	for _, m := range members {
		name, ok := m.Member.(string)
		if !ok {
			continue
		}
		idle[name] = time.Unix(int64(m.Score), 0)
	}
	return idle, nil
}

// Plan is the pure decision step. Scale up wins over scale down, and idle
// deletions are only planned when no pool needs resizing.
func Plan(pools []models.AgentPool, desired map[string]int, idle map[string]time.Time, policy Policy, now time.Time) Decision {
	want := make(models.PoolSizes, len(pools))
	grow, shrink := false, false
	for _, p := range pools {
		n, ok := desired[p.Name]
		if !ok {
			n = p.ActualCapacity
		}
		n = max(n, policy.SpareAgents)
		want[p.Name] = n
		switch {
		case n > p.ActualCapacity:
			grow = true
		case n < p.ActualCapacity:
			shrink = true
		}
	}

	if grow && policy.ScaleEnabled {
		sizes := make(models.PoolSizes, len(pools))
		for _, p := range pools {
			if want[p.Name] > p.ActualCapacity {
				sizes[p.Name] = want[p.Name] + policy.OverProvision
			} else {
				sizes[p.Name] = p.ActualCapacity
			}
		}
		return Decision{Intent: &models.ScaleIntent{ScaleUp: true, Pools: sizes}}
	}

	if shrink {
		trim := make(models.PoolSizes)
		for _, p := range pools {
			if want[p.Name] < p.ActualCapacity {
				trim[p.Name] = p.ActualCapacity - want[p.Name]
			}
		}
		return Decision{Intent: &models.ScaleIntent{ScaleUp: false, Pools: trim}}
	}

	if !policy.MaintenanceEnabled || len(idle) == 0 {
		return Decision{}
	}
	return Decision{Deletions: idleDeletions(pools, idle, policy, now)}
}

func idleDeletions(pools []models.AgentPool, idle map[string]time.Time, policy Policy, now time.Time) []models.NodeDeletion {
	var deletions []models.NodeDeletion
	for _, p := range pools {
		var candidates []models.Node
		for _, n := range p.Nodes {
			since, ok := idle[n.Name]
			if !ok || now.Sub(since) < policy.IdleThreshold {
				continue
			}
			if now.Sub(n.CreatedAt) < policy.InstanceInitTime {
				continue
			}
			candidates = append(candidates, n)
		}
		// longest idle first
		sort.SliceStable(candidates, func(i, j int) bool {
			return idle[candidates[i].Name].Before(idle[candidates[j].Name])
		})

		remaining := p.ActualCapacity
		for _, n := range candidates {
			if remaining-1 < policy.SpareAgents {
				break
			}
			deletions = append(deletions, models.NodeDeletion{Pool: p.Name, Node: n})
			remaining--
		}
	}
	return deletions
}
