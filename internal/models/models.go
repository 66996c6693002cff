package models

import (
	"time"
)

// Node is one agent VM as discovered in the current pass. Pool membership is
// derived from Name by a naming strategy, never stored.
type Node struct {
	Name          string    `json:"name"`
	Unschedulable bool      `json:"unschedulable"`
	CreatedAt     time.Time `json:"created_at"`
}

// AgentPool is a snapshot of one named group of agents.
type AgentPool struct {
	Name           string `json:"name"`
	ActualCapacity int    `json:"actual_capacity"`
	MaxSize        int    `json:"max_size"`
	Nodes          []Node `json:"nodes"`
}

// PoolSizes maps pool name to agent count.
type PoolSizes map[string]int

// Clone returns an independent copy of the sizes.
func (p PoolSizes) Clone() PoolSizes {
	out := make(PoolSizes, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// SizesOf returns the actual capacity of every pool.
func SizesOf(pools []AgentPool) PoolSizes {
	sizes := make(PoolSizes, len(pools))
	for _, p := range pools {
		sizes[p.Name] = p.ActualCapacity
	}
	return sizes
}

// ScaleIntent is a reconciliation request.
//
// When ScaleUp is true, Pools holds the absolute new size per pool. Otherwise
// Pools is a trim map: the number of agents to remove from each pool. Pools
// missing from the map are left unchanged.
type ScaleIntent struct {
	ScaleUp bool      `json:"scale_up"`
	Pools   PoolSizes `json:"pools"`
	DryRun  bool      `json:"dry_run"`
}

// Outcome is the result of one reconciliation pass.
type Outcome string

const (
	OutcomeChanged  Outcome = "changed"
	OutcomeNoChange Outcome = "no_change"
	OutcomeDryRun   Outcome = "dry_run"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Scaled reports whether provider-side capacity was actually mutated.
func (o Outcome) Scaled() bool {
	return o == OutcomeChanged
}

// ReconcileResult carries the outcome and the clamped target of each pool.
type ReconcileResult struct {
	Outcome Outcome   `json:"outcome"`
	Targets PoolSizes `json:"targets"`
}

// DiskLocation identifies the OS disk blob backing an unmanaged-disk VM.
type DiskLocation struct {
	Account   string `json:"account"`
	Container string `json:"container"`
	Blob      string `json:"blob"`
}

// IsZero reports whether no blob location was resolved (e.g. managed disks).
func (d DiskLocation) IsZero() bool {
	return d.Account == "" && d.Container == "" && d.Blob == ""
}

// InstanceMetadata is the subset of VM details teardown needs.
type InstanceMetadata struct {
	Name string       `json:"name"`
	Disk DiskLocation `json:"disk"`
}

// NodeDeletion nominates a single node for removal from its pool.
type NodeDeletion struct {
	Pool string `json:"pool"`
	Node Node   `json:"node"`
}

// PassStatus describes the most recent control loop pass.
type PassStatus struct {
	Outcome    Outcome    `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	Pools      []PoolInfo `json:"pools"`
	Deleted    []string   `json:"deleted,omitempty"`
	Backoff    string     `json:"backoff"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Pending    PoolSizes  `json:"last_deployment,omitempty"`
}

type PoolInfo struct {
	Name           string `json:"name"`
	ActualCapacity int    `json:"actual_capacity"`
	MaxSize        int    `json:"max_size"`
	Target         int    `json:"target"`
}

type StatusResponse struct {
	Cluster  string     `json:"cluster"`
	Topology string     `json:"topology"`
	DryRun   bool       `json:"dry_run"`
	LastPass PassStatus `json:"last_pass"`
	Redis    string     `json:"redis"`
	Leader   bool       `json:"leader"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
