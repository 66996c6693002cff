// Package notifier delivers scaling events to Slack and Redis subscribers.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/api/middleware"
	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// EventKind names what happened to the cluster.
type EventKind string

const (
	EventScaleUp    EventKind = "scale_up"
	EventScaleDown  EventKind = "scale_down"
	EventNodeDelete EventKind = "node_delete"
)

// Event is one applied scaling action.
type Event struct {
	Kind    EventKind        `json:"kind"`
	Cluster string           `json:"cluster"`
	Targets models.PoolSizes `json:"targets,omitempty"`
	Pool    string           `json:"pool,omitempty"`
	Node    string           `json:"node,omitempty"`
	DryRun  bool             `json:"dry_run"`
	Time    time.Time        `json:"time"`
}

// Message renders the event as a single human readable line.
func (e Event) Message() string {
	var b strings.Builder
	if e.DryRun {
		b.WriteString("[Dry run] ")
	}
	switch e.Kind {
	case EventNodeDelete:
		fmt.Fprintf(&b, "Deleted node %s from pool %s", e.Node, e.Pool)
	default:
		verb := "Scaled up"
		if e.Kind == EventScaleDown {
			verb = "Scaled down"
		}
		pools := make([]string, 0, len(e.Targets))
		for name := range e.Targets {
			pools = append(pools, name)
		}
		sort.Strings(pools)
		parts := make([]string, 0, len(pools))
		for _, name := range pools {
			parts = append(parts, fmt.Sprintf("%s=%d", name, e.Targets[name]))
		}
		fmt.Fprintf(&b, "%s pools %s", verb, strings.Join(parts, ", "))
	}
	if e.Cluster != "" {
		fmt.Fprintf(&b, " in %s", e.Cluster)
	}
	return b.String()
}

// Notifier delivers an event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every sink. Delivery failures are logged and
// never abort a pass.
type Multi struct {
	sinks  map[string]Notifier
	logger *zap.Logger
}

// NewMulti creates an empty fan-out.
func NewMulti(logger *zap.Logger) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: make(map[string]Notifier), logger: logger}
}

// Add registers a sink under name.
func (m *Multi) Add(name string, n Notifier) {
	m.sinks[name] = n
}

// Len returns the number of registered sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Notify delivers event to every sink and joins their errors.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for name, sink := range m.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			middleware.NotificationsTotal.WithLabelValues(name, "error").Inc()
			m.logger.Warn("Failed to deliver notification",
				zap.String("sink", name),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		middleware.NotificationsTotal.WithLabelValues(name, "success").Inc()
	}
	return errors.Join(errs...)
}
