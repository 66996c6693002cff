package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/redisclient"
)

// Publisher publishes events as JSON on the cluster's events channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a Redis pub/sub notifier.
func NewPublisher(client *redisclient.Client) *Publisher {
	return &Publisher{rdb: client.GetRedis(), channel: client.Keys().Events()}
}

// Notify publishes event.
func (p *Publisher) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
