// Package redisclient provides a Redis client wrapper and the key layout the
// autoscaler reads scale decisions from and publishes notifications to.
package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/config"
)

// Client wraps redis.Client with application-specific configuration
type Client struct {
	client *redis.Client
	keys   Keys
}

// NewClient creates a new Redis client with connection pool configuration
func NewClient(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = cfg.RedisPoolSize
	opt.MaxRetries = cfg.RedisMaxRetries
	opt.DialTimeout = cfg.RedisDialTimeout

	return New(redis.NewClient(opt), NewKeys(cfg.RedisKeyPrefix, cfg.ClusterID())), nil
}

// New wraps an existing redis.Client.
func New(client *redis.Client, keys Keys) *Client {
	return &Client{client: client, keys: keys}
}

// Ping performs a health check on the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// GetRedis returns the underlying redis.Client for direct access
func (c *Client) GetRedis() *redis.Client {
	return c.client
}

// Keys returns the key layout of the cluster this client serves.
func (c *Client) Keys() Keys {
	return c.keys
}
