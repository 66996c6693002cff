package redisclient

import "fmt"

// DefaultPrefix is the prefix for all Redis keys of the autoscaler.
const DefaultPrefix = "acs-autoscaler"

// Keys builds the Redis keys of one cluster.
type Keys struct {
	prefix  string
	cluster string
}

// NewKeys returns the key layout for cluster under prefix.
func NewKeys(prefix, cluster string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix, cluster: cluster}
}

// Desired is the HASH of pool name to desired agent count.
func (k Keys) Desired() string {
	return fmt.Sprintf("%s:cluster:%s:desired", k.prefix, k.cluster)
}

// Idle is the ZSET of node name scored by the unix time it became idle.
func (k Keys) Idle() string {
	return fmt.Sprintf("%s:cluster:%s:idle", k.prefix, k.cluster)
}

// Events is the pub/sub channel scaling notifications are published on.
func (k Keys) Events() string {
	return fmt.Sprintf("%s:cluster:%s:events", k.prefix, k.cluster)
}
