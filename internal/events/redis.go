package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "splitledger:events"

// DefaultPublishTimeout bounds one publish. Events are published after the
// write has committed, so an unreachable Redis must not hold the response.
const DefaultPublishTimeout = 500 * time.Millisecond

// RedisPublisher publishes events as JSON on a Redis pub/sub channel. The
// channel is suffixed with the group ID so subscribers can pattern-match
// one group or all of them.
type RedisPublisher struct {
	client  goredis.UniversalClient
	channel string
	timeout time.Duration
}

// NewRedisPublisher creates a publisher on channel (DefaultChannel if empty).
func NewRedisPublisher(client goredis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, timeout: DefaultPublishTimeout}
}

// WithTimeout returns p with a different per-publish timeout. Zero or less
// keeps the current one.
func (p *RedisPublisher) WithTimeout(d time.Duration) *RedisPublisher {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// Channel returns the channel events of groupID are published on.
func (p *RedisPublisher) Channel(groupID string) string {
	return p.channel + ":" + groupID
}

// Publish sends e, giving up after the publisher's timeout. The client must
// have ContextTimeoutEnabled set for the bound to cover reads and writes.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.Channel(e.GroupID), payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}

	return nil
}
