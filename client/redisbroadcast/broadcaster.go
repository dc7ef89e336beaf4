// Package redisbroadcast carries client logout events between processes
// over Redis pub/sub.
package redisbroadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/upb/authflow/client"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "authflow:session-events"

// Broadcaster implements client.Broadcaster on a Redis channel
type Broadcaster struct {
	rdb     redis.UniversalClient
	channel string
	logger  *zap.Logger
}

var _ client.Broadcaster = (*Broadcaster)(nil)

// New creates a Broadcaster. An empty channel selects DefaultChannel.
func New(rdb redis.UniversalClient, channel string, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{rdb: rdb, channel: channel, logger: logger}
}

// Publish sends event to every subscriber
func (b *Broadcaster) Publish(ctx context.Context, event client.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe delivers events to handler on a background goroutine until
// unsubscribe is called. It returns once the subscription is confirmed.
func (b *Broadcaster) Subscribe(ctx context.Context, handler func(client.Event)) (func(), error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var event client.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed session event", zap.Error(err))
				continue
			}
			handler(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("pubsub close", zap.Error(err))
			}
			<-done
		})
	}, nil
}
