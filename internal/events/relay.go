package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis Pub/Sub channel carrying change events between
// server instances.
const DefaultChannel = "backoffice:events"

// Relay publishes change events through Redis Pub/Sub so every server instance
// delivers them to its own connected clients. A Relay without a local bus only
// publishes; the worker process uses it that way.
type Relay struct {
	client    *redis.Client
	channel   string
	bus       *Bus
	logger    *slog.Logger
	now       func() time.Time
	ready     chan struct{}
	readyOnce sync.Once
}

// NewRelay constructs a Relay. bus may be nil for publish-only processes.
func NewRelay(client *redis.Client, channel string, bus *Bus, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client:  client,
		channel: channel,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		ready:   make(chan struct{}),
	}
}

// Publish sends the event to every instance. When Redis is unavailable the
// event is still delivered to this instance's clients.
func (r *Relay) Publish(ctx context.Context, topic Topic, data any) {
	payload, err := Encode(topic, data, r.now())
	if err != nil {
		r.logger.Warn("events relay publish rejected", slog.String("topic", string(topic)), slog.Any("error", err))
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("events relay publish failed, delivering locally", slog.String("channel", r.channel), slog.Any("error", err))
		if r.bus != nil {
			r.bus.metrics.incPublished(topic)
			r.bus.Deliver(payload)
		}
	}
}

// Run subscribes to the channel and delivers received events to the local bus
// until ctx is cancelled. It blocks.
func (r *Relay) Run(ctx context.Context) error {
	if r.bus == nil {
		return fmt.Errorf("events relay: no local bus")
	}
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("events relay: subscribe: %w", err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("events relay subscribed", slog.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			payload := []byte(msg.Payload)
			event, err := Decode(payload)
			// Topics unknown to this build are forwarded; clients ignore what they do not map.
			if err != nil || event.Type == "" {
				r.logger.Warn("events relay dropped malformed message", slog.String("payload", msg.Payload))
				continue
			}
			r.bus.metrics.incPublished(event.Type)
			r.bus.Deliver(payload)
		}
	}
}

// Ready is closed once the subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

var _ Publisher = (*Relay)(nil)
