package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultOutboxSize = 64

// SendFunc writes one encoded event to a client connection.
type SendFunc func(payload []byte) error

// Bus is the in-process registry of connected clients. Each connection owns a
// buffered outbox drained by its own goroutine, so a slow or dead client never
// blocks the publisher or other clients.
type Bus struct {
	mu      sync.RWMutex
	conns   map[string]*conn
	buffer  int
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type conn struct {
	id     string
	send   SendFunc
	outbox chan []byte
	once   sync.Once
}

func (c *conn) close() {
	c.once.Do(func() { close(c.outbox) })
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOutboxSize sets the per-client buffer size.
func WithOutboxSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBus constructs an empty Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		conns:  make(map[string]*conn),
		buffer: defaultOutboxSize,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a connection to the registry and returns the function that
// removes it. Registering an id twice replaces the previous connection.
func (b *Bus) Register(id string, send SendFunc) (unregister func()) {
	c := &conn{id: id, send: send, outbox: make(chan []byte, b.buffer)}

	b.mu.Lock()
	if prev, ok := b.conns[id]; ok {
		prev.close()
	}
	b.conns[id] = c
	n := len(b.conns)
	b.mu.Unlock()

	b.metrics.setConnected(n)
	b.logger.Debug("events client registered", slog.String("conn_id", id), slog.Int("connected", n))

	go b.drain(c)
	return func() { b.remove(c) }
}

// Publish encodes the event and fans it out to every connected client.
// Invalid topics and unencodable payloads are logged and dropped.
func (b *Bus) Publish(ctx context.Context, topic Topic, data any) {
	payload, err := Encode(topic, data, b.now())
	if err != nil {
		b.logger.Warn("events publish rejected", slog.String("topic", string(topic)), slog.Any("error", err))
		return
	}
	b.metrics.incPublished(topic)
	b.Deliver(payload)
}

// Deliver fans an already encoded event out to every connected client.
func (b *Bus) Deliver(payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.conns {
		select {
		case c.outbox <- payload:
		default:
			b.metrics.incDropped()
			b.logger.Warn("events outbox full, dropping message", slog.String("conn_id", c.id))
		}
	}
}

// SendTo queues payload for a single connection. It reports false when the
// connection is unknown or its outbox is full.
func (b *Bus) SendTo(id string, payload []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.conns[id]
	if !ok {
		return false
	}
	select {
	case c.outbox <- payload:
		return true
	default:
		return false
	}
}

// Connections returns the number of registered clients.
func (b *Bus) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close unregisters every connection.
func (b *Bus) Close() {
	b.mu.Lock()
	for id, c := range b.conns {
		c.close()
		delete(b.conns, id)
	}
	b.mu.Unlock()
	b.metrics.setConnected(0)
}

func (b *Bus) drain(c *conn) {
	for payload := range c.outbox {
		if err := c.send(payload); err != nil {
			b.logger.Info("events client send failed, unregistering", slog.String("conn_id", c.id), slog.Any("error", err))
			b.remove(c)
			return
		}
	}
}

func (b *Bus) remove(c *conn) {
	b.mu.Lock()
	if current, ok := b.conns[c.id]; ok && current == c {
		delete(b.conns, c.id)
	}
	n := len(b.conns)
	c.close()
	b.mu.Unlock()
	b.metrics.setConnected(n)
}

// Encode builds the wire representation of an event.
func Encode(topic Topic, data any, at time.Time) ([]byte, error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("events: unknown topic %q", topic)
	}
	event := Event{Type: topic, Timestamp: at.UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("events: encode data: %w", err)
		}
		event.Data = raw
	}
	return json.Marshal(event)
}

// Decode parses a wire message.
func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	return event, nil
}

var _ Publisher = (*Bus)(nil)
