package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *collector) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *collector) events(t *testing.T) []Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, 0, len(c.payloads))
	for _, p := range c.payloads {
		event, err := Decode(p)
		require.NoError(t, err)
		out = append(out, event)
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestBusFansOutInOrder(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := NewBus(WithClock(func() time.Time { return at }))
	a, b := &collector{}, &collector{}
	defer bus.Register("a", a.send)()
	defer bus.Register("b", b.send)()

	ctx := context.Background()
	bus.Publish(ctx, TopicSales, map[string]int{"id": 1})
	bus.Publish(ctx, TopicProducts, nil)
	bus.Publish(ctx, TopicClients, nil)

	require.Eventually(t, func() bool { return a.count() == 3 && b.count() == 3 }, time.Second, 5*time.Millisecond)
	for _, c := range []*collector{a, b} {
		got := c.events(t)
		assert.Equal(t, []Topic{TopicSales, TopicProducts, TopicClients}, []Topic{got[0].Type, got[1].Type, got[2].Type})
		assert.Equal(t, at.UnixMilli(), got[0].Timestamp)
		assert.JSONEq(t, `{"id":1}`, string(got[0].Data))
		assert.Nil(t, got[1].Data)
	}
}

func TestBusRejectsUnknownTopic(t *testing.T) {
	bus := NewBus()
	c := &collector{}
	defer bus.Register("c", c.send)()

	bus.Publish(context.Background(), Topic("payroll"), nil)
	bus.Publish(context.Background(), TopicSales, nil)

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, TopicSales, c.events(t)[0].Type)
}

func TestBusDropsWhenOutboxFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	bus := NewBus(WithOutboxSize(1), WithMetrics(metrics))

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var blockedCount int
	var mu sync.Mutex
	defer bus.Register("slow", func([]byte) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		blockedCount++
		mu.Unlock()
		return nil
	})()
	fast := &collector{}
	defer bus.Register("fast", fast.send)()

	ctx := context.Background()
	bus.Publish(ctx, TopicSales, nil)
	<-entered // slow client is now stuck in send with an empty outbox
	bus.Publish(ctx, TopicSales, nil)
	bus.Publish(ctx, TopicSales, nil)
	bus.Publish(ctx, TopicSales, nil)

	require.Eventually(t, func() bool { return fast.count() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.dropped))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.published.WithLabelValues(string(TopicSales))))

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return blockedCount == 2
	}, time.Second, 5*time.Millisecond)
}

func TestBusRemovesFailingClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	bus := NewBus(WithMetrics(metrics))
	bus.Register("broken", func([]byte) error { return errors.New("socket closed") })
	healthy := &collector{}
	defer bus.Register("healthy", healthy.send)()
	require.Equal(t, 2, bus.Connections())

	bus.Publish(context.Background(), TopicFinance, nil)

	require.Eventually(t, func() bool { return bus.Connections() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return healthy.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.connected))

	bus.Publish(context.Background(), TopicFinance, nil)
	require.Eventually(t, func() bool { return healthy.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBusUnregisterAndClose(t *testing.T) {
	bus := NewBus()
	c := &collector{}
	unregister := bus.Register("c", c.send)
	bus.Register("d", (&collector{}).send)
	unregister()
	unregister()
	assert.Equal(t, 1, bus.Connections())

	bus.Publish(context.Background(), TopicSales, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.count())

	bus.Close()
	assert.Equal(t, 0, bus.Connections())
}

func TestBusSendTo(t *testing.T) {
	bus := NewBus()
	c := &collector{}
	defer bus.Register("c", c.send)()

	assert.True(t, bus.SendTo("c", []byte(`{"type":"pong"}`)))
	assert.False(t, bus.SendTo("missing", []byte(`{}`)))
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEncodeDecode(t *testing.T) {
	payload, err := Encode(TopicInventory, map[string]any{"sku": "A-1"}, time.UnixMilli(42))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "inventory", raw["type"])
	assert.Equal(t, float64(42), raw["timestamp"])

	_, err = Encode(Topic("unknown"), nil, time.Now())
	assert.Error(t, err)
	_, err = Decode([]byte("{"))
	assert.Error(t, err)
}

func TestTopics(t *testing.T) {
	all := Topics()
	assert.Len(t, all, 10)
	for _, topic := range all {
		assert.True(t, topic.Valid())
	}
	all[0] = "mutated"
	assert.Equal(t, TopicProducts, Topics()[0])
}
