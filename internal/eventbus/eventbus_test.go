package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.got = append(c.got, ev)
	c.mu.Unlock()
}

func (c *collector) ids() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, ev := range c.got {
		out = append(out, ev.ID)
	}
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestMemoryBusDeliversInOrderWithFilter(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()
	ctx := context.Background()

	all := &collector{}
	only := &collector{}
	_, err := bus.Subscribe(ctx, Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{"B"}, Sources: []string{"viewer-1"}}, only.handle)
	require.NoError(t, err)

	for _, ev := range []*Envelope{
		{ID: "1", EventType: "A", Source: "viewer-1"},
		{ID: "2", EventType: "B", Source: "viewer-1"},
		{ID: "3", EventType: "B", Source: "viewer-2"},
		{ID: "4", EventType: "B", Source: "viewer-1"},
	} {
		require.NoError(t, bus.Publish(ctx, ev))
	}

	require.Eventually(t, func() bool { return all.len() == 4 && only.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3", "4"}, all.ids())
	assert.Equal(t, []string{"2", "4"}, only.ids())

	require.Eventually(t, func() bool { return bus.Metrics().Consumed == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(4), bus.Metrics().Published)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	ctx := context.Background()

	c := &collector{}
	sub, err := bus.Subscribe(ctx, Filter{}, c.handle)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "1"}))
	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, &Envelope{ID: "2"}))
	require.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, c.len())
}

func TestMemoryBusDropsWhenSubscriberLags(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()
	ctx := context.Background()

	block := make(chan struct{})
	defer close(block)
	_, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { <-block })
	require.NoError(t, err)

	// очередь медленного подписчика переполняется, публикация не блокируется
	for i := 0; i < subscriberQueue+16; i++ {
		require.NoError(t, bus.Publish(ctx, &Envelope{Priority: 0}))
	}
	require.Eventually(t, func() bool { return bus.Metrics().Dropped > 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsExporterCopiesStats(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "x"}))
	prev := me.collect(Stats{})
	me.collect(prev)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["eventbus_messages_published_total"], "повторный сбор не удваивает счётчик")
}

func TestMetricsExporterStartStop(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	me := NewMetricsExporter(bus, nil)
	me.Start(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.NotPanics(t, me.Stop)
}
