package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/signal"
)

func TestZstdCodecRoundTrip(t *testing.T) {
	codec, err := NewZstdCodec()
	require.NoError(t, err)
	defer codec.Close()

	src := []byte(`[{"name":"hoverOverEntity"},{"name":"hoverOverEntity"},{"name":"hoverOverEntity"}]`)
	enc, err := codec.Encode(src)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(src))

	dec, err := codec.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, src, dec)

	_, err = codec.Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestCodecFor(t *testing.T) {
	codec, err := NewZstdCodec()
	require.NoError(t, err)
	defer codec.Close()

	c, err := CodecFor("", codec)
	require.NoError(t, err)
	assert.Equal(t, "raw", c.Name())

	c, err = CodecFor("zstd", codec)
	require.NoError(t, err)
	assert.Same(t, codec, c)

	_, err = CodecFor("lz4", codec)
	assert.Error(t, err)
}

func TestSignalPriority(t *testing.T) {
	assert.Less(t, SignalPriority(signal.HoverOverEntity), SignalPriority(signal.HoverEnterEntity))
	assert.Less(t, SignalPriority(signal.HoverLeaveEntity), SignalPriority(signal.EnterEntity))
	assert.Equal(t, SignalPriority(signal.MouseMoveOnEntity), SignalPriority(signal.HoldingClickOnEntity))
}

type memBusRecorder struct {
	mu  sync.Mutex
	evs []*Envelope
}

func (m *memBusRecorder) Publish(_ context.Context, ev *Envelope) error {
	m.mu.Lock()
	m.evs = append(m.evs, ev)
	m.mu.Unlock()
	return nil
}

func (m *memBusRecorder) Subscribe(context.Context, Filter, Handler) (Subscription, error) {
	return nil, nil
}

func (m *memBusRecorder) Metrics() Stats { return Stats{} }
func (m *memBusRecorder) Close() error   { return nil }

func TestBridgeFlushesCompressedBatchInOrder(t *testing.T) {
	codec, err := NewZstdCodec()
	require.NoError(t, err)
	defer codec.Close()

	bus := &memBusRecorder{}
	hub := signal.NewHub()
	at := time.Unix(1_700_000_000, 0)
	b := NewSignalBridge(bus, hub, BridgeOptions{Source: "viewer-1", Codec: codec, Clock: func() time.Time { return at }}, nil)

	id := entity.NewID()
	hub.Emit(signal.Event{Name: signal.EnterEntity, EntityID: id})
	hub.Emit(signal.Event{Name: signal.HoverOverEntity, EntityID: id})
	hub.Emit(signal.Event{Name: signal.LeaveEntity, EntityID: id})

	require.NoError(t, b.Flush(context.Background()))
	require.NoError(t, b.Flush(context.Background()), "пустой буфер ничего не публикует")
	require.Len(t, bus.evs, 1)

	ev := bus.evs[0]
	assert.Equal(t, SignalBatchType, ev.EventType)
	assert.Equal(t, "viewer-1", ev.Source)
	assert.Equal(t, "zstd", ev.Encoding)
	assert.Equal(t, 7, ev.Priority)
	assert.Equal(t, "3", ev.Metadata["count"])

	records, err := DecodeSignalBatch(ev, codec)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, signal.EnterEntity, records[0].Event.Name)
	assert.Equal(t, signal.HoverOverEntity, records[1].Event.Name)
	assert.Equal(t, signal.LeaveEntity, records[2].Event.Name)
	assert.Equal(t, id, records[2].Event.EntityID)
	assert.True(t, at.Equal(records[0].At))

	_, err = DecodeSignalBatch(ev)
	assert.Error(t, err, "без кодека zstd пачку не распаковать")
}

func TestBridgeEvictsLowPriorityWhenFull(t *testing.T) {
	bus := &memBusRecorder{}
	hub := signal.NewHub()
	b := NewSignalBridge(bus, hub, BridgeOptions{Capacity: 2}, nil)

	hub.Emit(signal.Event{Name: signal.HoverOverEntity})
	hub.Emit(signal.Event{Name: signal.EnterEntity})
	hub.Emit(signal.Event{Name: signal.LeaveEntity})
	hub.Emit(signal.Event{Name: signal.MouseMoveOnEntity})

	assert.Equal(t, uint64(2), b.Dropped())
	require.NoError(t, b.Flush(context.Background()))

	records, err := DecodeSignalBatch(bus.evs[0])
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, signal.EnterEntity, records[0].Event.Name)
	assert.Equal(t, signal.LeaveEntity, records[1].Event.Name)
}

func TestBridgeStopFlushesAndUnsubscribes(t *testing.T) {
	bus := &memBusRecorder{}
	hub := signal.NewHub()
	b := NewSignalBridge(bus, hub, BridgeOptions{FlushEvery: time.Hour}, nil)
	b.Start(context.Background())

	hub.Emit(signal.Event{Name: signal.EnterEntity})
	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, b.Stop(context.Background()))
	assert.Equal(t, 0, hub.Count())
	assert.Len(t, bus.evs, 1)
	assert.Equal(t, uint64(1), b.Batches())
}

func TestSubscribeSignalsThroughMemoryBus(t *testing.T) {
	codec, err := NewZstdCodec()
	require.NoError(t, err)
	defer codec.Close()

	bus := NewMemoryBus(16)
	defer bus.Close()
	hub := signal.NewHub()
	b := NewSignalBridge(bus, hub, BridgeOptions{Codec: codec}, nil)

	var mu sync.Mutex
	var got []signal.Name
	_, err = SubscribeSignals(context.Background(), bus, func(r SignalRecord) {
		mu.Lock()
		got = append(got, r.Event.Name)
		mu.Unlock()
	}, codec)
	require.NoError(t, err)

	hub.Emit(signal.Event{Name: signal.HoverEnterEntity})
	hub.Emit(signal.Event{Name: signal.HoverLeaveEntity})
	require.NoError(t, b.Flush(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: SignalBatchType, Encoding: "lz4"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []signal.Name{signal.HoverEnterEntity, signal.HoverLeaveEntity}, got)
}
