package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/signal"
)

// SignalBatchType тип конверта с пачкой сигналов рендерера
const SignalBatchType = "RendererSignalBatch"

const (
	defaultBridgeCapacity = 512
	defaultFlushEvery     = 250 * time.Millisecond
)

// SignalRecord сигнал с отметкой времени
type SignalRecord struct {
	At    time.Time    `json:"at"`
	Event signal.Event `json:"event"`

	seq      uint64
	priority int
}

// SignalPriority приоритет сигнала при переполнении буфера.
// Частые сигналы движения вытесняются первыми.
func SignalPriority(name signal.Name) int {
	switch name {
	case signal.MouseMoveOnEntity, signal.HoverOverEntity, signal.HoldingClickOnEntity:
		return 1
	case signal.HoverEnterEntity, signal.HoverLeaveEntity:
		return 3
	default:
		return 7
	}
}

// BridgeOptions параметры моста
type BridgeOptions struct {
	Source     string
	Capacity   int
	FlushEvery time.Duration
	Codec      Codec
	Clock      func() time.Time
}

// SignalBridge копит сигналы Hub и публикует их пачками в шину
type SignalBridge struct {
	bus  EventBus
	opts BridgeOptions
	log  *logging.Logger

	mu  sync.Mutex
	buf []SignalRecord
	seq uint64

	handle  signal.Handle
	dropped atomic.Uint64
	batches atomic.Uint64

	started  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSignalBridge подписывается на все сигналы hub. Публикация начинается после Start.
func NewSignalBridge(bus EventBus, hub *signal.Hub, opts BridgeOptions, log *logging.Logger) *SignalBridge {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultBridgeCapacity
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	if opts.Codec == nil {
		opts.Codec = PassthroughCodec{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	b := &SignalBridge{
		bus:  bus,
		opts: opts,
		log:  log,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	b.handle = hub.Subscribe(b.add)
	return b
}

// add вызывается синхронно из Emit и не блокируется на шине
func (b *SignalBridge) add(ev signal.Event) {
	rec := SignalRecord{At: b.opts.Clock().UTC(), Event: ev, priority: SignalPriority(ev.Name)}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	rec.seq = b.seq

	if len(b.buf) < b.opts.Capacity {
		b.buf = append(b.buf, rec)
		return
	}

	// вытесняем самый низкий приоритет, если новый выше
	lowIdx := -1
	lowPri := rec.priority
	for i, r := range b.buf {
		if r.priority < lowPri {
			lowPri = r.priority
			lowIdx = i
		}
	}
	b.dropped.Add(1)
	if lowIdx >= 0 {
		b.buf[lowIdx] = rec
	}
}

// Start запускает периодическую отправку
func (b *SignalBridge) Start(ctx context.Context) {
	if b.started.Swap(true) {
		return
	}
	go b.loop(ctx)
}

func (b *SignalBridge) loop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.opts.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.log.Warn("⚠️ Отправка пачки сигналов: %v", err)
			}
		case <-ctx.Done():
			return
		case <-b.quit:
			return
		}
	}
}

// Flush немедленно публикует накопленные сигналы одним конвертом
func (b *SignalBridge) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.buf
	b.buf = make([]SignalRecord, 0, len(batch))
	b.mu.Unlock()

	slices.SortFunc(batch, func(x, y SignalRecord) int {
		switch {
		case x.seq < y.seq:
			return -1
		case x.seq > y.seq:
			return 1
		}
		return 0
	})

	prio := 0
	for _, r := range batch {
		prio = max(prio, r.priority)
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	payload, err := b.opts.Codec.Encode(raw)
	if err != nil {
		return err
	}

	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: b.opts.Clock().UTC(),
		Source:    b.opts.Source,
		EventType: SignalBatchType,
		Version:   1,
		Priority:  prio,
		Encoding:  b.opts.Codec.Name(),
		Payload:   payload,
		Metadata:  map[string]string{"count": fmt.Sprint(len(batch))},
	}
	if err := b.bus.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish signals: %w", err)
	}
	b.batches.Add(1)
	b.log.Trace("📦 Пачка сигналов: %d шт, %d→%d байт", len(batch), len(raw), len(payload))
	return nil
}

// Stop отписывается от сигналов и отправляет остаток
func (b *SignalBridge) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.handle.Remove()
		close(b.quit)
		if b.started.Load() {
			<-b.done
		}
		err = b.Flush(ctx)
	})
	return err
}

// Dropped сколько сигналов вытеснено при переполнении
func (b *SignalBridge) Dropped() uint64 { return b.dropped.Load() }

// Batches сколько пачек опубликовано
func (b *SignalBridge) Batches() uint64 { return b.batches.Load() }

// DecodeSignalBatch распаковывает конверт SignalBatchType
func DecodeSignalBatch(ev *Envelope, codecs ...Codec) ([]SignalRecord, error) {
	if ev.EventType != SignalBatchType {
		return nil, fmt.Errorf("unexpected event type %q", ev.EventType)
	}
	codec, err := CodecFor(ev.Encoding, codecs...)
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decode(ev.Payload)
	if err != nil {
		return nil, err
	}
	var out []SignalRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	return out, nil
}

// SignalHandler распаковывает пачки и передаёт сигналы fn по одному, в исходном порядке
func SignalHandler(fn func(SignalRecord), codecs ...Codec) Handler {
	return func(_ context.Context, ev *Envelope) {
		records, err := DecodeSignalBatch(ev, codecs...)
		if err != nil {
			logging.Warn("⚠️ Пачка сигналов %s от %s отброшена: %v", ev.ID, ev.Source, err)
			return
		}
		for _, r := range records {
			fn(r)
		}
	}
}

// SubscribeSignals подписывает fn на сигналы рендерера из шины
func SubscribeSignals(ctx context.Context, bus EventBus, fn func(SignalRecord), codecs ...Codec) (Subscription, error) {
	return bus.Subscribe(ctx, Filter{Types: []string{SignalBatchType}}, SignalHandler(fn, codecs...))
}
