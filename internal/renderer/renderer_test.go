package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/metrics"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/tree"
	"github.com/annel0/entity-renderer/internal/vec"
)

type fixture struct {
	t       *testing.T
	tree    *tree.Tree
	scene   *scene.Scene
	cam     *Camera
	hub     *signal.Hub
	r       *Renderer
	engines []*script.Recorder
	events  []signal.Event
	now     time.Time
	session uuid.UUID
}

func newFixture(t *testing.T, tweak ...func(*Options, *Deps)) *fixture {
	f := &fixture{
		t:       t,
		tree:    tree.New(entity.NewRegistry(), tree.DefaultCellSize),
		scene:   scene.New(),
		cam:     NewCamera(800, 600),
		hub:     signal.NewHub(),
		now:     time.Unix(1_700_000_000, 0),
		session: uuid.New(),
	}
	f.hub.Subscribe(func(ev signal.Event) { f.events = append(f.events, ev) })

	opts := DefaultOptions()
	opts.SessionID = f.session
	deps := Deps{
		Tree:  f.tree,
		Scene: f.scene,
		View:  f.cam,
		Hub:   f.hub,
		Scripts: func() script.Engine {
			rec := script.NewRecorder()
			f.engines = append(f.engines, rec)
			return rec
		},
		Clock: func() time.Time { return f.now },
	}
	for _, fn := range tweak {
		fn(&opts, &deps)
	}
	f.r = New(deps, opts)
	t.Cleanup(f.r.Shutdown)
	return f
}

func (f *fixture) engine() *script.Recorder {
	require.NotEmpty(f.t, f.engines)
	return f.engines[len(f.engines)-1]
}

func (f *fixture) add(p entity.Properties) entity.ID {
	id := entity.NewID()
	_, err := f.tree.AddEntity(id, p)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) zone(pos, dims vec.Vec3) entity.ID {
	p := entity.DefaultProperties()
	p.Type = entity.TypeZone
	p.Position = pos
	p.Dimensions = dims
	return f.add(p)
}

func (f *fixture) box(pos vec.Vec3, mutate ...func(*entity.Properties)) entity.ID {
	p := entity.DefaultProperties()
	p.Type = entity.TypeBox
	p.Position = pos
	p.Dimensions = vec.Splat(1)
	for _, fn := range mutate {
		fn(&p)
	}
	return f.add(p)
}

// tick продвигает часы дальше интервала проверки зон и выполняет тик
func (f *fixture) tick() {
	f.now = f.now.Add(200 * time.Millisecond)
	f.r.Tick()
}

func (f *fixture) named(names ...signal.Name) []signal.Event {
	want := make(map[signal.Name]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []signal.Event
	for _, ev := range f.events {
		if want[ev.Name] {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fixture) reset() {
	f.events = nil
}

type step struct {
	name signal.Name
	id   entity.ID
}

func steps(events []signal.Event) []step {
	out := make([]step, 0, len(events))
	for _, ev := range events {
		out = append(out, step{ev.Name, ev.EntityID})
	}
	return out
}

func (f *fixture) itemID(id entity.ID) scene.ItemID {
	z, ok := f.tree.FindEntityByID(id).(*ZoneItem)
	require.True(f.t, ok)
	return z.RenderItemID()
}

func TestLeavesPrecedeEnters(t *testing.T) {
	f := newFixture(t)
	first := f.zone(vec.Vec3{0, 0, 0}, vec.Splat(2))
	second := f.box(vec.Vec3{10, 0, 0}, func(p *entity.Properties) {
		p.Dimensions = vec.Splat(2)
		p.Script = "https://scripts.example/door.js"
	})
	f.box(vec.Vec3{10, 0, 0}, func(p *entity.Properties) { p.Dimensions = vec.Splat(2) })

	f.tick()
	assert.Equal(t, []step{{signal.EnterEntity, first}}, steps(f.named(signal.EnterEntity, signal.LeaveEntity)))

	f.reset()
	f.cam.SetAvatarPosition(vec.Vec3{10, 0, 0})
	f.tick()
	assert.Equal(t, []step{
		{signal.LeaveEntity, first},
		{signal.EnterEntity, second},
	}, steps(f.named(signal.EnterEntity, signal.LeaveEntity)), "сущность без скрипта и не зона событий не получает")

	assert.Equal(t, []entity.ID{second}, f.r.Snapshot().EntitiesInside)
	assert.Contains(t, f.engine().Methods(first), script.MethodLeaveEntity)
	assert.Contains(t, f.engine().Methods(second), script.MethodEnterEntity)
}

func TestNoRecheckWithoutMovementOrInterval(t *testing.T) {
	f := newFixture(t)
	f.tick()
	f.reset()

	z := f.zone(vec.Vec3{}, vec.Splat(2))
	f.r.Tick() // добавление принудительно перепроверяет
	assert.Len(t, f.named(signal.EnterEntity), 1)

	f.reset()
	f.r.Tick()
	f.r.Tick()
	assert.Empty(t, f.named(signal.EnterEntity, signal.LeaveEntity))
	assert.Equal(t, []entity.ID{z}, f.r.Snapshot().EntitiesInside)
}

func TestNestedZonesRankedByVolume(t *testing.T) {
	f := newFixture(t)
	big := f.zone(vec.Vec3{}, vec.Vec3{10, 1, 1})
	small := f.zone(vec.Vec3{}, vec.Vec3{5, 1, 1})

	f.tick()

	st := f.r.Snapshot()
	assert.Equal(t, []entity.ID{small, big}, st.RankedZones)

	sel, ok := f.scene.Selection(RankedZonesSelection)
	require.True(t, ok)
	assert.Equal(t, []scene.ItemID{f.itemID(small), f.itemID(big)}, sel.Items)

	order := f.r.layeredZones.ApplyOrder()
	require.Len(t, order, 2)
	assert.Equal(t, small, order[1].ID, "самая маленькая зона применяется последней")
}

func TestInvisibleZoneContainsButIsNotRanked(t *testing.T) {
	f := newFixture(t)
	p := entity.DefaultProperties()
	p.Type = entity.TypeZone
	p.Dimensions = vec.Splat(4)
	p.Visible = false
	hidden := f.add(p)

	f.tick()
	st := f.r.Snapshot()
	assert.Equal(t, []entity.ID{hidden}, st.EntitiesInside)
	assert.Empty(t, st.RankedZones)
}

func TestUpdateZoneRepositionsLayer(t *testing.T) {
	f := newFixture(t)
	big := f.zone(vec.Vec3{}, vec.Vec3{10, 1, 1})
	small := f.zone(vec.Vec3{}, vec.Vec3{5, 1, 1})
	f.tick()

	p := f.tree.FindEntityByID(small).Properties()
	p.Dimensions = vec.Vec3{20, 1, 1}
	require.NoError(t, f.tree.UpdateEntity(small, p))

	assert.Equal(t, []entity.ID{big, small}, f.r.Snapshot().RankedZones)
	f.r.Render()
	sel, _ := f.scene.Selection(RankedZonesSelection)
	assert.Equal(t, []scene.ItemID{f.itemID(big), f.itemID(small)}, sel.Items)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			var sum float64
			for _, m := range mf.GetMetric() {
				sum += m.GetCounter().GetValue()
			}
			return sum
		}
	}
	return 0
}

func TestZoneMetricsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := newFixture(t, func(_ *Options, d *Deps) { d.Metrics = m })
	f.zone(vec.Vec3{}, vec.Splat(2))

	f.tick()
	f.tick()

	assert.Equal(t, 2.0, counterValue(t, reg, "renderer_zone_checks_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "renderer_zone_rebuilds_total"), "неизменное ранжирование не пересобирается")
	assert.Equal(t, 1.0, counterValue(t, reg, "renderer_signals_total"))
}

func TestRunLoopServesInvoke(t *testing.T) {
	f := newFixture(t, func(o *Options, _ *Deps) { o.TickInterval = time.Millisecond })
	f.box(vec.Vec3{0, 0, -5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.r.Run(ctx) }()
	require.Eventually(t, f.r.Running, time.Second, time.Millisecond)

	assert.ErrorIs(t, f.r.Run(ctx), ErrAlreadyRunning)
	assert.Eventually(t, func() bool { return f.scene.ItemCount() == 1 }, time.Second, time.Millisecond,
		"тик цикла применяет очередь транзакций")
	assert.Equal(t, 1, f.r.EntitiesInScene())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, f.r.Running())

	// после остановки цикла вызовы выполняются синхронно
	assert.Equal(t, 1, f.r.EntitiesInScene())
}
