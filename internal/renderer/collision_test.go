package renderer

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/vec"
)

type playedSound struct {
	url     string
	volume  float64
	stretch float64
	at      vec.Vec3
}

type recordingSounds struct {
	played []playedSound
}

func (s *recordingSounds) PlayCollisionSound(url string, volume, stretch float64, at vec.Vec3) {
	s.played = append(s.played, playedSound{url, volume, stretch, at})
}

func TestCollisionSoundVolume(t *testing.T) {
	start := entity.Collision{Type: entity.ContactStart, VelocityChange: vec.Vec3{1, 0, 0}}
	_, _, ok := CollisionSoundVolume(start, 1, vec.Vec3{0.2, 0, 0})
	assert.False(t, ok, "энергия 0.5 ниже порога слышимости")

	start.VelocityChange = vec.Vec3{10, 0, 0}
	volume, stretch, ok := CollisionSoundVolume(start, 1, vec.Vec3{0.2, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 50.0/150.0, volume, 1e-9)
	assert.InDelta(t, 1.0, stretch, 1e-9)

	cont := entity.Collision{Type: entity.ContactContinue, Penetration: vec.Vec3{0, 0.1, 0}}
	volume, _, ok = CollisionSoundVolume(cont, 1, vec.Vec3{0.6, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 0.05, volume, 1e-9, "энергия по квадрату проникновения")

	start.VelocityChange = vec.Vec3{100, 0, 0}
	volume, _, ok = CollisionSoundVolume(start, 1, vec.Vec3{0.2, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, volume, 1e-9, "громкость не больше единицы")

	_, stretch, _ = CollisionSoundVolume(cont, 1, vec.Vec3{0.6, 0, 0})
	assert.InDelta(t, 2.0, stretch, 1e-9)
	assert.False(t, math.IsNaN(stretch))
}

func TestCollisionDispatchedToLocallySimulatedSide(t *testing.T) {
	sounds := &recordingSounds{}
	f := newFixture(t, func(_ *Options, d *Deps) { d.Sounds = sounds })
	a := f.box(vec.Vec3{}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.Dynamic = true
		p.Mass = 1
		p.CollisionSound = "https://sounds.example/knock.wav"
	})
	b := f.box(vec.Vec3{1, 0, 0}, func(p *entity.Properties) {
		p.SimulatorID = uuid.New()
		p.Dynamic = true
	})

	c := entity.Collision{
		Type:           entity.ContactStart,
		IDA:            a,
		IDB:            b,
		ContactPoint:   vec.Vec3{0.5, 0, 0},
		VelocityChange: vec.Vec3{10, 0, 0},
	}
	f.r.EntityCollisionWithEntity(a, b, c)

	events := f.named(signal.CollisionWithEntity)
	require.Len(t, events, 1)
	assert.Equal(t, a, events[0].EntityID)
	assert.Equal(t, b, events[0].OtherID)
	require.NotNil(t, events[0].Collision)
	assert.Equal(t, c, *events[0].Collision)
	assert.Equal(t, []string{script.MethodCollisionWithEntity}, f.engine().ScriptMethods(a))
	assert.Empty(t, f.engine().ScriptMethods(b))

	require.Len(t, sounds.played, 1)
	assert.Equal(t, "https://sounds.example/knock.wav", sounds.played[0].url)
	assert.Equal(t, vec.Vec3{0.5, 0, 0}, sounds.played[0].at)
}

func TestCollisionWithUnsimulatedDynamicEntity(t *testing.T) {
	f := newFixture(t)
	a := f.box(vec.Vec3{}, func(p *entity.Properties) { p.Dynamic = true })
	b := f.box(vec.Vec3{1, 0, 0}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.Dynamic = true
	})

	c := entity.Collision{Type: entity.ContactStart, IDA: a, IDB: b, Penetration: vec.Vec3{0.01, 0, 0}}
	f.r.EntityCollisionWithEntity(a, b, c)

	events := f.named(signal.CollisionWithEntity)
	require.Len(t, events, 2)
	assert.Equal(t, a, events[0].EntityID)
	assert.Equal(t, b, events[1].EntityID)
	assert.Equal(t, a, events[1].OtherID)
	assert.Equal(t, c.Invert(), *events[1].Collision, "вторая сторона получает перевёрнутое столкновение")
}

func TestLocallySimulatedStaticSideNotOwned(t *testing.T) {
	sounds := &recordingSounds{}
	f := newFixture(t, func(_ *Options, d *Deps) { d.Sounds = sounds })
	a := f.box(vec.Vec3{}, func(p *entity.Properties) {
		p.SimulatorID = uuid.New()
		p.Dynamic = true
	})
	b := f.box(vec.Vec3{1, 0, 0}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.CollisionSound = "https://sounds.example/thud.wav"
	})

	f.r.EntityCollisionWithEntity(a, b, entity.Collision{
		Type: entity.ContactStart, IDA: a, IDB: b, VelocityChange: vec.Vec3{10, 0, 0},
	})
	assert.Empty(t, f.named(signal.CollisionWithEntity), "статичной стороной владеет симулятор динамической")
	assert.Empty(t, f.engine().ScriptMethods(b))
	assert.Empty(t, sounds.played)
}

func TestStaticSideOwnedBySimulatorOfOther(t *testing.T) {
	f := newFixture(t)
	a := f.box(vec.Vec3{}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.Dynamic = true
	})
	b := f.box(vec.Vec3{1, 0, 0}, func(p *entity.Properties) { p.SimulatorID = uuid.New() })

	f.r.EntityCollisionWithEntity(a, b, entity.Collision{Type: entity.ContactStart, IDA: a, IDB: b})

	assert.Equal(t, []step{
		{signal.CollisionWithEntity, a},
		{signal.CollisionWithEntity, b},
	}, steps(f.named(signal.CollisionWithEntity)))
}

func TestSmallContinuingContactDelivered(t *testing.T) {
	f := newFixture(t)
	a := f.box(vec.Vec3{}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.Dynamic = true
	})
	b := f.box(vec.Vec3{1, 0, 0}, func(p *entity.Properties) {
		p.SimulatorID = uuid.New()
		p.Dynamic = true
	})

	f.r.EntityCollisionWithEntity(a, b, entity.Collision{
		Type: entity.ContactContinue, IDA: a, IDB: b, Penetration: vec.Vec3{0.001, 0, 0},
	})
	events := f.named(signal.CollisionWithEntity)
	require.Len(t, events, 1)
	assert.Equal(t, a, events[0].EntityID)
}

func TestCollisionWithMissingEntityIgnored(t *testing.T) {
	f := newFixture(t)
	a := f.box(vec.Vec3{}, func(p *entity.Properties) {
		p.SimulatorID = f.session
		p.Dynamic = true
	})
	f.r.EntityCollisionWithEntity(a, entity.NewID(), entity.Collision{Type: entity.ContactStart})
	assert.Empty(t, f.named(signal.CollisionWithEntity))
}
