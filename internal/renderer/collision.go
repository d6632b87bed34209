package renderer

import (
	"math"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/vec"
)

const (
	collisionPenetrationToSpeed   = 50.0
	collisionStartEnergyFull      = 150.0
	collisionContinueEnergyFull   = 5.0
	collisionMinimumVolume        = 0.005
	collisionSizeForStandardPitch = 0.2
)

// EntityCollisionWithEntity событие столкновения от физики. Сигнал, скрипт и
// звук получает та сторона, за которую отвечает этот узел.
func (r *Renderer) EntityCollisionWithEntity(idA, idB entity.ID, c entity.Collision) {
	r.Invoke(func() { r.entityCollisionWithEntity(idA, idB, c) })
}

func (r *Renderer) entityCollisionWithEntity(idA, idB entity.ID, c entity.Collision) {
	if r.tree == nil || r.shuttingDown {
		return
	}
	a := r.tree.FindEntityByID(idA)
	b := r.tree.FindEntityByID(idB)
	if a == nil || b == nil {
		return
	}

	if ownsCollisionSide(r.opts.SessionID, a, b) {
		r.playCollisionSound(a, c)
		cc := c
		r.emit(signal.Event{Name: signal.CollisionWithEntity, EntityID: idA, OtherID: idB, Collision: &cc})
		r.callScript(idA, script.MethodCollisionWithEntity, idB, cc)
	}
	if ownsCollisionSide(r.opts.SessionID, b, a) {
		r.playCollisionSound(b, c)
		inverted := c.Invert()
		r.emit(signal.Event{Name: signal.CollisionWithEntity, EntityID: idB, OtherID: idA, Collision: &inverted})
		r.callScript(idB, script.MethodCollisionWithEntity, idA, inverted)
	}
}

// ownsCollisionSide решает, отвечает ли этот узел за сторону self: либо мы
// симулируем динамическую self, либо симулируем other, а self статична или
// никем не симулируется.
func ownsCollisionSide(me uuid.UUID, self, other entity.Item) bool {
	selfSim := self.SimulatorID()
	if me == selfSim && self.Dynamic() {
		return true
	}
	return me == other.SimulatorID() && (!self.Dynamic() || selfSim == uuid.Nil)
}

// CollisionSoundVolume громкость и растяжение высоты звука столкновения.
// ok=false если звук слишком тихий.
func CollisionSoundVolume(c entity.Collision, mass float64, dims vec.Vec3) (volume, stretch float64, ok bool) {
	// для продолжающегося контакта скорость оценивается по проникновению
	speedSq := c.Penetration.Dot(c.Penetration) * collisionPenetrationToSpeed
	full := collisionContinueEnergyFull
	if c.Type == entity.ContactStart {
		speedSq = c.VelocityChange.Dot(c.VelocityChange)
		full = collisionStartEnergyFull
	}
	energy := mass * speedSq / 2
	factor := math.Min(1, energy/full)
	if factor < collisionMinimumVolume {
		return 0, 0, false
	}
	stretch = math.Log(1+dims.Len()/collisionSizeForStandardPitch) / math.Ln2
	return factor, stretch, true
}

func (r *Renderer) playCollisionSound(item entity.Item, c entity.Collision) {
	if r.sounds == nil {
		return
	}
	soundURL := item.Properties().CollisionSound
	if soundURL == "" {
		return
	}
	volume, stretch, ok := CollisionSoundVolume(c, item.Mass(), item.Dimensions())
	if !ok {
		return
	}
	r.sounds.PlayCollisionSound(soundURL, volume, stretch, c.ContactPoint)
}
