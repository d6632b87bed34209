package entity

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/vec"
)

// Renderable способность сущности попадать в сцену рендера
type Renderable interface {
	// AddToScene добавляет payload сущности в транзакцию; false если добавлять нечего
	AddToScene(item Item, s *scene.Scene, tx *scene.Transaction) bool
	RemoveFromScene(item Item, s *scene.Scene, tx *scene.Transaction)
}

// Updater реализуют сущности, которым нужен тик (веб-поверхности)
type Updater interface {
	Update(now int64)
}

// Item общий полиморфный интерфейс всех вариантов сущностей
type Item interface {
	ID() ID
	Type() Type
	Properties() Properties
	// SetProperties применяет новые свойства; возвращает признаки смены скрипта
	// и смены его метки времени (reload).
	SetProperties(p Properties) (scriptChanged, reload bool)

	Position() vec.Vec3
	Rotation() vec.Quat
	Dimensions() vec.Vec3
	RegistrationPoint() vec.Vec3
	Visible() bool
	Locked() bool
	Collisionless() bool
	Dynamic() bool
	SimulatorID() uuid.UUID
	Mass() float64
	Script() string
	Href() string

	// Contains точная проверка попадания точки в объём сущности
	Contains(p vec.Vec3) bool
	// AABox минимальный осевой бокс, охватывающий сущность
	AABox() vec.AABox
	// FindRayIntersection пересечение луча; precision включает точную форму
	FindRayIntersection(ray vec.Ray, precision bool) (distance float64, face vec.Face, normal vec.Vec3, ok bool)

	RenderableInterface() Renderable

	ShouldPreloadScript() bool
	ScriptHasPreloaded()
	ScriptHasUnloaded()
}

// Base общая часть всех сущностей
type Base struct {
	mu    sync.RWMutex
	id    ID
	props Properties

	loadedScript          string
	loadedScriptTimestamp int64
}

// NewBase создаёт базу сущности
func NewBase(id ID, props Properties) *Base {
	return &Base{id: id, props: props}
}

func (b *Base) ID() ID { return b.id }

func (b *Base) Type() Type {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Type
}

func (b *Base) Properties() Properties {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props
}

func (b *Base) SetProperties(p Properties) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// тип сущности не меняется после создания
	if b.props.Type != TypeUnknown {
		p.Type = b.props.Type
	}
	reload := p.ScriptTimestamp != b.props.ScriptTimestamp
	changed := p.Script != b.props.Script || reload
	b.props = p
	return changed, reload
}

func (b *Base) Position() vec.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Position
}

func (b *Base) Rotation() vec.Quat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return normalizedRotation(b.props.Rotation)
}

func (b *Base) Dimensions() vec.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Dimensions
}

func (b *Base) RegistrationPoint() vec.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.RegistrationPoint
}

func (b *Base) Visible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Visible
}

func (b *Base) Locked() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Locked
}

func (b *Base) Collisionless() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Collisionless
}

func (b *Base) Dynamic() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Dynamic
}

func (b *Base) SimulatorID() uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.SimulatorID
}

// Mass масса; если не задана, считается по объёму при плотности воды
func (b *Base) Mass() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.props.Mass > 0 {
		return b.props.Mass
	}
	return vec.Volume(b.props.Dimensions) * 1000.0
}

func (b *Base) Script() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Script
}

func (b *Base) Href() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Href
}

// toNormalized переводит мировую точку в нормализованные координаты бокса сущности,
// где [0,1] по каждой оси означает "внутри".
func (b *Base) toNormalized(p vec.Vec3) vec.Vec3 {
	b.mu.RLock()
	props := b.props
	b.mu.RUnlock()

	rot := normalizedRotation(props.Rotation)
	local := rot.Inverse().Rotate(p.Sub(props.Position))
	return vec.DivComponents(local, props.Dimensions).Add(props.RegistrationPoint)
}

// Contains проверка попадания в ориентированный бокс
func (b *Base) Contains(p vec.Vec3) bool {
	n := b.toNormalized(p)
	for i := 0; i < 3; i++ {
		if n[i] < 0 || n[i] > 1 {
			return false
		}
	}
	return true
}

// center мировой центр бокса с учётом точки регистрации
func (b *Base) center() vec.Vec3 {
	b.mu.RLock()
	props := b.props
	b.mu.RUnlock()

	rot := normalizedRotation(props.Rotation)
	offset := vec.MulComponents(vec.Splat(0.5).Sub(props.RegistrationPoint), props.Dimensions)
	return props.Position.Add(rot.Rotate(offset))
}

// AABox осевой бокс по восьми углам повернутого бокса
func (b *Base) AABox() vec.AABox {
	b.mu.RLock()
	props := b.props
	b.mu.RUnlock()

	rot := normalizedRotation(props.Rotation)
	minCorner := vec.Splat(math.Inf(1))
	maxCorner := vec.Splat(math.Inf(-1))
	for i := 0; i < 8; i++ {
		corner := vec.Vec3{float64(i & 1), float64((i >> 1) & 1), float64((i >> 2) & 1)}
		local := vec.MulComponents(corner.Sub(props.RegistrationPoint), props.Dimensions)
		world := props.Position.Add(rot.Rotate(local))
		for k := 0; k < 3; k++ {
			minCorner[k] = math.Min(minCorner[k], world[k])
			maxCorner[k] = math.Max(maxCorner[k], world[k])
		}
	}
	return vec.AABox{Min: minCorner, Max: maxCorner}
}

// FindRayIntersection пересечение луча с ориентированным боксом сущности.
// Луч переводится в локальное пространство, где бокс осевой.
func (b *Base) FindRayIntersection(ray vec.Ray, _ bool) (float64, vec.Face, vec.Vec3, bool) {
	b.mu.RLock()
	props := b.props
	b.mu.RUnlock()

	rot := normalizedRotation(props.Rotation)
	inv := rot.Inverse()
	localRay := vec.Ray{
		Origin:    inv.Rotate(ray.Origin.Sub(props.Position)),
		Direction: inv.Rotate(ray.Direction),
	}
	box := vec.AABox{
		Min: vec.MulComponents(vec.Zero.Sub(props.RegistrationPoint), props.Dimensions),
		Max: vec.MulComponents(vec.Splat(1).Sub(props.RegistrationPoint), props.Dimensions),
	}
	dist, face, ok := box.IntersectRay(localRay)
	if !ok {
		return 0, vec.FaceUnknown, vec.Zero, false
	}
	return dist, face, rot.Rotate(face.Normal()), true
}

// RenderableInterface базовая сущность не рендерится
func (b *Base) RenderableInterface() Renderable { return nil }

// ShouldPreloadScript true если скрипт задан и ещё не загружен в текущей версии
func (b *Base) ShouldPreloadScript() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.props.Script != "" &&
		(b.loadedScript != b.props.Script || b.loadedScriptTimestamp != b.props.ScriptTimestamp)
}

func (b *Base) ScriptHasPreloaded() {
	b.mu.Lock()
	b.loadedScript = b.props.Script
	b.loadedScriptTimestamp = b.props.ScriptTimestamp
	b.mu.Unlock()
}

func (b *Base) ScriptHasUnloaded() {
	b.mu.Lock()
	b.loadedScript = ""
	b.loadedScriptTimestamp = 0
	b.mu.Unlock()
}

func normalizedRotation(q vec.Quat) vec.Quat {
	if q.Len() < 1e-9 {
		return vec.IdentityRotation()
	}
	return q.Normalize()
}
