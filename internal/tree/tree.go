package tree

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/vec"
)

var (
	ErrEntityExists = errors.New("entity already exists")
	ErrNotFound     = errors.New("entity not found")
)

// DefaultCellSize размер ячейки пространственного индекса, метры
const DefaultCellSize = 16.0

// Observer уведомления об изменениях дерева. Любое поле может быть nil.
type Observer struct {
	EntityAdded    func(id entity.ID)
	EntityChanged  func(id entity.ID)
	DeletingEntity func(id entity.ID)
	ScriptChanging func(id entity.ID, reload bool)
}

// Subscription отписка от уведомлений
type Subscription struct {
	id   uint64
	tree *Tree
}

// Remove снимает подписку; повторный вызов безопасен
func (s Subscription) Remove() {
	if s.tree == nil {
		return
	}
	s.tree.obsMu.Lock()
	delete(s.tree.observers, s.id)
	s.tree.obsMu.Unlock()
}

// Reader доступ к дереву внутри WithReadLock
type Reader interface {
	FindEntities(center vec.Vec3, radius float64) []entity.Item
	FindEntityByID(id entity.ID) entity.Item
}

// Tree разделяемая пространственная база сущностей
type Tree struct {
	mu       sync.RWMutex
	registry *entity.Registry
	entities map[entity.ID]entity.Item
	index    *SpatialIndex

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextObsID uint64

	logger *logging.Logger
}

// New создаёт пустое дерево
func New(registry *entity.Registry, cellSize float64) *Tree {
	if registry == nil {
		registry = entity.NewRegistry()
	}
	return &Tree{
		registry:  registry,
		entities:  make(map[entity.ID]entity.Item),
		index:     NewSpatialIndex(cellSize),
		observers: make(map[uint64]Observer),
		logger:    logging.GetTreeLogger(),
	}
}

// Registry реестр фабрик вариантов
func (t *Tree) Registry() *entity.Registry {
	return t.registry
}

// Subscribe подписывает наблюдателя на изменения
func (t *Tree) Subscribe(obs Observer) Subscription {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextObsID++
	t.observers[t.nextObsID] = obs
	return Subscription{id: t.nextObsID, tree: t}
}

func (t *Tree) snapshotObservers() []Observer {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	out := make([]Observer, 0, len(t.observers))
	for _, obs := range t.observers {
		out = append(out, obs)
	}
	return out
}

// AddEntity создаёт сущность через реестр и уведомляет наблюдателей
func (t *Tree) AddEntity(id entity.ID, props entity.Properties) (entity.Item, error) {
	t.mu.Lock()
	if _, exists := t.entities[id]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("add %s: %w", id, ErrEntityExists)
	}
	item, err := t.registry.Create(id, props)
	if err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("add %s: %w", id, err)
	}
	t.entities[id] = item
	t.index.Insert(item)
	t.mu.Unlock()

	t.logger.Debug("➕ Добавлена сущность %s (%s)", id, props.Type)
	for _, obs := range t.snapshotObservers() {
		if obs.EntityAdded != nil {
			obs.EntityAdded(id)
		}
	}
	return item, nil
}

// UpdateEntity применяет новые свойства и уведомляет наблюдателей;
// ScriptChanging приходит только при смене скрипта
func (t *Tree) UpdateEntity(id entity.ID, props entity.Properties) error {
	t.mu.Lock()
	item, exists := t.entities[id]
	if !exists {
		t.mu.Unlock()
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	scriptChanged, reload := item.SetProperties(props)
	t.index.Update(item)
	t.mu.Unlock()

	for _, obs := range t.snapshotObservers() {
		if obs.EntityChanged != nil {
			obs.EntityChanged(id)
		}
		if scriptChanged && obs.ScriptChanging != nil {
			obs.ScriptChanging(id, reload)
		}
	}
	return nil
}

// DeleteEntity уведомляет наблюдателей и удаляет сущность
func (t *Tree) DeleteEntity(id entity.ID) error {
	t.mu.RLock()
	_, exists := t.entities[id]
	t.mu.RUnlock()
	if !exists {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	for _, obs := range t.snapshotObservers() {
		if obs.DeletingEntity != nil {
			obs.DeletingEntity(id)
		}
	}

	t.mu.Lock()
	delete(t.entities, id)
	t.index.Remove(id)
	t.mu.Unlock()

	t.logger.Debug("➖ Удалена сущность %s", id)
	return nil
}

// Clear удаляет все сущности с уведомлениями
func (t *Tree) Clear() {
	for _, item := range t.Entities() {
		_ = t.DeleteEntity(item.ID())
	}
}

// FindEntityByID возвращает сущность или nil
func (t *Tree) FindEntityByID(id entity.ID) entity.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entities[id]
}

// Entities копия списка всех сущностей
func (t *Tree) Entities() []entity.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]entity.Item, 0, len(t.entities))
	for _, item := range t.entities {
		out = append(out, item)
	}
	return out
}

// Len количество сущностей
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// Stats статистика индекса
func (t *Tree) Stats() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.GetStats()
}

// WithReadLock выполняет fn под блокировкой чтения; запись в дерево ждёт окончания fn
func (t *Tree) WithReadLock(fn func(r Reader)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(lockedReader{t})
}

type lockedReader struct{ t *Tree }

func (r lockedReader) FindEntities(center vec.Vec3, radius float64) []entity.Item {
	return r.t.index.QueryRange(center, radius)
}

func (r lockedReader) FindEntityByID(id entity.ID) entity.Item {
	return r.t.entities[id]
}

// Update тикает сущности, которым нужен тик
func (t *Tree) Update(now int64) {
	for _, item := range t.Entities() {
		if u, ok := item.(entity.Updater); ok {
			u.Update(now)
		}
	}
}

// LockType режим блокировки для запроса пересечения
type LockType int

const (
	// Lock ждёт блокировку
	Lock LockType = iota
	// TryLock пропускает запрос, если дерево занято
	TryLock
)

// RayOptions фильтры запроса пересечения
type RayOptions struct {
	Include        []entity.ID
	Discard        []entity.ID
	VisibleOnly    bool
	CollidableOnly bool
	Precision      bool
}

// RayResult результат пересечения луча с деревом
type RayResult struct {
	Intersects    bool
	Accurate      bool
	EntityID      entity.ID
	Entity        entity.Item
	Distance      float64
	Face          vec.Face
	SurfaceNormal vec.Vec3
	Intersection  vec.Vec3
}

// FindRayIntersection ищет ближайшую сущность на луче.
// В режиме TryLock при занятом дереве возвращает пустой результат с Accurate=false.
// Зоны пропускаются, если не перечислены в Include явно.
func (t *Tree) FindRayIntersection(ray vec.Ray, opts RayOptions, lockType LockType) RayResult {
	if lockType == TryLock {
		if !t.mu.TryRLock() {
			return RayResult{}
		}
	} else {
		t.mu.RLock()
	}
	defer t.mu.RUnlock()

	include := idSet(opts.Include)
	discard := idSet(opts.Discard)

	result := RayResult{Accurate: true, Distance: math.Inf(1)}
	for id, item := range t.entities {
		if len(include) > 0 {
			if _, ok := include[id]; !ok {
				continue
			}
		} else if item.Type() == entity.TypeZone {
			continue
		}
		if _, skip := discard[id]; skip {
			continue
		}
		if opts.VisibleOnly && !item.Visible() {
			continue
		}
		if opts.CollidableOnly && item.Collisionless() {
			continue
		}
		if _, _, ok := item.AABox().IntersectRay(ray); !ok {
			continue
		}
		dist, face, normal, ok := item.FindRayIntersection(ray, opts.Precision)
		if !ok || dist >= result.Distance {
			continue
		}
		result.Intersects = true
		result.EntityID = id
		result.Entity = item
		result.Distance = dist
		result.Face = face
		result.SurfaceNormal = normal
	}

	if !result.Intersects {
		return RayResult{Accurate: true}
	}
	result.Intersection = ray.At(result.Distance)
	return result
}

func idSet(ids []entity.ID) map[entity.ID]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[entity.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
