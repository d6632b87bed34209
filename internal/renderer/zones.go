package renderer

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/tree"
	"github.com/annel0/entity-renderer/internal/vec"
	"github.com/annel0/entity-renderer/internal/zones"
)

func (r *Renderer) currentAvatarPosition() vec.Vec3 {
	if r.view == nil {
		return vec.Vec3{}
	}
	return r.view.AvatarPosition()
}

// checkEnterLeaveEntities пересчитывает вхождение аватара, если он сдвинулся
// дальше порога или прошёл интервал проверки. Все leave раньше всех enter.
func (r *Renderer) checkEnterLeaveEntities() {
	if r.tree == nil || r.shuttingDown {
		return
	}

	now := r.clock()
	avatar := r.currentAvatarPosition()
	movedEnough := vec.DistanceTo(avatar, r.avatarPosition) > r.opts.ZoneCheckDistance
	enoughTime := now.Sub(r.lastZoneCheck) > r.opts.ZoneCheckInterval
	if !movedEnough && !enoughTime {
		return
	}
	r.avatarPosition = avatar
	r.lastZoneCheck = now

	_, inside := r.findBestZoneAndMaybeContainingEntities(true)

	current := make(map[entity.ID]struct{}, len(inside))
	for _, id := range inside {
		current[id] = struct{}{}
	}
	previous := make(map[entity.ID]struct{}, len(r.entitiesInside))
	for _, id := range r.entitiesInside {
		previous[id] = struct{}{}
		if _, still := current[id]; !still {
			r.emit(signal.Event{Name: signal.LeaveEntity, EntityID: id})
			r.callScript(id, script.MethodLeaveEntity)
		}
	}
	for _, id := range inside {
		if _, was := previous[id]; !was {
			r.emit(signal.Event{Name: signal.EnterEntity, EntityID: id})
			r.callScript(id, script.MethodEnterEntity)
		}
	}
	r.entitiesInside = inside
	r.metrics.SetInside(len(inside))
}

// findBestZoneAndMaybeContainingEntities заново собирает ранжированные зоны
// вокруг аватара под блокировкой дерева на чтение. Возвращает, изменилось ли
// ранжирование, и (если collect) отсортированные идентификаторы содержащих сущностей.
func (r *Renderer) findBestZoneAndMaybeContainingEntities(collect bool) (bool, []entity.ID) {
	_, span := r.tracer.Start(context.Background(), "renderer.findBestZone")
	defer span.End()

	var (
		changed bool
		inside  []entity.ID
	)
	avatar := r.avatarPosition
	r.tree.WithReadLock(func(rd tree.Reader) {
		old := r.layeredZones.Move()

		for _, item := range rd.FindEntities(avatar, r.opts.ZoneQueryRadius) {
			isZone := item.Type() == entity.TypeZone
			// остальным сущностям события вхождения не нужны
			if !isZone && item.Script() == "" {
				continue
			}
			if !item.Contains(avatar) {
				continue
			}
			if collect {
				inside = append(inside, item.ID())
			}
			if !isZone || !item.Visible() {
				continue
			}
			if z, ok := item.(zones.Zone); ok && z.RenderItemID() != scene.InvalidItemID {
				r.layeredZones.Insert(z)
			}
		}

		if old.Empty() && r.layeredZones.Empty() {
			return
		}
		if !old.Empty() && !r.layeredZones.Empty() && r.layeredZones.Contains(old) {
			return
		}
		r.layeredZones.Apply()
		changed = true
	})

	sort.Slice(inside, func(i, j int) bool { return entity.Less(inside[i], inside[j]) })

	span.SetAttributes(
		attribute.Int("renderer.inside", len(inside)),
		attribute.Int("renderer.zones", r.layeredZones.Len()),
		attribute.Bool("renderer.changed", changed),
	)
	r.metrics.ZoneCheck(changed)
	return changed, inside
}

// leaveAllEntities leave для всех сущностей, в которых находится аватар.
// Вызывается при очистке и остановке, в том числе во время остановки.
func (r *Renderer) leaveAllEntities() {
	if r.tree == nil {
		return
	}
	for _, id := range r.entitiesInside {
		r.emit(signal.Event{Name: signal.LeaveEntity, EntityID: id})
		r.callScript(id, script.MethodLeaveEntity)
	}
	r.entitiesInside = nil
	r.metrics.SetInside(0)
	r.forceRecheckEntities()
}

// forceRecheckEntities уводит запомненную позицию аватара далеко, чтобы
// следующий тик гарантированно пересчитал вхождение
func (r *Renderer) forceRecheckEntities() {
	r.avatarPosition = r.currentAvatarPosition().Add(vec.Splat(TreeScale))
}

// ForceRecheck публичная обёртка forceRecheckEntities
func (r *Renderer) ForceRecheck() {
	r.Invoke(r.forceRecheckEntities)
}

// applyLayeredZones заменяет выборку RankedZones в сцене
func (r *Renderer) applyLayeredZones() {
	if r.scene == nil {
		r.logger.Warn("⚠️ applyLayeredZones: сцены нет")
		return
	}
	var tx scene.Transaction
	tx.ResetSelection(scene.Selection{
		Name:  RankedZonesSelection,
		Items: r.layeredZones.RenderItemIDs(),
	})
	r.scene.EnqueueTransaction(&tx)
}

// UpdateZone переоценивает одну зону, если она содержит аватар
func (r *Renderer) UpdateZone(id entity.ID) {
	r.Invoke(func() { r.updateZone(id) })
}

func (r *Renderer) updateZone(id entity.ID) {
	if r.tree == nil || r.shuttingDown {
		return
	}
	item := r.tree.FindEntityByID(id)
	if item == nil || item.Type() != entity.TypeZone {
		return
	}
	z, ok := item.(zones.Zone)
	if !ok || z.RenderItemID() == scene.InvalidItemID {
		return
	}
	if item.Contains(r.avatarPosition) {
		r.layeredZones.Update(z)
	}
}
