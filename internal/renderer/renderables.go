package renderer

import (
	"sync/atomic"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/websurface"
)

// sceneItem общая часть рендеримых вариантов: один элемент сцены на сущность
type sceneItem struct {
	itemID atomic.Uint64
}

// RenderItemID идентификатор элемента сцены или InvalidItemID
func (s *sceneItem) RenderItemID() scene.ItemID {
	return scene.ItemID(s.itemID.Load())
}

func (s *sceneItem) add(sc *scene.Scene, tx *scene.Transaction, p scene.Payload) bool {
	if s.RenderItemID() != scene.InvalidItemID {
		return false
	}
	id := sc.AllocateID()
	tx.ResetItem(id, p)
	s.itemID.Store(uint64(id))
	return true
}

func (s *sceneItem) remove(tx *scene.Transaction) {
	id := scene.ItemID(s.itemID.Swap(uint64(scene.InvalidItemID)))
	if id != scene.InvalidItemID {
		tx.RemoveItem(id)
	}
}

// payload отрисовка сущности; геометрия внешняя, здесь только хук кадра
type payload struct {
	render func(args *scene.RenderArgs)
}

func (p payload) Render(args *scene.RenderArgs) {
	if p.render != nil {
		p.render(args)
	}
}

// ZoneItem рендеримая зона
type ZoneItem struct {
	*entity.Zone
	sceneItem
}

func (z *ZoneItem) RenderableInterface() entity.Renderable { return z }

func (z *ZoneItem) AddToScene(_ entity.Item, s *scene.Scene, tx *scene.Transaction) bool {
	return z.add(s, tx, payload{})
}

func (z *ZoneItem) RemoveFromScene(_ entity.Item, _ *scene.Scene, tx *scene.Transaction) {
	z.remove(tx)
}

// ShapeItem рендеримый примитив
type ShapeItem struct {
	*entity.Shape
	sceneItem
}

func (s *ShapeItem) RenderableInterface() entity.Renderable { return s }

func (s *ShapeItem) AddToScene(_ entity.Item, sc *scene.Scene, tx *scene.Transaction) bool {
	return s.add(sc, tx, payload{})
}

func (s *ShapeItem) RemoveFromScene(_ entity.Item, _ *scene.Scene, tx *scene.Transaction) {
	s.remove(tx)
}

// ModelItem рендеримая модель; меш загружается внешним коллаборатором
type ModelItem struct {
	*entity.Model
	sceneItem
}

func (m *ModelItem) RenderableInterface() entity.Renderable { return m }

func (m *ModelItem) AddToScene(_ entity.Item, sc *scene.Scene, tx *scene.Transaction) bool {
	return m.add(sc, tx, payload{})
}

func (m *ModelItem) RemoveFromScene(_ entity.Item, _ *scene.Scene, tx *scene.Transaction) {
	m.remove(tx)
}

// GenericItem рендеримая сущность без собственной логики
type GenericItem struct {
	*entity.Generic
	sceneItem
}

func (g *GenericItem) RenderableInterface() entity.Renderable { return g }

func (g *GenericItem) AddToScene(_ entity.Item, sc *scene.Scene, tx *scene.Transaction) bool {
	return g.add(sc, tx, payload{})
}

func (g *GenericItem) RemoveFromScene(_ entity.Item, _ *scene.Scene, tx *scene.Transaction) {
	g.remove(tx)
}

// WebItem веб-сущность с поверхностью из ограниченного пула
type WebItem struct {
	*entity.Web
	sceneItem
	surface *websurface.Surface
}

func (w *WebItem) RenderableInterface() entity.Renderable { return w }

// Surface ресурс поверхности сущности
func (w *WebItem) Surface() *websurface.Surface { return w.surface }

// SetProperties отмечает смену URL для перезагрузки в горутине-владельце
func (w *WebItem) SetProperties(p entity.Properties) (bool, bool) {
	before := w.SourceURL()
	scriptChanged, reload := w.Web.SetProperties(p)
	if w.SourceURL() != before {
		w.surface.MarkSourceChanged()
	}
	return scriptChanged, reload
}

func (w *WebItem) AddToScene(_ entity.Item, sc *scene.Scene, tx *scene.Transaction) bool {
	return w.add(sc, tx, payload{render: func(args *scene.RenderArgs) {
		w.surface.Render(args.Now)
	}})
}

// RemoveFromScene уничтожает поверхность вместе с элементом сцены
func (w *WebItem) RemoveFromScene(_ entity.Item, _ *scene.Scene, tx *scene.Transaction) {
	w.remove(tx)
	w.surface.Destroy()
}

// Update тик поверхности: простой и globalPosition
func (w *WebItem) Update(now int64) {
	w.surface.Update(now)
}

// WebDeps зависимости веб-сущностей
type WebDeps struct {
	Pool    *websurface.Pool
	Hub     *signal.Hub
	Views   websurface.ViewFactory
	Options websurface.Options
}

// RegisterRenderables заменяет фабрики реестра рендеримыми вариантами.
// Сущности, созданные до вызова, остаются нерендеримыми.
func RegisterRenderables(reg *entity.Registry, web WebDeps) {
	shape := func(id entity.ID, p entity.Properties) entity.Item {
		return &ShapeItem{Shape: entity.NewShape(id, p)}
	}
	generic := func(id entity.ID, p entity.Properties) entity.Item {
		return &GenericItem{Generic: entity.NewGeneric(id, p)}
	}

	reg.Register(entity.TypeBox, shape)
	reg.Register(entity.TypeSphere, shape)
	reg.Register(entity.TypeShape, shape)
	reg.Register(entity.TypeZone, func(id entity.ID, p entity.Properties) entity.Item {
		return &ZoneItem{Zone: entity.NewZone(id, p)}
	})
	reg.Register(entity.TypeModel, func(id entity.ID, p entity.Properties) entity.Item {
		return &ModelItem{Model: entity.NewModel(id, p)}
	})
	reg.Register(entity.TypeWeb, func(id entity.ID, p entity.Properties) entity.Item {
		w := &WebItem{Web: entity.NewWeb(id, p)}
		w.surface = websurface.NewSurface(w.Web, web.Pool, web.Hub, web.Views, web.Options)
		return w
	})
	for _, t := range []entity.Type{
		entity.TypeLight, entity.TypeText, entity.TypeParticleEffect,
		entity.TypeLine, entity.TypePolyLine, entity.TypePolyVox,
	} {
		reg.Register(t, generic)
	}
}
