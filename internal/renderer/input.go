package renderer

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/pointer"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/tree"
	"github.com/annel0/entity-renderer/internal/vec"
)

// MouseEvent событие мыши в координатах окна
type MouseEvent struct {
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Button  pointer.Button `json:"button"`
	Buttons pointer.Button `json:"buttons"`
}

// SetPickFilters ограничивает пикинг мышью списками включения и исключения
func (r *Renderer) SetPickFilters(include, discard []entity.ID) {
	r.Invoke(func() {
		r.pickInclude = append([]entity.ID(nil), include...)
		r.pickDiscard = append([]entity.ID(nil), discard...)
	})
}

func (r *Renderer) pick(ray vec.Ray, lock tree.LockType, precision bool) tree.RayResult {
	return r.tree.FindRayIntersection(ray, tree.RayOptions{
		Include:   r.pickInclude,
		Discard:   r.pickDiscard,
		Precision: precision && r.opts.PrecisionPicking,
	}, lock)
}

// plane сущность по идентификатору как плоскость проекции, nil если её нет
func (r *Renderer) plane(id entity.ID) pointer.Plane {
	if id == entity.UnknownID {
		return nil
	}
	if item := r.tree.FindEntityByID(id); item != nil {
		return item
	}
	return nil
}

func (r *Renderer) pointerEvent(typ pointer.EventType, plane pointer.Plane, ray vec.Ray, hit tree.RayResult, ev MouseEvent) pointer.Event {
	return pointer.Event{
		Type:          typ,
		ID:            pointer.MousePointerID,
		Pos2D:         pointer.ProjectOntoEntityXYPlane(plane, ray, hit.Intersection),
		Intersection:  hit.Intersection,
		SurfaceNormal: hit.SurfaceNormal,
		Direction:     ray.Direction,
		Button:        ev.Button,
		Buttons:       ev.Buttons,
	}
}

func (r *Renderer) startInputSpan(name string, ev MouseEvent) trace.Span {
	_, span := r.tracer.Start(context.Background(), name)
	span.SetAttributes(attribute.Float64("mouse.x", ev.X), attribute.Float64("mouse.y", ev.Y))
	return span
}

func (r *Renderer) inputDisabled() bool {
	return r.tree == nil || r.view == nil || r.shuttingDown
}

// handleHref переходит по href сущности, если это корректная ссылка
func (r *Renderer) handleHref(item entity.Item) {
	if item == nil || r.navigator == nil {
		return
	}
	href := item.Href()
	if href == "" {
		return
	}
	if _, err := url.Parse(href); err != nil {
		return
	}
	r.navigator.HandleLookupString(href)
}

// MousePressEvent нажатие кнопки: press-on-entity и click-down для сущности
// под указателем, она становится нажатой
func (r *Renderer) MousePressEvent(ev MouseEvent) {
	r.Invoke(func() { r.mousePressEvent(ev) })
}

func (r *Renderer) mousePressEvent(ev MouseEvent) {
	if r.inputDisabled() {
		return
	}
	span := r.startInputSpan("renderer.mousePress", ev)
	defer span.End()

	ray := r.view.ComputePickRay(ev.X, ev.Y)
	hit := r.pick(ray, tree.Lock, true)
	if !hit.Intersects {
		r.emit(signal.Event{Name: signal.MousePressOffEntity})
		return
	}
	span.SetAttributes(attribute.String("entity.id", hit.EntityID.String()))

	r.handleHref(hit.Entity)

	pe := r.pointerEvent(pointer.Press, hit.Entity, ray, hit, ev)
	r.emitPointer(signal.MousePressOnEntity, hit.EntityID, pe)
	r.callScript(hit.EntityID, script.MethodMousePressOnEntity, pe)

	r.clickingID = hit.EntityID
	r.emitPointer(signal.ClickDownOnEntity, r.clickingID, pe)
	r.callScript(r.clickingID, script.MethodClickDownOnEntity, pe)

	r.lastPointerEvent = pe
	r.lastPointerEventValid = true
}

// MouseDoublePressEvent двойное нажатие: как нажатие, но со своим сигналом
func (r *Renderer) MouseDoublePressEvent(ev MouseEvent) {
	r.Invoke(func() { r.mouseDoublePressEvent(ev) })
}

func (r *Renderer) mouseDoublePressEvent(ev MouseEvent) {
	if r.inputDisabled() {
		return
	}
	span := r.startInputSpan("renderer.mouseDoublePress", ev)
	defer span.End()

	ray := r.view.ComputePickRay(ev.X, ev.Y)
	hit := r.pick(ray, tree.Lock, true)
	if !hit.Intersects {
		r.emit(signal.Event{Name: signal.MouseDoublePressOffEntity})
		return
	}

	pe := r.pointerEvent(pointer.DoublePress, hit.Entity, ray, hit, ev)
	r.emitPointer(signal.MouseDoublePressOnEntity, hit.EntityID, pe)
	r.callScript(hit.EntityID, script.MethodMouseDoublePressOnEntity, pe)

	r.clickingID = hit.EntityID
	r.emitPointer(signal.ClickDownOnEntity, r.clickingID, pe)
	r.callScript(r.clickingID, script.MethodDoubleclickOnEntity, pe)

	r.lastPointerEvent = pe
	r.lastPointerEventValid = true
}

// MouseReleaseEvent отпускание кнопки. click-release уходит нажатой сущности,
// даже если указатель уже не над ней; слот нажатой сущности очищается всегда.
func (r *Renderer) MouseReleaseEvent(ev MouseEvent) {
	r.Invoke(func() { r.mouseReleaseEvent(ev) })
}

func (r *Renderer) mouseReleaseEvent(ev MouseEvent) {
	if r.inputDisabled() {
		return
	}
	span := r.startInputSpan("renderer.mouseRelease", ev)
	defer span.End()

	ray := r.view.ComputePickRay(ev.X, ev.Y)
	hit := r.pick(ray, tree.Lock, true)
	if hit.Intersects {
		pe := r.pointerEvent(pointer.Release, hit.Entity, ray, hit, ev)
		r.emitPointer(signal.MouseReleaseOnEntity, hit.EntityID, pe)
		r.callScript(hit.EntityID, script.MethodMouseReleaseOnEntity, pe)
		r.lastPointerEvent = pe
		r.lastPointerEventValid = true
	} else {
		r.emit(signal.Event{Name: signal.MouseReleaseOffEntity})
	}

	if r.clickingID != entity.UnknownID {
		pe := r.pointerEvent(pointer.Release, r.plane(r.clickingID), ray, hit, ev)
		r.emitPointer(signal.ClickReleaseOnEntity, r.clickingID, pe)
		r.callScript(r.clickingID, script.MethodClickReleaseOnEntity, pe)
	}
	r.clickingID = entity.UnknownID
}

// MouseMoveEvent движение мыши: hover-переходы и удержание клика.
// Пикинг без точной проверки и без ожидания блокировки дерева: если дерево
// занято, кадр пропускается.
func (r *Renderer) MouseMoveEvent(ev MouseEvent) {
	r.Invoke(func() { r.mouseMoveEvent(ev) })
}

func (r *Renderer) mouseMoveEvent(ev MouseEvent) {
	if r.inputDisabled() {
		return
	}

	ray := r.view.ComputePickRay(ev.X, ev.Y)
	hit := r.pick(ray, tree.TryLock, false)
	if !hit.Accurate {
		return
	}

	if hit.Intersects {
		pe := r.pointerEvent(pointer.Move, hit.Entity, ray, hit, ev)
		r.emitPointer(signal.MouseMoveOnEntity, hit.EntityID, pe)
		r.callScript(hit.EntityID, script.MethodMouseMoveEvent, pe)
		r.callScript(hit.EntityID, script.MethodMouseMoveOnEntity, pe)

		// сначала уходим с прежней сущности
		if r.hoverID != entity.UnknownID && hit.EntityID != r.hoverID {
			leave := r.pointerEvent(pointer.Move, r.plane(r.hoverID), ray, hit, ev)
			r.emitPointer(signal.HoverLeaveEntity, r.hoverID, leave)
			r.callScript(r.hoverID, script.MethodHoverLeaveEntity, leave)
		}
		if hit.EntityID != r.hoverID {
			r.emitPointer(signal.HoverEnterEntity, hit.EntityID, pe)
			r.callScript(hit.EntityID, script.MethodHoverEnterEntity, pe)
		}
		r.emitPointer(signal.HoverOverEntity, hit.EntityID, pe)
		r.callScript(hit.EntityID, script.MethodHoverOverEntity, pe)

		r.hoverID = hit.EntityID
		r.lastPointerEvent = pe
		r.lastPointerEventValid = true
	} else if r.hoverID != entity.UnknownID {
		leave := r.pointerEvent(pointer.Move, r.plane(r.hoverID), ray, hit, ev)
		r.emitPointer(signal.HoverLeaveEntity, r.hoverID, leave)
		r.callScript(r.hoverID, script.MethodHoverLeaveEntity, leave)
		r.hoverID = entity.UnknownID
	}

	// перетаскивание за пределы нажатой сущности продолжает удержание
	if r.clickingID != entity.UnknownID {
		pe := r.pointerEvent(pointer.Move, r.plane(r.clickingID), ray, hit, ev)
		r.emitPointer(signal.HoldingClickOnEntity, r.clickingID, pe)
		r.callScript(r.clickingID, script.MethodHoldingClickOnEntity, pe)
	}
}
