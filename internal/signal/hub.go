package signal

import (
	"sync"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/pointer"
)

// Name имя наблюдаемого сигнала рендерера
type Name string

const (
	MousePressOnEntity        Name = "mousePressOnEntity"
	MouseDoublePressOnEntity  Name = "mouseDoublePressOnEntity"
	MouseMoveOnEntity         Name = "mouseMoveOnEntity"
	MouseReleaseOnEntity      Name = "mouseReleaseOnEntity"
	MousePressOffEntity       Name = "mousePressOffEntity"
	MouseDoublePressOffEntity Name = "mouseDoublePressOffEntity"
	MouseReleaseOffEntity     Name = "mouseReleaseOffEntity"

	ClickDownOnEntity    Name = "clickDownOnEntity"
	HoldingClickOnEntity Name = "holdingClickOnEntity"
	ClickReleaseOnEntity Name = "clickReleaseOnEntity"

	HoverEnterEntity Name = "hoverEnterEntity"
	HoverOverEntity  Name = "hoverOverEntity"
	HoverLeaveEntity Name = "hoverLeaveEntity"

	EnterEntity         Name = "enterEntity"
	LeaveEntity         Name = "leaveEntity"
	CollisionWithEntity Name = "collisionWithEntity"

	WebEventReceived Name = "webEventReceived"
)

// AllNames все сигналы в порядке объявления
var AllNames = []Name{
	MousePressOnEntity, MouseDoublePressOnEntity, MouseMoveOnEntity, MouseReleaseOnEntity,
	MousePressOffEntity, MouseDoublePressOffEntity, MouseReleaseOffEntity,
	ClickDownOnEntity, HoldingClickOnEntity, ClickReleaseOnEntity,
	HoverEnterEntity, HoverOverEntity, HoverLeaveEntity,
	EnterEntity, LeaveEntity, CollisionWithEntity,
	WebEventReceived,
}

// Event один переход диспетчера
type Event struct {
	Name      Name              `json:"name"`
	EntityID  entity.ID         `json:"entity_id"`
	OtherID   entity.ID         `json:"other_id,omitempty"`
	Pointer   *pointer.Event    `json:"pointer,omitempty"`
	Collision *entity.Collision `json:"collision,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// Handler обработчик сигнала
type Handler func(Event)

type subscriber struct {
	id     uint64
	names  map[Name]struct{}
	handle Handler
}

// Hub синхронная шина сигналов с явными дескрипторами подписки
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber
}

// NewHub создаёт пустую шину
func NewHub() *Hub {
	return &Hub{}
}

// Handle дескриптор подписки
type Handle struct {
	id  uint64
	hub *Hub
}

// Remove снимает подписку; после возврата обработчик больше не вызывается
// новыми Emit. Повторный вызов безопасен.
func (h Handle) Remove() {
	if h.hub == nil {
		return
	}
	h.hub.mu.Lock()
	defer h.hub.mu.Unlock()
	for i, s := range h.hub.subs {
		if s.id == h.id {
			h.hub.subs = append(h.hub.subs[:i:i], h.hub.subs[i+1:]...)
			return
		}
	}
}

// Subscribe подписывает handler на перечисленные сигналы; без имён на все
func (h *Hub) Subscribe(handler Handler, names ...Name) Handle {
	var set map[Name]struct{}
	if len(names) > 0 {
		set = make(map[Name]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.subs = append(h.subs, subscriber{id: h.nextID, names: set, handle: handler})
	return Handle{id: h.nextID, hub: h}
}

// Emit синхронно доставляет событие подписчикам в порядке подписки
func (h *Hub) Emit(ev Event) {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs))
	for _, s := range h.subs {
		if s.names != nil {
			if _, ok := s.names[ev.Name]; !ok {
				continue
			}
		}
		targets = append(targets, s.handle)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Count количество подписок
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
