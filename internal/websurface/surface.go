package websurface

import (
	"math"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/pointer"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/vec"
)

// MetersToInches перевод размеров сущности в дюймы для расчёта окна
const MetersToInches = 39.3701

// Entity то, что поверхности нужно от веб-сущности
type Entity interface {
	ID() entity.ID
	SourceURL() string
	DPI() float64
	Dimensions() vec.Vec3
	Position() vec.Vec3
	Locked() bool
}

// Surface ресурс веб-поверхности одной сущности: absent -> live -> absent.
// Методы, кроме MarkSourceChanged, вызываются только из горутины-владельца.
type Surface struct {
	ent     Entity
	pool    *Pool
	hub     *signal.Hub
	newView ViewFactory
	opts    Options
	logger  *logging.Logger

	view          View
	kind          ContentKind
	tablet        bool
	loadedURL     string
	lastRender    int64
	pressed       bool
	handles       []signal.Handle
	refusedLogged bool

	sourceChanged atomic.Bool
}

// NewSurface создаёт поверхность в состоянии absent
func NewSurface(ent Entity, pool *Pool, hub *signal.Hub, factory ViewFactory, opts Options) *Surface {
	if factory == nil {
		factory = HeadlessFactory(nil)
	}
	return &Surface{
		ent:     ent,
		pool:    pool,
		hub:     hub,
		newView: factory,
		opts:    opts,
		logger:  logging.GetWebSurfaceLogger(),
	}
}

// Classify определяет тип содержимого и частоту кадров по URL
func Classify(src string, opts Options) (ContentKind, int) {
	u, err := url.Parse(src)
	lower := strings.ToLower(src)
	isWeb := err == nil && (u.Scheme == "http" || u.Scheme == "https")
	if !isWeb && !strings.HasSuffix(lower, ".htm") && !strings.HasSuffix(lower, ".html") {
		return ContentQML, opts.DefaultMaxFPS
	}
	// длинное видео требует больше кадров
	if err == nil && strings.HasSuffix(strings.ToLower(u.Hostname()), "youtube.com") {
		return ContentHTML, opts.VideoMaxFPS
	}
	return ContentHTML, opts.DefaultMaxFPS
}

// WindowSize размер окна поверхности в пикселях: размеры сущности в дюймах
// умноженные на dpi, большая сторона не больше maxSide
func WindowSize(dims vec.Vec3, dpi float64, maxSide int) vec.Size2 {
	w := math.Max(0, dims.X()) * MetersToInches * dpi
	h := math.Max(0, dims.Y()) * MetersToInches * dpi
	if biggest := math.Max(w, h); maxSide > 0 && biggest > float64(maxSide) {
		scale := float64(maxSide) / biggest
		w *= scale
		h *= scale
	}
	return vec.Size2{W: int(math.Round(w)), H: int(math.Round(h))}.ClampMaxSide(maxSide)
}

func (s *Surface) windowSize() vec.Size2 {
	return WindowSize(s.ent.Dimensions(), s.ent.DPI(), s.opts.MaxWindowSize)
}

// Live true если поверхность построена
func (s *Surface) Live() bool { return s.view != nil }

// View текущее представление или nil
func (s *Surface) View() View { return s.view }

// Pressed зажата ли кнопка над поверхностью
func (s *Surface) Pressed() bool { return s.pressed }

// LastRender время последней отрисовки, нс
func (s *Surface) LastRender() int64 { return s.lastRender }

// MarkSourceChanged отмечает смену URL; перезагрузка произойдёт в горутине-владельце.
// Безопасен для вызова из любой горутины.
func (s *Surface) MarkSourceChanged() {
	s.sourceChanged.Store(true)
}

func (s *Surface) build() bool {
	if err := s.pool.Acquire(); err != nil {
		if !s.refusedLogged {
			s.logger.Warn("⚠️ Слишком много веб-поверхностей, %s будет ждать (%d/%d)", s.ent.ID(), s.pool.Live(), s.pool.Max())
			s.refusedLogged = true
		}
		return false
	}
	view, err := s.newView()
	if err != nil {
		s.pool.Release()
		s.logger.Error("❌ Не удалось создать веб-поверхность %s: %v", s.ent.ID(), err)
		return false
	}
	s.refusedLogged = false
	s.view = view
	s.sourceChanged.Store(false)

	view.SetMaxFPS(s.opts.DefaultMaxFPS)
	s.loadSourceURL()
	view.Resume()

	id := s.ent.ID()
	hub := s.hub
	view.OnWebEvent(func(message string) {
		if hub != nil {
			hub.Emit(signal.Event{Name: signal.WebEventReceived, EntityID: id, Message: message})
		}
	})

	if hub != nil {
		forward := func(ev signal.Event) {
			if ev.EntityID == id && ev.Pointer != nil {
				s.HandlePointerEvent(*ev.Pointer)
			}
		}
		s.handles = append(s.handles,
			hub.Subscribe(forward, signal.MousePressOnEntity),
			hub.Subscribe(forward, signal.MouseReleaseOnEntity),
			hub.Subscribe(forward, signal.MouseMoveOnEntity),
			hub.Subscribe(s.onHoverLeave, signal.HoverLeaveEntity),
		)
	}

	s.logger.Debug("🌐 Построена веб-поверхность %s, #%d, url = %s", id, s.pool.Live(), s.loadedURL)
	return true
}

func (s *Surface) loadSourceURL() {
	src := s.ent.SourceURL()
	kind, fps := Classify(src, s.opts)
	s.kind = kind
	s.tablet = false

	var err error
	if kind == ContentHTML {
		s.view.SetMaxFPS(fps)
		err = s.view.Load(ContentHTML, src, src)
	} else {
		err = s.view.Load(ContentQML, src, "")
		s.tablet = err == nil && s.view.RootObjectName() == TabletRootName
	}
	if err != nil {
		s.logger.Warn("⚠️ Не удалось загрузить %s в поверхность %s: %v", src, s.ent.ID(), err)
	}
	s.loadedURL = src
	s.view.SetGlobalPosition(s.ent.Position())
}

// reloadSource применяет сменившийся URL. Смена типа содержимого
// требует пересборки поверхности, иначе страница перезагружается на месте.
func (s *Surface) reloadSource() {
	src := s.ent.SourceURL()
	if src == s.loadedURL {
		return
	}
	s.logger.Debug("🔁 Смена URL веб-сущности %s на %s", s.ent.ID(), src)
	if kind, _ := Classify(src, s.opts); kind != s.kind {
		s.Destroy()
		s.build()
		return
	}
	s.loadSourceURL()
}

// Render отрисовка кадра: строит поверхность при необходимости и подгоняет
// размер окна. false если поверхность недоступна (лимит), повтор на следующем кадре.
func (s *Surface) Render(now int64) bool {
	if s.view == nil {
		if !s.build() {
			return false
		}
	} else if s.sourceChanged.Swap(false) {
		s.reloadSource()
		if s.view == nil {
			return false
		}
	}

	s.lastRender = now
	s.view.Resize(s.windowSize())
	return true
}

// Update тик: обновляет globalPosition и уничтожает поверхность после простоя
func (s *Surface) Update(now int64) {
	if s.view != nil {
		if s.sourceChanged.Swap(false) {
			s.reloadSource()
		}
	}
	if s.view == nil {
		return
	}
	s.view.SetGlobalPosition(s.ent.Position())

	if now-s.lastRender > int64(s.opts.IdleTimeout) {
		s.logger.Debug("💤 Веб-поверхность %s простаивает, уничтожаем", s.ent.ID())
		s.Destroy()
		s.pool.metrics.SurfaceEvicted()
	}
}

// HandlePointerEvent переводит событие указателя в события окна поверхности.
// Заблокированная сущность и отсутствующая поверхность игнорируют ввод.
func (s *Surface) HandlePointerEvent(ev pointer.Event) {
	if s.ent.Locked() || s.view == nil {
		return
	}

	pos := ev.Pos2D.Mul(MetersToInches * s.ent.DPI())
	if ev.Type == pointer.Move {
		s.view.SendMouseMove(pos)
	}

	touch := TouchUpdate
	switch ev.Type {
	case pointer.Press:
		s.pressed = true
		touch = TouchBegin
	case pointer.Release:
		s.pressed = false
		touch = TouchEnd
	}
	s.view.SendTouch(TouchPoint{ID: ev.ID, Type: touch, Pos: pos})
}

// onHoverLeave указатель ушёл с сущности с зажатой кнопкой: имитируем конец касания
func (s *Surface) onHoverLeave(ev signal.Event) {
	if !s.pressed || ev.EntityID != s.ent.ID() || s.view == nil {
		return
	}
	var pos vec.Vec2
	var id uint32
	if ev.Pointer != nil {
		pos = ev.Pointer.Pos2D.Mul(MetersToInches * s.ent.DPI())
		id = ev.Pointer.ID
	}
	s.view.SendTouch(TouchPoint{ID: id, Type: TouchEnd, Pos: pos})
}

// EmitScriptEvent передаёт сообщение скрипта странице
func (s *Surface) EmitScriptEvent(message string) {
	if s.view != nil {
		s.view.EmitScriptEvent(message)
	}
}

// Destroy live -> absent. Подписки снимаются до остановки представления,
// поэтому события в уничтоженную поверхность не попадают.
func (s *Surface) Destroy() {
	if s.view == nil {
		return
	}
	for _, h := range s.handles {
		h.Remove()
	}
	s.handles = nil

	view := s.view
	view.OnWebEvent(nil)
	view.Stop()
	view.Pause()

	s.view = nil
	s.tablet = false
	s.pressed = false
	s.pool.Release()
	s.logger.Debug("🗑️ Уничтожена веб-поверхность %s, осталось %d", s.ent.ID(), s.pool.Live())
}

// Info снимок состояния для отладки
type Info struct {
	EntityID   entity.ID `json:"entity_id"`
	Live       bool      `json:"live"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	Tablet     bool      `json:"tablet"`
	Pressed    bool      `json:"pressed"`
	LastRender int64     `json:"last_render"`
	Window     vec.Size2 `json:"window"`
}

func (s *Surface) Info() Info {
	return Info{
		EntityID:   s.ent.ID(),
		Live:       s.view != nil,
		Kind:       s.kind.String(),
		URL:        s.loadedURL,
		Tablet:     s.tablet,
		Pressed:    s.pressed,
		LastRender: s.lastRender,
		Window:     s.windowSize(),
	}
}
