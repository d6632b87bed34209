// Package websurface ограниченный пул интерактивных веб-поверхностей.
//
// Поверхность создаётся лениво при первой отрисовке, если глобальный лимит
// позволяет, и уничтожается после простоя. Всё состояние пула и поверхностей
// меняется только в горутине-владельце рендерера.
package websurface

import (
	"sync"

	"github.com/annel0/entity-renderer/internal/vec"
)

// ContentKind классификация содержимого поверхности
type ContentKind int

const (
	// ContentHTML веб-страница
	ContentHTML ContentKind = iota
	// ContentQML встроенный UI
	ContentQML
)

func (k ContentKind) String() string {
	if k == ContentQML {
		return "qml"
	}
	return "html"
}

// TouchType фаза касания
type TouchType int

const (
	TouchBegin TouchType = iota
	TouchUpdate
	TouchEnd
)

func (t TouchType) String() string {
	switch t {
	case TouchBegin:
		return "begin"
	case TouchUpdate:
		return "update"
	case TouchEnd:
		return "end"
	}
	return "unknown"
}

// TouchPoint событие касания в координатах окна поверхности
type TouchPoint struct {
	ID   uint32
	Type TouchType
	Pos  vec.Vec2
}

// TabletRootName имя корневого объекта встроенного UI планшета
const TabletRootName = "tabletRoot"

// View внешний движок страницы. Реализация может быть тяжёлой (offscreen браузер),
// поэтому их число ограничено пулом.
type View interface {
	SetMaxFPS(fps int)
	// Load загружает содержимое; baseURL пуст для встроенного UI
	Load(kind ContentKind, url string, baseURL string) error
	// RootObjectName имя корневого объекта загруженного содержимого
	RootObjectName() string
	Resume()
	Pause()
	// Stop прерывает загрузку страницы
	Stop()
	// Resize идемпотентен для неизменного размера
	Resize(size vec.Size2)
	SendMouseMove(pos vec.Vec2)
	SendTouch(tp TouchPoint)
	EmitScriptEvent(message string)
	SetGlobalPosition(p vec.Vec3)
	// OnWebEvent задаёт обработчик сообщений страницы; nil отключает
	OnWebEvent(fn func(message string))
}

// ViewFactory создаёт новый View
type ViewFactory func() (View, error)

// HeadlessView View без реального движка: запоминает последнее состояние и
// журнал касаний. Используется в headless просмотрщике и тестах.
type HeadlessView struct {
	mu        sync.Mutex
	fps       int
	kind      ContentKind
	url       string
	baseURL   string
	root      string
	size      vec.Size2
	resizes   int
	paused    bool
	stopped   bool
	position  vec.Vec3
	moves     []vec.Vec2
	touches   []TouchPoint
	scriptMsg []string
	onEvent   func(string)
}

// NewHeadlessView создаёт View; root задаёт имя корневого объекта для QML содержимого
func NewHeadlessView(root string) *HeadlessView {
	return &HeadlessView{root: root, paused: true}
}

// HeadlessFactory фабрика headless представлений; created получает каждое новое
func HeadlessFactory(created func(*HeadlessView)) ViewFactory {
	return func() (View, error) {
		v := NewHeadlessView("")
		if created != nil {
			created(v)
		}
		return v, nil
	}
}

func (v *HeadlessView) SetMaxFPS(fps int) {
	v.mu.Lock()
	v.fps = fps
	v.mu.Unlock()
}

func (v *HeadlessView) Load(kind ContentKind, url string, baseURL string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.kind = kind
	v.url = url
	v.baseURL = baseURL
	return nil
}

func (v *HeadlessView) RootObjectName() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.kind != ContentQML {
		return ""
	}
	return v.root
}

func (v *HeadlessView) Resume() {
	v.mu.Lock()
	v.paused = false
	v.mu.Unlock()
}

func (v *HeadlessView) Pause() {
	v.mu.Lock()
	v.paused = true
	v.mu.Unlock()
}

func (v *HeadlessView) Stop() {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
}

func (v *HeadlessView) Resize(size vec.Size2) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.size == size {
		return
	}
	v.size = size
	v.resizes++
}

func (v *HeadlessView) SendMouseMove(pos vec.Vec2) {
	v.mu.Lock()
	v.moves = append(v.moves, pos)
	v.mu.Unlock()
}

func (v *HeadlessView) SendTouch(tp TouchPoint) {
	v.mu.Lock()
	v.touches = append(v.touches, tp)
	v.mu.Unlock()
}

func (v *HeadlessView) EmitScriptEvent(message string) {
	v.mu.Lock()
	v.scriptMsg = append(v.scriptMsg, message)
	v.mu.Unlock()
}

func (v *HeadlessView) SetGlobalPosition(p vec.Vec3) {
	v.mu.Lock()
	v.position = p
	v.mu.Unlock()
}

func (v *HeadlessView) OnWebEvent(fn func(message string)) {
	v.mu.Lock()
	v.onEvent = fn
	v.mu.Unlock()
}

// PostWebEvent имитирует сообщение со страницы
func (v *HeadlessView) PostWebEvent(message string) {
	v.mu.Lock()
	fn := v.onEvent
	v.mu.Unlock()
	if fn != nil {
		fn(message)
	}
}

// HeadlessState снимок состояния headless представления
type HeadlessState struct {
	FPS            int
	Kind           ContentKind
	URL            string
	BaseURL        string
	Size           vec.Size2
	Resizes        int
	Paused         bool
	Stopped        bool
	GlobalPosition vec.Vec3
	MouseMoves     []vec.Vec2
	Touches        []TouchPoint
	ScriptEvents   []string
	Listening      bool
}

// State возвращает копию состояния
func (v *HeadlessView) State() HeadlessState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return HeadlessState{
		FPS:            v.fps,
		Kind:           v.kind,
		URL:            v.url,
		BaseURL:        v.baseURL,
		Size:           v.size,
		Resizes:        v.resizes,
		Paused:         v.paused,
		Stopped:        v.stopped,
		GlobalPosition: v.position,
		MouseMoves:     append([]vec.Vec2(nil), v.moves...),
		Touches:        append([]TouchPoint(nil), v.touches...),
		ScriptEvents:   append([]string(nil), v.scriptMsg...),
		Listening:      v.onEvent != nil,
	}
}
