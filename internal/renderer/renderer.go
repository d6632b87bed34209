// Package renderer связывает дерево сущностей со сценой рендера: проверяет,
// в каких сущностях находится аватар, ранжирует зоны, рассылает события
// enter/leave/hover/click и синхронизирует состав сцены.
//
// Всё состояние рендерера принадлежит одной горутине-владельцу (Run).
// Публичные методы маршалируют вызов к владельцу и ждут его завершения.
// Пока Run не запущен, вызовы выполняются синхронно под тем же замком.
package renderer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/entity-renderer/internal/config"
	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/metrics"
	"github.com/annel0/entity-renderer/internal/pointer"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/script"
	"github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/tree"
	"github.com/annel0/entity-renderer/internal/vec"
	"github.com/annel0/entity-renderer/internal/websurface"
	"github.com/annel0/entity-renderer/internal/zones"
)

var (
	// ErrAlreadyRunning Run вызван повторно
	ErrAlreadyRunning = errors.New("renderer loop already running")
	// ErrShuttingDown рендерер останавливается
	ErrShuttingDown = errors.New("renderer is shutting down")
)

// RankedZonesSelection имя выборки сцены с ранжированными зонами
const RankedZonesSelection = "RankedZones"

// TreeScale сдвиг позиции аватара, гарантирующий перепроверку на следующем тике
const TreeScale = 32768.0

// Navigator обработчик href сущностей
type Navigator interface {
	HandleLookupString(lookup string)
}

// CollisionSoundPlayer воспроизведение звука столкновения (аудио внешнее)
type CollisionSoundPlayer interface {
	PlayCollisionSound(soundURL string, volume, pitchStretch float64, at vec.Vec3)
}

// Options параметры рендерера
type Options struct {
	ZoneCheckDistance float64
	ZoneCheckInterval time.Duration
	ZoneQueryRadius   float64
	TickInterval      time.Duration
	WantScripts       bool
	PrecisionPicking  bool
	// SessionID идентификатор локального узла; столкновения обрабатываются
	// только для сущностей, которые симулирует этот узел
	SessionID      uuid.UUID
	MaxWebSurfaces int
	Web            websurface.Options
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		ZoneCheckDistance: config.DefaultZoneCheckDistance,
		ZoneCheckInterval: config.DefaultZoneCheckInterval,
		ZoneQueryRadius:   config.DefaultZoneQueryRadius,
		TickInterval:      time.Second / config.DefaultTickRateHz,
		WantScripts:       true,
		PrecisionPicking:  true,
		MaxWebSurfaces:    config.DefaultMaxConcurrentViews,
		Web:               websurface.DefaultOptions(),
	}
}

// OptionsFromConfig собирает параметры из конфигурации
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	rc := &cfg.Renderer
	hz := rc.GetTickRateHz()
	if hz <= 0 {
		hz = config.DefaultTickRateHz
	}
	return Options{
		ZoneCheckDistance: rc.GetZoneCheckDistance(),
		ZoneCheckInterval: rc.GetZoneCheckInterval(),
		ZoneQueryRadius:   rc.GetZoneQueryRadius(),
		TickInterval:      time.Second / time.Duration(hz),
		WantScripts:       rc.GetWantScripts(),
		PrecisionPicking:  rc.GetPrecisionPicking(),
		MaxWebSurfaces:    cfg.WebSurface.GetMaxConcurrent(),
		Web:               websurface.OptionsFromConfig(&cfg.WebSurface),
	}
}

// Deps коллабораторы рендерера. Tree и View обязательны.
type Deps struct {
	Tree      *tree.Tree
	Scene     *scene.Scene
	View      ViewState
	Hub       *signal.Hub
	Scripts   script.Factory
	Navigator Navigator
	Sounds    CollisionSoundPlayer
	Views     websurface.ViewFactory
	Metrics   *metrics.Metrics
	// Clock источник времени; по умолчанию time.Now
	Clock func() time.Time
}

// Renderer рендерер дерева сущностей
type Renderer struct {
	opts      Options
	tree      *tree.Tree
	scene     *scene.Scene
	view      ViewState
	hub       *signal.Hub
	newEngine script.Factory
	navigator Navigator
	sounds    CollisionSoundPlayer
	metrics   *metrics.Metrics
	clock     func() time.Time
	logger    *logging.Logger
	tracer    trace.Tracer
	pool      *websurface.Pool
	treeSub   tree.Subscription

	// горутина-владелец
	ownerMu  sync.Mutex
	loopMu   sync.Mutex
	running  bool
	loopDone chan struct{}
	tasks    chan func()

	// состояние ниже меняется только под ownerMu
	engine                script.Engine
	shuttingDown          bool
	avatarPosition        vec.Vec3
	lastZoneCheck         time.Time
	layeredZones          *zones.LayeredZones
	entitiesInside        []entity.ID
	hoverID               entity.ID
	clickingID            entity.ID
	pickInclude           []entity.ID
	pickDiscard           []entity.ID
	lastPointerEvent      pointer.Event
	lastPointerEventValid bool
	entitiesInScene       map[entity.ID]entity.Item
	idsLastInScene        []entity.ID
	entitiesHidden        bool
	liveModels            int

	releasedMu     sync.Mutex
	releasedModels []*Model

	engines sync.WaitGroup
}

// New создаёт рендерер, регистрирует рендеримые варианты в реестре дерева и
// подписывается на изменения дерева. При WantScripts создаётся движок скриптов.
func New(deps Deps, opts Options) *Renderer {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	r := &Renderer{
		opts:            opts,
		tree:            deps.Tree,
		scene:           deps.Scene,
		view:            deps.View,
		hub:             deps.Hub,
		newEngine:       deps.Scripts,
		navigator:       deps.Navigator,
		sounds:          deps.Sounds,
		metrics:         deps.Metrics,
		clock:           deps.Clock,
		logger:          logging.GetRendererLogger(),
		tracer:          otel.Tracer("github.com/annel0/entity-renderer/internal/renderer"),
		pool:            websurface.NewPool(opts.MaxWebSurfaces, deps.Metrics),
		tasks:           make(chan func()),
		entitiesInScene: make(map[entity.ID]entity.Item),
	}
	r.layeredZones = zones.New(func(*zones.LayeredZones) { r.applyLayeredZones() })

	if r.tree != nil {
		RegisterRenderables(r.tree.Registry(), WebDeps{
			Pool:    r.pool,
			Hub:     r.hub,
			Views:   deps.Views,
			Options: opts.Web,
		})
	}

	r.init()
	return r
}

func (r *Renderer) init() {
	if r.opts.WantScripts && r.newEngine != nil {
		r.resetEntitiesScriptEngine()
	}
	r.forceRecheckEntities()

	if r.tree == nil {
		return
	}
	r.treeSub = r.tree.Subscribe(tree.Observer{
		EntityAdded:    func(id entity.ID) { r.Invoke(func() { r.addingEntity(id) }) },
		EntityChanged:  func(id entity.ID) { r.Invoke(func() { r.updateZone(id) }) },
		DeletingEntity: func(id entity.ID) { r.Invoke(func() { r.deletingEntity(id) }) },
		ScriptChanging: func(id entity.ID, reload bool) {
			r.Invoke(func() { r.entityScriptChanging(id, reload) })
		},
	})
}

// Invoke выполняет fn в горутине-владельце и ждёт завершения.
// fn не должна вызывать публичные методы рендерера.
func (r *Renderer) Invoke(fn func()) {
	r.loopMu.Lock()
	running, done := r.running, r.loopDone
	r.loopMu.Unlock()

	if running {
		finished := make(chan struct{})
		task := func() {
			defer close(finished)
			fn()
		}
		select {
		case r.tasks <- task:
			<-finished
			return
		case <-done:
		}
	}

	r.ownerMu.Lock()
	defer r.ownerMu.Unlock()
	fn()
}

// Run цикл горутины-владельца: тики с частотой TickInterval и маршалированные вызовы.
// Возвращается при отмене ctx.
func (r *Renderer) Run(ctx context.Context) error {
	r.loopMu.Lock()
	if r.running {
		r.loopMu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.loopDone = make(chan struct{})
	done := r.loopDone
	r.loopMu.Unlock()

	defer func() {
		r.loopMu.Lock()
		r.running = false
		close(done)
		r.loopMu.Unlock()
	}()

	interval := r.opts.TickInterval
	if interval <= 0 {
		interval = time.Second / config.DefaultTickRateHz
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("🎬 Цикл рендерера запущен (тик %v)", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("🛑 Цикл рендерера остановлен")
			return nil
		case task := <-r.tasks:
			r.ownerMu.Lock()
			task()
			r.ownerMu.Unlock()
		case <-ticker.C:
			r.ownerMu.Lock()
			r.tick()
			r.ownerMu.Unlock()
		}
	}
}

// Running true пока работает Run
func (r *Renderer) Running() bool {
	r.loopMu.Lock()
	defer r.loopMu.Unlock()
	return r.running
}

func (r *Renderer) tick() {
	start := r.clock()
	r.update()
	r.render()
	r.metrics.ObserveTick(r.clock().Sub(start).Seconds())
}

// Tick один тик вне цикла: Update и Render
func (r *Renderer) Tick() {
	r.Invoke(r.tick)
}

// Update обновляет дерево, проверяет enter/leave, повторяет holding-click
// и освобождает отпущенные модели
func (r *Renderer) Update() {
	r.Invoke(r.update)
}

func (r *Renderer) update() {
	if r.tree != nil && !r.shuttingDown {
		r.tree.Update(r.clock().UnixNano())

		r.checkEnterLeaveEntities()

		// удержание клика продолжается даже без движения мыши
		if r.lastPointerEventValid && r.clickingID != entity.UnknownID {
			r.emitPointer(signal.HoldingClickOnEntity, r.clickingID, r.lastPointerEvent)
			r.callScript(r.clickingID, script.MethodHoldingClickOnEntity, r.lastPointerEvent)
		}
	}
	r.deleteReleasedModels()
}

// Render применяет очередь транзакций и отрисовывает сцену
func (r *Renderer) Render() {
	r.Invoke(r.render)
}

func (r *Renderer) render() {
	if r.scene == nil {
		return
	}
	r.scene.ProcessTransactionQueue()
	r.scene.Render(&scene.RenderArgs{Now: r.clock().UnixNano()})
}

func (r *Renderer) emit(ev signal.Event) {
	r.metrics.Signal(string(ev.Name))
	if r.hub != nil {
		r.hub.Emit(ev)
	}
}

func (r *Renderer) emitPointer(name signal.Name, id entity.ID, ev pointer.Event) {
	r.emit(signal.Event{Name: name, EntityID: id, Pointer: &ev})
}

// callScript вызов метода скрипта сущности, если движок есть
func (r *Renderer) callScript(id entity.ID, method string, args ...any) {
	if r.engine != nil {
		r.engine.CallEntityScriptMethod(id, method, args...)
	}
}

// Hub шина сигналов рендерера
func (r *Renderer) Hub() *signal.Hub { return r.hub }

// Engine текущий движок скриптов или nil
func (r *Renderer) Engine() script.Engine {
	var e script.Engine
	r.Invoke(func() { e = r.engine })
	return e
}

// WaitReleasedEngines ждёт завершения всех отпущенных движков скриптов
func (r *Renderer) WaitReleasedEngines() {
	r.engines.Wait()
}

// State снимок состояния диспетчера для отладки
type State struct {
	AvatarPosition  vec.Vec3       `json:"avatar_position"`
	EntitiesInside  []entity.ID    `json:"entities_inside"`
	HoverID         entity.ID      `json:"hover_id"`
	ClickingID      entity.ID      `json:"clicking_id"`
	RankedZones     []entity.ID    `json:"ranked_zones"`
	SkyboxIndex     int            `json:"skybox_index"`
	EntitiesInScene int            `json:"entities_in_scene"`
	LiveModels      int            `json:"live_models"`
	ShuttingDown    bool           `json:"shutting_down"`
	RankedItems     []scene.ItemID `json:"ranked_items"`
}

// Snapshot возвращает копию состояния
func (r *Renderer) Snapshot() State {
	var st State
	r.Invoke(func() {
		st = State{
			AvatarPosition:  r.avatarPosition,
			EntitiesInside:  append([]entity.ID(nil), r.entitiesInside...),
			HoverID:         r.hoverID,
			ClickingID:      r.clickingID,
			SkyboxIndex:     r.layeredZones.SkyboxIndex(),
			EntitiesInScene: len(r.entitiesInScene),
			LiveModels:      r.liveModels,
			ShuttingDown:    r.shuttingDown,
			RankedItems:     r.layeredZones.RenderItemIDs(),
		}
		for _, layer := range r.layeredZones.Layers() {
			st.RankedZones = append(st.RankedZones, layer.ID)
		}
	})
	return st
}

// Surfaces состояние веб-поверхностей сущностей в сцене
func (r *Renderer) Surfaces() []websurface.Info {
	var out []websurface.Info
	r.Invoke(func() {
		for _, item := range r.entitiesInScene {
			if w, ok := item.(*WebItem); ok {
				out = append(out, w.Surface().Info())
			}
		}
	})
	return out
}

// SurfacePool счётчик пула; читать через Invoke
func (r *Renderer) SurfacePool() (live, max int) {
	r.Invoke(func() {
		live, max = r.pool.Live(), r.pool.Max()
	})
	return live, max
}
