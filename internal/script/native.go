package script

import (
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/logging"
)

// Method обработчик метода скрипта на Go
type Method func(id entity.ID, args ...any)

// Module набор методов, зарегистрированный под URL скрипта
type Module map[string]Method

// Library реестр модулей по URL скрипта. Общий для всех экземпляров движка.
type Library struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewLibrary создаёт пустой реестр модулей
func NewLibrary() *Library {
	return &Library{modules: make(map[string]Module)}
}

// Register регистрирует модуль под URL
func (l *Library) Register(scriptURL string, m Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[NormalizeURL(scriptURL)] = m
}

// Get возвращает модуль по URL
func (l *Library) Get(scriptURL string) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[NormalizeURL(scriptURL)]
	return m, ok
}

// NormalizeURL приводит URL скрипта к каноническому виду
func NormalizeURL(u string) string {
	return strings.TrimSpace(u)
}

type job func()

// NativeEngine исполняет модули Go в собственной горутине.
// Порядок вызовов сохраняется; вызовы после Stop отбрасываются.
type NativeEngine struct {
	name    string
	library *Library
	logger  *logging.Logger

	mu      sync.Mutex
	queue   []job
	wake    chan struct{}
	stopped bool
	done    chan struct{}

	// состояние ниже трогает только рабочая горутина
	loaded map[entity.ID]Module
	cache  map[string]Module
}

// NewNativeEngine создаёт и запускает движок
func NewNativeEngine(name string, library *Library) *NativeEngine {
	if library == nil {
		library = NewLibrary()
	}
	e := &NativeEngine{
		name:    name,
		library: library,
		logger:  logging.GetScriptLogger(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		loaded:  make(map[entity.ID]Module),
		cache:   make(map[string]Module),
	}
	go e.run()
	return e
}

// NativeFactory фабрика движков, разделяющих одну библиотеку модулей
func NativeFactory(library *Library) Factory {
	count := 0
	var mu sync.Mutex
	return func() Engine {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		return NewNativeEngine("about:Entities "+strconv.Itoa(n), library)
	}
}

// Name имя экземпляра движка
func (e *NativeEngine) Name() string { return e.name }

func (e *NativeEngine) post(j job) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, j)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *NativeEngine) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		jobs := e.queue
		e.queue = nil
		stopped := e.stopped
		e.mu.Unlock()

		for _, j := range jobs {
			e.safeRun(j)
		}
		if stopped && len(jobs) == 0 {
			return
		}
		if len(jobs) == 0 {
			<-e.wake
		}
	}
}

func (e *NativeEngine) safeRun(j job) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("💥 Паника в скрипте (%s): %v", e.name, r)
		}
	}()
	j()
}

// CallEntityScriptMethod вызывает метод загруженного скрипта; неизвестные id игнорируются
func (e *NativeEngine) CallEntityScriptMethod(id entity.ID, method string, args ...any) {
	e.post(func() {
		m, ok := e.loaded[id]
		if !ok {
			return
		}
		if fn, ok := m[method]; ok && fn != nil {
			fn(id, args...)
		}
	})
}

// LoadEntityScript загружает модуль для сущности и вызывает его preload
func (e *NativeEngine) LoadEntityScript(id entity.ID, scriptURL string, reload bool) {
	e.post(func() {
		url := NormalizeURL(scriptURL)
		m, cached := e.cache[url]
		if !cached || reload {
			var ok bool
			m, ok = e.library.Get(url)
			if !ok {
				e.logger.Warn("⚠️ Скрипт %s для сущности %s не найден", url, id)
				return
			}
			e.cache[url] = m
		}
		if old, ok := e.loaded[id]; ok {
			if fn := old[MethodUnload]; fn != nil {
				fn(id)
			}
		}
		e.loaded[id] = m
		if fn := m[MethodPreload]; fn != nil {
			fn(id)
		}
	})
}

// UnloadEntityScript вызывает unload и (опционально) забывает сущность
func (e *NativeEngine) UnloadEntityScript(id entity.ID, shouldRemoveFromMap bool) {
	e.post(func() {
		m, ok := e.loaded[id]
		if !ok {
			return
		}
		if fn := m[MethodUnload]; fn != nil {
			fn(id)
		}
		if shouldRemoveFromMap {
			delete(e.loaded, id)
		}
	})
}

// UnloadAllEntityScripts выгружает все скрипты
func (e *NativeEngine) UnloadAllEntityScripts() {
	e.post(func() {
		for id, m := range e.loaded {
			if fn := m[MethodUnload]; fn != nil {
				fn(id)
			}
		}
		e.loaded = make(map[entity.ID]Module)
	})
}

// ResetModuleCache сбрасывает кэш модулей
func (e *NativeEngine) ResetModuleCache() {
	e.post(func() {
		e.cache = make(map[string]Module)
	})
}

// Flush блокирует до исполнения всех поставленных ранее вызовов
func (e *NativeEngine) Flush() {
	ch := make(chan struct{})
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.post(func() { close(ch) })
	select {
	case <-ch:
	case <-e.done:
	}
}

// Stop прекращает приём новых вызовов; принятые будут исполнены
func (e *NativeEngine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// WaitTillDoneRunning ждёт остановки рабочей горутины
func (e *NativeEngine) WaitTillDoneRunning() {
	<-e.done
}

// LoadedCount число сущностей с загруженным скриптом (для отладки)
func (e *NativeEngine) LoadedCount() int {
	ch := make(chan int, 1)
	e.post(func() { ch <- len(e.loaded) })
	select {
	case n := <-ch:
		return n
	case <-e.done:
		return 0
	}
}
