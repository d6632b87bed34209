package script

import (
	"sync"

	"github.com/annel0/entity-renderer/internal/entity"
)

// Call записанный вызов движка
type Call struct {
	Method   string
	EntityID entity.ID
	Args     []any
	Script   bool // вызов метода скрипта, а не управление загрузкой
}

// Recorder синхронный движок, записывающий все вызовы. Используется в тестах
// и как движок-заглушка в headless режиме без скриптов.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	stopped bool
	waited  chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{waited: make(chan struct{})}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.calls = append(r.calls, c)
}

func (r *Recorder) CallEntityScriptMethod(id entity.ID, method string, args ...any) {
	r.record(Call{Method: method, EntityID: id, Args: args, Script: true})
}

func (r *Recorder) LoadEntityScript(id entity.ID, scriptURL string, reload bool) {
	r.record(Call{Method: "load", EntityID: id, Args: []any{scriptURL, reload}})
}

func (r *Recorder) UnloadEntityScript(id entity.ID, shouldRemoveFromMap bool) {
	r.record(Call{Method: "unload", EntityID: id, Args: []any{shouldRemoveFromMap}})
}

func (r *Recorder) UnloadAllEntityScripts() {
	r.record(Call{Method: "unloadAll"})
}

func (r *Recorder) ResetModuleCache() {
	r.record(Call{Method: "resetModuleCache"})
}

func (r *Recorder) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// WaitTillDoneRunning отмечает, что движок был дождан
func (r *Recorder) WaitTillDoneRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.waited:
	default:
		close(r.waited)
	}
}

// Waited закрывается после WaitTillDoneRunning
func (r *Recorder) Waited() <-chan struct{} {
	return r.waited
}

// Stopped true после Stop
func (r *Recorder) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Calls копия записанных вызовов
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Methods имена методов для одной сущности в порядке вызова
func (r *Recorder) Methods(id entity.ID) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.EntityID == id {
			out = append(out, c.Method)
		}
	}
	return out
}

// ScriptMethods только вызовы методов скрипта сущности, без load/unload
func (r *Recorder) ScriptMethods(id entity.ID) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Script && c.EntityID == id {
			out = append(out, c.Method)
		}
	}
	return out
}

// Reset очищает записанные вызовы
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
