package script

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/entity-renderer/internal/entity"
)

type trace struct {
	mu  sync.Mutex
	log []string
}

func (t *trace) add(s string) {
	t.mu.Lock()
	t.log = append(t.log, s)
	t.mu.Unlock()
}

func (t *trace) get() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.log...)
}

func doorModule(tr *trace) Module {
	return Module{
		MethodPreload:     func(entity.ID, ...any) { tr.add("preload") },
		MethodUnload:      func(entity.ID, ...any) { tr.add("unload") },
		MethodEnterEntity: func(entity.ID, ...any) { tr.add("enter") },
		MethodClickDownOnEntity: func(_ entity.ID, args ...any) {
			tr.add("click")
			if len(args) > 0 {
				tr.add(args[0].(string))
			}
		},
	}
}

func TestNativeEngineLifecycleAndOrder(t *testing.T) {
	lib := NewLibrary()
	tr := &trace{}
	lib.Register("file:///door.js", doorModule(tr))

	e := NewNativeEngine("test", lib)
	id := entity.NewID()

	e.CallEntityScriptMethod(id, MethodEnterEntity) // ещё не загружен: no-op
	e.LoadEntityScript(id, " file:///door.js ", false)
	e.CallEntityScriptMethod(id, MethodEnterEntity)
	e.CallEntityScriptMethod(id, MethodClickDownOnEntity, "arg")
	e.CallEntityScriptMethod(id, "noSuchMethod")
	e.UnloadEntityScript(id, true)
	e.CallEntityScriptMethod(id, MethodEnterEntity)
	e.Flush()

	assert.Equal(t, []string{"preload", "enter", "click", "arg", "unload"}, tr.get())
	assert.Equal(t, 0, e.LoadedCount())

	e.Stop()
	e.WaitTillDoneRunning()
}

func TestNativeEngineStaleAndMissingScripts(t *testing.T) {
	e := NewNativeEngine("test", nil)
	id := entity.NewID()

	assert.NotPanics(t, func() {
		e.LoadEntityScript(id, "file:///missing.js", false)
		e.CallEntityScriptMethod(entity.NewID(), MethodLeaveEntity)
		e.UnloadEntityScript(entity.NewID(), true)
		e.Flush()
	})
	assert.Equal(t, 0, e.LoadedCount())
	e.Stop()
	e.WaitTillDoneRunning()
}

func TestNativeEngineRecoversFromPanic(t *testing.T) {
	lib := NewLibrary()
	tr := &trace{}
	lib.Register("boom.js", Module{
		MethodEnterEntity: func(entity.ID, ...any) { panic("boom") },
		MethodLeaveEntity: func(entity.ID, ...any) { tr.add("leave") },
	})
	e := NewNativeEngine("test", lib)
	id := entity.NewID()
	e.LoadEntityScript(id, "boom.js", false)
	e.CallEntityScriptMethod(id, MethodEnterEntity)
	e.CallEntityScriptMethod(id, MethodLeaveEntity)
	e.Flush()
	assert.Equal(t, []string{"leave"}, tr.get())
	e.Stop()
	e.WaitTillDoneRunning()
}

func TestNativeEngineStopDrainsAcceptedWork(t *testing.T) {
	lib := NewLibrary()
	tr := &trace{}
	lib.Register("door.js", doorModule(tr))
	e := NewNativeEngine("test", lib)
	id := entity.NewID()

	e.LoadEntityScript(id, "door.js", false)
	for i := 0; i < 10; i++ {
		e.CallEntityScriptMethod(id, MethodEnterEntity)
	}
	e.Stop()
	e.CallEntityScriptMethod(id, MethodEnterEntity) // после Stop отбрасывается
	e.WaitTillDoneRunning()

	log := tr.get()
	require.NotEmpty(t, log)
	assert.Equal(t, "preload", log[0])
	assert.Len(t, log, 11)
}

func TestUnloadAllAndReload(t *testing.T) {
	lib := NewLibrary()
	tr := &trace{}
	lib.Register("door.js", doorModule(tr))
	e := NewNativeEngine("test", lib)
	a, b := entity.NewID(), entity.NewID()

	e.LoadEntityScript(a, "door.js", false)
	e.LoadEntityScript(b, "door.js", false)
	e.UnloadAllEntityScripts()
	e.ResetModuleCache()
	e.Flush()
	assert.Equal(t, 0, e.LoadedCount())
	assert.Equal(t, []string{"preload", "preload", "unload", "unload"}, tr.get())

	e.Stop()
	e.WaitTillDoneRunning()
}

func TestNativeFactoryNamesEngines(t *testing.T) {
	f := NativeFactory(NewLibrary())
	first := f().(*NativeEngine)
	second := f().(*NativeEngine)
	assert.Equal(t, "about:Entities 1", first.Name())
	assert.Equal(t, "about:Entities 2", second.Name())
	for _, e := range []*NativeEngine{first, second} {
		e.Stop()
		e.WaitTillDoneRunning()
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	id := entity.NewID()
	r.CallEntityScriptMethod(id, MethodEnterEntity)
	r.LoadEntityScript(id, "x.js", true)
	r.UnloadEntityScript(id, false)
	assert.Equal(t, []string{MethodEnterEntity, "load", "unload"}, r.Methods(id))
	assert.Equal(t, []string{MethodEnterEntity}, r.ScriptMethods(id), "load и unload не методы скрипта")

	r.Stop()
	r.CallEntityScriptMethod(id, MethodLeaveEntity)
	assert.Len(t, r.Calls(), 3, "после Stop вызовы не записываются")

	r.WaitTillDoneRunning()
	r.WaitTillDoneRunning()
	select {
	case <-r.Waited():
	default:
		t.Fatal("ожидание не отмечено")
	}
}
