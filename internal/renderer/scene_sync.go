package renderer

import (
	"sort"

	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/script"
)

// addingEntity новая сущность в дереве: перепроверка вхождения, предзагрузка
// скрипта и добавление в сцену
func (r *Renderer) addingEntity(id entity.ID) {
	if r.tree == nil || r.shuttingDown {
		return
	}
	r.forceRecheckEntities()
	r.checkAndCallPreload(id, false, false)

	item := r.tree.FindEntityByID(id)
	if item == nil {
		return
	}
	if r.entitiesHidden {
		// появится вместе с остальными при включении отрисовки
		r.idsLastInScene = append(r.idsLastInScene, id)
		return
	}
	r.addEntityToScene(item)
}

func (r *Renderer) addEntityToScene(item entity.Item) {
	if r.scene == nil {
		r.logger.Warn("⚠️ addEntityToScene: сцены нет, сущность %s пропущена", item.ID())
		return
	}
	if _, ok := r.entitiesInScene[item.ID()]; ok {
		return
	}
	renderable := item.RenderableInterface()
	if renderable == nil {
		r.logger.Warn("⚠️ addEntityToScene: сущность %s (%s) не рендерится", item.ID(), item.Type())
		return
	}

	var tx scene.Transaction
	if renderable.AddToScene(item, r.scene, &tx) {
		r.entitiesInScene[item.ID()] = item
	}
	r.scene.EnqueueTransaction(&tx)
}

// deletingEntity сущность удаляется из дерева: выгрузка скрипта и удаление из сцены
func (r *Renderer) deletingEntity(id entity.ID) {
	item, ok := r.entitiesInScene[id]
	if !ok {
		r.forgetHidden(id)
		r.forceRecheckEntities()
		return
	}

	if r.tree != nil && !r.shuttingDown && r.engine != nil {
		r.engine.UnloadEntityScript(id, true)
		item.ScriptHasUnloaded()
	}

	if r.scene == nil {
		r.logger.Warn("⚠️ deletingEntity: сцены нет, сущность %s не убрана", id)
		return
	}
	delete(r.entitiesInScene, id)

	renderable := item.RenderableInterface()
	if renderable == nil {
		r.logger.Warn("⚠️ deletingEntity: сущность %s не рендерится", id)
		return
	}
	r.forceRecheckEntities()

	var tx scene.Transaction
	renderable.RemoveFromScene(item, r.scene, &tx)
	r.scene.EnqueueTransaction(&tx)
}

func (r *Renderer) forgetHidden(id entity.ID) {
	for i, hidden := range r.idsLastInScene {
		if hidden == id {
			r.idsLastInScene = append(r.idsLastInScene[:i], r.idsLastInScene[i+1:]...)
			return
		}
	}
}

func (r *Renderer) entityScriptChanging(id entity.ID, reload bool) {
	if r.tree != nil && !r.shuttingDown {
		r.checkAndCallPreload(id, reload, true)
	}
}

// checkAndCallPreload выгружает пустой или заменяемый скрипт и загружает
// скрипт, который сущность ещё не предзагрузила
func (r *Renderer) checkAndCallPreload(id entity.ID, reload, unloadFirst bool) {
	if r.tree == nil || r.shuttingDown {
		return
	}
	item := r.tree.FindEntityByID(id)
	if item == nil {
		return
	}

	shouldLoad := item.ShouldPreloadScript() && r.engine != nil
	scriptURL := item.Script()
	if (shouldLoad && unloadFirst) || scriptURL == "" {
		if r.engine != nil {
			r.engine.UnloadEntityScript(id, false)
		}
		item.ScriptHasUnloaded()
	}
	if shouldLoad {
		r.engine.LoadEntityScript(id, script.NormalizeURL(scriptURL), reload)
		item.ScriptHasPreloaded()
	}
}

// ReloadEntityScripts выгружает все скрипты, сбрасывает кэш модулей и заново
// загружает скрипты сущностей в сцене
func (r *Renderer) ReloadEntityScripts() {
	r.Invoke(func() {
		if r.engine == nil {
			return
		}
		r.engine.UnloadAllEntityScripts()
		r.engine.ResetModuleCache()
		for _, id := range r.sceneIDs() {
			item := r.entitiesInScene[id]
			if item.Script() != "" {
				r.engine.LoadEntityScript(id, script.NormalizeURL(item.Script()), true)
				item.ScriptHasPreloaded()
			}
		}
		r.logger.Info("🔄 Скрипты сущностей перезагружены")
	})
}

// sceneIDs идентификаторы сущностей в сцене в детерминированном порядке
func (r *Renderer) sceneIDs() []entity.ID {
	ids := make([]entity.ID, 0, len(r.entitiesInScene))
	for id := range r.entitiesInScene {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return entity.Less(ids[i], ids[j]) })
	return ids
}

// UpdateEntityRenderStatus скрывает все сущности сцены или возвращает скрытые.
// Повторный вызов с тем же значением ничего не делает.
func (r *Renderer) UpdateEntityRenderStatus(shouldRender bool) {
	r.Invoke(func() { r.updateEntityRenderStatus(shouldRender) })
}

func (r *Renderer) updateEntityRenderStatus(shouldRender bool) {
	if shouldRender {
		if !r.entitiesHidden {
			return
		}
		r.entitiesHidden = false
		ids := r.idsLastInScene
		r.idsLastInScene = nil
		for _, id := range ids {
			if r.tree == nil {
				break
			}
			if item := r.tree.FindEntityByID(id); item != nil {
				r.checkAndCallPreload(id, false, false)
				r.addEntityToScene(item)
			}
		}
		return
	}

	if r.entitiesHidden {
		return
	}
	ids := r.sceneIDs()
	for _, id := range ids {
		r.deletingEntity(id)
	}
	r.entitiesHidden = true
	r.idsLastInScene = ids
}

// EntitiesInScene количество сущностей в сцене
func (r *Renderer) EntitiesInScene() int {
	var n int
	r.Invoke(func() { n = len(r.entitiesInScene) })
	return n
}

// Clear выводит аватар из всех сущностей, останавливает движок скриптов,
// убирает все сущности из сцены и сбрасывает ранжирование зон.
// Дерево не очищается: им владеет вызывающий.
func (r *Renderer) Clear() {
	r.Invoke(r.clear)
}

func (r *Renderer) clear() {
	r.leaveAllEntities()

	if r.engine != nil {
		r.engine.UnloadAllEntityScripts()
		r.engine.Stop()
	}
	if r.opts.WantScripts && !r.shuttingDown && r.newEngine != nil {
		r.resetEntitiesScriptEngine()
	} else if r.engine != nil {
		r.releaseEngine(r.engine)
		r.engine = nil
	}

	if r.scene != nil {
		var tx scene.Transaction
		for _, id := range r.sceneIDs() {
			item := r.entitiesInScene[id]
			if renderable := item.RenderableInterface(); renderable != nil {
				renderable.RemoveFromScene(item, r.scene, &tx)
			}
			item.ScriptHasUnloaded()
		}
		r.scene.EnqueueTransaction(&tx)
	} else {
		r.logger.Warn("⚠️ clear: сцены нет")
	}
	r.entitiesInScene = make(map[entity.ID]entity.Item)
	r.idsLastInScene = nil
	r.entitiesHidden = false

	r.layeredZones.Clear()
	r.applyLayeredZones()

	r.hoverID = entity.UnknownID
	r.clickingID = entity.UnknownID
	r.lastPointerEventValid = false
	r.forceRecheckEntities()
}

// resetEntitiesScriptEngine создаёт новый движок; прежний отпускается в фоне
func (r *Renderer) resetEntitiesScriptEngine() {
	old := r.engine
	r.engine = r.newEngine()
	r.logger.Debug("🧩 Создан движок скриптов сущностей")
	if old != nil {
		r.releaseEngine(old)
	}
}

// releaseEngine ждёт в отдельной горутине, пока движок закончит работу
func (r *Renderer) releaseEngine(e script.Engine) {
	r.engines.Add(1)
	go func() {
		defer r.engines.Done()
		e.WaitTillDoneRunning()
		r.logger.Debug("🧹 Прежний движок скриптов освобождён")
	}()
}

// Shutdown выводит аватар из всех сущностей, очищает сцену и отписывается от дерева.
// Ожидание прежних движков скриптов не блокирует вызывающего.
func (r *Renderer) Shutdown() {
	r.Invoke(func() {
		if r.shuttingDown {
			return
		}
		r.shuttingDown = true
		r.clear()
		r.treeSub.Remove()
		r.logger.Info("👋 Рендерер остановлен")
	})
}
