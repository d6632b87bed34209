package script

import (
	"github.com/annel0/entity-renderer/internal/entity"
)

// Engine коллаборатор, исполняющий скрипты сущностей.
// Все вызовы fire-and-forget; вызов для несуществующей сущности или
// незагруженного скрипта должен быть безопасным no-op.
type Engine interface {
	CallEntityScriptMethod(id entity.ID, method string, args ...any)
	LoadEntityScript(id entity.ID, scriptURL string, reload bool)
	UnloadEntityScript(id entity.ID, shouldRemoveFromMap bool)
	UnloadAllEntityScripts()
	ResetModuleCache()
	// Stop прекращает приём новой работы
	Stop()
	// WaitTillDoneRunning блокирует до завершения уже принятой работы
	WaitTillDoneRunning()
}

// Factory создаёт новый движок (используется при сбросе движка)
type Factory func() Engine

// Имена методов скриптов, вызываемых рендерером
const (
	MethodMousePressOnEntity       = "mousePressOnEntity"
	MethodMouseDoublePressOnEntity = "mouseDoublePressOnEntity"
	MethodMouseMoveEvent           = "mouseMoveEvent"
	MethodMouseMoveOnEntity        = "mouseMoveOnEntity"
	MethodMouseReleaseOnEntity     = "mouseReleaseOnEntity"
	MethodClickDownOnEntity        = "clickDownOnEntity"
	MethodDoubleclickOnEntity      = "doubleclickOnEntity"
	MethodHoldingClickOnEntity     = "holdingClickOnEntity"
	MethodClickReleaseOnEntity     = "clickReleaseOnEntity"
	MethodHoverEnterEntity         = "hoverEnterEntity"
	MethodHoverOverEntity          = "hoverOverEntity"
	MethodHoverLeaveEntity         = "hoverLeaveEntity"
	MethodEnterEntity              = "enterEntity"
	MethodLeaveEntity              = "leaveEntity"
	MethodCollisionWithEntity      = "collisionWithEntity"

	// жизненный цикл модуля
	MethodPreload = "preload"
	MethodUnload  = "unload"
)
