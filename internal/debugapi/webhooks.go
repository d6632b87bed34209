package debugapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/entity-renderer/internal/webhook"
)

func (s *Server) handleListWebhooks(c *gin.Context) {
	hooks := s.deps.Webhooks.List()
	// секреты наружу не отдаём
	for i := range hooks {
		hooks[i].Secret = ""
	}
	c.JSON(http.StatusOK, hooks)
}

func (s *Server) handleAddWebhook(c *gin.Context) {
	var req webhook.Hook
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "некорректный webhook: "+err.Error())
		return
	}
	hook, err := s.deps.Webhooks.Add(req)
	if errors.Is(err, webhook.ErrInvalidHook) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	hook.Secret = ""
	s.deps.Log.Info("🪝 Добавлен webhook %s → %s", hook.Name, hook.URL)
	c.JSON(http.StatusCreated, hook)
}

// hookID id из пути; false и 404 если это не число
func hookID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusNotFound, "webhook не найден")
		return 0, false
	}
	return id, true
}

func (s *Server) handleDeleteWebhook(c *gin.Context) {
	id, ok := hookID(c)
	if !ok {
		return
	}
	if !s.deps.Webhooks.Remove(id) {
		writeError(c, http.StatusNotFound, "webhook не найден")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleWebhookActive(c *gin.Context) {
	id, ok := hookID(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		writeError(c, http.StatusBadRequest, "ожидается {\"active\":bool}")
		return
	}
	if !s.deps.Webhooks.SetActive(id, *req.Active) {
		writeError(c, http.StatusNotFound, "webhook не найден")
		return
	}
	c.Status(http.StatusNoContent)
}
