package debugapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/entity-renderer/internal/eventbus"
	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/middleware"
	"github.com/annel0/entity-renderer/internal/renderer"
	"github.com/annel0/entity-renderer/internal/vec"
	"github.com/annel0/entity-renderer/internal/webhook"
	"github.com/annel0/entity-renderer/internal/websurface"
)

// Inspector часть рендерера, доступная отладочному API
type Inspector interface {
	Snapshot() renderer.State
	Surfaces() []websurface.Info
	MousePressEvent(ev renderer.MouseEvent)
	MouseDoublePressEvent(ev renderer.MouseEvent)
	MouseReleaseEvent(ev renderer.MouseEvent)
	MouseMoveEvent(ev renderer.MouseEvent)
	ForceRecheck()
	ReloadEntityScripts()
	UpdateEntityRenderStatus(shouldRender bool)
}

// AvatarMover перемещает аватар (камера зрителя)
type AvatarMover interface {
	SetAvatarPosition(p vec.Vec3)
}

// Deps зависимости сервера; Bus, Webhooks и Gatherer необязательны
type Deps struct {
	Renderer   Inspector
	Avatar     AvatarMover
	Bus        eventbus.EventBus
	Codecs     []eventbus.Codec
	Webhooks   *webhook.Manager
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
	Log        *logging.Logger
	Clock      func() time.Time
}

// Server HTTP API для инспекции состояния и инъекции ввода
type Server struct {
	server  *http.Server
	router  *gin.Engine
	deps    Deps
	process *processMetrics
}

// GenericResponse обёртка ответов с ошибкой
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создаёт сервер и регистрирует маршруты; слушать начинает Start
func NewServer(addr string, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery
	router.HandleMethodNotAllowed = true

	// === Observability middleware ===
	router.Use(otelgin.Middleware("debug_api"))
	router.Use(middleware.NewRequestLogger(deps.Log).Handler())
	promMw := middleware.NewPrometheusMiddleware("debugapi", deps.Registerer)
	router.Use(promMw.Handler())
	if deps.Gatherer != nil {
		promMw.RegisterMetricsEndpoint(router, deps.Gatherer)
	}

	s := &Server{
		server: &http.Server{
			Addr:        addr,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
			Handler:     router,
		},
		router:  router,
		deps:    deps,
		process: newProcessMetrics(deps.Clock()),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/state", s.handleState)
	s.router.GET("/zones", s.handleZones)
	s.router.GET("/inside", s.handleInside)
	s.router.GET("/surfaces", s.handleSurfaces)

	s.router.POST("/avatar", s.handleAvatar)
	s.router.POST("/pointer/:kind", s.handlePointer)
	s.router.POST("/render-status", s.handleRenderStatus)
	s.router.POST("/scripts/reload", s.handleReloadScripts)

	if s.deps.Bus != nil {
		s.router.GET("/signals/ws", s.handleSignalsWS)
	}
	if s.deps.Webhooks != nil {
		hooks := s.router.Group("/webhooks")
		{
			hooks.GET("", s.handleListWebhooks)
			hooks.POST("", s.handleAddWebhook)
			hooks.DELETE("/:id", s.handleDeleteWebhook)
			hooks.POST("/:id/active", s.handleWebhookActive)
		}
	}
}

// Handler маршрутизатор (тесты, встраивание)
func (s *Server) Handler() http.Handler { return s.router }

// Start запускает HTTP сервер в отдельной горутине
func (s *Server) Start() {
	go func() {
		s.deps.Log.Info("🔎 Debug API слушает %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Log.Error("Ошибка Debug API сервера: %v", err)
		}
	}()
}

// Stop корректно останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("debug api shutdown: %w", err)
	}
	s.deps.Log.Info("Debug API остановлен")
	return nil
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResponse{Success: false, Message: msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   s.deps.Clock().Unix(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	cpuPercent, _ := s.process.cpuPercent()
	st := s.deps.Renderer.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"uptime":            s.process.uptime(s.deps.Clock()),
		"cpu_percent":       fmt.Sprintf("%.1f", cpuPercent),
		"memory":            s.process.memory(),
		"entities_in_scene": st.EntitiesInScene,
		"live_models":       st.LiveModels,
		"shutting_down":     st.ShuttingDown,
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Renderer.Snapshot())
}

// zonesResponse ранжированные зоны, от доминирующей (самой маленькой)
type zonesResponse struct {
	RankedZones []string `json:"ranked_zones"`
	SkyboxIndex int      `json:"skybox_index"`
	ItemCount   int      `json:"item_count"`
}

func (s *Server) handleZones(c *gin.Context) {
	st := s.deps.Renderer.Snapshot()
	resp := zonesResponse{RankedZones: make([]string, 0, len(st.RankedZones)), SkyboxIndex: st.SkyboxIndex, ItemCount: len(st.RankedItems)}
	for _, id := range st.RankedZones {
		resp.RankedZones = append(resp.RankedZones, id.String())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInside(c *gin.Context) {
	st := s.deps.Renderer.Snapshot()
	ids := make([]string, 0, len(st.EntitiesInside))
	for _, id := range st.EntitiesInside {
		ids = append(ids, id.String())
	}
	c.JSON(http.StatusOK, gin.H{"entities_inside": ids})
}

func (s *Server) handleSurfaces(c *gin.Context) {
	surfaces := s.deps.Renderer.Surfaces()
	if surfaces == nil {
		surfaces = []websurface.Info{}
	}
	c.JSON(http.StatusOK, surfaces)
}

type avatarRequest struct {
	Position *vec.Vec3 `json:"position"`
	Recheck  bool      `json:"recheck"`
}

func (s *Server) handleAvatar(c *gin.Context) {
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Position == nil {
		writeError(c, http.StatusBadRequest, "ожидается {\"position\":[x,y,z]}")
		return
	}
	if s.deps.Avatar == nil {
		writeError(c, http.StatusNotImplemented, "аватар недоступен")
		return
	}
	s.deps.Avatar.SetAvatarPosition(*req.Position)
	if req.Recheck {
		s.deps.Renderer.ForceRecheck()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePointer(c *gin.Context) {
	var dispatch func(renderer.MouseEvent)
	switch c.Param("kind") {
	case "press":
		dispatch = s.deps.Renderer.MousePressEvent
	case "doublepress":
		dispatch = s.deps.Renderer.MouseDoublePressEvent
	case "release":
		dispatch = s.deps.Renderer.MouseReleaseEvent
	case "move":
		dispatch = s.deps.Renderer.MouseMoveEvent
	default:
		writeError(c, http.StatusNotFound, "неизвестный тип события указателя")
		return
	}

	var ev renderer.MouseEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		writeError(c, http.StatusBadRequest, "некорректное событие: "+err.Error())
		return
	}
	dispatch(ev)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRenderStatus(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		writeError(c, http.StatusBadRequest, "ожидается {\"enabled\":bool}")
		return
	}
	s.deps.Renderer.UpdateEntityRenderStatus(*req.Enabled)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReloadScripts(c *gin.Context) {
	s.deps.Renderer.ReloadEntityScripts()
	c.Status(http.StatusNoContent)
}
