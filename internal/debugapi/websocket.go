package debugapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/annel0/entity-renderer/internal/eventbus"
	"github.com/annel0/entity-renderer/internal/signal"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	// отладочный API слушает только локально
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSignalsWS стримит сигналы рендерера из шины событий.
// ?names=enterEntity,leaveEntity ограничивает поток.
func (s *Server) handleSignalsWS(c *gin.Context) {
	var names map[signal.Name]struct{}
	if q := c.Query("names"); q != "" {
		names = make(map[signal.Name]struct{})
		for _, n := range strings.Split(q, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names[signal.Name(n)] = struct{}{}
			}
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Log.Warn("⚠️ Не удалось открыть websocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan eventbus.SignalRecord, wsSendBuffer)
	sub, err := eventbus.SubscribeSignals(ctx, s.deps.Bus, func(rec eventbus.SignalRecord) {
		if names != nil {
			if _, ok := names[rec.Event.Name]; !ok {
				return
			}
		}
		select {
		case out <- rec:
		default:
			// медленный клиент теряет сигналы, а не тормозит шину
		}
	}, s.deps.Codecs...)
	if err != nil {
		s.deps.Log.Warn("⚠️ Подписка websocket на сигналы: %v", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer sub.Unsubscribe()

	// читаем только ради обнаружения закрытия
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.deps.Log.Debug("🔌 Websocket клиент подключён: %s", c.ClientIP())
	for {
		select {
		case <-ctx.Done():
			s.deps.Log.Debug("🔌 Websocket клиент отключён: %s", c.ClientIP())
			return
		case rec := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(rec); err != nil {
				s.deps.Log.Debug("Запись в websocket: %v", err)
				return
			}
		}
	}
}
