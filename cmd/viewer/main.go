package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/entity-renderer/internal/config"
	"github.com/annel0/entity-renderer/internal/debugapi"
	"github.com/annel0/entity-renderer/internal/entity"
	"github.com/annel0/entity-renderer/internal/eventbus"
	"github.com/annel0/entity-renderer/internal/logging"
	"github.com/annel0/entity-renderer/internal/metrics"
	"github.com/annel0/entity-renderer/internal/observability"
	"github.com/annel0/entity-renderer/internal/renderer"
	"github.com/annel0/entity-renderer/internal/scene"
	"github.com/annel0/entity-renderer/internal/scenegen"
	"github.com/annel0/entity-renderer/internal/script"
	sig "github.com/annel0/entity-renderer/internal/signal"
	"github.com/annel0/entity-renderer/internal/storage"
	"github.com/annel0/entity-renderer/internal/tree"
	"github.com/annel0/entity-renderer/internal/vec"
	"github.com/annel0/entity-renderer/internal/webhook"
	"github.com/annel0/entity-renderer/internal/websurface"
)

// announceScript встроенный модуль, пишущий в лог вход и выход аватара
const announceScript = "builtin://announce"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $RENDERER_CONFIG)")
	scenePath := flag.String("scene", "", "YAML сцена для загрузки в дерево")
	sessionFlag := flag.String("session", "", "UUID сессии для сохранения позиции аватара")
	width := flag.Int("width", 1280, "ширина окна просмотра")
	height := flag.Int("height", 720, "высота окна просмотра")
	flag.Parse()

	if err := logging.InitDefaultLogger("viewer"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg.LogLevel != "" {
		level := logging.ParseLevel(cfg.LogLevel)
		logging.GetLoggerManager().SetDefaultLevel(level)
		logging.Default().SetConsoleLevel(level)
	}

	logging.Info("🎮 Запуск просмотрщика дерева сущностей...")

	sessionID := uuid.New()
	if *sessionFlag != "" {
		if sessionID, err = uuid.Parse(*sessionFlag); err != nil {
			log.Fatalf("❌ Некорректный UUID сессии %q: %v", *sessionFlag, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ И МЕТРИКИ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Warn("⚠️ Трассировка отключена: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// === ХРАНИЛИЩЕ ===
	var (
		store   *storage.SnapshotStore
		avatars storage.AvatarRepo
	)
	if cfg.Storage.Path != "" {
		store, err = storage.NewSnapshotStore(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("❌ Ошибка открытия снапшота: %v", err)
		}
		avatars = store
		logging.Info("💾 Снапшот: %s", store.Path())
	} else {
		avatars = storage.NewMemoryAvatarRepo()
		logging.Info("💾 Снапшот не настроен, позиция аватара хранится в памяти")
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	if _, err := eventbus.StartLoggingListener(ctx, bus, logging.GetComponentLogger("eventbus")); err != nil {
		logging.Warn("⚠️ Логирование шины недоступно: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.Start(10 * time.Second)

	zstd, err := eventbus.NewZstdCodec()
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации zstd: %v", err)
	}
	defer zstd.Close()

	// === РЕНДЕРЕР ===
	t := tree.New(entity.NewRegistry(), tree.DefaultCellSize)
	camera := renderer.NewCamera(*width, *height)
	hub := sig.NewHub()

	bridge := eventbus.NewSignalBridge(bus, hub, eventbus.BridgeOptions{
		Source: "viewer:" + sessionID.String(),
		Codec:  zstd,
	}, logging.GetComponentLogger("bridge"))
	bridge.Start(ctx)

	hooks := webhook.NewManager(webhook.Options{Source: "viewer:" + sessionID.String()})
	for _, wc := range cfg.Webhooks {
		h, err := hooks.Add(webhook.Hook{
			Name:       wc.Name,
			URL:        wc.URL,
			Secret:     wc.Secret,
			Signals:    wc.Signals,
			Timeout:    wc.TimeoutSeconds,
			RetryCount: wc.RetryCount,
		})
		if err != nil {
			logging.Warn("⚠️ Webhook %q пропущен: %v", wc.Name, err)
			continue
		}
		logging.Info("🪝 Webhook %s → %s (%v)", h.Name, h.URL, h.Signals)
	}
	hooks.Start(ctx)
	if _, err := eventbus.SubscribeSignals(ctx, bus, hooks.Handle, zstd); err != nil {
		logging.Warn("⚠️ Webhook'и не подписаны на сигналы: %v", err)
	}

	library := script.NewLibrary()
	library.Register(announceScript, announceModule(logging.GetScriptLogger()))

	opts := renderer.OptionsFromConfig(cfg)
	opts.SessionID = sessionID
	r := renderer.New(renderer.Deps{
		Tree:      t,
		Scene:     scene.New(),
		View:      camera,
		Hub:       hub,
		Scripts:   script.NativeFactory(library),
		Navigator: logNavigator{log: logging.GetRendererLogger()},
		Sounds:    logSounds{log: logging.GetRendererLogger()},
		Views:     websurface.HeadlessFactory(nil),
		Metrics:   m,
	}, opts)

	// сущности добавляются после New, чтобы дерево создавало рендеримые варианты
	if store != nil {
		n, err := storage.RestoreTree(store, t, logging.GetStorageLogger())
		if err != nil {
			logging.Error("❌ Ошибка восстановления дерева: %v", err)
		} else {
			logging.Info("📦 Восстановлено сущностей: %d", n)
		}
	}
	if *scenePath != "" {
		if err := loadScene(*scenePath, t); err != nil {
			logging.Error("❌ Ошибка загрузки сцены: %v", err)
		}
	}

	if pos, ok, err := avatars.Load(ctx, sessionID); err != nil {
		logging.Warn("⚠️ Позиция аватара не загружена: %v", err)
	} else if ok {
		camera.SetAvatarPosition(pos)
		logging.Info("🧍 Аватар восстановлен в %v", pos)
	}

	go func() {
		if err := r.Run(ctx); err != nil {
			logging.Error("❌ Цикл рендерера: %v", err)
		}
	}()

	// === ОТЛАДОЧНЫЙ API ===
	api := debugapi.NewServer(fmt.Sprintf(":%d", cfg.Debug.GetHTTPPort()), debugapi.Deps{
		Renderer:   r,
		Avatar:     camera,
		Bus:        bus,
		Codecs:     []eventbus.Codec{zstd},
		Webhooks:   hooks,
		Gatherer:   registry,
		Registerer: registry,
		Log:        logging.GetDebugLogger(),
	})
	api.Start()

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Debug.GetMetricsPort()),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()

	logging.Info("✅ Просмотрщик запущен: API :%d, метрики :%d, сессия %s",
		cfg.Debug.GetHTTPPort(), cfg.Debug.GetMetricsPort(), sessionID)

	// Ждем сигнала для graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("🛑 Получен сигнал завершения, останавливаем просмотрщик...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := api.Stop(stopCtx); err != nil {
		logging.Warn("⚠️ Остановка API: %v", err)
	}
	_ = metricsSrv.Shutdown(stopCtx)

	r.Shutdown()
	if err := bridge.Stop(stopCtx); err != nil {
		logging.Warn("⚠️ Остаток сигналов не отправлен: %v", err)
	}
	cancel()
	r.WaitReleasedEngines()

	if err := avatars.Save(stopCtx, sessionID, camera.AvatarPosition()); err != nil {
		logging.Warn("⚠️ Позиция аватара не сохранена: %v", err)
	}
	if store != nil {
		if n, err := storage.PersistTree(store, t, time.Now()); err != nil {
			logging.Error("❌ Ошибка сохранения дерева: %v", err)
		} else {
			logging.Info("💾 Сохранено сущностей: %d", n)
		}
		if err := store.Close(); err != nil {
			logging.Warn("⚠️ Закрытие снапшота: %v", err)
		}
	}

	hooks.Stop()
	exporter.Stop()
	if err := bus.Close(); err != nil {
		logging.Warn("⚠️ Закрытие шины: %v", err)
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		logging.Warn("⚠️ Остановка трассировки: %v", err)
	}

	logging.Info("👋 Просмотрщик остановлен")
}

func openBus(cfg *config.Config) (eventbus.EventBus, error) {
	if cfg.EventBus.URL == "" {
		logging.Info("🚌 Шина событий в памяти (буфер %d)", cfg.EventBus.GetBuffer())
		return eventbus.NewMemoryBus(cfg.EventBus.GetBuffer()), nil
	}
	retention := time.Duration(cfg.EventBus.Retention) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	logging.Info("🚌 Шина событий JetStream: %s, стрим %s", cfg.EventBus.URL, cfg.EventBus.GetStream())
	return eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.GetStream(), retention)
}

func loadScene(path string, t *tree.Tree) error {
	s, err := scenegen.Load(path)
	if err != nil {
		return err
	}
	resolved, err := s.Resolve()
	if err != nil {
		return err
	}
	added := 0
	for _, e := range resolved {
		if _, err := t.AddEntity(e.ID, e.Properties); err != nil {
			if errors.Is(err, tree.ErrEntityExists) {
				continue
			}
			return fmt.Errorf("entity %s: %w", e.ID, err)
		}
		added++
	}
	logging.Info("🗺️ Сцена %q: добавлено %d из %d", s.Name, added, len(resolved))
	return nil
}

func announceModule(log *logging.Logger) script.Module {
	return script.Module{
		script.MethodEnterEntity: func(id entity.ID, _ ...any) { log.Info("➡️ Аватар вошёл в %s", id) },
		script.MethodLeaveEntity: func(id entity.ID, _ ...any) { log.Info("⬅️ Аватар вышел из %s", id) },
		script.MethodCollisionWithEntity: func(id entity.ID, args ...any) {
			log.Debug("💥 Столкновение %s: %v", id, args)
		},
	}
}

// logNavigator пишет переходы по href в лог
type logNavigator struct{ log *logging.Logger }

func (n logNavigator) HandleLookupString(lookup string) {
	n.log.Info("🔗 Переход: %s", lookup)
}

// logSounds звука нет, только лог
type logSounds struct{ log *logging.Logger }

func (s logSounds) PlayCollisionSound(soundURL string, volume, pitchStretch float64, at vec.Vec3) {
	s.log.Debug("🔊 %s (громкость %.2f, высота %.2f) в %v", soundURL, volume, pitchStretch, at)
}
