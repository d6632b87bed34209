package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации рендерера.
type Config struct {
	Renderer   RendererConfig   `yaml:"renderer"`
	WebSurface WebSurfaceConfig `yaml:"websurface"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Storage    StorageConfig    `yaml:"storage"`
	Debug      DebugConfig      `yaml:"debug"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Webhooks   []WebhookConfig  `yaml:"webhooks"`
	LogLevel   string           `yaml:"log_level"`
}

type RendererConfig struct {
	ZoneCheckDistance   float64 `yaml:"zone_check_distance"`
	ZoneCheckIntervalMs int     `yaml:"zone_check_interval_ms"`
	ZoneQueryRadius     float64 `yaml:"zone_query_radius"`
	TickRateHz          int     `yaml:"tick_rate_hz"`
	WantScripts         *bool   `yaml:"want_scripts"`
	// PrecisionPicking включает точный пикинг для press/release/double-press.
	PrecisionPicking *bool `yaml:"precision_picking"`
}

type WebSurfaceConfig struct {
	MaxConcurrent      int     `yaml:"max_concurrent"`
	IdleTimeoutSeconds int     `yaml:"idle_timeout_seconds"`
	MaxWindowSize      int     `yaml:"max_window_size"`
	DPI                float64 `yaml:"dpi"`
	DefaultMaxFPS      int     `yaml:"default_max_fps"`
	VideoMaxFPS        int     `yaml:"video_max_fps"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type DebugConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// WebhookConfig исходящий webhook на сигналы рендерера
type WebhookConfig struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Signals        []string `yaml:"signals"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	RetryCount     int      `yaml:"retry_count"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Значения по умолчанию
const (
	DefaultZoneCheckDistance   = 0.001
	DefaultZoneCheckInterval   = 100 * time.Millisecond
	DefaultZoneQueryRadius     = 0.01
	DefaultTickRateHz          = 60
	DefaultMaxConcurrentViews  = 20
	DefaultIdleTimeout         = 30 * time.Second
	DefaultMaxWindowSize       = 4096
	DefaultDPI                 = 30.0
	DefaultMaxFPS              = 10
	DefaultVideoMaxFPS         = 30
	DefaultEventBusStream      = "RENDERER_EVENTS"
	DefaultEventBusBuffer      = 1024
	DefaultTelemetryServiceTag = "entity-renderer"
)

// GetZoneCheckDistance порог перемещения аватара для перепроверки зон
func (r *RendererConfig) GetZoneCheckDistance() float64 {
	return getFloatWithEnvFallback(r.ZoneCheckDistance, "RENDERER_ZONE_CHECK_DISTANCE", DefaultZoneCheckDistance)
}

// GetZoneCheckInterval интервал безусловной перепроверки зон
func (r *RendererConfig) GetZoneCheckInterval() time.Duration {
	ms := getIntWithEnvFallback(r.ZoneCheckIntervalMs, "RENDERER_ZONE_CHECK_INTERVAL_MS", 0)
	if ms <= 0 {
		return DefaultZoneCheckInterval
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *RendererConfig) GetZoneQueryRadius() float64 {
	return getFloatWithEnvFallback(r.ZoneQueryRadius, "RENDERER_ZONE_QUERY_RADIUS", DefaultZoneQueryRadius)
}

func (r *RendererConfig) GetTickRateHz() int {
	return getIntWithEnvFallback(r.TickRateHz, "RENDERER_TICK_RATE_HZ", DefaultTickRateHz)
}

func (r *RendererConfig) GetWantScripts() bool {
	return getBoolWithEnvFallback(r.WantScripts, "RENDERER_WANT_SCRIPTS", true)
}

func (r *RendererConfig) GetPrecisionPicking() bool {
	return getBoolWithEnvFallback(r.PrecisionPicking, "RENDERER_PRECISION_PICKING", true)
}

// GetMaxConcurrent максимальное число одновременно живых веб-поверхностей
func (w *WebSurfaceConfig) GetMaxConcurrent() int {
	return getIntWithEnvFallback(w.MaxConcurrent, "RENDERER_MAX_WEB_VIEWS", DefaultMaxConcurrentViews)
}

func (w *WebSurfaceConfig) GetIdleTimeout() time.Duration {
	sec := getIntWithEnvFallback(w.IdleTimeoutSeconds, "RENDERER_WEB_IDLE_SECONDS", 0)
	if sec <= 0 {
		return DefaultIdleTimeout
	}
	return time.Duration(sec) * time.Second
}

func (w *WebSurfaceConfig) GetMaxWindowSize() int {
	return getIntWithEnvFallback(w.MaxWindowSize, "RENDERER_WEB_MAX_WINDOW", DefaultMaxWindowSize)
}

func (w *WebSurfaceConfig) GetDPI() float64 {
	return getFloatWithEnvFallback(w.DPI, "RENDERER_WEB_DPI", DefaultDPI)
}

func (w *WebSurfaceConfig) GetDefaultMaxFPS() int {
	return getIntWithEnvFallback(w.DefaultMaxFPS, "RENDERER_WEB_FPS", DefaultMaxFPS)
}

func (w *WebSurfaceConfig) GetVideoMaxFPS() int {
	return getIntWithEnvFallback(w.VideoMaxFPS, "RENDERER_WEB_VIDEO_FPS", DefaultVideoMaxFPS)
}

func (e *EventBusConfig) GetStream() string {
	if e.Stream != "" {
		return e.Stream
	}
	return DefaultEventBusStream
}

func (e *EventBusConfig) GetBuffer() int {
	return getIntWithEnvFallback(e.Buffer, "RENDERER_EVENTBUS_BUFFER", DefaultEventBusBuffer)
}

// GetHTTPPort порт отладочного HTTP API
func (d *DebugConfig) GetHTTPPort() int {
	return getIntWithEnvFallback(d.HTTPPort, "RENDERER_DEBUG_PORT", 8089)
}

// GetMetricsPort порт Prometheus метрик
func (d *DebugConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(d.MetricsPort, "RENDERER_METRICS_PORT", 2112)
}

func (t *TelemetryConfig) GetServiceName() string {
	if t.ServiceName != "" {
		return t.ServiceName
	}
	return DefaultTelemetryServiceTag
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getFloatWithEnvFallback(configValue float64, envVar string, defaultValue float64) float64 {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.ParseFloat(envVal, 64); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getBoolWithEnvFallback(configValue *bool, envVar string, defaultValue bool) bool {
	if configValue != nil {
		return *configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.ParseBool(envVal); err == nil {
			return v
		}
	}

	return defaultValue
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV RENDERER_CONFIG; при отсутствии
// возвращает пустую конфигурацию, геттеры которой дают значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("RENDERER_CONFIG")
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
