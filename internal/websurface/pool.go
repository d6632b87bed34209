package websurface

import (
	"errors"
	"time"

	"github.com/annel0/entity-renderer/internal/config"
	"github.com/annel0/entity-renderer/internal/metrics"
)

// ErrTooManySurfaces лимит одновременно живых поверхностей исчерпан
var ErrTooManySurfaces = errors.New("too many concurrent web surfaces")

// Pool счётчик живых поверхностей с жёстким лимитом.
// Не потокобезопасен: используется только горутиной-владельцем.
type Pool struct {
	max     int
	live    int
	metrics *metrics.Metrics
}

// NewPool создаёт пул с лимитом max (<= 0 означает значение по умолчанию)
func NewPool(max int, m *metrics.Metrics) *Pool {
	if max <= 0 {
		max = config.DefaultMaxConcurrentViews
	}
	return &Pool{max: max, metrics: m}
}

// Acquire резервирует место под новую поверхность
func (p *Pool) Acquire() error {
	if p.live >= p.max {
		p.metrics.SurfaceRefused()
		return ErrTooManySurfaces
	}
	p.live++
	p.metrics.SetSurfacesLive(p.live)
	return nil
}

// Release освобождает место уничтоженной поверхности
func (p *Pool) Release() {
	if p.live == 0 {
		return
	}
	p.live--
	p.metrics.SetSurfacesLive(p.live)
}

// Live количество живых поверхностей
func (p *Pool) Live() int { return p.live }

// Max лимит пула
func (p *Pool) Max() int { return p.max }

// Options параметры поверхностей
type Options struct {
	IdleTimeout   time.Duration
	MaxWindowSize int
	DefaultMaxFPS int
	VideoMaxFPS   int
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		IdleTimeout:   config.DefaultIdleTimeout,
		MaxWindowSize: config.DefaultMaxWindowSize,
		DefaultMaxFPS: config.DefaultMaxFPS,
		VideoMaxFPS:   config.DefaultVideoMaxFPS,
	}
}

// OptionsFromConfig читает параметры из секции websurface
func OptionsFromConfig(cfg *config.WebSurfaceConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		IdleTimeout:   cfg.GetIdleTimeout(),
		MaxWindowSize: cfg.GetMaxWindowSize(),
		DefaultMaxFPS: cfg.GetDefaultMaxFPS(),
		VideoMaxFPS:   cfg.GetVideoMaxFPS(),
	}
}
