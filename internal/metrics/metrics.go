// Package metrics Prometheus-метрики рендерера и пула веб-поверхностей.
//
// Все методы безопасны для nil-получателя: компоненты, созданные без метрик
// (тесты, утилиты), просто ничего не считают.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор коллекторов рендерера
type Metrics struct {
	zoneChecks   prometheus.Counter
	zoneRebuilds prometheus.Counter
	signals      *prometheus.CounterVec
	insideCount  prometheus.Gauge
	tickDuration prometheus.Histogram

	surfacesLive    prometheus.Gauge
	surfacesRefused prometheus.Counter
	surfacesEvicted prometheus.Counter
}

// New создаёт коллекторы и регистрирует их в reg.
// Для глобального регистра передайте prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		zoneChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renderer",
			Name:      "zone_checks_total",
			Help:      "Число проходов проверки содержащих аватар сущностей.",
		}),
		zoneRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renderer",
			Name:      "zone_rebuilds_total",
			Help:      "Число проходов, изменивших ранжирование зон.",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renderer",
			Name:      "signals_total",
			Help:      "Сигналы диспетчера по имени.",
		}, []string{"signal"}),
		insideCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "renderer",
			Name:      "entities_inside",
			Help:      "Сколько сущностей сейчас содержат аватар.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "renderer",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика рендерера.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		surfacesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "websurface",
			Name:      "live",
			Help:      "Количество живых веб-поверхностей.",
		}),
		surfacesRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websurface",
			Name:      "refused_total",
			Help:      "Отказы в создании поверхности из-за лимита.",
		}),
		surfacesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "websurface",
			Name:      "evicted_total",
			Help:      "Поверхности, уничтоженные по простою.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.zoneChecks, m.zoneRebuilds, m.signals, m.insideCount, m.tickDuration,
			m.surfacesLive, m.surfacesRefused, m.surfacesEvicted,
		)
	}
	return m
}

func (m *Metrics) ZoneCheck(rebuilt bool) {
	if m == nil {
		return
	}
	m.zoneChecks.Inc()
	if rebuilt {
		m.zoneRebuilds.Inc()
	}
}

func (m *Metrics) Signal(name string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(name).Inc()
}

func (m *Metrics) SetInside(n int) {
	if m == nil {
		return
	}
	m.insideCount.Set(float64(n))
}

// ObserveTick seconds длительность тика в секундах
func (m *Metrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) SetSurfacesLive(n int) {
	if m == nil {
		return
	}
	m.surfacesLive.Set(float64(n))
}

func (m *Metrics) SurfaceRefused() {
	if m == nil {
		return
	}
	m.surfacesRefused.Inc()
}

func (m *Metrics) SurfaceEvicted() {
	if m == nil {
		return
	}
	m.surfacesEvicted.Inc()
}
