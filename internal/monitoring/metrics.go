// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of an extraction run. All methods
// are safe on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Lesson metrics
	lessonsTotal   *prometheus.CounterVec
	lessonDuration *prometheus.HistogramVec
	lessonsActive  prometheus.Gauge

	// Screen metrics
	screensRecorded   *prometheus.CounterVec
	screensSkipped    *prometheus.CounterVec
	detectionTimeouts *prometheus.CounterVec

	// Interaction metrics
	solveAttempts  *prometheus.CounterVec
	continueClicks *prometheus.CounterVec
	escalations    *prometheus.CounterVec

	// Output metrics
	mirrorErrors  *prometheus.CounterVec
	configReloads prometheus.Counter
}

// MetricsConfig configures the collectors
type MetricsConfig struct {
	Namespace       string `json:"namespace"`
	Subsystem       string `json:"subsystem"`
	EnableGoMetrics bool   `json:"enable_go_metrics"`
}

// NewMetrics creates the collectors on a private registry
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "lessonflow"
	}
	if config.Subsystem == "" {
		config.Subsystem = "engine"
	}

	reg := prometheus.NewRegistry()
	if config.EnableGoMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{registry: reg}
	m.initializeMetrics(promauto.With(reg), config.Namespace, config.Subsystem)
	return m
}

func (m *Metrics) initializeMetrics(factory promauto.Factory, namespace, subsystem string) {
	m.lessonsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lessons_total",
			Help:      "Total number of finished lessons by status and abort reason",
		},
		[]string{"platform", "status", "reason"},
	)

	m.lessonDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lesson_duration_seconds",
			Help:      "Wall time spent on one lesson",
			Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"platform"},
	)

	m.lessonsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lessons_active",
			Help:      "Number of lessons currently being extracted",
		},
	)

	m.screensRecorded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "screens_recorded_total",
			Help:      "Total number of screen records by type",
		},
		[]string{"platform", "type"},
	)

	m.screensSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "screens_skipped_total",
			Help:      "Total number of screens passed without a record",
		},
		[]string{"platform", "reason"},
	)

	m.detectionTimeouts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "detection_timeouts_total",
			Help:      "Total number of screens no screen type matched in time",
		},
		[]string{"platform"},
	)

	m.solveAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "solve_attempts_total",
			Help:      "Total number of solver runs by type, method and outcome",
		},
		[]string{"platform", "type", "method", "solved"},
	)

	m.continueClicks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "continue_clicks_total",
			Help:      "Total number of advance attempts by strategy",
		},
		[]string{"platform", "strategy"},
	)

	m.escalations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stuck_escalations_total",
			Help:      "Total number of stuck-loop escalations by action",
		},
		[]string{"platform", "action"},
	)

	m.mirrorErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mirror_errors_total",
			Help:      "Total number of failed output mirror publishes",
		},
		[]string{"stage"},
	)

	m.configReloads = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "config_reloads_total",
			Help:      "Total number of applied configuration reloads",
		},
	)
}

// Lesson metrics
func (m *Metrics) RecordLessonStart() {
	if m == nil {
		return
	}
	m.lessonsActive.Inc()
}

func (m *Metrics) RecordLessonEnd(platform, status, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lessonsActive.Dec()
	m.lessonsTotal.WithLabelValues(platform, status, reason).Inc()
	m.lessonDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// Screen metrics
func (m *Metrics) RecordScreen(platform, typeID string) {
	if m == nil {
		return
	}
	m.screensRecorded.WithLabelValues(platform, typeID).Inc()
}

func (m *Metrics) RecordSkip(platform, reason string) {
	if m == nil {
		return
	}
	m.screensSkipped.WithLabelValues(platform, reason).Inc()
}

func (m *Metrics) RecordDetectionTimeout(platform string) {
	if m == nil {
		return
	}
	m.detectionTimeouts.WithLabelValues(platform).Inc()
}

// Interaction metrics
func (m *Metrics) RecordSolve(platform, typeID, method string, solved bool) {
	if m == nil {
		return
	}
	m.solveAttempts.WithLabelValues(platform, typeID, method, strconv.FormatBool(solved)).Inc()
}

func (m *Metrics) RecordContinue(platform, strategy string) {
	if m == nil {
		return
	}
	m.continueClicks.WithLabelValues(platform, strategy).Inc()
}

func (m *Metrics) RecordEscalation(platform, action string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(platform, action).Inc()
}

// Output metrics
func (m *Metrics) RecordMirrorError(stage string) {
	if m == nil {
		return
	}
	m.mirrorErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordConfigReload() {
	if m == nil {
		return
	}
	m.configReloads.Inc()
}

// Registry exposes the registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
