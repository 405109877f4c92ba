package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RiskPulse/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	assessments *prometheus.CounterVec
	cacheTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastRisk    *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		assessments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_assessments_total",
				Help: "Total number of computed assessments by signal",
			},
			[]string{"symbol", "signal"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_cache_lookups_total",
				Help: "Assessment cache lookups by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastRisk: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskpulse_last_risk",
				Help: "Last recorded risk value for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAssessment counts a computed (not cached) assessment.
func (r *Recorder) RecordAssessment(symbol string, signal models.Signal) {
	r.assessments.WithLabelValues(symbol, string(signal)).Inc()
}

func (r *Recorder) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRisk records the last risk value for a symbol.
func (r *Recorder) RecordRisk(symbol string, risk float64) {
	r.lastRisk.WithLabelValues(symbol).Set(risk)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
