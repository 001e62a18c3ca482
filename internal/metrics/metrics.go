// Package metrics exposes placement-test counters on a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluentz/placement-backend/internal/cefr"
	"github.com/fluentz/placement-backend/internal/oracle"
)

const namespace = "placement"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	answers         *prometheus.CounterVec
	verdicts        *prometheus.CounterVec
	oracleFailures  *prometheus.CounterVec
	oracleLatency   *prometheus.HistogramVec
	verdictsPersist *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Placement tests started, by language code.",
		}, []string{"topic"}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Multiple-choice answers graded, by correctness.",
		}, []string{"correct"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Final verdicts issued, by CEFR level.",
		}, []string{"level"}),
		oracleFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_failures_total",
			Help:      "Item oracle calls that failed, by operation and cause.",
		}, []string{"op", "cause"}),
		oracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_seconds",
			Help:      "Item oracle call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"op"}),
		verdictsPersist: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_persisted_total",
			Help:      "Verdict records written by the persistence worker, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionStarted(topic string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(topic).Inc()
}

func (m *Metrics) AnswerGraded(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.answers.WithLabelValues(label).Inc()
}

func (m *Metrics) VerdictIssued(level cefr.Level) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(level)).Inc()
}

// ObserveOracle records one oracle call's latency and, when err is set, its
// failure cause.
func (m *Metrics) ObserveOracle(op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.oracleLatency.WithLabelValues(op).Observe(took.Seconds())
	if err != nil {
		m.oracleFailures.WithLabelValues(op, failureCause(err)).Inc()
	}
}

// VerdictsPersisted counts records the worker flushed or requeued.
func (m *Metrics) VerdictsPersisted(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.verdictsPersist.WithLabelValues(outcome).Add(float64(n))
}

func failureCause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, oracle.ErrOracleUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
