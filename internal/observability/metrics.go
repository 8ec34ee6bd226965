package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects sweep execution metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordBuild("success", time.Since(start).Seconds())
//	metrics.RecordConfig("evaluation", "success")
type Metrics struct {
	// ConfigCounter counts finished experiment configs.
	// Labels: stage (validation|preprocessing|evaluation), status (success|failure)
	ConfigCounter *prometheus.CounterVec

	// BuildCounter counts preprocessing builds.
	// Labels: status (success|failure|canceled)
	BuildCounter *prometheus.CounterVec

	// BuildDuration measures chunk, embed and index time per group in seconds.
	BuildDuration prometheus.Histogram

	// EvaluationDuration measures single evaluation latency in seconds.
	// Labels: status (success|failure)
	EvaluationDuration *prometheus.HistogramVec

	// EvaluationsInFlight is the number of evaluations currently holding a
	// worker slot.
	EvaluationsInFlight prometheus.Gauge

	// EvaluationRetries counts retried evaluation attempts.
	EvaluationRetries prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the sweep metrics and registers them on reg.
// A nil reg uses the default Prometheus registry. Registering twice on the
// same registry panics, so tests should pass their own registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		ConfigCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragsweep_configs_total",
				Help: "Total number of experiment configs by terminal stage and status",
			},
			[]string{"stage", "status"},
		),

		BuildCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragsweep_builds_total",
				Help: "Total number of preprocessing builds by status",
			},
			[]string{"status"},
		),

		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragsweep_build_duration_seconds",
				Help:    "Duration of preprocessing builds in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),

		EvaluationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragsweep_evaluation_duration_seconds",
				Help:    "Duration of single evaluations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		EvaluationsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragsweep_evaluations_in_flight",
				Help: "Number of evaluations currently running",
			},
		),

		EvaluationRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ragsweep_evaluation_retries_total",
				Help: "Total number of retried evaluation attempts",
			},
		),

		gatherer: gatherer,
	}
}

// RecordConfig counts a config that finished at the given stage.
func (m *Metrics) RecordConfig(stage, status string) {
	if m == nil {
		return
	}
	m.ConfigCounter.WithLabelValues(stage, status).Inc()
}

// RecordBuild counts a preprocessing build and observes its duration.
func (m *Metrics) RecordBuild(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.BuildCounter.WithLabelValues(status).Inc()
	m.BuildDuration.Observe(durationSeconds)
}

// RecordEvaluation observes the duration of one evaluation.
func (m *Metrics) RecordEvaluation(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EvaluationDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordRetry counts a retried evaluation attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.EvaluationRetries.Inc()
}

// EvaluationStarted increments the in-flight gauge.
func (m *Metrics) EvaluationStarted() {
	if m == nil {
		return
	}
	m.EvaluationsInFlight.Inc()
}

// EvaluationFinished decrements the in-flight gauge.
func (m *Metrics) EvaluationFinished() {
	if m == nil {
		return
	}
	m.EvaluationsInFlight.Dec()
}

// Handler returns an HTTP handler that exposes the registry these metrics
// were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
// It returns once the listener is bound; serve errors are sent to the
// returned channel.
func (m *Metrics) Serve(ctx context.Context, addr string) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), errCh, nil
}
