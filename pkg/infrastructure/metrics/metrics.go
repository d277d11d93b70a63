// Package metrics exports acquisition counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logo_harvester"

// Exporter keeps the Prometheus collectors on a private registry. It
// records attempts, results and metrics snapshots pushed by the use case.
type Exporter struct {
	registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	attemptTiming *prometheus.HistogramVec
	results       *prometheus.CounterVec
	queueLength   prometheus.Gauge
	activeWorkers prometheus.Gauge
	pending       prometheus.Gauge
}

// NewExporter creates and registers all collectors
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by tier and outcome.",
		}, []string{"tier", "outcome"}),
		attemptTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of fetch attempts by tier.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tier"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_total",
			Help:      "Domains finished by terminal state and tier.",
		}, []string{"state", "tier", "reused"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Domains waiting for a worker.",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently processing a domain.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_pending",
			Help:      "Domains waiting for the directory re-poll.",
		}),
	}

	e.registry.MustRegister(
		e.attempts,
		e.attemptTiming,
		e.results,
		e.queueLength,
		e.activeWorkers,
		e.pending,
	)
	return e
}

// Registry exposes the underlying registry
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Record counts one fetch attempt
func (e *Exporter) Record(attempt *entity.FetchAttempt) {
	tier := string(attempt.Tier)
	e.attempts.WithLabelValues(tier, attempt.Outcome).Inc()
	e.attemptTiming.WithLabelValues(tier).Observe(float64(attempt.DurationMs) / 1000)
}

// OnResult counts one finished domain
func (e *Exporter) OnResult(result *entity.Result) {
	reused := "false"
	if result.Reused {
		reused = "true"
	}
	e.results.WithLabelValues(string(result.State), string(result.Tier), reused).Inc()
}

// OnMetricsUpdate mirrors the gauges of a metrics snapshot
func (e *Exporter) OnMetricsUpdate(m *entity.Metrics) {
	e.queueLength.Set(float64(m.QueueLength))
	e.activeWorkers.Set(float64(m.ActiveWorkers))
	e.pending.Set(float64(m.Pending))
}

// Handler returns the HTTP handler serving the registry
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve serves /metrics on addr until ctx is done
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
