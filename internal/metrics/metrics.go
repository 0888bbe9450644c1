// Package metrics exposes turn loop counters and latencies to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles            *prometheus.CounterVec
	ModelLatency      prometheus.Histogram
	UtterancesDropped prometheus.Counter
	RecognitionErrors prometheus.Counter
	SynthesisFailures prometheus.Counter
	SynthesisLatency  prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ari_cycles_total",
			Help: "Listen-respond-speak cycles by outcome",
		}, []string{"outcome"}),
		ModelLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ari_model_latency_seconds",
			Help:    "Time from model request to the last reply fragment",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		UtterancesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ari_utterances_dropped_total",
			Help: "Utterances discarded because the queue was full",
		}),
		RecognitionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ari_recognition_errors_total",
			Help: "Failed speech recognition feeds",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ari_synthesis_failures_total",
			Help: "Replies that could not be synthesized or played",
		}),
		SynthesisLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ari_synthesis_latency_seconds",
			Help:    "Time spent synthesizing one reply",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchFramesDropped exports a capture drop counter read on every scrape.
func (m *Metrics) WatchFramesDropped(read func() int64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "ari_frames_dropped_total",
		Help: "Audio frames dropped because the capture buffer was full",
	}, func() float64 { return float64(read()) }))
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, modelLatency time.Duration) {
	m.Cycles.WithLabelValues(outcome).Inc()
	if modelLatency > 0 {
		m.ModelLatency.Observe(modelLatency.Seconds())
	}
}

func (m *Metrics) UtteranceDropped() { m.UtterancesDropped.Inc() }

func (m *Metrics) RecognitionFailed() { m.RecognitionErrors.Inc() }

func (m *Metrics) SynthesisDone(latency time.Duration) {
	m.SynthesisLatency.Observe(latency.Seconds())
}

func (m *Metrics) SynthesisFailed() { m.SynthesisFailures.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return m.serve(ctx, listener, logger)
}

func (m *Metrics) serve(ctx context.Context, listener net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("metrics listening", "addr", listener.Addr().String())
	}
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
