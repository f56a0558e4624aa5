package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const metricsNamespace = "storage_sync"

type syncMetrics struct {
	operations  *prom.CounterVec
	duration    *prom.HistogramVec
	lastSuccess prom.Gauge
	state       prom.Gauge
}

func newSyncMetrics(reg prom.Registerer) *syncMetrics {
	m := &syncMetrics{
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Remote storage operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of remote storage operations",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		}, []string{"operation"}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync",
		}),
		state: prom.NewGauge(prom.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "daemon_state",
			Help:      "Current daemon state (0=starting 1=bootstrapping 2=running 3=shutting_down 4=stopped 5=aborted)",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.lastSuccess, m.state)
	}

	return m
}

func (m *syncMetrics) observe(operation string, start, end time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(end.Sub(start).Seconds())
	if err == nil {
		m.lastSuccess.Set(float64(end.Unix()))
	}
}

func (m *syncMetrics) setState(s DaemonState) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

// newMetricsRegistry returns a registry with the runtime collectors and the
// daemon metrics registered.
func newMetricsRegistry() (*prom.Registry, *syncMetrics) {
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return reg, newSyncMetrics(reg)
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prom.Registry, logger *log.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on " + addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("Metrics server stopped")
	}
}
