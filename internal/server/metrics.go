// Package server exposes the watcher over HTTP: Prometheus metrics, the
// JSON session report, and a health endpoint.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/procmem"
)

// namespace prefixes every metric this package exports.
const namespace = "memwatch"

// Metrics holds the Prometheus instruments fed by the sampling loop and the
// HTTP layer. Each Metrics owns its registry, so independent instances never
// collide on registration.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	rssMB         prometheus.Gauge
	vmsMB         prometheus.Gauge
	threads       prometheus.Gauge
	growthRate    prometheus.Gauge
	leakDetected  prometheus.Gauge
	samplesTotal  prometheus.Counter
	leaksTotal    prometheus.Counter
	requestsTotal prometheus.Counter
	activeReqs    prometheus.Gauge
}

// NewMetrics creates and registers the full instrument set, including the Go
// runtime collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		rssMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rss_mb",
			Help: "Resident set size of the monitored process in megabytes.",
		}),
		vmsMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vms_mb",
			Help: "Virtual memory size of the monitored process in megabytes.",
		}),
		threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "threads",
			Help: "Thread count of the monitored process.",
		}),
		growthRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "growth_rate_mb_per_min",
			Help: "Estimated memory growth rate in megabytes per minute.",
		}),
		leakDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "leak_detected",
			Help: "Whether the last analysis classified the process as leaking (0 or 1).",
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "samples_total",
			Help: "Total memory snapshots recorded.",
		}),
		leaksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "leaks_total",
			Help: "Total analysis cycles that detected a leak.",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Total HTTP requests served.",
		}),
		activeReqs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_requests",
			Help: "HTTP requests currently in flight.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.rssMB, m.vmsMB, m.threads, m.growthRate, m.leakDetected,
		m.samplesTotal, m.leaksTotal, m.requestsTotal, m.activeReqs,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// ObserveSample updates the process gauges from one sampling cycle. It is
// shaped to plug directly into the watcher's OnSample hook.
func (m *Metrics) ObserveSample(snap procmem.Snapshot, result detector.Result, analyzed bool) {
	m.rssMB.Set(snap.RSSMB)
	m.vmsMB.Set(snap.VMSMB)
	m.threads.Set(float64(snap.Threads))
	m.samplesTotal.Inc()

	if !analyzed {
		return
	}
	m.growthRate.Set(result.GrowthRateMBPerMin)
	if result.LeakDetected {
		m.leakDetected.Set(1)
		m.leaksTotal.Inc()
	} else {
		m.leakDetected.Set(0)
	}
}

// IncrementActiveRequests marks an HTTP request as in flight.
func (m *Metrics) IncrementActiveRequests() {
	m.activeReqs.Inc()
	m.requestsTotal.Inc()
}

// DecrementActiveRequests marks an HTTP request as finished.
func (m *Metrics) DecrementActiveRequests() {
	m.activeReqs.Dec()
}

// WritePrometheus serves the registry in Prometheus exposition format.
func (m *Metrics) WritePrometheus(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}
