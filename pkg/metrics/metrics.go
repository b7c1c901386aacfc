// Package metrics provides run-scoped Prometheus metrics for formtap.
//
// Every Collector owns its own registry so that concurrent runs and tests
// never share counters. A nil *Collector is valid and records nothing.
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	collector.RecordEmitted("landings")
//	collector.ObserveRequest("responses", 200, time.Since(start))
//	_ = collector.WriteTextfile("/var/lib/node_exporter/formtap.prom")
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formtap"

// Collector groups the counters of a single tap run.
type Collector struct {
	registry        *prometheus.Registry
	recordsEmitted  *prometheus.CounterVec   // RECORD messages per stream
	apiRequests     *prometheus.CounterVec   // upstream calls per endpoint and status
	apiRetries      *prometheus.CounterVec   // gate retries per endpoint and policy
	requestDuration *prometheus.HistogramVec // upstream latency
	pagesFetched    prometheus.Counter
	checkpoints     prometheus.Counter
}

// NewCollector creates a collector backed by a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		recordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_emitted_total",
				Help:      "Total number of RECORD messages emitted",
			},
			[]string{"stream"},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of upstream API requests",
			},
			[]string{"endpoint", "status"},
		),
		apiRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_retries_total",
				Help:      "Total number of retried upstream API requests",
			},
			[]string{"endpoint", "kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Upstream API request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),
		pagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of response pages fetched",
		}),
		checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_saved_total",
			Help:      "Total number of persisted checkpoints",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordEmitted counts one RECORD for stream.
func (c *Collector) RecordEmitted(stream string) {
	if c == nil {
		return
	}
	c.recordsEmitted.WithLabelValues(stream).Inc()
}

// ObserveRequest counts an upstream call. A zero status marks a transport failure.
func (c *Collector) ObserveRequest(endpoint string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(endpoint, label).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRetry counts a retry scheduled by the named policy.
func (c *Collector) ObserveRetry(endpoint, kind string) {
	if c == nil {
		return
	}
	c.apiRetries.WithLabelValues(endpoint, kind).Inc()
}

// PageFetched counts one response page.
func (c *Collector) PageFetched() {
	if c == nil {
		return
	}
	c.pagesFetched.Inc()
}

// CheckpointSaved counts one persisted bookmark.
func (c *Collector) CheckpointSaved() {
	if c == nil {
		return
	}
	c.checkpoints.Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.Registry())
}
