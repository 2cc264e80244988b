// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/wkimage/pkg/observability"
)

// Metrics collects wkimage metrics. A single value implements every hook
// interface of the observability package.
type Metrics struct {
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	renderBytes    *prometheus.HistogramVec

	jobsQueued  *prometheus.CounterVec
	queueDepth  *prometheus.GaugeVec
	jobWait     *prometheus.HistogramVec
	jobRun      *prometheus.HistogramVec
	jobFailures *prometheus.CounterVec

	cacheOps   *prometheus.CounterVec
	cacheBytes *prometheus.CounterVec

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_renders_total",
			Help: "Total number of renders by format and result",
		}, []string{"format", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wkimage_render_duration_seconds",
			Help:    "Duration of renders",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"format"}),
		renderBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wkimage_render_bytes",
			Help:    "Size of rendered output",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		jobsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_executor_jobs_total",
			Help: "Jobs submitted to an affinity executor",
		}, []string{"executor"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wkimage_executor_queue_depth",
			Help: "Jobs waiting on an affinity executor",
		}, []string{"executor"}),
		jobWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wkimage_executor_wait_seconds",
			Help: "Time jobs spent queued",
		}, []string{"executor"}),
		jobRun: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wkimage_executor_run_seconds",
			Help: "Time jobs spent running on the worker thread",
		}, []string{"executor"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_executor_job_failures_total",
			Help: "Jobs that returned an error",
		}, []string{"executor"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_cache_operations_total",
			Help: "Cache lookups and writes",
		}, []string{"key_type", "op"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_cache_written_bytes_total",
			Help: "Bytes written to the cache",
		}, []string{"key_type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wkimage_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "wkimage_http_request_duration_seconds",
			Help: "Duration of HTTP requests",
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.renders, m.renderDuration, m.renderBytes,
		m.jobsQueued, m.queueDepth, m.jobWait, m.jobRun, m.jobFailures,
		m.cacheOps, m.cacheBytes,
		m.requests, m.requestDuration,
	)
	return m
}

// Install registers m as every global hook set.
func (m *Metrics) Install() {
	observability.SetRenderHooks(m)
	observability.SetExecutorHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

func formatLabel(format string) string {
	if format == "" {
		return "default"
	}
	return format
}

func (m *Metrics) OnRenderStart(context.Context, string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, format string, size int, d time.Duration, err error) {
	format = formatLabel(format)
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.renders.WithLabelValues(format, result).Inc()
	m.renderDuration.WithLabelValues(format).Observe(d.Seconds())
	if err == nil {
		m.renderBytes.WithLabelValues(format).Observe(float64(size))
	}
}

func (m *Metrics) OnJobQueued(executor string, depth int) {
	m.jobsQueued.WithLabelValues(executor).Inc()
	m.queueDepth.WithLabelValues(executor).Set(float64(depth))
}

func (m *Metrics) OnJobDone(executor string, wait, run time.Duration, err error) {
	m.jobWait.WithLabelValues(executor).Observe(wait.Seconds())
	m.jobRun.WithLabelValues(executor).Observe(run.Seconds())
	if err != nil {
		m.jobFailures.WithLabelValues(executor).Inc()
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.RenderHooks   = (*Metrics)(nil)
	_ observability.ExecutorHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)
