// Package metrics exposes the Prometheus collectors for the tradefloor
// backend and the /metrics handler serving them.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradefloor",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradefloor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradefloor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradefloor",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Current number of open websocket connections.",
		},
	)

	messagesPosted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradefloor",
			Subsystem: "chat",
			Name:      "messages_posted_total",
			Help:      "Total number of messages posted.",
		},
	)

	notificationsFanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradefloor",
			Subsystem: "notify",
			Name:      "notifications_fanout_total",
			Help:      "Total number of notification rows written by fan-out.",
		},
	)

	fanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tradefloor",
			Subsystem: "notify",
			Name:      "fanout_duration_seconds",
			Help:      "Duration of notification fan-out per message.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradefloor",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total number of background job executions.",
		},
		[]string{"type", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradefloor",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of background job executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"type"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradefloor",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Total number of billing webhook events by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		wsConnections,
		messagesPosted,
		notificationsFanned,
		fanoutDuration,
		jobsProcessed,
		jobDuration,
		webhookEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// WSConnectionOpened records a websocket connection being established.
func WSConnectionOpened() {
	wsConnections.Inc()
}

// WSConnectionClosed records a websocket connection going away.
func WSConnectionClosed() {
	wsConnections.Dec()
}

// RecordMessagePosted records one posted message.
func RecordMessagePosted() {
	messagesPosted.Inc()
}

// RecordFanout records one fan-out run and the notification rows it wrote.
func RecordFanout(recipients int64, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	notificationsFanned.Add(float64(recipients))
	fanoutDuration.Observe(duration.Seconds())
}

// RecordJob records a background job execution outcome.
func RecordJob(jobType, outcome string, duration time.Duration) {
	if jobType == "" {
		jobType = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	jobsProcessed.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordWebhookEvent records a billing webhook delivery by result.
func RecordWebhookEvent(result string) {
	if result == "" {
		result = "unknown"
	}
	webhookEvents.WithLabelValues(result).Inc()
}

// JobRecorder adapts the collectors to the jobs worker pool.
type JobRecorder struct{}

// RecordJob implements the worker pool's recorder hook.
func (JobRecorder) RecordJob(jobType, outcome string, duration time.Duration) {
	RecordJob(jobType, outcome, duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the instrumented writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// canonicalPath collapses resource ids so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, part := range parts {
		if _, err := uuid.Parse(part); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
