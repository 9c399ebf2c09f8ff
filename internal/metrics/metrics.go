package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reload outcomes.
const (
	ReloadApplied = "applied"
	ReloadStale   = "stale"
	ReloadFailed  = "failed"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	reloads         *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cachedSlots     prometheus.Gauge
	lastReload      prometheus.Gauge
	captures        *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remindercal_schedule_reloads_total",
		Help: "Schedule reloads by outcome (applied, stale, failed)",
	}, []string{"list", "result"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remindercal_mutations_total",
		Help: "Backend mutations by operation and result",
	}, []string{"op", "result"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remindercal_http_request_duration_seconds",
		Help:    "Duration of local HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	cachedSlots := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remindercal_cached_slots",
		Help: "Number of slots in the session cache",
	})

	lastReload := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remindercal_last_reload_timestamp_seconds",
		Help: "Unix time of the last applied schedule reload",
	})

	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remindercal_preview_captures_total",
		Help: "Preview captures by result",
	}, []string{"result"})

	registry.MustRegister(
		reloads, mutations, requestDuration, cachedSlots, lastReload, captures,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		reloads:         reloads,
		mutations:       mutations,
		requestDuration: requestDuration,
		cachedSlots:     cachedSlots,
		lastReload:      lastReload,
		captures:        captures,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReload records a list reload outcome. list is "schedule" or "users".
func (m *Metrics) ObserveReload(list, result string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(list, result).Inc()
	if list == "schedule" && result == ReloadApplied {
		m.lastReload.SetToCurrentTime()
	}
}

// SetCachedSlots records the size of the slot cache.
func (m *Metrics) SetCachedSlots(n int) {
	if m == nil {
		return
	}
	m.cachedSlots.Set(float64(n))
}

// ObserveMutation records a backend mutation; err == nil counts as ok.
func (m *Metrics) ObserveMutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

// ObserveHTTPRequest records one local HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCapture records a preview capture attempt.
func (m *Metrics) ObserveCapture(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.captures.WithLabelValues(result).Inc()
}
