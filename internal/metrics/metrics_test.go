package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveReload("schedule", ReloadApplied)
	m.ObserveReload("schedule", ReloadStale)
	m.ObserveReload("schedule", ReloadStale)
	m.ObserveMutation("slot_save", nil)
	m.ObserveMutation("slot_save", errors.New("x"))
	m.SetCachedSlots(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reloads.WithLabelValues("schedule", ReloadStale)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("slot_save", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.cachedSlots))
	assert.Greater(t, testutil.ToFloat64(m.lastReload), 0.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/api/events", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "remindercal_http_request_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveReload("schedule", ReloadFailed)
	m.ObserveMutation("x", nil)
	m.ObserveCapture(nil)
	m.SetCachedSlots(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
