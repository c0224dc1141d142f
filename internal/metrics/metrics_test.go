package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Generation("cartoonify", time.Now(), nil)
	m.Generation("cartoonify", time.Now(), errors.New("boom"))
	m.CreditsDeducted(1, 2)
	m.CreditsDeducted(0, 0)
	m.WebhookEvent("subscription.created", "processed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("cartoonify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("cartoonify", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CreditsDeductedTotal.WithLabelValues("free")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CreditsDeductedTotal.WithLabelValues("subscription")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEventsTotal.WithLabelValues("subscription.created", "processed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Generation("x", time.Now(), nil)
	m.CreditsDeducted(1, 1)
	m.WebhookEvent("x", "y")
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/logos/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logos/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/logos/{id}", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "logoforge_http_requests_total"))
}
