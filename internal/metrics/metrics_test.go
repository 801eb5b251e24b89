package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/nexoshop/internal/metrics"
)

func TestMetrics_Checkout(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveCheckout(metrics.OutcomePlaced, 120*time.Millisecond)
	m.ObserveCheckout(metrics.OutcomePlaced, 80*time.Millisecond)
	m.ObserveCheckout(metrics.OutcomeRejected, 5*time.Millisecond)
	m.RecordCompensation(nil)
	m.RecordCompensation(errors.New("db down"))
	m.RecordWarning("payment")

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]int{}
	for _, f := range families {
		counts[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, counts["nexoshop_checkouts_total"])
	assert.Equal(t, 2, counts["nexoshop_stock_compensations_total"])
	assert.Equal(t, 1, counts["nexoshop_checkout_warnings_total"])

	n, err := testutil.GatherAndCount(reg, "nexoshop_checkout_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckout(metrics.OutcomeFailed, time.Second)
		m.RecordCompensation(nil)
		m.RecordWarning("invoice")
	})
}

func TestMetrics_Middleware_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	n, err := testutil.GatherAndCount(reg, "nexoshop_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
