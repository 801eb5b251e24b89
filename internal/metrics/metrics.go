// Package metrics exposes Prometheus collectors for HTTP traffic and checkout outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nexoshop"

// Checkout outcome labels.
const (
	OutcomePlaced       = "placed"
	OutcomeWithWarnings = "placed_with_warnings"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	compensations    *prometheus.CounterVec
	warnings         *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkouts_total",
				Help:      "Checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		checkoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Duration of checkout attempts",
			Buckets:   prometheus.DefBuckets,
		}),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stock_compensations_total",
				Help:      "Stock reservation rollbacks by result",
			},
			[]string{"result"},
		),
		warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_warnings_total",
				Help:      "Post-commit checkout steps that failed and need reconciliation",
			},
			[]string{"stage"},
		),
	}
}

// ObserveCheckout records one checkout attempt. Safe on a nil receiver.
func (m *Metrics) ObserveCheckout(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordCompensation(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordWarning(stage string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(stage).Inc()
}

// Middleware records request count and latency keyed by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		m.httpRequests.WithLabelValues(r.Method, path, code).Inc()
		m.httpDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}
