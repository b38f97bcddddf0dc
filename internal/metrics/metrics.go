// Package metrics holds the Prometheus collectors of the Journals server.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute labels requests no route handled, keeping raw paths out of
// the label set.
const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journals_http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journals_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journals_http_request_duration_seconds",
		Help:    "HTTP request latencies by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journals_db_latency_seconds",
		Help:    "Database operation latencies by operation and the route that issued them.",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "route"})

	editorOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journals_editor_operations_total",
		Help: "Editor lifecycle operations by outcome.",
	}, []string{"operation", "outcome"})
)

// Middleware records request counts and latencies. It must run inside a chi
// router so the matched route pattern is available once the request is done.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeFromContext(r.Context())
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records how long operation took since start.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	dbLatency.WithLabelValues(operation, routeFromContext(ctx)).Observe(time.Since(start).Seconds())
}

// ObserveEditorOperation counts an open, save, fork or delete. A nil err is
// recorded as "ok".
func ObserveEditorOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	editorOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// routeFromContext returns the route pattern chi matched so far. Outside a
// request it is "none".
func routeFromContext(ctx context.Context) string {
	rctx := chi.RouteContext(ctx)
	if rctx == nil {
		return "none"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
