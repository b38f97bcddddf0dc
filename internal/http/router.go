package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ProfDrJones/journals/internal/auth"
	"github.com/ProfDrJones/journals/internal/config"
	"github.com/ProfDrJones/journals/internal/http/csrf"
	"github.com/ProfDrJones/journals/internal/http/ratelimit"
	"github.com/ProfDrJones/journals/internal/metrics"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires all HTTP routes. Background work (rate limiter and
// editor sweeps) stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, health HealthChecker, authService *auth.Service, api *API, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// 20 requests per second, burst of 50
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)
	go apiRateLimiter.Run(ctx)
	go api.editors.Run(ctx)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(overrideMethod)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Use(authService.RequireBasicAuth)
		r.Use(csrf.Middleware(cfg))

		api.Routes(r)
	})

	return r
}

// Routes registers the API endpoints on r. Callers supply authentication.
func (a *API) Routes(r chi.Router) {
	r.Get("/config", a.GetSettings)
	r.Post("/config/{key}", a.SetSetting)

	r.Get("/calendars", a.ListCalendars)

	r.Route("/editor", func(r chi.Router) {
		r.Get("/", a.Current)
		r.Delete("/", a.Close)
		r.Post("/edit/{objectId}/{recurrenceId}", a.OpenExisting)
		r.Post("/new", a.OpenNew)
		r.Put("/new", a.OpenNew)
		r.Get("/ops", a.ListOps)
		r.Post("/ops", a.ApplyOp)
		r.Post("/save", a.Save)
		r.Post("/delete", a.Delete)
	})
}

// requestLogger logs one line per request once it has been served.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// overrideMethod lets clients that can only POST reach PUT and DELETE
// routes with ?_method=.
func overrideMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("_method"))); m {
			case http.MethodPut, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}
