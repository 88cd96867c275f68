package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/api/handlers"
	"github.com/sitelens/sitelens/internal/api/middleware"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/pipeline"
	"github.com/sitelens/sitelens/pkg/httputil"
)

// HealthChecker reports backing-service connectivity for the ready probe.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Service        *pipeline.Service
	Logger         *zap.Logger
	EnableCORS     bool
	RateLimit      int
	MaxRequestSize int64

	// StoreHealth is nil for the memory backend, which has nothing to probe.
	StoreHealth HealthChecker
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	r.Use(observability.GetMetrics().HTTPMiddleware)
	r.Use(chimw.Timeout(3 * time.Minute))

	if cfg.MaxRequestSize > 0 {
		r.Use(requestSizeLimit(cfg.MaxRequestSize))
	}

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(cfg.RateLimit).Handler)
	}

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.StoreHealth))
	r.Handle("/metrics", observability.GetMetrics().Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auditHandler := handlers.NewAuditHandler(cfg.Service, cfg.Logger)

		r.Route("/audits", func(r chi.Router) {
			r.Post("/", auditHandler.Create)
			r.Get("/{id}", auditHandler.Get)
			r.Get("/{id}/status", auditHandler.GetStatus)
			r.Get("/{id}/screenshots/{kind}", auditHandler.GetScreenshot)
		})
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

func requestSizeLimit(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sitelens-api",
	})
}

// readyHandler checks if the report store is reachable
func readyHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		status := http.StatusOK
		statusText := "ready"

		if store != nil {
			if err := store.Health(r.Context()); err != nil {
				checks["store"] = "unhealthy: " + err.Error()
				status = http.StatusServiceUnavailable
				statusText = "not ready"
			} else {
				checks["store"] = "healthy"
			}
		} else {
			checks["store"] = "in-memory"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
