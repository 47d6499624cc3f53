package app

import (
	"context"
	"net/http"
	"time"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/database"
	"github.com/opsipintar/catalog/pkg/metrics"
	"github.com/opsipintar/catalog/pkg/middleware"
	"github.com/opsipintar/catalog/pkg/reqid"
	"github.com/opsipintar/catalog/pkg/response"
	"github.com/opsipintar/catalog/pkg/router"
	"github.com/opsipintar/catalog/pkg/storage"
)

// buildHandler wires the global middleware, ops endpoints and every route
// callback.
func buildHandler(a *Application) *router.Router {
	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics  — outermost for accurate total latency
	//  2. Recovery            — catches panics before they kill the goroutine
	//  3. Request ID          — inject unique ID before anything logs
	//  4. Logger              — logs request_id from context
	//  5. CORS                — admin UI runs on another origin
	//  6. Rate limiter        — reject abusers early
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(config.RateLimitPerMinute(), config.TrustedProxies()))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", healthz)

	// Blobs on the local disk are served by the app itself; S3 serves its own.
	if d, err := storage.Use("local"); err == nil {
		if local, ok := d.(*storage.LocalDisk); ok {
			r.Mount("/storage", "storage", local)
		}
	}

	for _, fn := range a.routesFns {
		fn(r)
	}
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "unconfigured"}
	if database.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status["database"] = "ok"
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["status"], status["database"] = "degraded", err.Error()
			response.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	response.Success(w, status)
}
