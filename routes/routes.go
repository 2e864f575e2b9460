package routes

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/handlers"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(sqlDB(deps), deps.FastModel, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	route := handlers.NewRouteHandler(deps.Routing, deps.Logger)
	engines := handlers.NewEngineHandler(deps.Registry, deps.Logger)
	catalog := handlers.NewCatalogHandler(deps.Catalog, deps.Logger)
	stats := newStatsHandler(deps)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/route", func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(middleware.NewRateLimitMiddleware(deps.RateLimiter, deps.Logger).Limit)
			}
			r.Post("/", route.HandleAutoRoute)
			r.Post("/{engine}", route.HandleEngineRoute)
		})

		r.Route("/engines", func(r chi.Router) {
			r.Get("/", engines.HandleList)
			r.With(
				deps.AuthMiddleware.RequireAuth,
				deps.AuthMiddleware.RequireRole(middleware.RoleAdmin),
			).Patch("/{name}", engines.HandleUpdate)
		})

		r.Get("/models", catalog.HandleList)
		r.Get("/models/{alias}", catalog.HandleGet)

		r.Get("/stats", stats.HandleStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func sqlDB(deps *app.Dependencies) *sql.DB {
	if deps.DB == nil {
		return nil
	}
	return deps.DB.DB
}

// newStatsHandler avoids handing typed nil pointers to the handler's
// optional interfaces
func newStatsHandler(deps *app.Dependencies) *handlers.StatsHandler {
	var cache handlers.CacheStatsSource
	if deps.Cache != nil {
		cache = deps.Cache
	}
	var recorder handlers.RecorderStatsSource
	if deps.Audit != nil {
		recorder = deps.Audit
	}
	return handlers.NewStatsHandler(deps.Aggregator, recorder, cache, deps.Logger)
}
