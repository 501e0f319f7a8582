// Package api assembles the HTTP surface: router, middleware, and metrics
// instrumentation around the handler set.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/ibasketcal/ibasketcal/internal/api/handler"
	"github.com/ibasketcal/ibasketcal/internal/cache"
	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

var (
	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "basketball_http_in_flight_requests",
		Help: "HTTP requests currently being served.",
	})
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "basketball_http_requests_total",
		Help: "HTTP requests served, by status code and method.",
	}, []string{"code", "method"})
)

// NewRouter creates and configures the Chi router with all middleware and
// routes, wrapped in Prometheus request instrumentation.
func NewRouter(st store.Store, appCache *cache.Cache, ctrl *refresh.Controller, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag", "Retry-After"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(st, appCache, ctrl, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/seasons", h.GetSeasons)
		r.Get("/competitions", h.GetCompetitions)
		r.Get("/teams", h.GetTeams)
		r.Get("/matches", h.GetMatches)
		r.Get("/standings", h.GetStandings)

		r.Get("/cache-info", h.GetCacheInfo)
		r.Get("/refresh-status", h.GetRefreshStatus)
		r.Post("/refresh", h.PostRefresh)
	})

	// Calendar feed
	r.Get("/calendar.ics", h.GetCalendar)

	return promhttp.InstrumentHandlerInFlight(httpInFlight,
		promhttp.InstrumentHandlerCounter(httpRequests, r))
}
