// Command api is the Israeli Basketball Calendar API server.
//
// Usage:
//
//	ibasketcal-api
//	PORT=8080 ibasketcal-api

// @title Israeli Basketball Calendar API
// @version 1.0.0
// @description Fixture ingest and calendar service for Israeli basketball leagues. Serves filtered match JSON and RFC 5545 ICS feeds from a locally cached snapshot of the federation's widget API.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/ibasketcal/ibasketcal/internal/api"
	"github.com/ibasketcal/ibasketcal/internal/cache"
	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/harvest"
	"github.com/ibasketcal/ibasketcal/internal/maintenance"
	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/scrape"
	"github.com/ibasketcal/ibasketcal/internal/store"
	"github.com/ibasketcal/ibasketcal/internal/upstream"

	_ "github.com/ibasketcal/ibasketcal/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Open the store
	logger.Info("Opening store", "backend", cfg.DBType)
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize response cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Scrape pipeline: browser token harvester → widget API client → scraper
	harvester := harvest.New(cfg.WidgetURL, apiHost(cfg.APIBaseURL), cfg.ScraperHeadless, cfg.TokenTimeout, logger)
	client := upstream.NewClient(cfg.APIBaseURL, cfg.OriginURL, cfg.ProjectKey, cfg.UpstreamRPS, logger)
	scraper := scrape.New(client, harvester, st, cfg.ScrapeWorkers, cfg.ScrapeTimeout, logger)

	// Refresh controller: one scrape at a time, cooldown on manual requests
	ctrl := refresh.New(ctx, scraper, st, cfg.CacheTTL, cfg.RefreshCooldown, logger)

	// Start maintenance tickers (staleness watchdog, WAL checkpoint)
	go maintenance.Start(ctx, ctrl, st, maintenance.DefaultConfig(), logger)

	// Create router
	router := api.NewRouter(st, appCache, ctrl, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Israeli Basketball Calendar API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// Let an in-flight scrape notice cancellation before the store closes.
	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer awaitCancel()
	_ = ctrl.AwaitIdle(awaitCtx)

	logger.Info("Server stopped")
}

// apiHost extracts the host the harvester watches for Authorization headers.
func apiHost(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}
