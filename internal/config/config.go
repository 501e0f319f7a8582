// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ingest.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends — accepted values for DB_TYPE
// --------------------------------------------------------------------------

const (
	DBTypeFile     = "file"     // SQLite file under DataDir (default)
	DBTypeEdgeSQL  = "edgesql"  // hosted SQLite spoken over HTTPS
	DBTypeRowstore = "rowstore" // Postgres
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Store selection
	DBType           string
	DataDir          string
	DatabaseURL      string // rowstore backend
	TursoDatabaseURL string // edgesql backend
	TursoAuthToken   string // edgesql backend
	DBPoolMinConns   int
	DBPoolMaxConns   int
	DBPoolMaxLife    time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Snapshot freshness
	CacheTTL        time.Duration
	RefreshCooldown time.Duration

	// Upstream widget API and token harvesting
	WidgetURL       string
	APIBaseURL      string
	OriginURL       string
	ProjectKey      string
	ScraperHeadless bool
	ScrapeWorkers   int
	ScrapeTimeout   time.Duration
	TokenTimeout    time.Duration
	UpstreamRPS     float64

	// Calendar output
	EventDuration time.Duration
	CalendarHost  string

	// Response cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
// Backends beyond the default file store must bring their credentials.
func Load() (*Config, error) {
	cfg := &Config{
		DBType:           strings.ToLower(envOr("DB_TYPE", DBTypeFile)),
		DataDir:          dataDir(),
		DatabaseURL:      envOr("DATABASE_URL", ""),
		TursoDatabaseURL: envOr("TURSO_DATABASE_URL", ""),
		TursoAuthToken:   envOr("TURSO_AUTH_TOKEN", ""),
		DBPoolMinConns:   envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns:   envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:    time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("HOST", "0.0.0.0"),
		APIPort:     envInt("PORT", 8000),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    strings.ToUpper(envOr("LOG_LEVEL", "INFO")),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheTTL:        time.Duration(envInt("CACHE_TTL_MINUTES", 10080)) * time.Minute,
		RefreshCooldown: time.Duration(envInt("REFRESH_COOLDOWN_SECONDS", 300)) * time.Second,

		WidgetURL:       envOr("WIDGET_URL", "https://ibasketball.co.il/swish/"),
		APIBaseURL:      envOr("API_BASE_URL", "https://api.swish.nbn23.com"),
		OriginURL:       envOr("ORIGIN_URL", "https://ibasketball.co.il"),
		ProjectKey:      envOr("PROJECT_KEY", "ibba"),
		ScraperHeadless: envBool("SCRAPER_HEADLESS", true),
		ScrapeWorkers:   envInt("SCRAPE_WORKERS", 6),
		ScrapeTimeout:   time.Duration(envInt("SCRAPE_TIMEOUT_MINUTES", 15)) * time.Minute,
		TokenTimeout:    time.Duration(envInt("TOKEN_TIMEOUT_SECONDS", 60)) * time.Second,
		UpstreamRPS:     float64(envInt("UPSTREAM_REQUESTS_PER_SECOND", 4)),

		EventDuration: time.Duration(envInt("EVENT_DURATION_MINUTES", 120)) * time.Minute,
		CalendarHost:  envOr("CALENDAR_HOST", "ibasketcal.local"),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}

	switch cfg.DBType {
	case DBTypeFile, DBTypeEdgeSQL, DBTypeRowstore:
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want %s, %s, or %s)",
			cfg.DBType, DBTypeFile, DBTypeEdgeSQL, DBTypeRowstore)
	}
	if cfg.DBType == DBTypeEdgeSQL && (cfg.TursoDatabaseURL == "" || cfg.TursoAuthToken == "") {
		return nil, fmt.Errorf("DB_TYPE=%s requires TURSO_DATABASE_URL and TURSO_AUTH_TOKEN", DBTypeEdgeSQL)
	}
	if cfg.DBType == DBTypeRowstore && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DB_TYPE=%s requires DATABASE_URL", DBTypeRowstore)
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// dataDir resolves the directory holding the file backend's database.
// Managed platforms mount persistent volumes and announce the path through
// RAILWAY_VOLUME_MOUNT_PATH.
func dataDir() string {
	if v := os.Getenv("DATA_DIR"); v != "" {
		return v
	}
	if v := os.Getenv("RAILWAY_VOLUME_MOUNT_PATH"); v != "" {
		return v
	}
	return "data"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
