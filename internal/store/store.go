// Package store persists scraped snapshots and serves the read side of the
// API. Three interchangeable backends implement the same contract: a local
// SQLite file (default), hosted SQLite spoken over HTTPS, and Postgres.
// Callers hold only the Store interface; the backend never leaks past Open.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/model"
)

// SchemaVersion is recorded in metadata when a backend is opened.
const SchemaVersion = "1"

// DatabaseFile is the file backend's database name under DataDir. Its WAL
// sidecar files live beside it.
const DatabaseFile = "basketball.db"

// MatchFilter narrows FindMatches. Zero fields are ignored; set fields
// combine with AND.
type MatchFilter struct {
	SeasonID        string     // exact
	GroupID         string     // exact
	CompetitionName string     // case-insensitive substring
	TeamID          string     // exact, matches either side
	TeamName        string     // case-insensitive substring, either side
	Status          string     // exact
	DateFrom        *time.Time // inclusive
	DateTo          *time.Time // inclusive
}

// Store is the persistence contract shared by all backends.
//
// Reads always observe the last committed snapshot and never block on a
// scrape in progress. An empty store is not an error: list operations
// return empty slices.
type Store interface {
	// ListSeasons returns all seasons ordered by name descending
	// (newest first by the federation's naming convention).
	ListSeasons(ctx context.Context) ([]model.Season, error)
	// ListCompetitions returns competitions with their groups populated,
	// ordered by name. An empty seasonID means all seasons.
	ListCompetitions(ctx context.Context, seasonID string) ([]model.Competition, error)
	// ListGroups returns groups ordered by name. An empty seasonID means
	// all seasons.
	ListGroups(ctx context.Context, seasonID string) ([]model.Group, error)
	// ListTeams returns the distinct participants of a group's matches.
	ListTeams(ctx context.Context, groupID string) ([]model.Team, error)
	// FindMatches returns matches ordered by date ascending, match ID
	// ascending as the tiebreak.
	FindMatches(ctx context.Context, f MatchFilter) ([]model.Match, error)
	// Standings returns the stored standings rows for a group ordered by
	// position. Rows are raw upstream payloads, never interpreted.
	Standings(ctx context.Context, groupID string) ([]model.Standing, error)

	// BulkReplace commits a complete scrape atomically: every entity is
	// upserted, rows absent from the snapshot are retained, and the
	// last-scrape timestamp advances only when the whole write succeeds.
	// Concurrent readers observe the pre-commit or post-commit state,
	// never a mix. Re-applying the same snapshot is a no-op apart from
	// the timestamp.
	BulkReplace(ctx context.Context, snap model.Snapshot) error

	// GetMetadata returns ErrNotFound for missing keys.
	GetMetadata(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error

	// Stats returns row counts per entity.
	Stats(ctx context.Context) (map[string]int64, error)
	// SizeBytes reports the storage footprint; backends that cannot
	// measure it return ErrSizeUnknown.
	SizeBytes(ctx context.Context) (int64, error)
	// ClearAll deletes every row but keeps the schema.
	ClearAll(ctx context.Context) error
	// Vacuum reclaims storage where the backend supports it; otherwise a
	// no-op.
	Vacuum(ctx context.Context) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// Checkpointer is implemented by backends with a write-ahead log that
// benefits from periodic flushing. Maintenance probes for it.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Open builds the backend selected by cfg.DBType.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.DBType {
	case config.DBTypeFile:
		return OpenSQLite(ctx, filepath.Join(cfg.DataDir, DatabaseFile), logger)
	case config.DBTypeEdgeSQL:
		return OpenEdgeSQL(ctx, cfg.TursoDatabaseURL, cfg.TursoAuthToken, logger)
	case config.DBTypeRowstore:
		return OpenRowstore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.DBType)
	}
}
