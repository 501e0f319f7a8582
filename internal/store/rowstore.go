package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/model"
)

// Rowstore is the Postgres backend: denormalized filter columns beside JSONB
// raw payloads, served from a pgx pool with per-connection prepared
// statements on the hot read paths.
type Rowstore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// preparedStatements are registered on every pooled connection via
// AfterConnect; reads execute them by name.
var preparedStatements = map[string]string{
	"list_seasons": `SELECT id, name, start_date, end_date, raw FROM seasons ORDER BY name DESC, id ASC`,
	"list_group_teams": `SELECT DISTINCT t.id, t.name, COALESCE(t.logo_url, '')
		FROM teams t
		JOIN matches m ON (m.home_team_id = t.id OR m.away_team_id = t.id)
		WHERE m.group_id = $1
		ORDER BY t.name ASC, t.id ASC`,
	"list_standings": `SELECT group_id, team_id, position, raw FROM standings WHERE group_id = $1 ORDER BY position ASC, team_id ASC`,
	"get_metadata":   `SELECT value FROM metadata WHERE key = $1`,
	"health_check":   `SELECT 1`,
}

func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, query := range preparedStatements {
		if _, err := conn.Prepare(ctx, name, query); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

// OpenRowstore migrates the schema and builds the connection pool.
func OpenRowstore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Rowstore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Migrations run over a plain database/sql handle the migrator
	// understands, closed before the pool opens.
	mdb, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open rowstore for migration: %w", err)
	}
	if err := migrateRowstore(mdb); err != nil {
		mdb.Close()
		return nil, fmt.Errorf("migrate rowstore: %w", err)
	}
	if err := mdb.Close(); err != nil {
		return nil, fmt.Errorf("close migration handle: %w", err)
	}

	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MinConns = int32(cfg.DBPoolMinConns)
	pc.MaxConns = int32(cfg.DBPoolMaxConns)
	pc.MaxConnLifetime = cfg.DBPoolMaxLife
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.AfterConnect = registerPreparedStatements

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping rowstore: %w", err)
	}

	r := &Rowstore{pool: pool, logger: logger}
	if err := r.ensureSchemaVersion(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("rowstore ready",
		slog.Int("min_conns", cfg.DBPoolMinConns),
		slog.Int("max_conns", cfg.DBPoolMaxConns))
	return r, nil
}

func (r *Rowstore) ensureSchemaVersion(ctx context.Context) error {
	if _, err := r.GetMetadata(ctx, model.MetaSchemaVersion); errors.Is(err, ErrNotFound) {
		return r.SetMetadata(ctx, model.MetaSchemaVersion, SchemaVersion)
	} else if err != nil {
		return err
	}
	return nil
}

// ---- reads ----

func (r *Rowstore) ListSeasons(ctx context.Context) ([]model.Season, error) {
	rows, err := r.pool.Query(ctx, "list_seasons")
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	seasons := []model.Season{}
	for rows.Next() {
		var (
			sn         model.Season
			start, end *time.Time
			raw        []byte
		)
		if err := rows.Scan(&sn.ID, &sn.Name, &start, &end, &raw); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		sn.StartDate = utcPtr(start)
		sn.EndDate = utcPtr(end)
		sn.Raw = json.RawMessage(raw)
		seasons = append(seasons, sn)
	}
	return seasons, rows.Err()
}

func (r *Rowstore) ListCompetitions(ctx context.Context, seasonID string) ([]model.Competition, error) {
	q := `SELECT id, season_id, name, raw FROM competitions`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = $1`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	comps := []model.Competition{}
	for rows.Next() {
		var (
			c   model.Competition
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.SeasonID, &c.Name, &raw); err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		c.Raw = json.RawMessage(raw)
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups, err := r.ListGroups(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	byComp := make(map[string][]model.Group, len(groups))
	for _, g := range groups {
		byComp[g.CompetitionID] = append(byComp[g.CompetitionID], g)
	}
	for i := range comps {
		comps[i].Groups = byComp[comps[i].ID]
	}
	return comps, nil
}

func (r *Rowstore) ListGroups(ctx context.Context, seasonID string) ([]model.Group, error) {
	q := `SELECT id, competition_id, season_id, name, type, raw FROM groups`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = $1`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var (
			g   model.Group
			raw []byte
		)
		if err := rows.Scan(&g.ID, &g.CompetitionID, &g.SeasonID, &g.Name, &g.Type, &raw); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Raw = json.RawMessage(raw)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *Rowstore) ListTeams(ctx context.Context, groupID string) ([]model.Team, error) {
	rows, err := r.pool.Query(ctx, "list_group_teams", groupID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.LogoURL); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *Rowstore) FindMatches(ctx context.Context, f MatchFilter) ([]model.Match, error) {
	conds, args := matchConds(f)
	q := numberPlaceholders(`SELECT `+matchColumns+` FROM matches`+whereClause(conds)) +
		` ORDER BY date ASC, id ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	defer rows.Close()

	matches := []model.Match{}
	for rows.Next() {
		var (
			m    model.Match
			date time.Time
			raw  []byte
		)
		if err := rows.Scan(&m.ID, &m.SeasonID, &m.CompetitionID, &m.CompetitionName,
			&m.GroupID, &m.GroupName, &m.HomeTeamID, &m.HomeTeamName,
			&m.AwayTeamID, &m.AwayTeamName, &date, &m.Status,
			&m.HomeScore, &m.AwayScore, &m.Venue, &m.VenueAddress, &raw); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Date = date.UTC()
		m.Raw = json.RawMessage(raw)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *Rowstore) Standings(ctx context.Context, groupID string) ([]model.Standing, error) {
	rows, err := r.pool.Query(ctx, "list_standings", groupID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	defer rows.Close()

	standings := []model.Standing{}
	for rows.Next() {
		var (
			st  model.Standing
			raw []byte
		)
		if err := rows.Scan(&st.GroupID, &st.TeamID, &st.Position, &raw); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		st.Raw = json.RawMessage(raw)
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// ---- writes ----

// Postgres variants of the shared upsert statements.
var (
	pgUpsertSeasonSQL      = numberPlaceholders(upsertSeasonSQL)
	pgUpsertCompetitionSQL = numberPlaceholders(upsertCompetitionSQL)
	pgUpsertGroupSQL       = numberPlaceholders(upsertGroupSQL)
	pgUpsertTeamSQL        = numberPlaceholders(upsertTeamSQL)
	pgUpsertMatchSQL       = numberPlaceholders(upsertMatchSQL)
	pgUpsertStandingSQL    = numberPlaceholders(upsertStandingSQL)
	pgUpsertMetadataSQL    = numberPlaceholders(upsertMetadataSQL)
)

// BulkReplace queues every upsert into one pgx batch inside a transaction:
// a single network round trip, atomic commit.
func (r *Rowstore) BulkReplace(ctx context.Context, snap model.Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk replace: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, sn := range snap.Seasons {
		b.Queue(pgUpsertSeasonSQL,
			sn.ID, sn.Name, utcPtr(sn.StartDate), utcPtr(sn.EndDate), rawText(sn.Raw))
	}
	for _, c := range snap.Competitions {
		b.Queue(pgUpsertCompetitionSQL, c.ID, c.SeasonID, c.Name, rawText(c.Raw))
	}
	for _, g := range snap.Groups {
		b.Queue(pgUpsertGroupSQL, g.ID, g.CompetitionID, g.SeasonID, g.Name, groupType(g.Type), rawText(g.Raw))
	}
	for _, t := range snap.Teams {
		b.Queue(pgUpsertTeamSQL, t.ID, t.Name, nullString(t.LogoURL))
	}
	for _, m := range snap.Matches {
		b.Queue(pgUpsertMatchSQL,
			m.ID, m.SeasonID, nullString(m.CompetitionID), nullString(m.CompetitionName),
			m.GroupID, nullString(m.GroupName),
			nullString(m.HomeTeamID), nullString(m.HomeTeamName),
			nullString(m.AwayTeamID), nullString(m.AwayTeamName),
			m.Date.UTC(), m.Status,
			m.HomeScore, m.AwayScore,
			nullString(m.Venue), nullString(m.VenueAddress), rawText(m.Raw))
	}
	for _, st := range snap.Standings {
		b.Queue(pgUpsertStandingSQL, st.GroupID, st.TeamID, st.Position, rawText(st.Raw))
	}
	b.Queue(pgUpsertMetadataSQL, model.MetaLastScrapeCompletedAt,
		time.Now().UTC().Format(time.RFC3339), time.Now().UTC())

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("apply snapshot batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk replace: %w", err)
	}
	return nil
}

func (r *Rowstore) GetMetadata(ctx context.Context, key string) (string, error) {
	var v string
	err := r.pool.QueryRow(ctx, "get_metadata", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, nil
}

func (r *Rowstore) SetMetadata(ctx context.Context, key, value string) error {
	if _, err := r.pool.Exec(ctx, pgUpsertMetadataSQL, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// ---- maintenance ----

func (r *Rowstore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(statTables))
	for _, table := range statTables {
		var n int64
		if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

func (r *Rowstore) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	if err := r.pool.QueryRow(ctx, "SELECT pg_database_size(current_database())").Scan(&size); err != nil {
		return 0, fmt.Errorf("database size: %w", err)
	}
	return size, nil
}

func (r *Rowstore) ClearAll(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"standings", "matches", "teams", "groups", "competitions", "seasons", "metadata"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, pgUpsertMetadataSQL, model.MetaSchemaVersion, SchemaVersion, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore schema version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (r *Rowstore) Vacuum(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

func (r *Rowstore) HealthCheck(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, "health_check").Scan(&one); err != nil {
		return fmt.Errorf("rowstore health check: %w", err)
	}
	return nil
}

func (r *Rowstore) Close() error {
	r.pool.Close()
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
