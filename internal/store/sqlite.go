package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ibasketcal/ibasketcal/internal/model"
)

// statTables are the entities reported by Stats, in display order.
var statTables = []string{"seasons", "competitions", "groups", "teams", "matches", "standings"}

// SQLite is the file backend: a WAL-mode database at {DataDir}/basketball.db.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path, applies
// pending migrations, and records the schema version.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	s := &SQLite{db: db, path: path, logger: logger}
	if err := s.ensureSchemaVersion(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("sqlite store ready", slog.String("path", path))
	return s, nil
}

func (s *SQLite) ensureSchemaVersion(ctx context.Context) error {
	if _, err := s.GetMetadata(ctx, model.MetaSchemaVersion); errors.Is(err, ErrNotFound) {
		return s.SetMetadata(ctx, model.MetaSchemaVersion, SchemaVersion)
	} else if err != nil {
		return err
	}
	return nil
}

// ---- reads ----

func (s *SQLite) ListSeasons(ctx context.Context) ([]model.Season, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, start_date, end_date, raw FROM seasons ORDER BY name DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	seasons := []model.Season{}
	for rows.Next() {
		var (
			sn         model.Season
			start, end sql.NullString
			raw        string
		)
		if err := rows.Scan(&sn.ID, &sn.Name, &start, &end, &raw); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		sn.StartDate = parseNullTime(start)
		sn.EndDate = parseNullTime(end)
		sn.Raw = json.RawMessage(raw)
		seasons = append(seasons, sn)
	}
	return seasons, rows.Err()
}

func (s *SQLite) ListCompetitions(ctx context.Context, seasonID string) ([]model.Competition, error) {
	q := `SELECT id, season_id, name, raw FROM competitions`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	comps := []model.Competition{}
	for rows.Next() {
		var (
			c   model.Competition
			raw string
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

	groups, err := s.ListGroups(ctx, seasonID)
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

func (s *SQLite) ListGroups(ctx context.Context, seasonID string) ([]model.Group, error) {
	q := `SELECT id, competition_id, season_id, name, type, raw FROM groups`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var (
			g   model.Group
			raw string
		)
		if err := rows.Scan(&g.ID, &g.CompetitionID, &g.SeasonID, &g.Name, &g.Type, &raw); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.Raw = json.RawMessage(raw)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLite) ListTeams(ctx context.Context, groupID string) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.id, t.name, COALESCE(t.logo_url, '')
		FROM teams t
		JOIN matches m ON (m.home_team_id = t.id OR m.away_team_id = t.id)
		WHERE m.group_id = ?
		ORDER BY t.name ASC, t.id ASC`, groupID)
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

const matchColumns = `id, season_id, COALESCE(competition_id, ''), COALESCE(competition_name, ''),
	group_id, COALESCE(group_name, ''), COALESCE(home_team_id, ''), COALESCE(home_team_name, ''),
	COALESCE(away_team_id, ''), COALESCE(away_team_name, ''), date, status,
	home_score, away_score, COALESCE(venue, ''), COALESCE(venue_address, ''), raw`

func (s *SQLite) FindMatches(ctx context.Context, f MatchFilter) ([]model.Match, error) {
	conds, args := matchConds(f)
	// Timestamps live in TEXT columns as RFC 3339 UTC, so range bounds
	// bind as text too; the fixed-width format keeps lexicographic and
	// chronological order identical.
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = t.Format(time.RFC3339)
		}
	}
	q := `SELECT ` + matchColumns + ` FROM matches` + whereClause(conds) + ` ORDER BY date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

func scanMatches(rows *sql.Rows) ([]model.Match, error) {
	matches := []model.Match{}
	for rows.Next() {
		var (
			m        model.Match
			dateText string
			hScore   sql.NullInt64
			aScore   sql.NullInt64
			raw      string
		)
		if err := rows.Scan(&m.ID, &m.SeasonID, &m.CompetitionID, &m.CompetitionName,
			&m.GroupID, &m.GroupName, &m.HomeTeamID, &m.HomeTeamName,
			&m.AwayTeamID, &m.AwayTeamName, &dateText, &m.Status,
			&hScore, &aScore, &m.Venue, &m.VenueAddress, &raw); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		date, err := time.Parse(time.RFC3339, dateText)
		if err != nil {
			return nil, fmt.Errorf("parse match date %q: %w", dateText, err)
		}
		m.Date = date.UTC()
		if hScore.Valid {
			v := int(hScore.Int64)
			m.HomeScore = &v
		}
		if aScore.Valid {
			v := int(aScore.Int64)
			m.AwayScore = &v
		}
		m.Raw = json.RawMessage(raw)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQLite) Standings(ctx context.Context, groupID string) ([]model.Standing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, team_id, position, raw FROM standings WHERE group_id = ? ORDER BY position ASC, team_id ASC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	defer rows.Close()

	standings := []model.Standing{}
	for rows.Next() {
		var (
			st  model.Standing
			raw string
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

const (
	upsertSeasonSQL = `INSERT INTO seasons (id, name, start_date, end_date, raw) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, start_date = excluded.start_date,
		end_date = excluded.end_date, raw = excluded.raw`

	upsertCompetitionSQL = `INSERT INTO competitions (id, season_id, name, raw) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET season_id = excluded.season_id, name = excluded.name, raw = excluded.raw`

	upsertGroupSQL = `INSERT INTO groups (id, competition_id, season_id, name, type, raw) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET competition_id = excluded.competition_id,
		season_id = excluded.season_id, name = excluded.name, type = excluded.type, raw = excluded.raw`

	upsertTeamSQL = `INSERT INTO teams (id, name, logo_url) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, logo_url = excluded.logo_url`

	upsertMatchSQL = `INSERT INTO matches (id, season_id, competition_id, competition_name, group_id, group_name,
		home_team_id, home_team_name, away_team_id, away_team_name, date, status,
		home_score, away_score, venue, venue_address, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET season_id = excluded.season_id,
		competition_id = excluded.competition_id, competition_name = excluded.competition_name,
		group_id = excluded.group_id, group_name = excluded.group_name,
		home_team_id = excluded.home_team_id, home_team_name = excluded.home_team_name,
		away_team_id = excluded.away_team_id, away_team_name = excluded.away_team_name,
		date = excluded.date, status = excluded.status,
		home_score = excluded.home_score, away_score = excluded.away_score,
		venue = excluded.venue, venue_address = excluded.venue_address, raw = excluded.raw`

	upsertStandingSQL = `INSERT INTO standings (group_id, team_id, position, raw) VALUES (?, ?, ?, ?)
		ON CONFLICT(group_id, team_id) DO UPDATE SET position = excluded.position, raw = excluded.raw`

	upsertMetadataSQL = `INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

func (s *SQLite) BulkReplace(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk replace: %w", err)
	}
	defer tx.Rollback()

	for _, sn := range snap.Seasons {
		if _, err := tx.ExecContext(ctx, upsertSeasonSQL,
			sn.ID, sn.Name, nullTimeText(sn.StartDate), nullTimeText(sn.EndDate), rawText(sn.Raw)); err != nil {
			return fmt.Errorf("upsert season %s: %w", sn.ID, err)
		}
	}
	for _, c := range snap.Competitions {
		if _, err := tx.ExecContext(ctx, upsertCompetitionSQL,
			c.ID, c.SeasonID, c.Name, rawText(c.Raw)); err != nil {
			return fmt.Errorf("upsert competition %s: %w", c.ID, err)
		}
	}
	for _, g := range snap.Groups {
		if _, err := tx.ExecContext(ctx, upsertGroupSQL,
			g.ID, g.CompetitionID, g.SeasonID, g.Name, groupType(g.Type), rawText(g.Raw)); err != nil {
			return fmt.Errorf("upsert group %s: %w", g.ID, err)
		}
	}
	for _, t := range snap.Teams {
		if _, err := tx.ExecContext(ctx, upsertTeamSQL,
			t.ID, t.Name, nullString(t.LogoURL)); err != nil {
			return fmt.Errorf("upsert team %s: %w", t.ID, err)
		}
	}
	for _, m := range snap.Matches {
		if _, err := tx.ExecContext(ctx, upsertMatchSQL,
			m.ID, m.SeasonID, nullString(m.CompetitionID), nullString(m.CompetitionName),
			m.GroupID, nullString(m.GroupName),
			nullString(m.HomeTeamID), nullString(m.HomeTeamName),
			nullString(m.AwayTeamID), nullString(m.AwayTeamName),
			m.Date.UTC().Format(time.RFC3339), m.Status,
			nullInt(m.HomeScore), nullInt(m.AwayScore),
			nullString(m.Venue), nullString(m.VenueAddress), rawText(m.Raw)); err != nil {
			return fmt.Errorf("upsert match %s: %w", m.ID, err)
		}
	}
	for _, st := range snap.Standings {
		if _, err := tx.ExecContext(ctx, upsertStandingSQL,
			st.GroupID, st.TeamID, st.Position, rawText(st.Raw)); err != nil {
			return fmt.Errorf("upsert standing %s/%s: %w", st.GroupID, st.TeamID, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, upsertMetadataSQL, model.MetaLastScrapeCompletedAt, now, now); err != nil {
		return fmt.Errorf("update scrape timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk replace: %w", err)
	}
	return nil
}

func (s *SQLite) GetMetadata(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) SetMetadata(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, upsertMetadataSQL, key, value, now); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// ---- maintenance ----

func (s *SQLite) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(statTables))
	for _, table := range statTables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// SizeBytes reports the database file plus its WAL sidecar.
func (s *SQLite) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		total += info.Size()
	}
	return total, nil
}

func (s *SQLite) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"standings", "matches", "teams", "groups", "competitions", "seasons", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, upsertMetadataSQL, model.MetaSchemaVersion, SchemaVersion, now); err != nil {
		return fmt.Errorf("restore schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (s *SQLite) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file.
func (s *SQLite) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("sqlite health check: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// ---- value helpers ----

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTimeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// groupType defaults unset bracket types; unknown values pass through.
func groupType(t string) string {
	if t == "" {
		return model.GroupTypeLeague
	}
	return t
}
