package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ibasketcal/ibasketcal/internal/model"
)

// EdgeSQL is the hosted-SQLite backend. It speaks the Turso HTTP API:
// every logical operation is one POST to /v2/pipeline carrying a batch of
// statements that the server executes sequentially on a single connection,
// so a BEGIN...COMMIT batch applies atomically with no local state.
type EdgeSQL struct {
	client *resty.Client
	logger *slog.Logger
}

// OpenEdgeSQL connects to the database at dbURL (libsql:// URLs are
// rewritten to https://), applies the schema, and records the schema
// version.
func OpenEdgeSQL(ctx context.Context, dbURL, authToken string, logger *slog.Logger) (*EdgeSQL, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(edgeHTTPURL(dbURL)).
		SetAuthToken(authToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		})

	e := &EdgeSQL{client: client, logger: logger}

	schema, err := sqliteSchemaStatements()
	if err != nil {
		return nil, err
	}
	stmts := make([]pipelineStmt, 0, len(schema))
	for _, sql := range schema {
		stmts = append(stmts, stmt(sql))
	}
	if _, err := e.exec(ctx, stmts); err != nil {
		return nil, fmt.Errorf("apply edgesql schema: %w", err)
	}
	if _, err := e.GetMetadata(ctx, model.MetaSchemaVersion); errors.Is(err, ErrNotFound) {
		if err := e.SetMetadata(ctx, model.MetaSchemaVersion, SchemaVersion); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	logger.Info("edgesql store ready", slog.String("url", client.BaseURL))
	return e, nil
}

// edgeHTTPURL rewrites a libsql:// database URL to its HTTPS form.
func edgeHTTPURL(dbURL string) string {
	if rest, ok := strings.CutPrefix(dbURL, "libsql://"); ok {
		return "https://" + rest
	}
	return strings.TrimSuffix(dbURL, "/")
}

// ---- pipeline wire types ----

type pipelineRequest struct {
	Requests []pipelineStep `json:"requests"`
}

type pipelineStep struct {
	Type string        `json:"type"` // "execute" or "close"
	Stmt *pipelineStmt `json:"stmt,omitempty"`
}

type pipelineStmt struct {
	SQL  string        `json:"sql"`
	Args []pipelineArg `json:"args,omitempty"`
}

type pipelineArg struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

type pipelineResponse struct {
	Results []pipelineResult `json:"results"`
}

type pipelineResult struct {
	Type     string `json:"type"` // "ok" or "error"
	Response *struct {
		Type   string      `json:"type"`
		Result *stmtResult `json:"result"`
	} `json:"response,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type stmtResult struct {
	Cols []struct {
		Name string `json:"name"`
	} `json:"cols"`
	Rows [][]pipelineCell `json:"rows"`
}

// pipelineCell is one typed value in a result row. Integers arrive as JSON
// strings per the wire format, so Value stays raw until an accessor decodes
// it.
type pipelineCell struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (c pipelineCell) text() string {
	if c.Type == "null" || len(c.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	return strings.Trim(string(c.Value), `"`)
}

func (c pipelineCell) intPtr() *int {
	if c.Type == "null" || len(c.Value) == 0 {
		return nil
	}
	if n, err := strconv.Atoi(c.text()); err == nil {
		return &n
	}
	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

func (c pipelineCell) int64Or(fallback int64) int64 {
	if p := c.intPtr(); p != nil {
		return int64(*p)
	}
	return fallback
}

func (c pipelineCell) timePtr() *time.Time {
	s := c.text()
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// stmt builds a pipeline statement, converting Go values to wire arguments.
func stmt(sql string, args ...any) pipelineStmt {
	ps := pipelineStmt{SQL: sql}
	for _, a := range args {
		ps.Args = append(ps.Args, argOf(a))
	}
	return ps
}

func argOf(v any) pipelineArg {
	switch x := v.(type) {
	case nil:
		return pipelineArg{Type: "null"}
	case string:
		return pipelineArg{Type: "text", Value: x}
	case int:
		return pipelineArg{Type: "integer", Value: strconv.Itoa(x)}
	case int64:
		return pipelineArg{Type: "integer", Value: strconv.FormatInt(x, 10)}
	case time.Time:
		return pipelineArg{Type: "text", Value: x.UTC().Format(time.RFC3339)}
	default:
		return pipelineArg{Type: "text", Value: fmt.Sprint(x)}
	}
}

// exec sends one pipeline of statements and returns the per-statement
// results. A trailing close step releases the server-side connection.
func (e *EdgeSQL) exec(ctx context.Context, stmts []pipelineStmt) ([]stmtResult, error) {
	steps := make([]pipelineStep, 0, len(stmts)+1)
	for i := range stmts {
		steps = append(steps, pipelineStep{Type: "execute", Stmt: &stmts[i]})
	}
	steps = append(steps, pipelineStep{Type: "close"})

	var out pipelineResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(pipelineRequest{Requests: steps}).
		SetResult(&out).
		Post("/v2/pipeline")
	if err != nil {
		return nil, fmt.Errorf("edgesql request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("edgesql returned %d: %s", resp.StatusCode(), truncateText(resp.Body(), 200))
	}

	results := make([]stmtResult, 0, len(stmts))
	for _, r := range out.Results {
		if r.Type == "error" {
			msg := "unknown error"
			if r.Error != nil {
				msg = r.Error.Message
			}
			return nil, fmt.Errorf("edgesql statement failed: %s", msg)
		}
		if r.Response != nil && r.Response.Type == "execute" && r.Response.Result != nil {
			results = append(results, *r.Response.Result)
		}
	}
	return results, nil
}

// queryOne executes a single statement and returns its result set.
func (e *EdgeSQL) queryOne(ctx context.Context, sql string, args ...any) (*stmtResult, error) {
	results, err := e.exec(ctx, []pipelineStmt{stmt(sql, args...)})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &stmtResult{}, nil
	}
	return &results[0], nil
}

func truncateText(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

// ---- reads ----

func (e *EdgeSQL) ListSeasons(ctx context.Context) ([]model.Season, error) {
	res, err := e.queryOne(ctx,
		`SELECT id, name, start_date, end_date, raw FROM seasons ORDER BY name DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	seasons := []model.Season{}
	for _, row := range res.Rows {
		if len(row) < 5 {
			continue
		}
		seasons = append(seasons, model.Season{
			ID:        row[0].text(),
			Name:      row[1].text(),
			StartDate: row[2].timePtr(),
			EndDate:   row[3].timePtr(),
			Raw:       json.RawMessage(row[4].text()),
		})
	}
	return seasons, nil
}

func (e *EdgeSQL) ListCompetitions(ctx context.Context, seasonID string) ([]model.Competition, error) {
	q := `SELECT id, season_id, name, raw FROM competitions`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	res, err := e.queryOne(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	comps := []model.Competition{}
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		comps = append(comps, model.Competition{
			ID:       row[0].text(),
			SeasonID: row[1].text(),
			Name:     row[2].text(),
			Raw:      json.RawMessage(row[3].text()),
		})
	}

	groups, err := e.ListGroups(ctx, seasonID)
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

func (e *EdgeSQL) ListGroups(ctx context.Context, seasonID string) ([]model.Group, error) {
	q := `SELECT id, competition_id, season_id, name, type, raw FROM groups`
	var args []any
	if seasonID != "" {
		q += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	q += ` ORDER BY name ASC, id ASC`

	res, err := e.queryOne(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups := []model.Group{}
	for _, row := range res.Rows {
		if len(row) < 6 {
			continue
		}
		groups = append(groups, model.Group{
			ID:            row[0].text(),
			CompetitionID: row[1].text(),
			SeasonID:      row[2].text(),
			Name:          row[3].text(),
			Type:          row[4].text(),
			Raw:           json.RawMessage(row[5].text()),
		})
	}
	return groups, nil
}

func (e *EdgeSQL) ListTeams(ctx context.Context, groupID string) ([]model.Team, error) {
	res, err := e.queryOne(ctx, `
		SELECT DISTINCT t.id, t.name, COALESCE(t.logo_url, '')
		FROM teams t
		JOIN matches m ON (m.home_team_id = t.id OR m.away_team_id = t.id)
		WHERE m.group_id = ?
		ORDER BY t.name ASC, t.id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	teams := []model.Team{}
	for _, row := range res.Rows {
		if len(row) < 3 {
			continue
		}
		teams = append(teams, model.Team{ID: row[0].text(), Name: row[1].text(), LogoURL: row[2].text()})
	}
	return teams, nil
}

func (e *EdgeSQL) FindMatches(ctx context.Context, f MatchFilter) ([]model.Match, error) {
	conds, args := matchConds(f)
	q := `SELECT ` + matchColumns + ` FROM matches` + whereClause(conds) + ` ORDER BY date ASC, id ASC`

	res, err := e.queryOne(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	matches := []model.Match{}
	for _, row := range res.Rows {
		m, err := matchFromRow(row)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func matchFromRow(row []pipelineCell) (model.Match, error) {
	if len(row) < 17 {
		return model.Match{}, fmt.Errorf("match row has %d cells, want 17", len(row))
	}
	date, err := time.Parse(time.RFC3339, row[10].text())
	if err != nil {
		return model.Match{}, fmt.Errorf("parse match date %q: %w", row[10].text(), err)
	}
	return model.Match{
		ID:              row[0].text(),
		SeasonID:        row[1].text(),
		CompetitionID:   row[2].text(),
		CompetitionName: row[3].text(),
		GroupID:         row[4].text(),
		GroupName:       row[5].text(),
		HomeTeamID:      row[6].text(),
		HomeTeamName:    row[7].text(),
		AwayTeamID:      row[8].text(),
		AwayTeamName:    row[9].text(),
		Date:            date.UTC(),
		Status:          row[11].text(),
		HomeScore:       row[12].intPtr(),
		AwayScore:       row[13].intPtr(),
		Venue:           row[14].text(),
		VenueAddress:    row[15].text(),
		Raw:             json.RawMessage(row[16].text()),
	}, nil
}

func (e *EdgeSQL) Standings(ctx context.Context, groupID string) ([]model.Standing, error) {
	res, err := e.queryOne(ctx,
		`SELECT group_id, team_id, position, raw FROM standings WHERE group_id = ? ORDER BY position ASC, team_id ASC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	standings := []model.Standing{}
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		standings = append(standings, model.Standing{
			GroupID:  row[0].text(),
			TeamID:   row[1].text(),
			Position: int(row[2].int64Or(0)),
			Raw:      json.RawMessage(row[3].text()),
		})
	}
	return standings, nil
}

// ---- writes ----

func (e *EdgeSQL) BulkReplace(ctx context.Context, snap model.Snapshot) error {
	stmts := []pipelineStmt{stmt("BEGIN")}
	for _, sn := range snap.Seasons {
		stmts = append(stmts, stmt(upsertSeasonSQL,
			sn.ID, sn.Name, nullTimeText(sn.StartDate), nullTimeText(sn.EndDate), rawText(sn.Raw)))
	}
	for _, c := range snap.Competitions {
		stmts = append(stmts, stmt(upsertCompetitionSQL, c.ID, c.SeasonID, c.Name, rawText(c.Raw)))
	}
	for _, g := range snap.Groups {
		stmts = append(stmts, stmt(upsertGroupSQL,
			g.ID, g.CompetitionID, g.SeasonID, g.Name, groupType(g.Type), rawText(g.Raw)))
	}
	for _, t := range snap.Teams {
		stmts = append(stmts, stmt(upsertTeamSQL, t.ID, t.Name, nullString(t.LogoURL)))
	}
	for _, m := range snap.Matches {
		stmts = append(stmts, stmt(upsertMatchSQL,
			m.ID, m.SeasonID, nullString(m.CompetitionID), nullString(m.CompetitionName),
			m.GroupID, nullString(m.GroupName),
			nullString(m.HomeTeamID), nullString(m.HomeTeamName),
			nullString(m.AwayTeamID), nullString(m.AwayTeamName),
			m.Date.UTC().Format(time.RFC3339), m.Status,
			nullInt(m.HomeScore), nullInt(m.AwayScore),
			nullString(m.Venue), nullString(m.VenueAddress), rawText(m.Raw)))
	}
	for _, st := range snap.Standings {
		stmts = append(stmts, stmt(upsertStandingSQL, st.GroupID, st.TeamID, st.Position, rawText(st.Raw)))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmts = append(stmts,
		stmt(upsertMetadataSQL, model.MetaLastScrapeCompletedAt, now, now),
		stmt("COMMIT"))

	if _, err := e.exec(ctx, stmts); err != nil {
		return fmt.Errorf("bulk replace: %w", err)
	}
	return nil
}

func (e *EdgeSQL) GetMetadata(ctx context.Context, key string) (string, error) {
	res, err := e.queryOne(ctx, `SELECT value FROM metadata WHERE key = ?`, key)
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return "", ErrNotFound
	}
	return res.Rows[0][0].text(), nil
}

func (e *EdgeSQL) SetMetadata(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := e.queryOne(ctx, upsertMetadataSQL, key, value, now); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// ---- maintenance ----

// Stats batches all counts into a single pipeline round trip.
func (e *EdgeSQL) Stats(ctx context.Context) (map[string]int64, error) {
	stmts := make([]pipelineStmt, 0, len(statTables))
	for _, table := range statTables {
		stmts = append(stmts, stmt("SELECT COUNT(*) FROM "+table))
	}
	results, err := e.exec(ctx, stmts)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	stats := make(map[string]int64, len(statTables))
	for i, table := range statTables {
		if i < len(results) && len(results[i].Rows) > 0 && len(results[i].Rows[0]) > 0 {
			stats[table] = results[i].Rows[0][0].int64Or(0)
		}
	}
	return stats, nil
}

// SizeBytes is unavailable over the pipeline API.
func (e *EdgeSQL) SizeBytes(ctx context.Context) (int64, error) {
	return 0, ErrSizeUnknown
}

func (e *EdgeSQL) ClearAll(ctx context.Context) error {
	stmts := []pipelineStmt{stmt("BEGIN")}
	for _, table := range []string{"standings", "matches", "teams", "groups", "competitions", "seasons", "metadata"} {
		stmts = append(stmts, stmt("DELETE FROM "+table))
	}
	now := time.Now().UTC().Format(time.RFC3339)
	stmts = append(stmts,
		stmt(upsertMetadataSQL, model.MetaSchemaVersion, SchemaVersion, now),
		stmt("COMMIT"))
	if _, err := e.exec(ctx, stmts); err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	return nil
}

// Vacuum is a no-op: the hosted service manages storage itself.
func (e *EdgeSQL) Vacuum(ctx context.Context) error {
	return nil
}

func (e *EdgeSQL) HealthCheck(ctx context.Context) error {
	if _, err := e.queryOne(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("edgesql health check: %w", err)
	}
	return nil
}

// Close releases nothing: connections are per-request.
func (e *EdgeSQL) Close() error {
	return nil
}
