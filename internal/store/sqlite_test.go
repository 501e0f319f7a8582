package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), DatabaseFile), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(v int) *int { return &v }

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Seasons: []model.Season{
			{ID: "S1", Name: "2024-2025"},
			{ID: "S2", Name: "2025-2026"},
		},
		Competitions: []model.Competition{
			{ID: "C1", SeasonID: "S2", Name: "ליגת העל"},
		},
		Groups: []model.Group{
			{ID: "G17", CompetitionID: "C1", SeasonID: "S2", Name: model.RegularGroupName, Type: model.GroupTypeLeague},
			{ID: "G18", CompetitionID: "C1", SeasonID: "S2", Name: "Playoff", Type: model.GroupTypePlayoff},
		},
		Teams: []model.Team{
			{ID: "T7", Name: "הפועל ירושלים"},
			{ID: "T8", Name: "מכבי תל אביב"},
		},
		Matches: []model.Match{
			{
				ID: "M1", SeasonID: "S2", CompetitionID: "C1", CompetitionName: "ליגת העל",
				GroupID: "G17", GroupName: model.RegularGroupName,
				HomeTeamID: "T7", HomeTeamName: "הפועל ירושלים",
				AwayTeamID: "T8", AwayTeamName: "מכבי תל אביב",
				Date:      time.Date(2025, 11, 4, 18, 30, 0, 0, time.UTC),
				Status:    model.StatusClosed,
				HomeScore: intp(88), AwayScore: intp(81),
				Venue: "Drive in Arena",
			},
			{
				ID: "M2", SeasonID: "S2", CompetitionID: "C1", CompetitionName: "ליגת העל",
				GroupID: "G17", GroupName: model.RegularGroupName,
				HomeTeamID: "T8", HomeTeamName: "מכבי תל אביב",
				AwayTeamID: "T7", AwayTeamName: "הפועל ירושלים",
				Date:   time.Date(2025, 12, 1, 19, 0, 0, 0, time.UTC),
				Status: model.StatusNotStarted,
			},
			{
				ID: "M3", SeasonID: "S2", CompetitionID: "C1", CompetitionName: "ליגת העל",
				GroupID: "G18", GroupName: "Playoff",
				HomeTeamID: "T7", HomeTeamName: "הפועל ירושלים",
				Date:   time.Date(2026, 5, 10, 17, 0, 0, 0, time.UTC),
				Status: model.StatusNotStarted,
			},
		},
		Standings: []model.Standing{
			{GroupID: "G17", TeamID: "T7", Position: 1, Raw: []byte(`{"wins":10}`)},
			{GroupID: "G17", TeamID: "T8", Position: 2, Raw: []byte(`{"wins":8}`)},
		},
	}
}

func TestBulkReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	seasons, err := s.ListSeasons(ctx)
	if err != nil {
		t.Fatalf("list seasons: %v", err)
	}
	if len(seasons) != 2 || seasons[0].ID != "S2" || seasons[1].ID != "S1" {
		t.Errorf("seasons must come back name-descending, got %+v", seasons)
	}

	matches, err := s.FindMatches(ctx, MatchFilter{})
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Date.Before(matches[i-1].Date) {
			t.Errorf("matches out of date order at %d", i)
		}
	}

	m1 := matches[0]
	if m1.ID != "M1" || !m1.HasScores() || *m1.HomeScore != 88 || *m1.AwayScore != 81 {
		t.Errorf("M1 round trip broken: %+v", m1)
	}
	if m1.Venue != "Drive in Arena" {
		t.Errorf("venue = %q", m1.Venue)
	}

	// Playoff placeholder keeps its empty away slot.
	m3 := matches[2]
	if m3.AwayTeamID != "" || m3.AwayTeamName != "" {
		t.Errorf("M3 away slot must stay empty: %+v", m3)
	}
	if m3.HasScores() {
		t.Error("M3 must have no scores")
	}
}

func TestBulkReplaceIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	snap := sampleSnapshot()

	if err := s.BulkReplace(ctx, snap); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	first, err := s.GetMetadata(ctx, model.MetaLastScrapeCompletedAt)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	if err := s.BulkReplace(ctx, snap); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := map[string]int64{"seasons": 2, "competitions": 1, "groups": 2, "teams": 2, "matches": 3, "standings": 2}
	for table, n := range want {
		if stats[table] != n {
			t.Errorf("%s = %d, want %d", table, stats[table], n)
		}
	}

	second, err := s.GetMetadata(ctx, model.MetaLastScrapeCompletedAt)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if second < first {
		t.Errorf("scrape timestamp went backwards: %s -> %s", first, second)
	}
}

func TestRowsAbsentFromSnapshotAreRetained(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	smaller := sampleSnapshot()
	smaller.Matches = smaller.Matches[:1]
	if err := s.BulkReplace(ctx, smaller); err != nil {
		t.Fatalf("smaller replace: %v", err)
	}

	matches, err := s.FindMatches(ctx, MatchFilter{})
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("vanished rows must be retained, got %d matches", len(matches))
	}
}

func TestFindMatchesFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	from := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		f    MatchFilter
		want []string
	}{
		{"group", MatchFilter{GroupID: "G18"}, []string{"M3"}},
		{"competition substring", MatchFilter{CompetitionName: "העל"}, []string{"M1", "M2", "M3"}},
		{"team id either side", MatchFilter{TeamID: "T8"}, []string{"M1", "M2"}},
		{"team name substring", MatchFilter{TeamName: "מכבי"}, []string{"M1", "M2"}},
		{"status", MatchFilter{Status: model.StatusClosed}, []string{"M1"}},
		{"window", MatchFilter{DateFrom: &from, DateTo: &to}, []string{"M2"}},
		{"season", MatchFilter{SeasonID: "S1"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matches, err := s.FindMatches(ctx, tc.f)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("ids = %v, want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestListTeamsOnlyGroupParticipants(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	teams, err := s.ListTeams(ctx, "G18")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != "T7" {
		t.Errorf("G18 participants = %+v, want only T7", teams)
	}
}

func TestStandingsOrderedByPosition(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	standings, err := s.Standings(ctx, "G17")
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 2 || standings[0].TeamID != "T7" || standings[1].TeamID != "T8" {
		t.Errorf("standings = %+v", standings)
	}
	if string(standings[0].Raw) != `{"wins":10}` {
		t.Errorf("raw payload not preserved: %s", standings[0].Raw)
	}
}

func TestMetadataMissingKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.GetMetadata(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if err := s.SetMetadata(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.GetMetadata(ctx, "k")
	if err != nil || v != "v" {
		t.Errorf("get = %q, %v", v, err)
	}
}

func TestClearAllKeepsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for table, n := range stats {
		if n != 0 {
			t.Errorf("%s = %d after clear", table, n)
		}
	}

	v, err := s.GetMetadata(ctx, model.MetaSchemaVersion)
	if err != nil || v != SchemaVersion {
		t.Errorf("schema version after clear = %q, %v", v, err)
	}
	if _, err := s.GetMetadata(ctx, model.MetaLastScrapeCompletedAt); !errors.Is(err, ErrNotFound) {
		t.Errorf("scrape timestamp must be gone, got %v", err)
	}
}

func TestMaintenanceOps(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.BulkReplace(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := s.Checkpoint(ctx); err != nil {
		t.Errorf("checkpoint: %v", err)
	}
	if err := s.Vacuum(ctx); err != nil {
		t.Errorf("vacuum: %v", err)
	}
	if err := s.HealthCheck(ctx); err != nil {
		t.Errorf("health: %v", err)
	}

	size, err := s.SizeBytes(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size <= 0 {
		t.Errorf("size = %d, want > 0", size)
	}
}
