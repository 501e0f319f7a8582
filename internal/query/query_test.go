package query

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

type fakeStore struct {
	store.Store
	seasons []model.Season
	teams   []model.Team
	lastF   store.MatchFilter
}

func (f *fakeStore) ListSeasons(ctx context.Context) ([]model.Season, error) {
	return f.seasons, nil
}

func (f *fakeStore) ListTeams(ctx context.Context, groupID string) ([]model.Team, error) {
	return f.teams, nil
}

func (f *fakeStore) FindMatches(ctx context.Context, filter store.MatchFilter) ([]model.Match, error) {
	f.lastF = filter
	return nil, nil
}

func newService(st *fakeStore) *Service {
	s := New(st)
	s.now = func() time.Time { return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func values(pairs ...string) url.Values {
	q := url.Values{}
	for i := 0; i < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return q
}

func TestIDBeatsName(t *testing.T) {
	s := newService(&fakeStore{})

	f, err := s.MatchFilter(context.Background(), values(
		"group_id", "G17", "competition", "ignored",
		"team_id", "T7", "team", "ignored too"))
	if err != nil {
		t.Fatalf("MatchFilter: %v", err)
	}
	if f.GroupID != "G17" || f.CompetitionName != "" {
		t.Errorf("group_id must win over competition: %+v", f)
	}
	if f.TeamID != "T7" || f.TeamName != "" {
		t.Errorf("team_id must win over team: %+v", f)
	}
}

func TestNameFiltersWithoutIDs(t *testing.T) {
	s := newService(&fakeStore{})
	f, err := s.MatchFilter(context.Background(), values("competition", "על", "team", "הפועל"))
	if err != nil {
		t.Fatalf("MatchFilter: %v", err)
	}
	if f.CompetitionName != "על" || f.TeamName != "הפועל" {
		t.Errorf("name filters dropped: %+v", f)
	}
}

func TestSeasonResolution(t *testing.T) {
	st := &fakeStore{seasons: []model.Season{
		{ID: "S3", Name: "2025/2026"},
		{ID: "S2", Name: "2024/2025"},
		{ID: "S1", Name: "2023/2024"},
	}}
	s := newService(st)

	tests := []struct {
		name   string
		param  string
		wantID string
		invalid bool
	}{
		{"exact id", "S2", "S2", false},
		{"full name", "2023/2024", "S1", false},
		{"ambiguous substring picks newest", "202", "S3", false},
		{"case insensitive", "2024/2025", "S2", false},
		{"no match", "1999", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := s.MatchFilter(context.Background(), values("season", tt.param))
			if tt.invalid {
				var inv *InvalidFilterError
				if !errors.As(err, &inv) {
					t.Fatalf("err = %v, want *InvalidFilterError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MatchFilter: %v", err)
			}
			if f.SeasonID != tt.wantID {
				t.Errorf("seasonID = %q, want %q", f.SeasonID, tt.wantID)
			}
		})
	}
}

func TestStatusValidation(t *testing.T) {
	s := newService(&fakeStore{})

	f, err := s.MatchFilter(context.Background(), values("status", "closed"))
	if err != nil {
		t.Fatalf("MatchFilter: %v", err)
	}
	if f.Status != model.StatusClosed {
		t.Errorf("status = %q, want normalized CLOSED", f.Status)
	}

	_, err = s.MatchFilter(context.Background(), values("status", "POSTPONED"))
	var inv *InvalidFilterError
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want *InvalidFilterError", err)
	}
}

func TestDateWindows(t *testing.T) {
	s := newService(&fakeStore{})

	f, err := s.MatchFilter(context.Background(), values("days", "7", "past_days", "2"))
	if err != nil {
		t.Fatalf("MatchFilter: %v", err)
	}
	wantTo := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	wantFrom := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	if f.DateTo == nil || !f.DateTo.Equal(wantTo) {
		t.Errorf("DateTo = %v, want %v", f.DateTo, wantTo)
	}
	if f.DateFrom == nil || !f.DateFrom.Equal(wantFrom) {
		t.Errorf("DateFrom = %v, want %v", f.DateFrom, wantFrom)
	}

	// Absent window parameters leave the feed unbounded.
	f, err = s.MatchFilter(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("MatchFilter: %v", err)
	}
	if f.DateFrom != nil || f.DateTo != nil {
		t.Errorf("unexpected bounds: %+v", f)
	}

	if _, err := s.MatchFilter(context.Background(), values("days", "-1")); err == nil {
		t.Error("negative days must be rejected")
	}
}

func TestCalendarOptions(t *testing.T) {
	s := newService(&fakeStore{})

	opts, err := s.CalendarOptions(url.Values{})
	if err != nil || opts.PlayerMode || opts.TZName != "" {
		t.Errorf("defaults = %+v, %v", opts, err)
	}

	opts, err = s.CalendarOptions(values("mode", "player"))
	if err != nil {
		t.Fatalf("player mode: %v", err)
	}
	if !opts.PlayerMode || opts.Prep != 60*time.Minute {
		t.Errorf("player defaults = %+v", opts)
	}

	opts, err = s.CalendarOptions(values("mode", "player", "prep", "45", "tz", "Asia/Jerusalem"))
	if err != nil {
		t.Fatalf("player with prep+tz: %v", err)
	}
	if opts.Prep != 45*time.Minute || opts.TZName != "Asia/Jerusalem" || opts.Location == nil {
		t.Errorf("opts = %+v", opts)
	}

	for name, q := range map[string]url.Values{
		"bad mode":            values("mode", "coach"),
		"prep out of range":   values("mode", "player", "prep", "241"),
		"prep without player": values("prep", "30"),
		"unknown tz":          values("tz", "Mars/Olympus"),
	} {
		if _, err := s.CalendarOptions(q); err == nil {
			t.Errorf("%s: expected error", name)
		} else {
			var inv *InvalidFilterError
			if !errors.As(err, &inv) {
				t.Errorf("%s: err = %v, want *InvalidFilterError", name, err)
			}
		}
	}
}

func TestTeamsForGroupSortsHebrewFirst(t *testing.T) {
	st := &fakeStore{teams: []model.Team{
		{ID: "T1", Name: "Galil Elion"},
		{ID: "T2", Name: "הפועל תל אביב"},
		{ID: "T3", Name: "Bnei Herzliya"},
		{ID: "T4", Name: "מכבי חיפה"},
	}}
	s := newService(st)

	teams, err := s.TeamsForGroup(context.Background(), "G17")
	if err != nil {
		t.Fatalf("TeamsForGroup: %v", err)
	}
	got := make([]string, len(teams))
	for i, tm := range teams {
		got[i] = tm.ID
	}
	want := []string{"T2", "T4", "T3", "T1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	// Re-sorting the result is a no-op: the order is total and stable.
	again := append([]model.Team(nil), teams...)
	SortTeams(again)
	for i := range teams {
		if teams[i].ID != again[i].ID {
			t.Fatalf("sort not reproducible at %d", i)
		}
	}

	if _, err := s.TeamsForGroup(context.Background(), ""); err == nil {
		t.Error("empty group_id must be rejected")
	}
}
