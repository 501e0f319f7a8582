package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/store"
	"github.com/ibasketcal/ibasketcal/internal/upstream"
)

type fakeTokens struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (f *fakeTokens) AcquireToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.tokens) {
		return "", errors.New("no more tokens")
	}
	tok := f.tokens[f.calls]
	f.calls++
	return tok, nil
}

// fakeFetcher serves a two-season graph and can simulate a token expiring
// for specific group IDs until a renewed token arrives.
type fakeFetcher struct {
	mu           sync.Mutex
	expiredToken string
	failGroups   map[string]bool // groups that 401 on the expired token
}

func (f *fakeFetcher) rejects(token, groupID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failGroups[groupID] && token == f.expiredToken
}

func (f *fakeFetcher) Seasons(ctx context.Context, token string) ([]upstream.SeasonRow, error) {
	return []upstream.SeasonRow{
		{ID: "S1", Name: "2025/2026", Raw: json.RawMessage(`{"_id":"S1"}`)},
		{ID: "S2", Name: "2024/2025", Raw: json.RawMessage(`{"_id":"S2"}`)},
	}, nil
}

func (f *fakeFetcher) Competitions(ctx context.Context, token, seasonID string) ([]upstream.CompetitionRow, error) {
	if seasonID != "S1" {
		return nil, nil
	}
	return []upstream.CompetitionRow{
		{ID: "C1", Name: "ליגת העל", Groups: []upstream.GroupRow{
			{ID: "G17", Name: "<regular>", Type: "LEAGUE"},
			{ID: "G18", Name: "Playoff", Type: "PLAYOFF"},
		}},
	}, nil
}

func (f *fakeFetcher) Calendar(ctx context.Context, token, groupID string) ([]upstream.MatchRow, error) {
	if f.rejects(token, groupID) {
		return nil, upstream.ErrAuthExpired
	}
	if groupID != "G17" {
		return nil, nil
	}
	return []upstream.MatchRow{{
		ID:       "M1",
		Date:     time.Date(2025, 11, 4, 18, 30, 0, 0, time.UTC),
		Status:   model.StatusClosed,
		HomeTeam: upstream.TeamRow{ID: "T7", Name: "Hapoel"},
		AwayTeam: upstream.TeamRow{ID: "T8", Name: "Maccabi"},
		Score: &upstream.ScoreRow{Totals: []upstream.ScoreTotalRow{
			{TeamID: "T7", Total: 88}, {TeamID: "T8", Total: 81},
		}},
		Court: &upstream.CourtRow{Place: "Drive in Arena", Town: "Tel Aviv"},
		Raw:   json.RawMessage(`{"id":"M1"}`),
	}}, nil
}

func (f *fakeFetcher) Standings(ctx context.Context, token, groupID string) ([]json.RawMessage, error) {
	if f.rejects(token, groupID) {
		return nil, upstream.ErrAuthExpired
	}
	if groupID != "G17" {
		return nil, nil
	}
	return []json.RawMessage{json.RawMessage(`{"teamId":"T7","position":1}`)}, nil
}

type fakeStore struct {
	store.Store
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (f *fakeStore) BulkReplace(ctx context.Context, snap model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}

func TestRunBuildsFullSnapshot(t *testing.T) {
	st := &fakeStore{}
	s := New(&fakeFetcher{}, &fakeTokens{tokens: []string{"tok-1"}}, st, 4, time.Minute, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.snaps) != 1 {
		t.Fatalf("got %d commits, want 1", len(st.snaps))
	}
	snap := st.snaps[0]
	if len(snap.Seasons) != 2 || len(snap.Competitions) != 1 || len(snap.Groups) != 2 {
		t.Errorf("graph counts: seasons=%d competitions=%d groups=%d",
			len(snap.Seasons), len(snap.Competitions), len(snap.Groups))
	}
	if len(snap.Matches) != 1 || len(snap.Teams) != 2 || len(snap.Standings) != 1 {
		t.Errorf("leaf counts: matches=%d teams=%d standings=%d",
			len(snap.Matches), len(snap.Teams), len(snap.Standings))
	}

	m := snap.Matches[0]
	if m.CompetitionName != "ליגת העל" || m.GroupName != "<regular>" {
		t.Errorf("denormalized names not set: %+v", m)
	}
	if m.SeasonID != "S1" || m.GroupID != "G17" {
		t.Errorf("match keys: season=%s group=%s", m.SeasonID, m.GroupID)
	}
	if m.HomeScore == nil || *m.HomeScore != 88 || m.AwayScore == nil || *m.AwayScore != 81 {
		t.Errorf("scores not extracted: %+v", m)
	}
	if m.Venue != "Drive in Arena" || m.VenueAddress != "Tel Aviv" {
		t.Errorf("venue: %q / %q", m.Venue, m.VenueAddress)
	}

	if res.TokenRenewals != 0 {
		t.Errorf("token renewals = %d, want 0", res.TokenRenewals)
	}
	if p := s.Progress(); p.GroupsDone != 2 || p.GroupsTotal != 2 {
		t.Errorf("progress = %+v", p)
	}
}

func TestRunRenewsTokenOnceOn401(t *testing.T) {
	st := &fakeStore{}
	fetcher := &fakeFetcher{expiredToken: "tok-1", failGroups: map[string]bool{"G17": true}}
	tokens := &fakeTokens{tokens: []string{"tok-1", "tok-2"}}
	s := New(fetcher, tokens, st, 4, time.Minute, nil)

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TokenRenewals != 1 {
		t.Errorf("token renewals = %d, want 1", res.TokenRenewals)
	}
	if tokens.calls != 2 {
		t.Errorf("acquisitions = %d, want 2", tokens.calls)
	}
	if len(st.snaps) != 1 || len(st.snaps[0].Matches) != 1 {
		t.Fatalf("G17 matches missing after renewal: %+v", st.snaps)
	}
}

func TestRunFailsOnSecond401(t *testing.T) {
	st := &fakeStore{}
	// Both tokens are rejected for G17: renewal happens once, then the
	// second expiry must fail the scrape without a commit.
	fetcher := &fakeFetcher{expiredToken: "tok-bad", failGroups: map[string]bool{"G17": true}}
	tokens := &fakeTokens{tokens: []string{"tok-bad", "tok-bad"}}
	s := New(fetcher, tokens, st, 4, time.Minute, nil)

	_, err := s.Run(context.Background())
	if !errors.Is(err, upstream.ErrAuthExpired) {
		t.Fatalf("err = %v, want wrapped ErrAuthExpired", err)
	}
	if len(st.snaps) != 0 {
		t.Error("failed scrape must not commit a snapshot")
	}
}

func TestWorkerClamp(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 4}, {1, 4}, {6, 6}, {8, 8}, {32, 8},
	}
	for _, tt := range tests {
		s := New(&fakeFetcher{}, &fakeTokens{}, &fakeStore{}, tt.in, time.Minute, nil)
		if s.workers != tt.want {
			t.Errorf("workers(%d) = %d, want %d", tt.in, s.workers, tt.want)
		}
	}
}
