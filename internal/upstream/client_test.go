package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "https://ibasketball.co.il", "ibba", 1000, nil)
}

func TestSeasonsDecodesUnderscoreID(t *testing.T) {
	var gotAuth, gotOrigin, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrigin = r.Header.Get("Origin")
		gotKey = r.URL.Query().Get("projectKey")
		w.Write([]byte(`[{"_id":"S1","name":"2025/2026"},{"_id":"S2","name":"2024/2025"}]`))
	})

	seasons, err := c.Seasons(context.Background(), "Bearer tok-1")
	if err != nil {
		t.Fatalf("Seasons: %v", err)
	}
	if len(seasons) != 2 || seasons[0].ID != "S1" || seasons[0].Name != "2025/2026" {
		t.Fatalf("unexpected seasons: %+v", seasons)
	}
	if len(seasons[0].Raw) == 0 {
		t.Error("season raw payload not preserved")
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want token verbatim", gotAuth)
	}
	if gotOrigin != "https://ibasketball.co.il" {
		t.Errorf("Origin = %q", gotOrigin)
	}
	if gotKey != "ibba" {
		t.Errorf("projectKey = %q", gotKey)
	}
}

func TestCalendarFlattensRounds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("groupId") != "G17" {
			t.Errorf("groupId = %q", r.URL.Query().Get("groupId"))
		}
		w.Write([]byte(`{"rounds":[
			{"matches":[{"id":"M1","date":"2025-11-04T18:30:00Z","status":"CLOSED",
				"homeTeam":{"id":"T7","name":"Hapoel"},"awayTeam":{"id":"T8","name":"Maccabi"},
				"score":{"totals":[{"teamId":"T7","total":88},{"teamId":"T8","total":81}]}}]},
			{"matches":[{"id":"M2","date":"2025-11-11T19:00:00Z","status":"NOT_STARTED",
				"homeTeam":{"id":"T8","name":"Maccabi"},"awayTeam":{"id":"T7","name":"Hapoel"}}]}
		]}`))
	})

	matches, err := c.Calendar(context.Background(), "tok", "G17")
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if hs := matches[0].HomeScore(); hs == nil || *hs != 88 {
		t.Errorf("home score = %v, want 88", hs)
	}
	if as := matches[0].AwayScore(); as == nil || *as != 81 {
		t.Errorf("away score = %v, want 81", as)
	}
	if matches[1].HomeScore() != nil {
		t.Error("unplayed match should have no score")
	}
}

func TestScorePositionalFallback(t *testing.T) {
	m := MatchRow{
		HomeTeam: TeamRow{ID: "T1"},
		AwayTeam: TeamRow{ID: "T2"},
		Score:    &ScoreRow{Totals: []ScoreTotalRow{{Total: 70}, {Total: 65}}},
	}
	if hs := m.HomeScore(); hs == nil || *hs != 70 {
		t.Errorf("home fallback = %v, want 70", hs)
	}
	if as := m.AwayScore(); as == nil || *as != 65 {
		t.Errorf("away fallback = %v, want 65", as)
	}
}

func TestUnauthorizedMapsToAuthExpired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Seasons(context.Background(), "stale")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
}

func TestClientErrorMapsToRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no such group"}`))
	})
	_, err := c.Calendar(context.Background(), "tok", "nope")
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *RejectedError", err)
	}
	if rejected.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rejected.Status)
	}
}

func TestServerErrorsRetriedThenUnreachable(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Seasons(context.Background(), "tok")
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("err = %v, want *UnreachableError", err)
	}
	if calls != maxAttempts {
		t.Errorf("made %d attempts, want %d", calls, maxAttempts)
	}
}

func TestServerErrorRecoversMidRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	})
	seasons, err := c.Seasons(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Seasons after retries: %v", err)
	}
	if len(seasons) != 0 {
		t.Errorf("got %d seasons, want 0", len(seasons))
	}
}
