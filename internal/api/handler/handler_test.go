package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/cache"
	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/scrape"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeStore struct {
	seasons   []model.Season
	comps     []model.Competition
	teams     []model.Team
	matches   []model.Match
	standings []model.Standing
	meta      map[string]string
	findErr   error
	healthErr error
}

func (f *fakeStore) ListSeasons(ctx context.Context) ([]model.Season, error) {
	return f.seasons, nil
}

func (f *fakeStore) ListCompetitions(ctx context.Context, seasonID string) ([]model.Competition, error) {
	return f.comps, nil
}

func (f *fakeStore) ListGroups(ctx context.Context, seasonID string) ([]model.Group, error) {
	return nil, nil
}

func (f *fakeStore) ListTeams(ctx context.Context, groupID string) ([]model.Team, error) {
	return f.teams, nil
}

func (f *fakeStore) FindMatches(ctx context.Context, _ store.MatchFilter) ([]model.Match, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.matches, nil
}

func (f *fakeStore) Standings(ctx context.Context, groupID string) ([]model.Standing, error) {
	return f.standings, nil
}

func (f *fakeStore) BulkReplace(ctx context.Context, snap model.Snapshot) error { return nil }

func (f *fakeStore) GetMetadata(ctx context.Context, key string) (string, error) {
	if v, ok := f.meta[key]; ok {
		return v, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeStore) SetMetadata(ctx context.Context, key, value string) error {
	if f.meta == nil {
		f.meta = make(map[string]string)
	}
	f.meta[key] = value
	return nil
}

func (f *fakeStore) Stats(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"matches": int64(len(f.matches)), "seasons": int64(len(f.seasons))}, nil
}

func (f *fakeStore) SizeBytes(ctx context.Context) (int64, error) { return 0, store.ErrSizeUnknown }
func (f *fakeStore) ClearAll(ctx context.Context) error           { return nil }
func (f *fakeStore) Vacuum(ctx context.Context) error             { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error        { return f.healthErr }
func (f *fakeStore) Close() error                                 { return nil }

type fakeRunner struct {
	runs atomic.Int32
}

func (r *fakeRunner) Run(ctx context.Context) (*scrape.Result, error) {
	r.runs.Add(1)
	return &scrape.Result{}, nil
}

func (r *fakeRunner) Progress() scrape.Progress { return scrape.Progress{} }

func newTestHandler(t *testing.T, st *fakeStore) (*Handler, *refresh.Controller, *fakeRunner) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := &fakeRunner{}
	ctrl := refresh.New(context.Background(), runner, st, time.Hour, 300*time.Second, logger)
	cfg := &config.Config{
		CalendarHost:  "ibasketcal.local",
		EventDuration: 2 * time.Hour,
	}
	return New(st, cache.New(true), ctrl, cfg), ctrl, runner
}

func seededStore() *fakeStore {
	return &fakeStore{
		seasons: []model.Season{{ID: "S1", Name: "2025-2026"}},
		matches: []model.Match{{
			ID: "M1", SeasonID: "S1", GroupID: "G17",
			CompetitionName: "Winner League", GroupName: model.RegularGroupName,
			HomeTeamName: "Hapoel", AwayTeamName: "Maccabi",
			Date:   time.Date(2025, 11, 4, 18, 30, 0, 0, time.UTC),
			Status: model.StatusNotStarted,
		}},
	}
}

// --------------------------------------------------------------------------
// JSON read endpoints
// --------------------------------------------------------------------------

func TestGetSeasonsCachesAndHonorsETag(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetSeasons(rec, httptest.NewRequest(http.MethodGet, "/api/seasons", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	var seasons []model.Season
	if err := json.Unmarshal(rec.Body.Bytes(), &seasons); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(seasons) != 1 || seasons[0].ID != "S1" {
		t.Errorf("seasons = %+v", seasons)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/seasons", nil)
	req.Header.Set("If-None-Match", etag)
	h.GetSeasons(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetSeasons(rec, httptest.NewRequest(http.MethodGet, "/api/seasons", nil))
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
}

func TestGetMatchesRejectsUnknownStatus(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetMatches(rec, httptest.NewRequest(http.MethodGet, "/api/matches?status=PAUSED", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "INVALID_FILTER" {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Detail, "status") {
		t.Errorf("detail %q does not name the parameter", resp.Error.Detail)
	}
}

func TestStoreFailureMapsToServiceUnavailable(t *testing.T) {
	st := seededStore()
	st.findErr = context.DeadlineExceeded
	h, _, _ := newTestHandler(t, st)

	rec := httptest.NewRecorder()
	h.GetMatches(rec, httptest.NewRequest(http.MethodGet, "/api/matches", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "STORE_UNAVAILABLE") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetStandingsRequiresGroupID(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetStandings(rec, httptest.NewRequest(http.MethodGet, "/api/standings", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// --------------------------------------------------------------------------
// Refresh endpoints
// --------------------------------------------------------------------------

func TestPostRefreshStartsThenCoolsDown(t *testing.T) {
	h, ctrl, runner := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.PostRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"started"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.AwaitIdle(ctx); err != nil {
		t.Fatalf("await idle: %v", err)
	}
	if runner.runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs.Load())
	}

	rec = httptest.NewRecorder()
	h.PostRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), `"rate_limited"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestGetRefreshStatusIdle(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetRefreshStatus(rec, httptest.NewRequest(http.MethodGet, "/api/refresh-status", nil))

	var st refresh.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.IsScraping {
		t.Error("idle controller must not report scraping")
	}
	if !st.Stale {
		t.Error("never-scraped store must be stale")
	}
}

func TestGetCacheInfoShape(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetCacheInfo(rec, httptest.NewRequest(http.MethodGet, "/api/cache-info", nil))

	var info map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["exists"] != true {
		t.Errorf("exists = %v", info["exists"])
	}
	if info["databaseSizeBytes"] != nil {
		t.Errorf("size must be null when unknown, got %v", info["databaseSizeBytes"])
	}
	if _, ok := info["stats"].(map[string]any); !ok {
		t.Errorf("stats missing: %v", info)
	}
}

// --------------------------------------------------------------------------
// Calendar endpoint
// --------------------------------------------------------------------------

func TestGetCalendarHeadersAndBody(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetCalendar(rec, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/calendar; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="basketball.ics"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n") {
		t.Error("body is not a calendar")
	}
	if !strings.Contains(body, "UID:M1@ibasketcal.local") {
		t.Error("event missing from feed")
	}
}

func TestGetCalendarRejectsBadPrep(t *testing.T) {
	h, _, _ := newTestHandler(t, seededStore())

	rec := httptest.NewRecorder()
	h.GetCalendar(rec, httptest.NewRequest(http.MethodGet, "/calendar.ics?prep=30", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("prep without player mode: status = %d, want 400", rec.Code)
	}
}

func TestGetCalendarColdStartTriggersRefresh(t *testing.T) {
	h, ctrl, runner := newTestHandler(t, &fakeStore{})

	rec := httptest.NewRecorder()
	h.GetCalendar(rec, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("cold start must still serve a calendar, status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "BEGIN:VEVENT") {
		t.Error("empty store must yield a zero-event calendar")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.AwaitIdle(ctx); err != nil {
		t.Fatalf("await idle: %v", err)
	}
	if runner.runs.Load() != 1 {
		t.Errorf("runs = %d, want 1 (auto refresh)", runner.runs.Load())
	}
}

func TestHealthCheckDBUnavailable(t *testing.T) {
	st := seededStore()
	st.healthErr = context.DeadlineExceeded
	h, _, _ := newTestHandler(t, st)

	rec := httptest.NewRecorder()
	h.HealthCheckDB(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
