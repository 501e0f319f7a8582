package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/store"
	"github.com/ibasketcal/ibasketcal/internal/upstream"
)

// Worker pool bounds. The upstream tolerates a handful of parallel calendar
// fetches; more buys nothing once the politeness limiter kicks in.
const (
	minWorkers = 4
	maxWorkers = 8
)

// TokenSource provides bearer tokens. Satisfied by *harvest.Harvester.
type TokenSource interface {
	AcquireToken(ctx context.Context) (string, error)
}

// Fetcher is the slice of the upstream client the scraper consumes.
type Fetcher interface {
	Seasons(ctx context.Context, token string) ([]upstream.SeasonRow, error)
	Competitions(ctx context.Context, token, seasonID string) ([]upstream.CompetitionRow, error)
	Calendar(ctx context.Context, token, groupID string) ([]upstream.MatchRow, error)
	Standings(ctx context.Context, token, groupID string) ([]json.RawMessage, error)
}

// Scraper performs one full pass over the upstream graph. Safe for a single
// Run at a time; the refresh controller enforces that.
type Scraper struct {
	fetcher Fetcher
	tokens  TokenSource
	store   store.Store
	workers int
	timeout time.Duration
	logger  *slog.Logger

	progressMu sync.Mutex
	progress   Progress

	// Token state shared by the workers. One renewal is allowed per run;
	// a second upstream 401 after that fails the scrape.
	tokenMu  sync.Mutex
	token    string
	renewed  bool
	renewals int
}

// New creates a scraper. workers is clamped to [4, 8]; timeout bounds the
// whole run (the bulk replace itself runs to completion regardless).
func New(fetcher Fetcher, tokens TokenSource, st store.Store, workers int, timeout time.Duration, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Scraper{
		fetcher: fetcher,
		tokens:  tokens,
		store:   st,
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Progress returns a snapshot of the running scrape.
func (s *Scraper) Progress() Progress {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	return s.progress
}

// Run executes one full scrape and commits the snapshot. Partial results
// are never written: any error leaves the store untouched.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID))
	start := time.Now()
	scrapeRuns.Inc()

	res, err := s.run(ctx, logger)
	duration := time.Since(start)
	scrapeDuration.Observe(duration.Seconds())
	if err != nil {
		scrapeFailures.Inc()
		logger.Error("scrape failed", slog.Duration("duration", duration.Round(time.Second)), slog.Any("error", err))
		return nil, err
	}
	res.Duration = duration
	logger.Info("scrape complete", slog.String("summary", res.Summary()))
	return res, nil
}

// groupJob is one unit of calendar work with its denormalization context.
type groupJob struct {
	group           model.Group
	seasonName      string
	competitionName string
}

func (s *Scraper) run(ctx context.Context, logger *slog.Logger) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.resetRunState()

	tok, err := s.tokens.AcquireToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	s.setToken(tok)

	seasonRows, err := fetchWithRenewal(ctx, s, func(token string) ([]upstream.SeasonRow, error) {
		return s.fetcher.Seasons(ctx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch seasons: %w", err)
	}
	logger.Info("seasons fetched", slog.Int("count", len(seasonRows)))

	var snap model.Snapshot
	var jobs []groupJob
	for _, sr := range seasonRows {
		if sr.ID == "" {
			continue
		}
		s.setCurrentSeason(sr.Name)
		snap.Seasons = append(snap.Seasons, model.Season{
			ID: sr.ID, Name: sr.Name, StartDate: sr.StartDate, EndDate: sr.EndDate, Raw: sr.Raw,
		})

		comps, err := fetchWithRenewal(ctx, s, func(token string) ([]upstream.CompetitionRow, error) {
			return s.fetcher.Competitions(ctx, token, sr.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("fetch competitions for season %s: %w", sr.ID, err)
		}
		for _, cr := range comps {
			snap.Competitions = append(snap.Competitions, model.Competition{
				ID: cr.ID, SeasonID: sr.ID, Name: cr.Name, Raw: cr.Raw,
			})
			for _, gr := range cr.Groups {
				g := model.Group{
					ID: gr.ID, CompetitionID: cr.ID, SeasonID: sr.ID,
					Name: gr.Name, Type: gr.Type, Raw: gr.Raw,
				}
				snap.Groups = append(snap.Groups, g)
				jobs = append(jobs, groupJob{group: g, seasonName: sr.Name, competitionName: cr.Name})
			}
		}
	}
	s.setGroupsTotal(len(jobs))
	logger.Info("graph enumerated",
		slog.Int("seasons", len(snap.Seasons)),
		slog.Int("competitions", len(snap.Competitions)),
		slog.Int("groups", len(jobs)))

	matches, teams, standings, err := s.fetchGroups(ctx, jobs)
	if err != nil {
		return nil, err
	}
	snap.Matches = matches
	snap.Teams = teams
	snap.Standings = standings

	// The commit must not be cut short by the run deadline: it either
	// lands whole or rolls back on its own.
	if err := s.store.BulkReplace(context.WithoutCancel(ctx), snap); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	s.tokenMu.Lock()
	renewals := s.renewals
	s.tokenMu.Unlock()
	return &Result{
		Seasons:       len(snap.Seasons),
		Competitions:  len(snap.Competitions),
		Groups:        len(snap.Groups),
		Teams:         len(snap.Teams),
		Matches:       len(snap.Matches),
		Standings:     len(snap.Standings),
		TokenRenewals: renewals,
	}, nil
}

// fetchGroups runs the calendar/standings fetches on a bounded worker pool.
// The first error cancels the remaining work and fails the whole run.
func (s *Scraper) fetchGroups(ctx context.Context, jobs []groupJob) ([]model.Match, []model.Team, []model.Standing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan groupJob, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	workers := s.workers
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		matches   []model.Match
		standings []model.Standing
		teamsByID = make(map[string]model.Team)
		firstErr  error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				if ctx.Err() != nil {
					return
				}

				rows, err := fetchWithRenewal(ctx, s, func(token string) ([]upstream.MatchRow, error) {
					return s.fetcher.Calendar(ctx, token, job.group.ID)
				})
				if err != nil {
					fail(fmt.Errorf("fetch calendar for group %s: %w", job.group.ID, err))
					return
				}
				standingRows, err := fetchWithRenewal(ctx, s, func(token string) ([]json.RawMessage, error) {
					return s.fetcher.Standings(ctx, token, job.group.ID)
				})
				if err != nil {
					fail(fmt.Errorf("fetch standings for group %s: %w", job.group.ID, err))
					return
				}

				mu.Lock()
				for _, row := range rows {
					m := toMatch(row, job)
					matches = append(matches, m)
					collectTeam(teamsByID, row.HomeTeam)
					collectTeam(teamsByID, row.AwayTeam)
				}
				standings = append(standings, toStandings(standingRows, job.group.ID)...)
				mu.Unlock()

				s.groupDone(job.seasonName)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("scrape aborted: %w", err)
	}

	teams := make([]model.Team, 0, len(teamsByID))
	for _, t := range teamsByID {
		teams = append(teams, t)
	}
	return matches, teams, standings, nil
}

// --------------------------------------------------------------------------
// Token renewal
// --------------------------------------------------------------------------

// fetchWithRenewal performs fetch with the current token; on the first
// ErrAuthExpired of the run it acquires one fresh token (shared across all
// workers) and retries once. A second expiry propagates and fails the run.
func fetchWithRenewal[T any](ctx context.Context, s *Scraper, fetch func(token string) (T, error)) (T, error) {
	tok := s.currentToken()
	v, err := fetch(tok)
	if !errors.Is(err, upstream.ErrAuthExpired) {
		return v, err
	}

	fresh, rerr := s.renewAfter(ctx, tok)
	if rerr != nil {
		var zero T
		return zero, rerr
	}
	return fetch(fresh)
}

func (s *Scraper) currentToken() string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	return s.token
}

func (s *Scraper) setToken(tok string) {
	s.tokenMu.Lock()
	s.token = tok
	s.tokenMu.Unlock()
}

// renewAfter exchanges a stale token for a fresh one. If another worker
// already renewed, the newer token is returned without a second browser
// launch. Only one renewal is permitted per run.
func (s *Scraper) renewAfter(ctx context.Context, stale string) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.token != stale {
		return s.token, nil
	}
	if s.renewed {
		return "", fmt.Errorf("token expired again after renewal: %w", upstream.ErrAuthExpired)
	}

	s.logger.Info("upstream token expired mid-scrape, renewing")
	tok, err := s.tokens.AcquireToken(ctx)
	if err != nil {
		return "", fmt.Errorf("renew token: %w", err)
	}
	s.token = tok
	s.renewed = true
	s.renewals++
	tokenRenewals.Inc()
	return tok, nil
}

// --------------------------------------------------------------------------
// Progress bookkeeping
// --------------------------------------------------------------------------

func (s *Scraper) resetRunState() {
	s.progressMu.Lock()
	s.progress = Progress{}
	s.progressMu.Unlock()

	s.tokenMu.Lock()
	s.token = ""
	s.renewed = false
	s.renewals = 0
	s.tokenMu.Unlock()
}

func (s *Scraper) setCurrentSeason(name string) {
	s.progressMu.Lock()
	s.progress.CurrentSeason = name
	s.progressMu.Unlock()
}

func (s *Scraper) setGroupsTotal(n int) {
	s.progressMu.Lock()
	s.progress.GroupsTotal = n
	s.progressMu.Unlock()
}

func (s *Scraper) groupDone(seasonName string) {
	s.progressMu.Lock()
	s.progress.GroupsDone++
	s.progress.CurrentSeason = seasonName
	s.progressMu.Unlock()
}

// --------------------------------------------------------------------------
// Row conversion
// --------------------------------------------------------------------------

// toMatch flattens a calendar row into a match, denormalizing the
// competition and group names for index locality on the read side.
func toMatch(row upstream.MatchRow, job groupJob) model.Match {
	status := row.Status
	if status == "" {
		status = model.StatusNotStarted
	}
	m := model.Match{
		ID:              row.ID,
		SeasonID:        job.group.SeasonID,
		CompetitionID:   job.group.CompetitionID,
		CompetitionName: job.competitionName,
		GroupID:         job.group.ID,
		GroupName:       job.group.Name,
		HomeTeamID:      row.HomeTeam.ID,
		HomeTeamName:    row.HomeTeam.Name,
		AwayTeamID:      row.AwayTeam.ID,
		AwayTeamName:    row.AwayTeam.Name,
		Date:            row.Date.UTC(),
		Status:          status,
		HomeScore:       row.HomeScore(),
		AwayScore:       row.AwayScore(),
		Raw:             row.Raw,
	}
	if row.Court != nil {
		m.Venue = row.Court.Place
		m.VenueAddress = joinNonEmpty(", ", row.Court.Town, row.Court.Address)
	}
	return m
}

func collectTeam(byID map[string]model.Team, t upstream.TeamRow) {
	if t.ID == "" {
		return
	}
	byID[t.ID] = model.Team{ID: t.ID, Name: t.Name, LogoURL: t.Logo}
}

// toStandings decodes whatever identifying fields the raw rows carry; the
// payload itself is stored verbatim.
func toStandings(rows []json.RawMessage, groupID string) []model.Standing {
	standings := make([]model.Standing, 0, len(rows))
	for i, r := range rows {
		var shape struct {
			TeamID   string `json:"teamId"`
			Position int    `json:"position"`
			Team     struct {
				ID string `json:"id"`
			} `json:"team"`
		}
		_ = json.Unmarshal(r, &shape)
		teamID := shape.TeamID
		if teamID == "" {
			teamID = shape.Team.ID
		}
		if teamID == "" {
			teamID = fmt.Sprintf("row-%d", i)
		}
		position := shape.Position
		if position == 0 {
			position = i + 1
		}
		standings = append(standings, model.Standing{
			GroupID: groupID, TeamID: teamID, Position: position, Raw: r,
		})
	}
	return standings
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
