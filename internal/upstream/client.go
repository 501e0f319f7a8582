// Package upstream is the typed client for the NBN23 swish widget API.
//
// The API refuses requests without the Authorization header captured from
// the widget page and the widget's Origin, so every call carries both. The
// client never acquires tokens itself; callers inject one per call.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxAttempts bounds retries on 5xx and transport failures.
	maxAttempts = 3

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client is the shared HTTP client for all swish endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	origin     string
	projectKey string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a swish API client. requestsPerSecond paces outbound
// calls so a full scrape stays polite to the upstream.
func NewClient(baseURL, origin, projectKey string, requestsPerSecond float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 4
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		origin:     origin,
		projectKey: projectKey,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger,
	}
}

// --------------------------------------------------------------------------
// Response rows — upstream shapes with the raw payload preserved
// --------------------------------------------------------------------------

// SeasonRow is one element of GET /seasons. The upstream keys seasons by
// "_id", unlike every other entity.
type SeasonRow struct {
	ID        string          `json:"_id"`
	Name      string          `json:"name"`
	StartDate *time.Time      `json:"startDate"`
	EndDate   *time.Time      `json:"endDate"`
	Raw       json.RawMessage `json:"-"`
}

// GroupRow is a bracket nested inside a competition.
type GroupRow struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Order int             `json:"order"`
	Type  string          `json:"type"`
	Raw   json.RawMessage `json:"-"`
}

// CompetitionRow is one element of GET /competitions.
type CompetitionRow struct {
	ID     string
	Name   string
	Groups []GroupRow
	Raw    json.RawMessage
}

// TeamRow is a match participant. ID is empty for unpaired playoff slots.
type TeamRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// ScoreTotalRow is one team's total inside a score object.
type ScoreTotalRow struct {
	TeamID string `json:"teamId"`
	Total  int    `json:"total"`
}

// ScoreRow is the score object attached to finished (and live) matches.
type ScoreRow struct {
	Totals []ScoreTotalRow `json:"totals"`
}

// CourtRow is the venue of a match.
type CourtRow struct {
	Place   string `json:"place"`
	Address string `json:"address"`
	Town    string `json:"town"`
}

// MatchRow is a match as it appears inside a calendar round.
type MatchRow struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Status   string          `json:"status"`
	HomeTeam TeamRow         `json:"homeTeam"`
	AwayTeam TeamRow         `json:"awayTeam"`
	Score    *ScoreRow       `json:"score"`
	Court    *CourtRow       `json:"court"`
	Raw      json.RawMessage `json:"-"`
}

// HomeScore returns the home team's total. Totals are matched by team ID
// with a positional fallback because the upstream omits teamId on some
// historical rows.
func (m *MatchRow) HomeScore() *int {
	return m.scoreFor(m.HomeTeam.ID, 0)
}

// AwayScore returns the away team's total.
func (m *MatchRow) AwayScore() *int {
	return m.scoreFor(m.AwayTeam.ID, 1)
}

func (m *MatchRow) scoreFor(teamID string, position int) *int {
	if m.Score == nil || len(m.Score.Totals) == 0 {
		return nil
	}
	if teamID != "" {
		for _, t := range m.Score.Totals {
			if t.TeamID == teamID {
				v := t.Total
				return &v
			}
		}
	}
	if position < len(m.Score.Totals) {
		v := m.Score.Totals[position].Total
		return &v
	}
	return nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Seasons fetches every season the federation has published.
func (c *Client) Seasons(ctx context.Context, token string) ([]SeasonRow, error) {
	body, err := c.get(ctx, token, "/seasons", nil)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode seasons: %w", err)
	}
	seasons := make([]SeasonRow, 0, len(raws))
	for _, r := range raws {
		var s SeasonRow
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("decode season: %w", err)
		}
		s.Raw = r
		seasons = append(seasons, s)
	}
	return seasons, nil
}

// Competitions fetches a season's competitions with their nested groups.
func (c *Client) Competitions(ctx context.Context, token, seasonID string) ([]CompetitionRow, error) {
	body, err := c.get(ctx, token, "/competitions", url.Values{"seasonId": {seasonID}})
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode competitions: %w", err)
	}
	comps := make([]CompetitionRow, 0, len(raws))
	for _, r := range raws {
		var shape struct {
			ID     string            `json:"id"`
			Name   string            `json:"name"`
			Groups []json.RawMessage `json:"groups"`
		}
		if err := json.Unmarshal(r, &shape); err != nil {
			return nil, fmt.Errorf("decode competition: %w", err)
		}
		comp := CompetitionRow{ID: shape.ID, Name: shape.Name, Raw: r}
		for _, gr := range shape.Groups {
			var g GroupRow
			if err := json.Unmarshal(gr, &g); err != nil {
				return nil, fmt.Errorf("decode group: %w", err)
			}
			g.Raw = gr
			comp.Groups = append(comp.Groups, g)
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// Calendar fetches a group's fixture list. The upstream nests matches in
// rounds; the rounds carry nothing the service needs, so the result is the
// flat match list.
func (c *Client) Calendar(ctx context.Context, token, groupID string) ([]MatchRow, error) {
	body, err := c.get(ctx, token, "/calendar", url.Values{"groupId": {groupID}})
	if err != nil {
		return nil, err
	}
	var cal struct {
		Rounds []struct {
			Matches []json.RawMessage `json:"matches"`
		} `json:"rounds"`
	}
	if err := json.Unmarshal(body, &cal); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	var matches []MatchRow
	for _, round := range cal.Rounds {
		for _, r := range round.Matches {
			var m MatchRow
			if err := json.Unmarshal(r, &m); err != nil {
				return nil, fmt.Errorf("decode match: %w", err)
			}
			m.Raw = r
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// Standings fetches a group's standings rows. Rows are stored verbatim and
// never interpreted, so they stay raw here.
func (c *Client) Standings(ctx context.Context, token, groupID string) ([]json.RawMessage, error) {
	body, err := c.get(ctx, token, "/standings", url.Values{"groupId": {groupID}})
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode standings: %w", err)
	}
	return rows, nil
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// get performs a rate-limited authenticated GET. 401 maps to ErrAuthExpired,
// other 4xx to *RejectedError; 5xx and transport failures are retried with
// exponential backoff and surface as *UnreachableError when exhausted.
func (c *Client) get(ctx context.Context, token, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("projectKey", c.projectKey)
	u := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &UnreachableError{Err: ctx.Err()}
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Accept", "*/*")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request %s: %w", path, err)
			c.logger.Warn("upstream request failed", slog.String("path", path), slog.Int("attempt", attempt+1), slog.Any("error", err))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response body: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrAuthExpired
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("swish %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
			c.logger.Warn("upstream server error", slog.String("path", path), slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1))
			continue
		default:
			return nil, &RejectedError{Status: resp.StatusCode, Body: truncate(body, 200)}
		}
	}
	return nil, &UnreachableError{Err: lastErr}
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
