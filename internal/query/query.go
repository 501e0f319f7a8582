// Package query translates HTTP-style request parameters into store filters
// and calendar options. Two filter styles are accepted at once: exact IDs
// (preferred) and backward-compatible name substrings; when both name an
// axis, the ID wins.
package query

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// Prep offset bounds for player mode, in minutes.
const (
	defaultPrepMinutes = 60
	maxPrepMinutes     = 240
)

// InvalidFilterError is a client fault: the handlers map it to HTTP 400 and
// never log it as a server error.
type InvalidFilterError struct {
	Param  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func invalidf(param, format string, args ...any) *InvalidFilterError {
	return &InvalidFilterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// CalendarOptions are the calendar-only parameters of /calendar.ics.
type CalendarOptions struct {
	PlayerMode bool
	Prep       time.Duration  // DTSTART shift, player mode only
	TZName     string         // IANA name, empty means UTC Zulu output
	Location   *time.Location // resolved TZName
}

// Service resolves read-side requests against the store.
type Service struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// MatchFilter builds a store filter from request parameters. Recognized
// keys: season, competition, group_id, team, team_id, status, days,
// past_days. Unknown keys are ignored.
func (s *Service) MatchFilter(ctx context.Context, q url.Values) (store.MatchFilter, error) {
	var f store.MatchFilter

	if groupID := q.Get("group_id"); groupID != "" {
		f.GroupID = groupID
	} else if competition := q.Get("competition"); competition != "" {
		f.CompetitionName = competition
	}

	if teamID := q.Get("team_id"); teamID != "" {
		f.TeamID = teamID
	} else if team := q.Get("team"); team != "" {
		f.TeamName = team
	}

	if season := q.Get("season"); season != "" {
		id, err := s.ResolveSeason(ctx, season)
		if err != nil {
			return store.MatchFilter{}, err
		}
		f.SeasonID = id
	}

	if status := q.Get("status"); status != "" {
		normalized := strings.ToUpper(strings.TrimSpace(status))
		switch normalized {
		case model.StatusNotStarted, model.StatusLive, model.StatusClosed:
			f.Status = normalized
		default:
			return store.MatchFilter{}, invalidf("status", "%q is not one of NOT_STARTED, LIVE, CLOSED", status)
		}
	}

	now := s.now().UTC()
	if days, ok, err := windowDays(q, "days"); err != nil {
		return store.MatchFilter{}, err
	} else if ok {
		to := now.Add(time.Duration(days) * 24 * time.Hour)
		f.DateTo = &to
	}
	if days, ok, err := windowDays(q, "past_days"); err != nil {
		return store.MatchFilter{}, err
	} else if ok {
		from := now.Add(-time.Duration(days) * 24 * time.Hour)
		f.DateFrom = &from
	}

	return f, nil
}

// ResolveSeason maps a season parameter to a season ID: exact ID first,
// then case-insensitive substring on names. Seasons arrive name-descending,
// so an ambiguous substring resolves to the newest match.
func (s *Service) ResolveSeason(ctx context.Context, param string) (string, error) {
	seasons, err := s.store.ListSeasons(ctx)
	if err != nil {
		return "", fmt.Errorf("list seasons: %w", err)
	}
	for _, sn := range seasons {
		if sn.ID == param {
			return sn.ID, nil
		}
	}
	needle := strings.ToLower(param)
	for _, sn := range seasons {
		if strings.Contains(strings.ToLower(sn.Name), needle) {
			return sn.ID, nil
		}
	}
	return "", invalidf("season", "no season matches %q", param)
}

func windowDays(q url.Values, key string) (int, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false, invalidf(key, "%q is not a non-negative integer", v)
	}
	return n, true, nil
}

// CalendarOptions validates mode, prep, and tz.
func (s *Service) CalendarOptions(q url.Values) (CalendarOptions, error) {
	var opts CalendarOptions

	switch mode := q.Get("mode"); mode {
	case "", "fan":
	case "player":
		opts.PlayerMode = true
		opts.Prep = defaultPrepMinutes * time.Minute
	default:
		return CalendarOptions{}, invalidf("mode", "%q is not one of fan, player", mode)
	}

	if prep := q.Get("prep"); prep != "" {
		if !opts.PlayerMode {
			return CalendarOptions{}, invalidf("prep", "only valid with mode=player")
		}
		n, err := strconv.Atoi(prep)
		if err != nil || n < 0 || n > maxPrepMinutes {
			return CalendarOptions{}, invalidf("prep", "%q is not an integer in [0, %d]", prep, maxPrepMinutes)
		}
		opts.Prep = time.Duration(n) * time.Minute
	}

	if tz := q.Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return CalendarOptions{}, invalidf("tz", "unknown time zone %q", tz)
		}
		opts.TZName = tz
		opts.Location = loc
	}

	return opts, nil
}

// FindMatches resolves parameters and queries the store in one step.
func (s *Service) FindMatches(ctx context.Context, q url.Values) ([]model.Match, error) {
	f, err := s.MatchFilter(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.store.FindMatches(ctx, f)
}
