package handler

import (
	"context"
	"net/http"

	"github.com/ibasketcal/ibasketcal/internal/ics"
	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// GetCalendar serves the filtered ICS feed.
// @Summary Calendar feed
// @Description Renders the matching fixtures as an RFC 5545 iCalendar document. Accepts the match filter parameters plus mode, prep, and tz.
// @Tags calendar
// @Produce text/calendar
// @Param season query string false "Season ID or name substring"
// @Param competition query string false "Competition name substring"
// @Param group_id query string false "Group ID (overrides competition)"
// @Param team query string false "Team name substring, either side"
// @Param team_id query string false "Team ID (overrides team)"
// @Param status query string false "Match status" Enums(NOT_STARTED, LIVE, CLOSED)
// @Param days query int false "Only matches up to N days ahead"
// @Param past_days query int false "Only matches up to N days back"
// @Param mode query string false "Calendar mode" Enums(fan, player)
// @Param prep query int false "Player-mode warm-up shift in minutes [0, 240]"
// @Param tz query string false "IANA time zone for local-time output"
// @Success 200 {string} string "text/calendar"
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /calendar.ics [get]
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f, err := h.query.MatchFilter(ctx, q)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	calOpts, err := h.query.CalendarOptions(q)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	matches, err := h.store.FindMatches(ctx, f)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	seasons, err := h.store.ListSeasons(ctx)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	seasonNames := make(map[string]string, len(seasons))
	for _, s := range seasons {
		seasonNames[s.ID] = s.Name
	}

	// Cold start: an untouched store serves an empty calendar right away
	// and kicks off the first scrape in the background.
	if len(matches) == 0 && len(seasons) == 0 && !h.refresh.IsScraping() {
		if st := h.refresh.Status(ctx); st.LastCompletedAt == nil {
			h.refresh.Request(false)
		}
	}

	opts := ics.Options{
		Host:             h.cfg.CalendarHost,
		CompetitionLabel: h.competitionLabel(ctx, q.Get("competition"), f),
		TeamLabel:        teamLabel(q.Get("team"), f, matches),
		EventDuration:    h.cfg.EventDuration,
		PlayerMode:       calOpts.PlayerMode,
		Prep:             calOpts.Prep,
		TZName:           calOpts.TZName,
		Location:         calOpts.Location,
		SeasonNames:      seasonNames,
	}
	body := ics.Build(matches, opts)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="basketball.ics"`)
	w.Header().Set("Cache-Control", "public, max-age=900")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// competitionLabel names the competition axis of the feed for the calendar
// display name. The raw parameter wins; a group_id filter is resolved to
// its competition's display name, best effort.
func (h *Handler) competitionLabel(ctx context.Context, param string, f store.MatchFilter) string {
	if param != "" {
		return param
	}
	if f.GroupID == "" {
		return ""
	}
	comps, err := h.store.ListCompetitions(ctx, f.SeasonID)
	if err != nil {
		return ""
	}
	for _, c := range comps {
		for _, g := range c.Groups {
			if g.ID == f.GroupID {
				return model.DisplayGroupName(c.Name, g.Name)
			}
		}
	}
	return ""
}

// teamLabel names the team axis: the raw parameter, or the team_id's name
// as seen in the selected matches.
func teamLabel(param string, f store.MatchFilter, matches []model.Match) string {
	if param != "" {
		return param
	}
	if f.TeamID == "" {
		return ""
	}
	for _, m := range matches {
		if m.HomeTeamID == f.TeamID && m.HomeTeamName != "" {
			return m.HomeTeamName
		}
		if m.AwayTeamID == f.TeamID && m.AwayTeamName != "" {
			return m.AwayTeamName
		}
	}
	return ""
}
