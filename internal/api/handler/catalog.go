package handler

import (
	"context"
	"net/http"

	"github.com/ibasketcal/ibasketcal/internal/api/respond"
	"github.com/ibasketcal/ibasketcal/internal/cache"
	"github.com/ibasketcal/ibasketcal/internal/query"
)

// GetSeasons returns all known seasons.
// @Summary List seasons
// @Description Returns all seasons ordered by name descending (newest first).
// @Tags catalog
// @Produce json
// @Success 200 {array} model.Season
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/seasons [get]
func (h *Handler) GetSeasons(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, "seasons", cache.TTLCatalog, func(ctx context.Context) (any, error) {
		return h.store.ListSeasons(ctx)
	})
}

// GetCompetitions returns competitions with their groups.
// @Summary List competitions
// @Description Returns competitions with nested groups. Without a season parameter every season is included; each competition carries its seasonId.
// @Tags catalog
// @Produce json
// @Param season query string false "Season ID or name substring"
// @Success 200 {array} model.Competition
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/competitions [get]
func (h *Handler) GetCompetitions(w http.ResponseWriter, r *http.Request) {
	season := r.URL.Query().Get("season")
	h.writeCached(w, r, "competitions:"+season, cache.TTLCatalog, func(ctx context.Context) (any, error) {
		seasonID := ""
		if season != "" {
			id, err := h.query.ResolveSeason(ctx, season)
			if err != nil {
				return nil, err
			}
			seasonID = id
		}
		return h.store.ListCompetitions(ctx, seasonID)
	})
}

// GetTeams returns the teams of a group.
// @Summary List teams of a group
// @Description Returns the distinct participants of a group's matches, Hebrew names first, then Latin, each block collated.
// @Tags catalog
// @Produce json
// @Param group_id query string true "Group ID"
// @Success 200 {array} model.Team
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/teams [get]
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	h.writeCached(w, r, "teams:"+groupID, cache.TTLCatalog, func(ctx context.Context) (any, error) {
		return h.query.TeamsForGroup(ctx, groupID)
	})
}

// GetMatches returns filtered matches.
// @Summary List matches
// @Description Returns matches for the given filters, ordered by date ascending. ID filters win over name filters on the same axis.
// @Tags matches
// @Produce json
// @Param season query string false "Season ID or name substring"
// @Param competition query string false "Competition name substring"
// @Param group_id query string false "Group ID (overrides competition)"
// @Param team query string false "Team name substring, either side"
// @Param team_id query string false "Team ID (overrides team)"
// @Param status query string false "Match status" Enums(NOT_STARTED, LIVE, CLOSED)
// @Param days query int false "Only matches up to N days ahead"
// @Param past_days query int false "Only matches up to N days back"
// @Success 200 {array} model.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/matches [get]
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.writeCached(w, r, "matches?"+q.Encode(), cache.TTLMatches, func(ctx context.Context) (any, error) {
		return h.query.FindMatches(ctx, q)
	})
}

// GetStandings returns raw standings rows for a group.
// @Summary Group standings
// @Description Returns the stored standings rows for a group ordered by position. Rows are upstream payloads passed through verbatim.
// @Tags matches
// @Produce json
// @Param group_id query string true "Group ID"
// @Success 200 {array} model.Standing
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/standings [get]
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_FILTER",
			"Invalid filter parameter", (&query.InvalidFilterError{Param: "group_id", Reason: "is required"}).Error())
		return
	}
	h.writeCached(w, r, "standings:"+groupID, cache.TTLMatches, func(ctx context.Context) (any, error) {
		return h.store.Standings(ctx, groupID)
	})
}
