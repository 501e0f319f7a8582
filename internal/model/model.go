// Package model declares the domain types shared by the store, the scrape
// pipeline, the query layer, and the HTTP handlers. All identifiers are
// opaque strings assigned by the upstream widget API; raw upstream payloads
// ride along so nothing is lost between scrape and storage.
package model

import (
	"encoding/json"
	"time"
)

// Match statuses as reported upstream. Values outside this set pass through
// untouched so a new upstream state never breaks ingestion.
const (
	StatusNotStarted = "NOT_STARTED"
	StatusLive       = "LIVE"
	StatusClosed     = "CLOSED"
)

// Group bracket types.
const (
	GroupTypeLeague  = "LEAGUE"
	GroupTypePlayoff = "PLAYOFF"
)

// RegularGroupName is the synthetic name the upstream assigns to the main
// bracket of a competition that has no named stages.
const RegularGroupName = "<regular>"

// Metadata keys reserved by the store.
const (
	MetaSchemaVersion         = "schema_version"
	MetaLastScrapeCompletedAt = "last_scrape_completed_at"
)

// Season is one registration year of the federation.
type Season struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartDate *time.Time      `json:"startDate,omitempty"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Competition is a league or cup within a season.
type Competition struct {
	ID       string          `json:"id"`
	SeasonID string          `json:"seasonId"`
	Name     string          `json:"name"`
	Groups   []Group         `json:"groups,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Group is a bracket or stage within a competition. Matches hang off groups.
type Group struct {
	ID            string          `json:"id"`
	CompetitionID string          `json:"competitionId"`
	SeasonID      string          `json:"seasonId"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// Team is derived from match participants; the upstream has no team listing
// endpoint.
type Team struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// Match is a single fixture. Team fields are empty when the upstream has not
// assigned a participant yet (playoff placeholders); scores are nil until the
// upstream reports them.
type Match struct {
	ID              string          `json:"id"`
	SeasonID        string          `json:"seasonId"`
	CompetitionID   string          `json:"competitionId"`
	CompetitionName string          `json:"competitionName"`
	GroupID         string          `json:"groupId"`
	GroupName       string          `json:"groupName"`
	HomeTeamID      string          `json:"homeTeamId,omitempty"`
	HomeTeamName    string          `json:"homeTeamName,omitempty"`
	AwayTeamID      string          `json:"awayTeamId,omitempty"`
	AwayTeamName    string          `json:"awayTeamName,omitempty"`
	Date            time.Time       `json:"date"`
	Status          string          `json:"status"`
	HomeScore       *int            `json:"homeScore,omitempty"`
	AwayScore       *int            `json:"awayScore,omitempty"`
	Venue           string          `json:"venue,omitempty"`
	VenueAddress    string          `json:"venueAddress,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

// HasScores reports whether both final scores are present.
func (m Match) HasScores() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

// Standing is one raw standings row for a group. Stored verbatim, never
// interpreted.
type Standing struct {
	GroupID  string          `json:"groupId"`
	TeamID   string          `json:"teamId"`
	Position int             `json:"position"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Metadata is a key/value row with its last write time.
type Metadata struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the complete output of one scrape run, committed to a store in
// a single atomic replace.
type Snapshot struct {
	Seasons      []Season
	Competitions []Competition
	Groups       []Group
	Teams        []Team
	Matches      []Match
	Standings    []Standing
}

// DisplayGroupName renders the human-facing name of a group within its
// competition: the bare competition name when the group is the competition's
// only (or synthetic "regular") bracket, otherwise both joined with an
// em dash.
func DisplayGroupName(competitionName, groupName string) string {
	if groupName == "" || groupName == competitionName || groupName == RegularGroupName {
		return competitionName
	}
	return competitionName + " — " + groupName
}
