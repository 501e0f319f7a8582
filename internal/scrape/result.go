// Package scrape walks the upstream hierarchy — seasons, competitions,
// groups, matches — and commits the whole graph to the store in one atomic
// bulk replace.
package scrape

import (
	"fmt"
	"time"
)

// Result tracks entity counts from one full scrape.
type Result struct {
	Seasons       int
	Competitions  int
	Groups        int
	Teams         int
	Matches       int
	Standings     int
	TokenRenewals int
	Duration      time.Duration
}

// Summary returns a human-readable summary of the scrape.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"seasons=%d competitions=%d groups=%d teams=%d matches=%d standings=%d token_renewals=%d duration=%s",
		r.Seasons, r.Competitions, r.Groups, r.Teams, r.Matches, r.Standings,
		r.TokenRenewals, r.Duration.Round(time.Second),
	)
}

// Progress is a point-in-time snapshot of a running scrape, consumed by the
// refresh controller's status endpoint.
type Progress struct {
	GroupsDone    int    `json:"groupsDone"`
	GroupsTotal   int    `json:"groupsTotal"`
	CurrentSeason string `json:"currentSeason,omitempty"`
}
