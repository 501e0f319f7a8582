package store

import (
	"fmt"
	"strings"
)

// matchConds renders f into WHERE conditions with ? placeholders plus their
// arguments, in a fixed order so query plans stay stable across backends.
// Date arguments are time.Time; backends that store timestamps as text
// convert them before binding.
func matchConds(f MatchFilter) (conds []string, args []any) {
	if f.SeasonID != "" {
		conds = append(conds, "season_id = ?")
		args = append(args, f.SeasonID)
	}
	if f.GroupID != "" {
		conds = append(conds, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.CompetitionName != "" {
		conds = append(conds, "LOWER(competition_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.CompetitionName)+"%")
	}
	if f.TeamID != "" {
		conds = append(conds, "(home_team_id = ? OR away_team_id = ?)")
		args = append(args, f.TeamID, f.TeamID)
	}
	if f.TeamName != "" {
		like := "%" + strings.ToLower(f.TeamName) + "%"
		conds = append(conds, "(LOWER(home_team_name) LIKE ? OR LOWER(away_team_name) LIKE ?)")
		args = append(args, like, like)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.DateFrom != nil {
		conds = append(conds, "date >= ?")
		args = append(args, f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		conds = append(conds, "date <= ?")
		args = append(args, f.DateTo.UTC())
	}
	return conds, args
}

// whereClause joins conditions into a WHERE fragment, empty when unfiltered.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// numberPlaceholders rewrites ? placeholders into $1..$n for Postgres.
func numberPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
