package query

import (
	"context"
	"fmt"
	"sort"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ibasketcal/ibasketcal/internal/model"
)

// TeamsForGroup returns the distinct participants of a group's matches,
// Hebrew names before Latin ones. The audience is Hebrew-speaking, so the
// local script leads; within a script the collator decides, and the team ID
// breaks remaining ties to keep the order total and reproducible.
func (s *Service) TeamsForGroup(ctx context.Context, groupID string) ([]model.Team, error) {
	if groupID == "" {
		return nil, invalidf("group_id", "required")
	}
	teams, err := s.store.ListTeams(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list teams for group %s: %w", groupID, err)
	}
	SortTeams(teams)
	return teams, nil
}

// SortTeams orders teams Hebrew-first, then by collation, then by ID.
func SortTeams(teams []model.Team) {
	// Collators are not safe for concurrent use, so each sort gets its own.
	c := collate.New(language.Hebrew)
	sort.SliceStable(teams, func(i, j int) bool {
		hi, hj := startsWithHebrew(teams[i].Name), startsWithHebrew(teams[j].Name)
		if hi != hj {
			return hi
		}
		if cmp := c.CompareString(teams[i].Name, teams[j].Name); cmp != 0 {
			return cmp < 0
		}
		return teams[i].ID < teams[j].ID
	})
}

func startsWithHebrew(name string) bool {
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsDigit(r) {
			continue
		}
		return unicode.Is(unicode.Hebrew, r)
	}
	return false
}
