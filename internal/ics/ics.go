// Package ics renders match lists as RFC 5545 iCalendar documents. Output
// is byte-deterministic: fixed property order, CRLF terminators, octet-
// accurate line folding, and stable UIDs, so calendar clients see the same
// event identity on every regeneration.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/model"
)

const (
	crlf = "\r\n"

	// maxLineOctets is the RFC 5545 content line limit before folding.
	maxLineOctets = 75

	prodID   = "-//Israeli Basketball Calendar//ibasketcal//EN"
	appTitle = "Israeli Basketball"

	zuluLayout  = "20060102T150405Z"
	localLayout = "20060102T150405"
)

// Options control one rendering pass.
type Options struct {
	// Host is the UID domain; UIDs are "{matchID}@{Host}".
	Host string

	// CompetitionLabel and TeamLabel extend the calendar display name when
	// the feed is filtered; empty parts are skipped.
	CompetitionLabel string
	TeamLabel        string

	// EventDuration is the DTEND offset when the upstream gives no end
	// time. Defaults to two hours.
	EventDuration time.Duration

	// PlayerMode shifts DTSTART earlier by Prep; DTEND stays on the
	// scheduled end so the event covers warm-up plus the game.
	PlayerMode bool
	Prep       time.Duration

	// TZName/Location switch output from UTC Zulu to TZID-form local
	// times with a computed VTIMEZONE block.
	TZName   string
	Location *time.Location

	// SeasonNames maps season IDs to display names for the DESCRIPTION.
	SeasonNames map[string]string

	// Now stamps DTSTAMP; tests pin it.
	Now func() time.Time
}

func (o Options) duration() time.Duration {
	if o.EventDuration > 0 {
		return o.EventDuration
	}
	return 2 * time.Hour
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Build renders the calendar. Zero matches still yields a valid VCALENDAR
// with no events.
func Build(matches []model.Match, opts Options) string {
	if opts.Host == "" {
		opts.Host = "ibasketcal.local"
	}

	var lines []string
	lines = append(lines,
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:"+prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:"+escapeText(calendarName(opts)),
	)
	if opts.Location != nil {
		lines = append(lines, "X-WR-TIMEZONE:"+opts.TZName)
		spanStart, spanEnd := eventSpan(matches, opts)
		lines = append(lines, timezoneBlock(opts.TZName, opts.Location, spanStart, spanEnd)...)
	}

	dtstamp := opts.now().UTC().Format(zuluLayout)
	for _, m := range matches {
		lines = append(lines, eventLines(m, opts, dtstamp)...)
	}
	lines = append(lines, "END:VCALENDAR")

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(foldLine(line))
		b.WriteString(crlf)
	}
	return b.String()
}

func calendarName(opts Options) string {
	parts := []string{appTitle}
	if opts.CompetitionLabel != "" {
		parts = append(parts, opts.CompetitionLabel)
	}
	if opts.TeamLabel != "" {
		parts = append(parts, opts.TeamLabel)
	}
	return strings.Join(parts, " — ")
}

// eventSpan is the [start, end] window the VTIMEZONE must cover.
func eventSpan(matches []model.Match, opts Options) (time.Time, time.Time) {
	now := opts.now().UTC()
	if len(matches) == 0 {
		return now, now
	}
	start, end := matches[0].Date, matches[0].Date
	for _, m := range matches[1:] {
		if m.Date.Before(start) {
			start = m.Date
		}
		if m.Date.After(end) {
			end = m.Date
		}
	}
	return start, end.Add(opts.duration())
}

func eventLines(m model.Match, opts Options, dtstamp string) []string {
	start := m.Date.UTC()
	end := start.Add(opts.duration())
	if opts.PlayerMode {
		start = start.Add(-opts.Prep)
	}

	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + m.ID + "@" + opts.Host,
		"DTSTAMP:" + dtstamp,
		dateProp("DTSTART", start, opts),
		dateProp("DTEND", end, opts),
		"SUMMARY:" + escapeText(summary(m)),
	}
	if desc := description(m, opts); desc != "" {
		lines = append(lines, "DESCRIPTION:"+desc)
	}
	if loc := location(m); loc != "" {
		lines = append(lines, "LOCATION:"+escapeText(loc))
	}
	lines = append(lines,
		fmt.Sprintf("SEQUENCE:%d", sequence(m.Status)),
		"STATUS:"+eventStatus(m.Status),
		"TRANSP:OPAQUE",
		"END:VEVENT",
	)
	return lines
}

func dateProp(name string, t time.Time, opts Options) string {
	if opts.Location != nil {
		return name + ";TZID=" + opts.TZName + ":" + t.In(opts.Location).Format(localLayout)
	}
	return name + ":" + t.Format(zuluLayout)
}

// summary renders "{home} vs {away}", or the final score form when the
// match is closed and both scores are known.
func summary(m model.Match) string {
	home := teamLabel(m.HomeTeamName)
	away := teamLabel(m.AwayTeamName)
	if m.Status == model.StatusClosed && m.HasScores() {
		return fmt.Sprintf("%s %d:%d %s [FINAL]", home, *m.HomeScore, *m.AwayScore, away)
	}
	return home + " vs " + away
}

// teamLabel substitutes a placeholder for yet-unpaired playoff slots.
func teamLabel(name string) string {
	if name == "" {
		return "TBD"
	}
	return name
}

// description lists the match context, one "Key: value" line per non-empty
// value, newline-joined (escaped to \n in the output).
func description(m model.Match, opts Options) string {
	var lines []string
	if m.CompetitionName != "" {
		lines = append(lines, "Competition: "+m.CompetitionName)
	}
	if display := model.DisplayGroupName(m.CompetitionName, m.GroupName); display != m.CompetitionName {
		lines = append(lines, "Group: "+m.GroupName)
	}
	if name := opts.SeasonNames[m.SeasonID]; name != "" {
		lines = append(lines, "Season: "+name)
	}
	if m.Status != "" {
		lines = append(lines, "Status: "+m.Status)
	}
	return escapeText(strings.Join(lines, "\n"))
}

func location(m model.Match) string {
	switch {
	case m.Venue != "" && m.VenueAddress != "":
		return m.Venue + ", " + m.VenueAddress
	case m.Venue != "":
		return m.Venue
	default:
		return m.VenueAddress
	}
}

// sequence revision per state: scheduled 0, final 1, live 2.
func sequence(status string) int {
	switch status {
	case model.StatusLive:
		return 2
	case model.StatusClosed:
		return 1
	default:
		return 0
	}
}

// eventStatus maps the match state to the VEVENT STATUS value. CANCELLED is
// mapped for completeness; no current upstream status produces it.
func eventStatus(status string) string {
	if status == "CANCELLED" {
		return "CANCELLED"
	}
	return "CONFIRMED"
}

// escapeText escapes an ICS text value: backslash first, then semicolon and
// comma, newlines become literal \n, carriage returns are dropped.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, ";", `\;`)
	text = strings.ReplaceAll(text, ",", `\,`)
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, "\r", "")
	return text
}

// foldLine folds a content line longer than 75 octets. Continuation lines
// begin with a single space and carry at most 74 octets. Folding counts
// UTF-8 octets, never splitting a multi-byte rune across the boundary.
func foldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line
	}

	var b strings.Builder
	budget := maxLineOctets
	used := 0
	for _, r := range line {
		n := len(string(r))
		if used+n > budget {
			b.WriteString(crlf)
			b.WriteString(" ")
			budget = maxLineOctets - 1
			used = 0
		}
		b.WriteRune(r)
		used += n
	}
	return b.String()
}
