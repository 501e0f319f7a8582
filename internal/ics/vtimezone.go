package ics

import (
	"fmt"
	"time"
)

// timezoneBlock renders a VTIMEZONE for the named zone, with observances
// derived from the zone's actual transitions in a window around [start,
// end]. The window is widened by a year on each side so subscribers whose
// clients cache the block see the surrounding DST switches too.
func timezoneBlock(name string, loc *time.Location, start, end time.Time) []string {
	start = start.AddDate(-1, 0, 0)
	end = end.AddDate(1, 0, 0)

	lines := []string{"BEGIN:VTIMEZONE", "TZID:" + name, "X-LIC-LOCATION:" + name}

	transitions := findTransitions(loc, start, end)
	if len(transitions) == 0 {
		// Fixed-offset zone: a single STANDARD observance.
		abbrev, offset := start.In(loc).Zone()
		lines = append(lines,
			"BEGIN:STANDARD",
			"TZOFFSETFROM:"+formatOffset(offset),
			"TZOFFSETTO:"+formatOffset(offset),
			"TZNAME:"+abbrev,
			"DTSTART:"+start.In(loc).Format(localLayout),
			"END:STANDARD",
		)
	}
	for _, tr := range transitions {
		abbrev, offsetTo := tr.In(loc).Zone()
		_, offsetFrom := tr.Add(-time.Second).In(loc).Zone()

		kind := "STANDARD"
		if offsetTo > offsetFrom {
			kind = "DAYLIGHT"
		}
		// Observance onset is local wall time in the pre-transition offset.
		onset := tr.UTC().Add(time.Duration(offsetFrom) * time.Second)
		lines = append(lines,
			"BEGIN:"+kind,
			"TZOFFSETFROM:"+formatOffset(offsetFrom),
			"TZOFFSETTO:"+formatOffset(offsetTo),
			"TZNAME:"+abbrev,
			"DTSTART:"+onset.Format(localLayout),
			"END:"+kind,
		)
	}

	return append(lines, "END:VTIMEZONE")
}

// findTransitions locates UTC offset changes in (start, end] by scanning in
// day steps and bisecting each step that straddles a change down to the
// second.
func findTransitions(loc *time.Location, start, end time.Time) []time.Time {
	var transitions []time.Time
	prev := start
	_, prevOffset := prev.In(loc).Zone()

	for t := start.Add(24 * time.Hour); !t.After(end); t = t.Add(24 * time.Hour) {
		_, offset := t.In(loc).Zone()
		if offset != prevOffset {
			transitions = append(transitions, bisectTransition(loc, prev, t))
			prevOffset = offset
		}
		prev = t
	}
	return transitions
}

// bisectTransition returns the first instant in (lo, hi] whose offset
// differs from lo's, at one-second granularity.
func bisectTransition(loc *time.Location, lo, hi time.Time) time.Time {
	_, loOffset := lo.In(loc).Zone()
	loSec, hiSec := lo.Unix(), hi.Unix()
	for hiSec-loSec > 1 {
		mid := (loSec + hiSec) / 2
		if _, offset := time.Unix(mid, 0).In(loc).Zone(); offset == loOffset {
			loSec = mid
		} else {
			hiSec = mid
		}
	}
	return time.Unix(hiSec, 0).UTC()
}

func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}
