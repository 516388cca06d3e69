package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses a wall-clock time in "HH:MM" form.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 ||
		!allDigits(parts[0]) || !allDigits(parts[1]) {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders hour and minute as "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// PrevOccurrence returns the latest instant at or before now whose wall
// clock in loc reads hour:minute. A day whose hour:minute falls in a
// spring-forward gap has no occurrence. A day where it repeats after a
// fall-back has two.
func PrevOccurrence(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	for back := 0; back < 7; back++ {
		t := time.Date(local.Year(), local.Month(), local.Day()-back, hour, minute, 0, 0, loc)
		if t.Hour() != hour || t.Minute() != minute {
			continue
		}
		var best time.Time
		for _, c := range occurrences(t) {
			if !c.After(now) && c.After(best) {
				best = c
			}
		}
		if !best.IsZero() {
			return best
		}
	}
	return time.Date(local.Year(), local.Month(), local.Day()-1, hour, minute, 0, 0, loc)
}

// occurrences returns t and, when t's wall clock repeats that day, the
// other instant showing the same wall clock.
func occurrences(t time.Time) []time.Time {
	out := []time.Time{t}
	_, before := t.Add(-12 * time.Hour).Zone()
	_, after := t.Add(12 * time.Hour).Zone()
	shift := time.Duration(before-after) * time.Second
	if shift == 0 {
		return out
	}
	for _, c := range []time.Time{t.Add(shift), t.Add(-shift)} {
		if !c.Equal(t) && SameWallClock(c, t, t.Location()) {
			out = append(out, c)
		}
	}
	return out
}

// SameWallClock reports whether a and b show the same date, hour and
// minute in loc.
func SameWallClock(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
