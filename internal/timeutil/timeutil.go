// Package timeutil parses the time bounds accepted by the date generator.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// calendarUnits extends time.ParseDuration with day, week and year
// suffixes. A year is 365 days.
var calendarUnits = map[byte]time.Duration{
	'd': day,
	'w': 7 * day,
	'y': 365 * day,
}

// ParseDuration accepts anything time.ParseDuration does plus a whole number
// followed by d, w or y.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration string")
	}
	if dur, err := time.ParseDuration(s); err == nil {
		return dur, nil
	}

	unit, ok := calendarUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit in %q", s)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q", s)
	}
	return time.Duration(n) * unit, nil
}

// ParseTime accepts "now", RFC3339, a plain "2006-01-02" date or a signed
// offset from now such as "-30d" or "+2h".
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return time.Time{}, errors.New("empty time string")
	case strings.EqualFold(s, "now"):
		return now, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	sign := s[0]
	if sign != '-' && sign != '+' {
		return time.Time{}, fmt.Errorf("relative time must start with + or -: %s", s)
	}
	dur, err := ParseDuration(s[1:])
	if err != nil {
		return time.Time{}, err
	}
	if sign == '-' {
		dur = -dur
	}
	return now.Add(dur), nil
}
