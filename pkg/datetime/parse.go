// Package datetime provides date and month-key utility functions.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/curve-factors/pkg/constants"
)

const (
	// DateLayout is the format expected in input tables and is also the output
	// date format.
	DateLayout = constants.DateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a calendar date in DateLayout. A year-month value
// (2006-01) is also accepted and resolves to the first day of that month.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	if t, err := time.Parse(DateLayout, trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse(constants.MonthLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q, expected %s or %s", value, DateLayout, constants.MonthLayout)
	}
	return t, nil
}

// DateOnly drops the clock part of t and moves it to UTC so dates taken from
// different sources compare equal with ==.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
