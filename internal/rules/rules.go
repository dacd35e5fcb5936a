// Package rules derives finance and workload statuses from rows fetched by the
// repositories. Every function here is pure: the same input and the same "now"
// always yield the same label, and nothing is written back to the store.
package rules

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput reports a malformed value such as a negative fee.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotDeterminable reports that a required field is missing, so no status can be derived.
	ErrNotDeterminable = errors.New("not determinable")
)

// civilDate drops the clock part of t while keeping the calendar day as seen in
// t's own location. Due and end dates are stored as DATE columns, and "now" is
// expected to already be in the institution's timezone.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// beforeToday reports whether date falls on a calendar day strictly before now.
func beforeToday(date, now time.Time) bool {
	return civilDate(date).Before(civilDate(now))
}

// DaysBetween counts whole calendar days from `from` to `to`.
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)) / (24 * time.Hour))
}
