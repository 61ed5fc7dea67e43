package utils

import "time"

// Business time is UTC shifted by a fixed +3 hours. The offset is fixed on
// purpose: no DST, no tzdata lookup. Do not replace with time.LoadLocation.
const businessOffsetHours = 3

// BusinessNow returns the current instant in business time.
func BusinessNow() time.Time {
	return time.Now().UTC().Add(businessOffsetHours * time.Hour)
}

// BusinessDate truncates a business timestamp to its calendar date.
func BusinessDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfBusinessDay returns the last instant of t's calendar date at
// millisecond precision, used when auto-closing attendance sessions left
// open overnight. Millisecond, not nanosecond: DATETIME(3) columns round
// sub-millisecond values, and one nanosecond before midnight would round up
// into the next day.
func EndOfBusinessDay(t time.Time) time.Time {
	return BusinessDate(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// SameBusinessDate reports whether two business timestamps fall on the same
// calendar date.
func SameBusinessDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
