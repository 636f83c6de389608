package core

import (
	"strings"
	"time"
)

// NowFunc returns the current time; overridden in tests.
var NowFunc = time.Now // mockable

// DateLayout is the wire format of calendar dates exchanged with stored procedures.
const DateLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, CleanString(s), time.UTC)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	y, m, d := NowFunc().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
