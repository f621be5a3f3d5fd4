package ledger

import (
	"time"
)

// =============================================================================
// DATES - Day-granularity calendar helpers
// =============================================================================

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// NewDate returns midnight UTC of the given day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping its calendar day.
func Truncate(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() time.Time {
	return Truncate(time.Now())
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// SameDay compares calendar days, ignoring the clock.
func SameDay(a, b time.Time) bool { return Truncate(a).Equal(Truncate(b)) }

// AddMonths uses calendar-month arithmetic. Days that do not exist in the
// target month roll over into the next one (Jan 31 + 1 month = Mar 3).
func AddMonths(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }

func StartOfMonth(year int, month time.Month) time.Time { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
