package domain

import (
	"fmt"
	"time"
)

// Period is a half-open date range [Start, End) identifying a unit of work
// together with an account and stage. A period is a single day for the daily
// pipeline, a calendar month for the monthly pipeline, or an arbitrary window
// for the system audit pipeline.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period from two instants, truncated to UTC midnight.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: midnight(start), End: midnight(end)}
}

// Day returns the single-day period covering the calendar day of t.
func Day(t time.Time) Period {
	d := midnight(t)
	return Period{Start: d, End: d.AddDate(0, 0, 1)}
}

// PreviousMonth returns the full calendar month preceding ref.
// For ref anywhere in March it returns [Feb 1, Mar 1).
func PreviousMonth(ref time.Time) Period {
	ref = ref.UTC()
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: first.AddDate(0, -1, 0), End: first}
}

// Equal reports whether two periods cover the same range.
func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

// Key is a stable identifier for logging and map keys.
func (p Period) Key() string {
	return fmt.Sprintf("%s..%s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
