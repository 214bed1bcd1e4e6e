package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDay(t *testing.T) {
	p := Day(time.Date(2025, 6, 10, 14, 30, 12, 0, time.UTC))
	if !p.Start.Equal(date(2025, 6, 10)) {
		t.Errorf("start = %v", p.Start)
	}
	if !p.End.Equal(date(2025, 6, 11)) {
		t.Errorf("end = %v", p.End)
	}
}

func TestPreviousMonth(t *testing.T) {
	cases := []struct {
		ref        time.Time
		start, end time.Time
	}{
		{date(2025, 3, 15), date(2025, 2, 1), date(2025, 3, 1)},
		{date(2025, 1, 2), date(2024, 12, 1), date(2025, 1, 1)},
		{date(2024, 3, 1), date(2024, 2, 1), date(2024, 3, 1)}, // leap February
	}
	for _, tc := range cases {
		p := PreviousMonth(tc.ref)
		if !p.Start.Equal(tc.start) || !p.End.Equal(tc.end) {
			t.Errorf("PreviousMonth(%v) = [%v, %v), want [%v, %v)",
				tc.ref, p.Start, p.End, tc.start, tc.end)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	p := NewPeriod(date(2025, 6, 1), date(2025, 7, 1))
	if got := p.Key(); got != "2025-06-01..2025-07-01" {
		t.Errorf("Key() = %q", got)
	}
}

func TestPeriodEqual(t *testing.T) {
	a := NewPeriod(date(2025, 6, 1), date(2025, 7, 1))
	b := NewPeriod(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), time.Date(2025, 7, 1, 23, 0, 0, 0, time.UTC))
	if !a.Equal(b) {
		t.Error("midnight truncation should make the periods equal")
	}
	c := NewPeriod(date(2025, 6, 2), date(2025, 7, 1))
	if a.Equal(c) {
		t.Error("different starts should not be equal")
	}
}
