package domain

import (
	"testing"
	"time"
)

func TestDate_StartOfWeekIsMonday(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   Date
		want Date
	}{
		{NewDate(2024, time.May, 6), NewDate(2024, time.May, 6)},   // a Monday
		{NewDate(2024, time.May, 8), NewDate(2024, time.May, 6)},   // Wednesday
		{NewDate(2024, time.May, 12), NewDate(2024, time.May, 6)},  // Sunday
		{NewDate(2024, time.April, 1), NewDate(2024, time.April, 1)},
	}
	for _, c := range cases {
		if got := c.in.StartOfWeek(); got != c.want {
			t.Fatalf("StartOfWeek(%s)=%s want %s", c.in, got, c.want)
		}
	}
}

func TestDate_DaysInMonth(t *testing.T) {
	t.Parallel()

	if got, want := NewDate(2024, time.February, 10).DaysInMonth(), 29; got != want {
		t.Fatalf("DaysInMonth(feb 2024)=%d want %d", got, want)
	}
	if got, want := NewDate(2023, time.February, 10).DaysInMonth(), 28; got != want {
		t.Fatalf("DaysInMonth(feb 2023)=%d want %d", got, want)
	}
	if got, want := NewDate(2024, time.April, 1).DaysInMonth(), 30; got != want {
		t.Fatalf("DaysInMonth(apr 2024)=%d want %d", got, want)
	}
}

func TestDate_AddDaysCrossesMonths(t *testing.T) {
	t.Parallel()

	d := NewDate(2024, time.March, 1).AddDays(-1)
	if got, want := d, NewDate(2024, time.February, 29); got != want {
		t.Fatalf("AddDays(-1)=%s want %s", got, want)
	}
	if got, want := d.DaysSince(NewDate(2024, time.February, 27)), 2; got != want {
		t.Fatalf("DaysSince=%d want %d", got, want)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2024-05-08")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := d, NewDate(2024, time.May, 8); got != want {
		t.Fatalf("ParseDate=%s want %s", got, want)
	}
	if _, err := ParseDate("08/05/2024"); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
