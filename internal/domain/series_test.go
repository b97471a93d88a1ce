package domain

import (
	"errors"
	"testing"
	"time"
)

func day(d int, volume float64) DailyReading {
	return DailyReading{Date: NewDate(2024, time.May, d), VolumeM3: volume}
}

func TestNewReadingSeries_OrdersAndIndexes(t *testing.T) {
	t.Parallel()

	s, err := NewReadingSeries([]DailyReading{day(8, 0.2), day(6, 0.1), day(7, 0.3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := s.Len(), 3; got != want {
		t.Fatalf("Len=%d want %d", got, want)
	}
	if got, want := s.Readings()[0].Date, NewDate(2024, time.May, 6); got != want {
		t.Fatalf("first date=%s want %s", got, want)
	}
	if got, want := s.LastDate(), NewDate(2024, time.May, 8); got != want {
		t.Fatalf("LastDate=%s want %s", got, want)
	}
	if got, want := s.WindowStart(), NewDate(2024, time.March, 30); got != want {
		t.Fatalf("WindowStart=%s want %s", got, want)
	}
	r, ok := s.At(NewDate(2024, time.May, 7))
	if !ok || r.VolumeM3 != 0.3 {
		t.Fatalf("At(may 7)=%v,%v want 0.3,true", r.VolumeM3, ok)
	}
	if _, ok := s.At(NewDate(2024, time.May, 9)); ok {
		t.Fatalf("At(may 9) should be absent")
	}
}

func TestNewReadingSeries_PreservesGaps(t *testing.T) {
	t.Parallel()

	s, err := NewReadingSeries([]DailyReading{day(1, 0.1), day(5, 0.2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The missing days must stay missing, not appear as zero readings.
	if got, want := s.Len(), 2; got != want {
		t.Fatalf("Len=%d want %d", got, want)
	}
	if _, ok := s.At(NewDate(2024, time.May, 3)); ok {
		t.Fatalf("gap day should be absent")
	}
}

func TestNewReadingSeries_Rejects(t *testing.T) {
	t.Parallel()

	neg := -1.0
	shrinking := []DailyReading{
		{Date: NewDate(2024, time.May, 1), VolumeM3: 0.1, MeterIndexM3: ptr(120.0)},
		{Date: NewDate(2024, time.May, 2), VolumeM3: 0.1, MeterIndexM3: ptr(119.0)},
	}

	cases := []struct {
		name string
		in   []DailyReading
	}{
		{"empty", nil},
		{"duplicate date", []DailyReading{day(1, 0.1), day(1, 0.2)}},
		{"outside window", []DailyReading{day(1, 0.1), {Date: NewDate(2024, time.January, 1), VolumeM3: 0.1}}},
		{"negative volume", []DailyReading{day(1, -0.1)}},
		{"negative cost", []DailyReading{{Date: NewDate(2024, time.May, 1), VolumeM3: 0.1, CostEUR: &neg}}},
		{"negative index", []DailyReading{{Date: NewDate(2024, time.May, 1), VolumeM3: 0.1, MeterIndexM3: &neg}}},
		{"decreasing index", shrinking},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewReadingSeries(c.in)
			if !errors.Is(err, ErrInvalidSeries) {
				t.Fatalf("err=%v want ErrInvalidSeries", err)
			}
		})
	}
}

func TestNewReadingSeries_ZeroVolumeIsValid(t *testing.T) {
	t.Parallel()

	s, err := NewReadingSeries([]DailyReading{day(1, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Last().VolumeM3; got != 0 {
		t.Fatalf("volume=%v want 0", got)
	}
}

func ptr(f float64) *float64 { return &f }
