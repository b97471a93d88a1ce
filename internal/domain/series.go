package domain

import (
	"errors"
	"fmt"
	"sort"
)

// WindowDays is the length of the trailing window the portal exposes. The
// window ends at the most recent date the portal has data for, never the
// current date (same-day usage is never reported).
const WindowDays = 40

// ErrInvalidSeries marks structurally invalid input to NewReadingSeries:
// duplicate dates, dates outside the trailing window, or negative values.
// Missing days are not an error; gaps are preserved as-is.
var ErrInvalidSeries = errors.New("invalid reading series")

// ReadingSeries is an immutable, ascending, gap-tolerant sequence of daily
// readings covering the trailing window ending at the last reading date.
// It is owned by a single aggregation run and never mutated after
// construction.
type ReadingSeries struct {
	readings []DailyReading
	byDate   map[Date]int
	end      Date
}

// NewReadingSeries validates and orders raw per-day records. The records
// may arrive in any order; days with no record are simply absent.
func NewReadingSeries(readings []DailyReading) (*ReadingSeries, error) {
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: no readings", ErrInvalidSeries)
	}

	sorted := append([]DailyReading(nil), readings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	end := sorted[len(sorted)-1].Date
	start := end.AddDays(-(WindowDays - 1))

	byDate := make(map[Date]int, len(sorted))
	var lastIndex *float64
	for i, r := range sorted {
		if _, dup := byDate[r.Date]; dup {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrInvalidSeries, r.Date)
		}
		if r.Date.Before(start) {
			return nil, fmt.Errorf("%w: date %s outside %d-day window starting %s", ErrInvalidSeries, r.Date, WindowDays, start)
		}
		if r.VolumeM3 < 0 {
			return nil, fmt.Errorf("%w: negative volume %v on %s", ErrInvalidSeries, r.VolumeM3, r.Date)
		}
		if r.CostEUR != nil && *r.CostEUR < 0 {
			return nil, fmt.Errorf("%w: negative cost %v on %s", ErrInvalidSeries, *r.CostEUR, r.Date)
		}
		if r.MeterIndexM3 != nil {
			if *r.MeterIndexM3 < 0 {
				return nil, fmt.Errorf("%w: negative meter index %v on %s", ErrInvalidSeries, *r.MeterIndexM3, r.Date)
			}
			if lastIndex != nil && *r.MeterIndexM3 < *lastIndex {
				return nil, fmt.Errorf("%w: meter index decreases on %s", ErrInvalidSeries, r.Date)
			}
			lastIndex = r.MeterIndexM3
		}
		byDate[r.Date] = i
	}

	return &ReadingSeries{readings: sorted, byDate: byDate, end: end}, nil
}

// Readings returns the readings in ascending date order. The returned
// slice must be treated as read-only by callers.
func (s *ReadingSeries) Readings() []DailyReading {
	return s.readings
}

// At returns the reading for the given date, if present.
func (s *ReadingSeries) At(d Date) (DailyReading, bool) {
	i, ok := s.byDate[d]
	if !ok {
		return DailyReading{}, false
	}
	return s.readings[i], true
}

// Len returns the number of days actually present in the series.
func (s *ReadingSeries) Len() int {
	return len(s.readings)
}

// Last returns the reading at the last reading date.
func (s *ReadingSeries) Last() DailyReading {
	return s.readings[len(s.readings)-1]
}

// LastDate returns the most recent date present in the series.
func (s *ReadingSeries) LastDate() Date {
	return s.end
}

// WindowEnd returns the nominal window end (the last reading date).
func (s *ReadingSeries) WindowEnd() Date {
	return s.end
}

// WindowStart returns the nominal window start, WindowDays-1 days before
// the end. The first present day may be later than this.
func (s *ReadingSeries) WindowStart() Date {
	return s.end.AddDays(-(WindowDays - 1))
}
