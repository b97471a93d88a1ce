package aggregate

import "github.com/lfpoulain/ha-sedif/internal/domain"

// Metric holds a derived value that may legitimately be unavailable
// (absent meter index, insufficient history, empty month). Unavailable is
// distinct from zero all the way to the sink.
type Metric[T any] struct {
	Value T
	OK    bool
}

// Available wraps a computed value.
func Available[T any](v T) Metric[T] {
	return Metric[T]{Value: v, OK: true}
}

// Unavailable marks a metric that could not be computed from the data at
// hand. Not an error: the portal simply has nothing to say.
func Unavailable[T any]() Metric[T] {
	return Metric[T]{}
}

// Level classifies recent usage intensity against the window baseline.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelElevated Level = "elevated"
	LevelHigh     Level = "high"
)

// LastReading is the most recent day's consumption with its evaluated cost.
type LastReading struct {
	Date       domain.Date
	VolumeM3   float64
	Liters     float64
	CostEUR    float64 // rounded to 2 decimals for display
	CostSource bool    // true when the portal priced the day itself
}

// MeterIndex is the cumulative counter at its reporting date.
type MeterIndex struct {
	ValueM3 float64
	Date    domain.Date
}

// MaxReading is the window's peak day. Ties resolve to the earliest date.
type MaxReading struct {
	VolumeM3 float64
	Date     domain.Date
}

// PeriodTotals sums consumption over a calendar period up to the last
// reading date. Absent days contribute nothing; DayCount counts only days
// actually present.
type PeriodTotals struct {
	From     domain.Date
	To       domain.Date
	M3       float64
	Liters   float64
	EUR      float64 // rounded to 3 decimals
	DayCount int
}

// MonthlyEstimate projects the month-to-date cost over the whole month.
type MonthlyEstimate struct {
	EUR         float64 // rounded to 3 decimals
	DaysElapsed int
	DaysInMonth int
}

// Overconsumption compares the trailing week's daily average to the
// full-window baseline.
type Overconsumption struct {
	Level         Level
	Ratio         float64
	RecentAvgM3   float64
	BaselineAvgM3 float64
}

// Snapshot is the full set of derived metrics for one aggregation run.
// It is computed fresh every run, immutable, and superseded by the next
// run's snapshot.
type Snapshot struct {
	WindowStart   domain.Date
	WindowEnd     domain.Date
	DayCount      int     // days present in the window
	PricePerM3EUR float64 // fallback price consulted by cost evaluation

	Last            LastReading
	MeterIndex      Metric[MeterIndex]
	Max             MaxReading
	AverageM3       float64
	WeekToDate      PeriodTotals
	MonthToDate     PeriodTotals
	MonthlyEstimate Metric[MonthlyEstimate]
	Overconsumption Metric[Overconsumption]
	Thresholds      Thresholds
}
