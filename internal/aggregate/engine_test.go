package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lfpoulain/ha-sedif/internal/domain"
)

var price4 = domain.PriceReference{PricePerM3EUR: 4.0}

func reading(d domain.Date, volume float64) domain.DailyReading {
	return domain.DailyReading{Date: d, VolumeM3: volume}
}

func series(t *testing.T, readings ...domain.DailyReading) *domain.ReadingSeries {
	t.Helper()
	s, err := domain.NewReadingSeries(readings)
	require.NoError(t, err)
	return s
}

// July 2024: the 1st is a Monday, so days 1-3 share a calendar week.
func july(day int) domain.Date { return domain.NewDate(2024, time.July, day) }

func TestCompute_ThreeDayScenario(t *testing.T) {
	t.Parallel()

	s := series(t,
		reading(july(1), 0.100),
		reading(july(2), 0.200),
		reading(july(3), 0.150),
	)
	snap := Compute(s, price4)

	require.InDelta(t, 0.45, snap.WeekToDate.M3, 1e-12)
	require.InDelta(t, 450.0, snap.WeekToDate.Liters, 1e-9)
	require.Equal(t, 1.8, snap.WeekToDate.EUR)
	require.Equal(t, 3, snap.WeekToDate.DayCount)
	require.InDelta(t, 0.15, snap.AverageM3, 1e-12)
	require.Equal(t, 0.2, snap.Max.VolumeM3)
	require.Equal(t, july(2), snap.Max.Date)

	require.True(t, snap.MonthlyEstimate.OK)
	// (1.8 / 3) × 31
	require.Equal(t, 18.6, snap.MonthlyEstimate.Value.EUR)
	require.Equal(t, 3, snap.MonthlyEstimate.Value.DaysElapsed)
	require.Equal(t, 31, snap.MonthlyEstimate.Value.DaysInMonth)

	require.Equal(t, july(3), snap.Last.Date)
	require.Equal(t, 150.0, snap.Last.Liters)
	require.Equal(t, 0.6, snap.Last.CostEUR)
	require.False(t, snap.Last.CostSource)
	require.Equal(t, 4.0, snap.PricePerM3EUR)
}

func TestCompute_AverageSkipsAbsentDays(t *testing.T) {
	t.Parallel()

	withZero := series(t,
		reading(july(1), 0.3),
		reading(july(2), 0.0),
		reading(july(3), 0.3),
	)
	withGap := series(t,
		reading(july(1), 0.3),
		reading(july(3), 0.3),
	)

	// An explicit zero day dilutes the average; a missing day must not.
	require.InDelta(t, 0.2, Compute(withZero, price4).AverageM3, 1e-12)
	require.InDelta(t, 0.3, Compute(withGap, price4).AverageM3, 1e-12)
	require.NotEqual(t, Compute(withZero, price4).AverageM3, Compute(withGap, price4).AverageM3)
}

func TestCompute_ExplicitCostsBypassPrice(t *testing.T) {
	t.Parallel()

	cost := func(f float64) *float64 { return &f }
	s := series(t,
		domain.DailyReading{Date: july(1), VolumeM3: 0.1, CostEUR: cost(0.5)},
		domain.DailyReading{Date: july(2), VolumeM3: 0.2, CostEUR: cost(0.7)},
	)

	// An absurd fallback price must leave every EUR output untouched when
	// all readings carry their own cost.
	snap := Compute(s, domain.PriceReference{PricePerM3EUR: 999})
	require.Equal(t, 1.2, snap.WeekToDate.EUR)
	require.Equal(t, 1.2, snap.MonthToDate.EUR)
	require.Equal(t, 0.7, snap.Last.CostEUR)
	require.True(t, snap.Last.CostSource)
	require.True(t, snap.MonthlyEstimate.OK)
	require.InDelta(t, 18.6, snap.MonthlyEstimate.Value.EUR, 1e-9)
}

func TestCompute_OverconsumptionUnavailableUnderSevenDays(t *testing.T) {
	t.Parallel()

	s := series(t,
		reading(july(1), 0.1),
		reading(july(2), 0.2),
		reading(july(3), 0.3),
		reading(july(4), 0.1),
		reading(july(5), 0.2),
		reading(july(6), 0.3),
	)
	require.False(t, Compute(s, price4).Overconsumption.OK)
}

func TestCompute_OverconsumptionLevels(t *testing.T) {
	t.Parallel()

	build := func(recentVolume float64) *domain.ReadingSeries {
		var readings []domain.DailyReading
		// 21 baseline days at 0.1 m³, then a 7-day tail.
		for d := 1; d <= 21; d++ {
			readings = append(readings, reading(july(d), 0.1))
		}
		for d := 22; d <= 28; d++ {
			readings = append(readings, reading(july(d), recentVolume))
		}
		return series(t, readings...)
	}

	normal := Compute(build(0.1), price4).Overconsumption
	require.True(t, normal.OK)
	require.Equal(t, LevelNormal, normal.Value.Level)

	elevated := Compute(build(0.16), price4).Overconsumption
	require.True(t, elevated.OK)
	require.Equal(t, LevelElevated, elevated.Value.Level)
	require.Greater(t, elevated.Value.Ratio, 1.2)

	high := Compute(build(0.5), price4).Overconsumption
	require.True(t, high.OK)
	require.Equal(t, LevelHigh, high.Value.Level)
}

func TestCompute_OverconsumptionZeroBaselineUnavailable(t *testing.T) {
	t.Parallel()

	var readings []domain.DailyReading
	for d := 1; d <= 10; d++ {
		readings = append(readings, reading(july(d), 0))
	}
	require.False(t, Compute(series(t, readings...), price4).Overconsumption.OK)
}

func TestCompute_EstimateOnFirstOfMonth(t *testing.T) {
	t.Parallel()

	// Window tail lands on July 1st: the estimate is one day's cost
	// projected over the whole month.
	s := series(t,
		reading(domain.NewDate(2024, time.June, 25), 0.5),
		reading(july(1), 0.1),
	)
	snap := Compute(s, price4)
	require.True(t, snap.MonthlyEstimate.OK)
	require.Equal(t, 1, snap.MonthlyEstimate.Value.DaysElapsed)
	require.InDelta(t, 0.1*4.0*31, snap.MonthlyEstimate.Value.EUR, 1e-9)
}

func TestCompute_MeterIndexReportsLastCarrier(t *testing.T) {
	t.Parallel()

	idx := func(f float64) *float64 { return &f }
	s := series(t,
		domain.DailyReading{Date: july(1), VolumeM3: 0.1, MeterIndexM3: idx(120.5)},
		reading(july(2), 0.2),
		reading(july(3), 0.3),
	)
	snap := Compute(s, price4)
	require.True(t, snap.MeterIndex.OK)
	// Day 1's value at day 1's date: no extrapolation to the last reading.
	require.Equal(t, 120.5, snap.MeterIndex.Value.ValueM3)
	require.Equal(t, july(1), snap.MeterIndex.Value.Date)
}

func TestCompute_MeterIndexUnavailableWhenNeverReported(t *testing.T) {
	t.Parallel()

	snap := Compute(series(t, reading(july(1), 0.1)), price4)
	require.False(t, snap.MeterIndex.OK)
}

func TestCompute_MaxTieKeepsFirstDate(t *testing.T) {
	t.Parallel()

	s := series(t,
		reading(july(1), 0.2),
		reading(july(2), 0.2),
		reading(july(3), 0.1),
	)
	snap := Compute(s, price4)
	require.Equal(t, july(1), snap.Max.Date)
}

func TestCompute_WeekToDateStartsMonday(t *testing.T) {
	t.Parallel()

	// July 8 2024 is a Monday; the 6th and 7th belong to the prior week.
	s := series(t,
		reading(july(6), 1.0),
		reading(july(7), 1.0),
		reading(july(8), 0.2),
		reading(july(9), 0.3),
	)
	snap := Compute(s, price4)
	require.Equal(t, july(8), snap.WeekToDate.From)
	require.InDelta(t, 0.5, snap.WeekToDate.M3, 1e-12)
	require.Equal(t, 2, snap.WeekToDate.DayCount)

	// Month-to-date still sees all four days.
	require.Equal(t, july(1), snap.MonthToDate.From)
	require.InDelta(t, 2.5, snap.MonthToDate.M3, 1e-12)
	require.Equal(t, 4, snap.MonthToDate.DayCount)
}

func TestCompute_RoundingAsymmetry(t *testing.T) {
	t.Parallel()

	// 0.1234 m³ × 3 €/m³ = 0.3702 €: displayed daily cost rounds to 2
	// decimals, the aggregate sum to 3.
	s := series(t, reading(july(1), 0.1234))
	snap := Compute(s, domain.PriceReference{PricePerM3EUR: 3.0})
	require.Equal(t, 0.37, snap.Last.CostEUR)
	require.Equal(t, 0.37, snap.WeekToDate.EUR)

	s2 := series(t, reading(july(1), 0.12345))
	snap2 := Compute(s2, domain.PriceReference{PricePerM3EUR: 3.0})
	require.Equal(t, 0.37, snap2.Last.CostEUR)
	require.Equal(t, 0.37, snap2.WeekToDate.EUR) // 0.37035 → 0.370 at 3 decimals
}

func TestCompute_Deterministic(t *testing.T) {
	t.Parallel()

	s := series(t,
		reading(july(1), 0.177),
		reading(july(3), 0.231),
		reading(july(4), 0.093),
	)
	a := Compute(s, price4)
	b := Compute(s, price4)
	require.Equal(t, a, b)
}

func TestCompute_CustomThresholds(t *testing.T) {
	t.Parallel()

	var readings []domain.DailyReading
	for d := 1; d <= 21; d++ {
		readings = append(readings, reading(july(d), 0.1))
	}
	for d := 22; d <= 28; d++ {
		readings = append(readings, reading(july(d), 0.115))
	}
	s := series(t, readings...)

	strict := ComputeWith(s, price4, Thresholds{Elevated: 1.05, High: 1.1})
	require.True(t, strict.Overconsumption.OK)
	require.Equal(t, LevelHigh, strict.Overconsumption.Value.Level)

	lax := ComputeWith(s, price4, DefaultThresholds)
	require.Equal(t, LevelNormal, lax.Overconsumption.Value.Level)
}
