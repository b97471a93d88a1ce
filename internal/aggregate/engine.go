// Package aggregate derives the metric snapshot from a reading series.
//
// Compute is a pure function: no I/O, no clock, deterministic for
// identical inputs. All calendar math keys off the series' last reading
// date, never wall-clock time.
package aggregate

import (
	"github.com/lfpoulain/ha-sedif/internal/domain"
	"github.com/lfpoulain/ha-sedif/internal/money"
)

// Thresholds are the overconsumption ratio boundaries. The exact values
// are not contractual with the portal, so they are configuration rather
// than literals in the engine.
type Thresholds struct {
	Elevated float64
	High     float64
}

// DefaultThresholds matches the documented behavior of the add-on.
var DefaultThresholds = Thresholds{Elevated: 1.2, High: 1.5}

// recentDays is the length of the trailing window compared against the
// baseline, and the minimum number of present days required to classify.
const recentDays = 7

const (
	aggregateDecimals = 3 // aggregated EUR sums and estimates
	displayDecimals   = 2 // single-reading EUR display values
)

// Compute derives the snapshot using DefaultThresholds.
func Compute(series *domain.ReadingSeries, price domain.PriceReference) Snapshot {
	return ComputeWith(series, price, DefaultThresholds)
}

// ComputeWith derives the full metric snapshot. Missing-data conditions
// (gaps, absent meter index, short history) surface as unavailable
// metrics, never as errors: structurally invalid input is rejected by
// series construction before it can get here.
func ComputeWith(series *domain.ReadingSeries, price domain.PriceReference, th Thresholds) Snapshot {
	priceDec := money.FromFloat(price.PricePerM3EUR)
	end := series.LastDate()

	snap := Snapshot{
		WindowStart:   series.WindowStart(),
		WindowEnd:     end,
		DayCount:      series.Len(),
		PricePerM3EUR: price.PricePerM3EUR,
		Thresholds:    th,
	}

	last := series.Last()
	snap.Last = LastReading{
		Date:       last.Date,
		VolumeM3:   last.VolumeM3,
		Liters:     last.Liters(),
		CostEUR:    costEval(last, priceDec).Round(displayDecimals).Float64(),
		CostSource: last.CostEUR != nil,
	}

	snap.MeterIndex = latestMeterIndex(series)
	snap.Max = maxReading(series)
	snap.AverageM3 = averageM3(series.Readings())
	snap.WeekToDate = periodTotals(series, end.StartOfWeek(), end, priceDec)
	snap.MonthToDate = periodTotals(series, end.StartOfMonth(), end, priceDec)
	snap.MonthlyEstimate = monthlyEstimate(series, end, priceDec)
	snap.Overconsumption = overconsumption(series, end, th)

	return snap
}

// costEval prices one reading: the portal's own cost verbatim when
// present, volume × fallback price otherwise.
func costEval(r domain.DailyReading, price money.Decimal) money.Decimal {
	if r.CostEUR != nil {
		return money.FromFloat(*r.CostEUR)
	}
	return money.FromFloat(r.VolumeM3).Mul(price)
}

// latestMeterIndex reports the cumulative counter at the most recent date
// that carries one. A portal without index reporting yields unavailable,
// never a synthesized zero or an extrapolation.
func latestMeterIndex(series *domain.ReadingSeries) Metric[MeterIndex] {
	readings := series.Readings()
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].MeterIndexM3 != nil {
			return Available(MeterIndex{
				ValueM3: *readings[i].MeterIndexM3,
				Date:    readings[i].Date,
			})
		}
	}
	return Unavailable[MeterIndex]()
}

func maxReading(series *domain.ReadingSeries) MaxReading {
	var max MaxReading
	for i, r := range series.Readings() {
		// Strict > keeps the first date on ties.
		if i == 0 || r.VolumeM3 > max.VolumeM3 {
			max = MaxReading{VolumeM3: r.VolumeM3, Date: r.Date}
		}
	}
	return max
}

// averageM3 is the mean over present days only: a gap is "no data", not a
// zero-consumption term.
func averageM3(readings []domain.DailyReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += r.VolumeM3
	}
	return sum / float64(len(readings))
}

func periodTotals(series *domain.ReadingSeries, from, to domain.Date, price money.Decimal) PeriodTotals {
	totals := PeriodTotals{From: from, To: to}
	eur := money.Zero()
	for d := from; !d.After(to); d = d.AddDays(1) {
		r, ok := series.At(d)
		if !ok {
			continue
		}
		totals.M3 += r.VolumeM3
		totals.Liters += r.Liters()
		eur = eur.Add(costEval(r, price))
		totals.DayCount++
	}
	totals.EUR = eur.Round(aggregateDecimals).Float64()
	return totals
}

// monthlyEstimate projects the month-to-date cost linearly over the full
// month: (mtd_eur / days_elapsed) × days_in_month, at full precision
// until the final rounding.
func monthlyEstimate(series *domain.ReadingSeries, end domain.Date, price money.Decimal) Metric[MonthlyEstimate] {
	daysElapsed := end.Day
	if daysElapsed == 0 {
		return Unavailable[MonthlyEstimate]()
	}
	mtd := money.Zero()
	for d := end.StartOfMonth(); !d.After(end); d = d.AddDays(1) {
		if r, ok := series.At(d); ok {
			mtd = mtd.Add(costEval(r, price))
		}
	}
	daysInMonth := end.DaysInMonth()
	estimate := mtd.DivInt(daysElapsed).MulInt(daysInMonth)
	return Available(MonthlyEstimate{
		EUR:         estimate.Round(aggregateDecimals).Float64(),
		DaysElapsed: daysElapsed,
		DaysInMonth: daysInMonth,
	})
}

// overconsumption classifies the trailing week's daily average against
// the 40-day baseline. Fewer than recentDays present days in the series,
// an empty trailing week, or a zero baseline all yield unavailable:
// classifying on that little data would be noise.
func overconsumption(series *domain.ReadingSeries, end domain.Date, th Thresholds) Metric[Overconsumption] {
	if series.Len() < recentDays {
		return Unavailable[Overconsumption]()
	}
	baseline := averageM3(series.Readings())
	if baseline == 0 {
		return Unavailable[Overconsumption]()
	}

	var recent []domain.DailyReading
	for d := end.AddDays(-(recentDays - 1)); !d.After(end); d = d.AddDays(1) {
		if r, ok := series.At(d); ok {
			recent = append(recent, r)
		}
	}
	if len(recent) == 0 {
		return Unavailable[Overconsumption]()
	}

	recentAvg := averageM3(recent)
	ratio := recentAvg / baseline
	level := LevelNormal
	switch {
	case ratio >= th.High:
		level = LevelHigh
	case ratio >= th.Elevated:
		level = LevelElevated
	}
	return Available(Overconsumption{
		Level:         level,
		Ratio:         ratio,
		RecentAvgM3:   recentAvg,
		BaselineAvgM3: baseline,
	})
}
