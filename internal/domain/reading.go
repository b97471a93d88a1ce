package domain

// DailyReading is a single calendar day's consumption as reported by the
// water portal. MeterIndexM3 and CostEUR are optional: not every metering
// point reports a cumulative counter, and cost is only present when the
// portal priced the day itself.
type DailyReading struct {
	Date         Date
	VolumeM3     float64
	MeterIndexM3 *float64
	CostEUR      *float64
}

// Liters returns the day's volume in liters.
func (r DailyReading) Liters() float64 {
	return r.VolumeM3 * 1000
}

// PriceReference is the fallback price used to cost readings that the
// portal did not price itself. It is configuration (or portal-derived once
// per run) and is never mutated during aggregation.
type PriceReference struct {
	PricePerM3EUR float64
}
