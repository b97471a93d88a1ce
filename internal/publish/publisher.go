// Package publish maps a metric snapshot onto the fixed entity catalog
// and drives its (re)publication through a sink.
package publish

import (
	"context"
	"fmt"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/sink"
	"github.com/lfpoulain/ha-sedif/internal/source"
)

// Publisher owns the entity catalog for one metering point. Every cycle
// re-declares the catalog (a no-op update at the hub) and then pushes
// current values, so a restarted hub converges on the next run without
// any publisher-side state.
type Publisher struct {
	sink   sink.Sink
	prefix string
	device sink.Device
}

// New builds a publisher for the given name prefix ("sedif" by default).
func New(s sink.Sink, prefix string) *Publisher {
	if prefix == "" {
		prefix = "sedif"
	}
	return &Publisher{
		sink:   s,
		prefix: prefix,
		device: sink.Device{
			Identifiers:  []string{"sedif", prefix},
			Name:         "SEDIF Water Consumption",
			Manufacturer: "SEDIF",
			Model:        "Web Portal",
		},
	}
}

// The catalog keys, in publication order.
const (
	keyDaily           = "daily"
	keyDailyEuros      = "daily_euros"
	keyMax             = "max_m3"
	keyAverage         = "avg_m3"
	keyMeterIndex      = "meter_index"
	keyInfo            = "info"
	keyWeekToDate      = "week_to_date_m3"
	keyMonthToDate     = "month_to_date_m3"
	keyMonthlyEstimate = "monthly_estimate_euros"
	keyLastReadingDate = "last_reading_date"
	keyOverconsumption = "overconsumption"
)

func (p *Publisher) entityID(key string) string {
	return p.prefix + "_" + key
}

func (p *Publisher) catalog() []sink.Entity {
	e := func(key, name, unit string) sink.Entity {
		return sink.Entity{EntityID: p.entityID(key), Name: name, Unit: unit}
	}
	return []sink.Entity{
		e(keyDaily, "Consommation du dernier relevé (litres)", "L"),
		e(keyDailyEuros, "Coût du dernier relevé (EUR)", "EUR"),
		e(keyMax, "Consommation maximale (m³)", "m³"),
		e(keyAverage, "Consommation moyenne (m³)", "m³"),
		e(keyMeterIndex, "Index compteur (m³)", "m³"),
		e(keyInfo, "Informations compteur", ""),
		e(keyWeekToDate, "Consommation semaine en cours (m³)", "m³"),
		e(keyMonthToDate, "Consommation mois en cours (m³)", "m³"),
		e(keyMonthlyEstimate, "Estimation facture mensuelle (EUR)", "EUR"),
		e(keyLastReadingDate, "Date du dernier relevé", ""),
		e(keyOverconsumption, "Surconsommation (référence 40 jours)", ""),
	}
}

// Publish declares the catalog and pushes the snapshot's values. Any
// failure aborts the cycle; the snapshot is not retried until the next
// scheduled run.
func (p *Publisher) Publish(ctx context.Context, snap aggregate.Snapshot, meta source.Metadata) error {
	if err := p.sink.Declare(ctx, p.device, p.catalog()); err != nil {
		return fmt.Errorf("declare catalog: %w", err)
	}
	for _, pub := range p.values(snap, meta) {
		if err := p.sink.Publish(ctx, pub.id, pub.value); err != nil {
			return fmt.Errorf("publish %s: %w", pub.id, err)
		}
	}
	return nil
}

type publication struct {
	id    string
	value sink.Value
}

func (p *Publisher) values(snap aggregate.Snapshot, meta source.Metadata) []publication {
	price := snap.PricePerM3EUR

	daily := sink.Value{
		State:     snap.Last.Liters,
		Available: true,
		Attributes: map[string]any{
			"last_date":        snap.Last.Date.String(),
			"last_m3":          snap.Last.VolumeM3,
			"last_euros":       snap.Last.CostEUR,
			"cost_from_source": snap.Last.CostSource,
			"price_m3":         price,
		},
	}

	dailyEuros := sink.Value{
		State:     snap.Last.CostEUR,
		Available: true,
		Attributes: map[string]any{
			"last_date":        snap.Last.Date.String(),
			"last_liters":      snap.Last.Liters,
			"last_m3":          snap.Last.VolumeM3,
			"cost_from_source": snap.Last.CostSource,
			"price_m3":         price,
		},
	}

	max := sink.Value{
		State:     snap.Max.VolumeM3,
		Available: true,
		Attributes: map[string]any{
			"date":     snap.Max.Date.String(),
			"price_m3": price,
		},
	}

	average := sink.Value{
		State:     snap.AverageM3,
		Available: true,
		Attributes: map[string]any{
			"day_count": snap.DayCount,
			"from":      snap.WindowStart.String(),
			"to":        snap.WindowEnd.String(),
			"price_m3":  price,
		},
	}

	meterIndex := sink.Unavailable
	if snap.MeterIndex.OK {
		meterIndex = sink.Value{
			State:     snap.MeterIndex.Value.ValueM3,
			Available: true,
			Attributes: map[string]any{
				"date": snap.MeterIndex.Value.Date.String(),
			},
		}
	}

	infoState := meta.MeterNumber
	if infoState == "" {
		infoState = meta.PDSID
	}
	if infoState == "" {
		infoState = p.prefix
	}
	info := sink.Value{
		State:     infoState,
		Available: true,
		Attributes: map[string]any{
			"numero_compteur":         meta.MeterNumber,
			"id_pds":                  meta.PDSID,
			"date_debut":              meta.PeriodStart,
			"date_fin":                meta.PeriodEnd,
			"consommation_max_m3":     meta.PortalMaxM3,
			"date_consommation_max":   meta.PortalMaxDate,
			"consommation_moyenne_m3": meta.PortalAverageM3,
			"index_last_value":        meta.IndexValueM3,
			"index_last_date":         meta.IndexDate,
			"price_m3":                price,
		},
	}

	weekToDate := periodValue(snap.WeekToDate, price)
	monthToDate := periodValue(snap.MonthToDate, price)

	estimate := sink.Unavailable
	if snap.MonthlyEstimate.OK {
		estimate = sink.Value{
			State:     snap.MonthlyEstimate.Value.EUR,
			Available: true,
			Attributes: map[string]any{
				"days_in_month":   snap.MonthlyEstimate.Value.DaysInMonth,
				"days_elapsed":    snap.MonthlyEstimate.Value.DaysElapsed,
				"mtd_euros":       snap.MonthToDate.EUR,
				"month_day_count": snap.MonthToDate.DayCount,
				"price_m3":        price,
			},
		}
	}

	lastDate := sink.Value{
		State:     snap.WindowEnd.String(),
		Available: true,
		Attributes: map[string]any{
			"day_count": snap.DayCount,
		},
	}

	over := sink.Unavailable
	if snap.Overconsumption.OK {
		v := snap.Overconsumption.Value
		over = sink.Value{
			State:     string(v.Level),
			Available: true,
			Attributes: map[string]any{
				"ratio":              v.Ratio,
				"recent_avg_m3":      v.RecentAvgM3,
				"baseline_avg_m3":    v.BaselineAvgM3,
				"threshold_elevated": snap.Thresholds.Elevated,
				"threshold_high":     snap.Thresholds.High,
				"last_date":          snap.WindowEnd.String(),
			},
		}
	}

	return []publication{
		{p.entityID(keyDaily), daily},
		{p.entityID(keyDailyEuros), dailyEuros},
		{p.entityID(keyMax), max},
		{p.entityID(keyAverage), average},
		{p.entityID(keyMeterIndex), meterIndex},
		{p.entityID(keyInfo), info},
		{p.entityID(keyWeekToDate), weekToDate},
		{p.entityID(keyMonthToDate), monthToDate},
		{p.entityID(keyMonthlyEstimate), estimate},
		{p.entityID(keyLastReadingDate), lastDate},
		{p.entityID(keyOverconsumption), over},
	}
}

func periodValue(t aggregate.PeriodTotals, price float64) sink.Value {
	return sink.Value{
		State:     t.M3,
		Available: true,
		Attributes: map[string]any{
			"liters":   t.Liters,
			"euros":    t.EUR,
			"from":     t.From.String(),
			"to":       t.To.String(),
			"days":     t.DayCount,
			"price_m3": price,
		},
	}
}
