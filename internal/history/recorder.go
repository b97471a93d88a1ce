// Package history optionally records each run's readings and aggregates
// to InfluxDB, giving the hub long-term data the portal's 40-day window
// cannot.
package history

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/domain"
)

// Config holds the InfluxDB v2 connection parameters.
type Config struct {
	URL    string
	Org    string
	Token  string
	Bucket string
}

// Recorder writes consumption points through the asynchronous write API.
// Recording is best-effort: a failed write is logged by the client and
// never fails the run.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	meter    string
}

// NewRecorder connects and verifies the server is healthy.
func NewRecorder(cfg Config, meter string) (*Recorder, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s: %w", cfg.URL, err)
	}
	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		meter:    meter,
	}, nil
}

// Record writes one point per daily reading plus one aggregate point for
// the snapshot. Points are keyed by calendar date, so re-recording an
// overlapping window overwrites rather than duplicates.
func (r *Recorder) Record(series *domain.ReadingSeries, snap aggregate.Snapshot) {
	for _, reading := range series.Readings() {
		fields := map[string]any{
			"m3":     reading.VolumeM3,
			"liters": reading.Liters(),
		}
		if reading.CostEUR != nil {
			fields["cost_eur"] = *reading.CostEUR
		}
		if reading.MeterIndexM3 != nil {
			fields["meter_index_m3"] = *reading.MeterIndexM3
		}
		r.writeAPI.WritePoint(write.NewPoint(
			"water_daily",
			map[string]string{"meter": r.meter},
			fields,
			reading.Date.Time(),
		))
	}

	fields := map[string]any{
		"avg_m3":       snap.AverageM3,
		"max_m3":       snap.Max.VolumeM3,
		"wtd_m3":       snap.WeekToDate.M3,
		"wtd_eur":      snap.WeekToDate.EUR,
		"mtd_m3":       snap.MonthToDate.M3,
		"mtd_eur":      snap.MonthToDate.EUR,
		"day_count":    snap.DayCount,
		"price_m3_eur": snap.PricePerM3EUR,
	}
	if snap.MonthlyEstimate.OK {
		fields["monthly_estimate_eur"] = snap.MonthlyEstimate.Value.EUR
	}
	if snap.Overconsumption.OK {
		fields["overconsumption_ratio"] = snap.Overconsumption.Value.Ratio
	}
	r.writeAPI.WritePoint(write.NewPoint(
		"water_aggregate",
		map[string]string{"meter": r.meter},
		fields,
		snap.WindowEnd.Time(),
	))
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}
