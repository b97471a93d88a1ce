package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/source"
)

type apiErrorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lastReadingJSON struct {
	Date       string   `json:"date"`
	VolumeM3   float64  `json:"volumeM3"`
	Liters     float64  `json:"liters"`
	CostEUR    float64  `json:"costEur"`
	CostSource string   `json:"costSource"`
	IndexM3    *float64 `json:"indexM3,omitempty"`
	IndexDate  string   `json:"indexDate,omitempty"`
}

type periodJSON struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	M3       float64 `json:"m3"`
	Liters   float64 `json:"liters"`
	EUR      float64 `json:"eur"`
	DayCount int     `json:"dayCount"`
}

type estimateJSON struct {
	EUR         float64 `json:"eur"`
	DaysElapsed int     `json:"daysElapsed"`
	DaysInMonth int     `json:"daysInMonth"`
}

type overconsumptionJSON struct {
	Level         string  `json:"level"`
	Ratio         float64 `json:"ratio"`
	RecentAvgM3   float64 `json:"recentAvgM3"`
	BaselineAvgM3 float64 `json:"baselineAvgM3"`
}

type maxJSON struct {
	Date     string  `json:"date"`
	VolumeM3 float64 `json:"volumeM3"`
}

type snapshotJSON struct {
	RunAt       string  `json:"runAt"`
	WindowStart string  `json:"windowStart"`
	WindowEnd   string  `json:"windowEnd"`
	DayCount    int     `json:"dayCount"`
	PricePerM3  float64 `json:"pricePerM3Eur"`
	MeterNumber string  `json:"meterNumber,omitempty"`
	PDSID       string  `json:"pdsId,omitempty"`

	Last         lastReadingJSON      `json:"last"`
	Max          maxJSON              `json:"max"`
	AverageM3    float64              `json:"averageM3"`
	WeekToDate   periodJSON           `json:"weekToDate"`
	MonthToDate  periodJSON           `json:"monthToDate"`
	Estimate     *estimateJSON        `json:"monthlyEstimate,omitempty"`
	Overconsumed *overconsumptionJSON `json:"overconsumption,omitempty"`
}

func snapshotView(snap aggregate.Snapshot, meta source.Metadata, runAt time.Time) snapshotJSON {
	v := snapshotJSON{
		RunAt:       runAt.UTC().Format(time.RFC3339),
		WindowStart: snap.WindowStart.String(),
		WindowEnd:   snap.WindowEnd.String(),
		DayCount:    snap.DayCount,
		PricePerM3:  snap.PricePerM3EUR,
		MeterNumber: meta.MeterNumber,
		PDSID:       meta.PDSID,
		Last: lastReadingJSON{
			Date:       snap.Last.Date.String(),
			VolumeM3:   snap.Last.VolumeM3,
			Liters:     snap.Last.Liters,
			CostEUR:    snap.Last.CostEUR,
			CostSource: costSourceName(snap.Last.CostSource),
		},
		Max:         maxJSON{Date: snap.Max.Date.String(), VolumeM3: snap.Max.VolumeM3},
		AverageM3:   snap.AverageM3,
		WeekToDate:  periodView(snap.WeekToDate),
		MonthToDate: periodView(snap.MonthToDate),
	}
	if idx := snap.MeterIndex; idx.OK {
		v.Last.IndexM3 = &idx.Value.ValueM3
		v.Last.IndexDate = idx.Value.Date.String()
	}
	if est := snap.MonthlyEstimate; est.OK {
		v.Estimate = &estimateJSON{
			EUR:         est.Value.EUR,
			DaysElapsed: est.Value.DaysElapsed,
			DaysInMonth: est.Value.DaysInMonth,
		}
	}
	if oc := snap.Overconsumption; oc.OK {
		v.Overconsumed = &overconsumptionJSON{
			Level:         string(oc.Value.Level),
			Ratio:         oc.Value.Ratio,
			RecentAvgM3:   oc.Value.RecentAvgM3,
			BaselineAvgM3: oc.Value.BaselineAvgM3,
		}
	}
	return v
}

func costSourceName(portal bool) string {
	if portal {
		return "portal"
	}
	return "computed"
}

func periodView(p aggregate.PeriodTotals) periodJSON {
	return periodJSON{
		From:     p.From.String(),
		To:       p.To.String(),
		M3:       p.M3,
		Liters:   p.Liters,
		EUR:      p.EUR,
		DayCount: p.DayCount,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	_ = writeJSON(w, status, apiErrorJSON{Code: code, Message: message})
}
