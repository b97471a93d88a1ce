package source

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lfpoulain/ha-sedif/internal/domain"
)

// The portal is a generated SPA whose JSON payloads change shape between
// revisions. Rather than binding to one schema, records are recognized by
// key names anywhere in the payload tree, the way the add-on always has.
var (
	dateKeys   = []string{"date", "jour", "day", "dateconso", "datereleve", "date_releve", "date_index"}
	volumeKeys = []string{"volume", "conso", "consommation", "litre", "litres", "m3", "m^3"}
	costKeys   = []string{"euros", "euro", "prix", "montant", "ttc", "cost"}
	unitKeys   = []string{"unit", "unite", "unité", "uom"}
)

var priceKeys = map[string]bool{
	"prixmoyeneau":  true,
	"prixmoyen":     true,
	"prixmoyen_eau": true,
	"prixmoyenent":  true,
	"prixm3":        true,
}

var numberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

func normalizeKey(key string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(key), "")
}

// coerceFloat extracts a number from portal values: plain numbers, or
// French-locale strings like "1,5 m³", "12 €" (NBSP thousands separators
// included).
func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		cleaned := strings.ReplaceAll(x, " ", " ")
		cleaned = strings.ReplaceAll(cleaned, "€", "")
		cleaned = strings.ReplaceAll(cleaned, "m³", "m3")
		cleaned = strings.ReplaceAll(cleaned, " ", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
		m := numberRe.FindString(cleaned)
		if m == "" {
			return 0, false
		}
		var f float64
		if _, err := fmt.Sscanf(m, "%g", &f); err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

var recordDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006", // the portal's French day-first form
}

func parseRecordDate(v any) (domain.Date, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		// ISO dates may carry a time suffix; the day part is enough.
		if len(s) > 10 && s[4] == '-' {
			if t, err := time.ParseInLocation("2006-01-02", s[:10], time.UTC); err == nil {
				return domain.DateOf(t), true
			}
		}
		for _, layout := range recordDateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return domain.DateOf(t), true
			}
		}
	case float64:
		// Epoch seconds show up in some payload revisions.
		if x > 0 {
			return domain.DateOf(time.Unix(int64(x), 0).UTC()), true
		}
	}
	return domain.Date{}, false
}

// findKey returns the first key whose lowered name contains one of the
// tokens. Candidates are sorted so map iteration order cannot change
// which key wins; keys that look like dates never match non-date tokens
// ("dateConso" must not be mistaken for a volume field).
func findKey(obj map[string]any, tokens []string, dateLike bool) (string, bool) {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		lowered := strings.ToLower(key)
		if !dateLike && strings.Contains(lowered, "date") {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(lowered, tok) {
				return key, true
			}
		}
	}
	return "", false
}

// rawRecord is a candidate day-record before normalization.
type rawRecord struct {
	date   any
	volume any
	cost   any
	unit   any
}

// extractRecords walks the payload tree collecting every object that
// carries both a date-ish and a volume-ish key.
func extractRecords(payload any) []rawRecord {
	var records []rawRecord
	var walk func(node any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			dateKey, hasDate := findKey(n, dateKeys, true)
			volumeKey, hasVolume := findKey(n, volumeKeys, false)
			if hasDate && hasVolume {
				rec := rawRecord{date: n[dateKey], volume: n[volumeKey]}
				if k, ok := findKey(n, costKeys, false); ok {
					rec.cost = n[k]
				}
				if k, ok := findKey(n, unitKeys, false); ok {
					rec.unit = n[k]
				}
				// Some revisions carry the index date under its own key;
				// prefer it when present.
				if v, ok := n["DATE_INDEX"]; ok {
					rec.date = v
				}
				records = append(records, rec)
			}
			for _, v := range n {
				walk(v)
			}
		case []any:
			for _, item := range n {
				walk(item)
			}
		}
	}
	walk(payload)
	return records
}

// normalizeRecord resolves units and produces a per-day reading. When no
// unit is declared, magnitude decides: household daily usage above 50 is
// liters, below is m³.
func normalizeRecord(rec rawRecord) (domain.DailyReading, bool) {
	date, ok := parseRecordDate(rec.date)
	if !ok {
		return domain.DailyReading{}, false
	}
	volume, ok := coerceFloat(rec.volume)
	if !ok {
		return domain.DailyReading{}, false
	}

	unit := ""
	if s, ok := rec.unit.(string); ok {
		unit = strings.ToLower(s)
	}

	var m3 float64
	switch {
	case strings.Contains(unit, "litre") || unit == "l":
		m3 = volume / 1000
	case strings.Contains(unit, "m3") || strings.Contains(unit, "m^3") || strings.Contains(unit, "m³"):
		m3 = volume
	case volume > 50:
		m3 = volume / 1000
	default:
		m3 = volume
	}

	reading := domain.DailyReading{Date: date, VolumeM3: m3}
	if cost, ok := coerceFloat(rec.cost); ok {
		reading.CostEUR = &cost
	}
	return reading, true
}

// findPrice locates the portal's advertised average price per m³ anywhere
// in the payload.
func findPrice(payload any) (float64, bool) {
	var price float64
	var found bool
	var walk func(node any)
	walk = func(node any) {
		if found {
			return
		}
		switch n := node.(type) {
		case map[string]any:
			for key, v := range n {
				if priceKeys[normalizeKey(key)] {
					if f, ok := coerceFloat(v); ok {
						price, found = f, true
						return
					}
				}
				walk(v)
			}
		case []any:
			for _, item := range n {
				walk(item)
			}
		}
	}
	walk(payload)
	return price, found
}

// indexEntry is one "value;date" element of the portal's indexMesure list.
type indexEntry struct {
	value float64
	date  domain.Date
}

func parseIndexEntries(v any) []indexEntry {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var entries []indexEntry
	for _, item := range list {
		s, ok := item.(string)
		if !ok || !strings.Contains(s, ";") {
			continue
		}
		valueRaw, dateRaw, _ := strings.Cut(s, ";")
		value, ok := coerceFloat(valueRaw)
		if !ok {
			continue
		}
		date, ok := parseRecordDate(dateRaw)
		if !ok {
			continue
		}
		entries = append(entries, indexEntry{value: value, date: date})
	}
	return entries
}

// collectMetadata fills meta with metering-point context found in the
// payload and returns any cumulative-index entries.
func collectMetadata(payload any, meta *Metadata) []indexEntry {
	var entries []indexEntry
	var walk func(node any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			for key, v := range n {
				switch normalizeKey(key) {
				case "numerocompteur":
					if s, ok := v.(string); ok && meta.MeterNumber == "" {
						meta.MeterNumber = s
					}
				case "idpds":
					if s, ok := v.(string); ok && meta.PDSID == "" {
						meta.PDSID = s
					}
				case "datedebut":
					if s, ok := v.(string); ok && meta.PeriodStart == "" {
						meta.PeriodStart = s
					}
				case "datefin":
					if s, ok := v.(string); ok && meta.PeriodEnd == "" {
						meta.PeriodEnd = s
					}
				case "consommationmax":
					if f, ok := coerceFloat(v); ok && meta.PortalMaxM3 == nil {
						meta.PortalMaxM3 = &f
					}
				case "dateconsommationmax":
					if s, ok := v.(string); ok && meta.PortalMaxDate == "" {
						meta.PortalMaxDate = s
					}
				case "consommationmoyenne":
					if f, ok := coerceFloat(v); ok && meta.PortalAverageM3 == nil {
						meta.PortalAverageM3 = &f
					}
				case "indexmesure":
					entries = append(entries, parseIndexEntries(v)...)
				}
				walk(v)
			}
		case []any:
			for _, item := range n {
				walk(item)
			}
		}
	}
	walk(payload)
	return entries
}

// BuildResult merges every captured payload into one fetch result:
// records extracted and deduplicated, price and metadata discovered,
// index entries attached to their matching days.
func BuildResult(payloads []any) (Result, error) {
	var res Result
	var entries []indexEntry
	byDate := map[domain.Date]*domain.DailyReading{}

	for _, payload := range payloads {
		entries = append(entries, collectMetadata(payload, &res.Meta)...)
		if res.PriceM3EUR == nil {
			if price, ok := findPrice(payload); ok {
				res.PriceM3EUR = &price
			}
		}
		for _, raw := range extractRecords(payload) {
			reading, ok := normalizeRecord(raw)
			if !ok {
				continue
			}
			// The same day often appears in several captured payloads;
			// first occurrence wins.
			if _, seen := byDate[reading.Date]; seen {
				continue
			}
			r := reading
			byDate[reading.Date] = &r
		}
	}

	if len(byDate) == 0 {
		return Result{}, ErrNoData
	}

	latest := indexEntry{}
	for _, e := range entries {
		if r, ok := byDate[e.date]; ok && r.MeterIndexM3 == nil {
			v := e.value
			r.MeterIndexM3 = &v
		}
		if latest.date.IsZero() || e.date.After(latest.date) {
			latest = e
		}
	}
	if !latest.date.IsZero() {
		v := latest.value
		res.Meta.IndexValueM3 = &v
		res.Meta.IndexDate = latest.date.String()
	}

	for _, r := range byDate {
		res.Readings = append(res.Readings, *r)
	}
	sort.Slice(res.Readings, func(i, j int) bool {
		return res.Readings[i].Date.Before(res.Readings[j].Date)
	})

	// The portal sometimes hands back more history than the trailing
	// window; older days are valid data, just out of scope.
	end := res.Readings[len(res.Readings)-1].Date
	cutoff := end.AddDays(-(domain.WindowDays - 1))
	for i, r := range res.Readings {
		if !r.Date.Before(cutoff) {
			res.Readings = res.Readings[i:]
			break
		}
	}
	return res, nil
}
