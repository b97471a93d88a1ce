// Package source obtains raw daily consumption records from the water
// portal (or a captured fixture) for the trailing window.
package source

import (
	"context"
	"errors"

	"github.com/lfpoulain/ha-sedif/internal/domain"
)

// Failure classes the runner distinguishes between. Auth failures are
// configuration problems; the other two are transient and simply retried
// on the next scheduled run.
var (
	ErrAuthFailed  = errors.New("source: authentication failed")
	ErrNoData      = errors.New("source: no data for window")
	ErrUnavailable = errors.New("source: unavailable")
)

// Source yields one raw result per fetch. Implementations must bound
// their wait using ctx and classify failures with the sentinel errors
// above.
type Source interface {
	Fetch(ctx context.Context) (Result, error)
}

// Metadata is portal-supplied context about the metering point, carried
// through to the info entity. Everything here is optional.
type Metadata struct {
	MeterNumber string
	PDSID       string
	PeriodStart string // portal-declared window bounds, as reported
	PeriodEnd   string

	// The portal's own computed max/average over its window; kept for
	// auditing against our own figures.
	PortalMaxM3     *float64
	PortalMaxDate   string
	PortalAverageM3 *float64

	// Latest cumulative index seen in the portal's indexMesure entries,
	// whether or not its date matches a daily record.
	IndexValueM3 *float64
	IndexDate    string
}

// Result is everything one fetch learned from the portal.
type Result struct {
	Readings   []domain.DailyReading
	PriceM3EUR *float64 // portal-advertised average price, when found
	Meta       Metadata
}
