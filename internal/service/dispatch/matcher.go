package dispatch

import (
	"context"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/observability"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// Candidate is the driver selected for an order.
type Candidate struct {
	Driver            *driver.Driver
	Station           string
	StationDistanceKM float64
}

// Matcher selects a queued driver for a pickup location. It is read-only:
// claiming the driver is the caller's responsibility.
type Matcher struct {
	drivers  driver.Repository
	stations *station.Index
	logger   *logger.Logger
}

// NewMatcher creates a matcher over the given registry and station index.
func NewMatcher(drivers driver.Repository, stations *station.Index, logger *logger.Logger) *Matcher {
	return &Matcher{
		drivers:  drivers,
		stations: stations,
		logger:   logger,
	}
}

// Match resolves the station nearest to the pickup point and returns the
// longest-queued driver there, skipping any id in excluded. A nil result
// with driver.ErrNoDriversAvailable means the station queue is exhausted
// and the caller should fall back to the open pool; that is a normal
// outcome, not a fault.
func (m *Matcher) Match(ctx context.Context, pickupLat, pickupLon float64, excluded map[int64]struct{}) (*Candidate, error) {
	st, stationDist := m.stations.Nearest(pickupLat, pickupLon)

	queued, err := m.drivers.QueuedAtStation(ctx, st.Name)
	if err != nil {
		return nil, err
	}

	for _, d := range queued {
		if _, skip := excluded[d.ID]; skip {
			continue
		}

		observability.MatchesTotal.Inc()
		m.logger.Info("Driver matched",
			logger.Int64("driver_id", d.ID),
			logger.String("station", st.Name),
			logger.Float64("pickup_distance_km", stationDist),
			logger.Int("excluded", len(excluded)),
		)
		return &Candidate{Driver: d, Station: st.Name, StationDistanceKM: stationDist}, nil
	}

	observability.NoMatchTotal.Inc()
	m.logger.Info("No queued driver at station, falling back to broadcast",
		logger.String("station", st.Name),
		logger.Int("queued", len(queued)),
		logger.Int("excluded", len(excluded)),
	)
	return nil, driver.ErrNoDriversAvailable
}
