package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// Tracker maintains driver rows from position samples: unknown drivers are
// created and queued at the nearest station, queued drivers are
// re-stationed as they move without losing their queue-join time. It has
// no view of trips; distance accrual stays with the Engine that owns the
// trip store.
type Tracker struct {
	drivers  driver.Repository
	stations *station.Index
	logger   *logger.Logger
	now      func() time.Time
}

// NewTracker creates a tracker over the given registry and station index.
func NewTracker(drivers driver.Repository, stations *station.Index, log *logger.Logger) *Tracker {
	return &Tracker{
		drivers:  drivers,
		stations: stations,
		logger:   log,
		now:      time.Now,
	}
}

// Track upserts the driver row for one position sample.
func (tr *Tracker) Track(ctx context.Context, driverID int64, lat, lon float64) error {
	now := tr.now()
	d, err := tr.drivers.Get(ctx, driverID)
	switch {
	case errors.Is(err, driver.ErrDriverNotFound):
		d = &driver.Driver{ID: driverID}
		st, _ := tr.stations.Nearest(lat, lon)
		d.Enqueue(st.Name, now)
		tr.logger.Info("Driver registered from position report",
			logger.Int64("driver_id", driverID),
			logger.String("station", st.Name),
		)
	case err != nil:
		return err
	}

	d.SetLocation(lat, lon)
	if d.Status == driver.StatusQueued {
		if st, _ := tr.stations.Nearest(lat, lon); d.Station == nil || *d.Station != st.Name {
			d.Station = &st.Name
		}
	}
	return tr.drivers.Save(ctx, d)
}
