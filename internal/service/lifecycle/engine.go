package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/domain/trip"
	"github.com/taxipark/station-dispatch/internal/geo"
	"github.com/taxipark/station-dispatch/internal/notify"
	"github.com/taxipark/station-dispatch/internal/observability"
	"github.com/taxipark/station-dispatch/internal/service/pricing"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// FinishPolicy controls where a driver goes after settlement.
type FinishPolicy string

const (
	// FinishRequeue returns the driver to the same station queue with a
	// fresh queue-join timestamp.
	FinishRequeue FinishPolicy = "requeue"
	// FinishOffline takes the driver out of dispatch after each trip.
	FinishOffline FinishPolicy = "offline"
)

// Config holds the engine's tunables.
type Config struct {
	// MinStepKM/MaxStepKM bound a single accepted position step. Steps
	// below the minimum are GPS jitter, steps above the maximum are
	// teleports; both are dropped without moving the accrual anchor.
	MinStepKM    float64
	MaxStepKM    float64
	FinishPolicy FinishPolicy
}

// LiveStarter launches the per-trip refresh loop. Implemented by
// liveview.Refresher.
type LiveStarter interface {
	Start(driverID int64)
}

// AcceptRequest carries everything needed to open a trip.
type AcceptRequest struct {
	DriverID      int64
	ClientID      int64
	ClientName    string
	ClientContact string
	PickupLat     float64
	PickupLon     float64
}

// Settlement is the final bill produced by Finish.
type Settlement struct {
	DriverID    int64   `json:"driver_id"`
	ClientID    int64   `json:"client_id"`
	DistanceKM  float64 `json:"distance_km"`
	WaitMinutes float64 `json:"wait_minutes"`
	Fare        float64 `json:"fare"`
}

// Engine owns the trip state machine: every transition, the wait clock and
// the distance accumulator go through here. Per-trip serialization is
// delegated to the trip store's row locks.
type Engine struct {
	drivers  driver.Repository
	trips    trip.Store
	stations *station.Index
	tracker  *Tracker
	notifier notify.Notifier
	live     LiveStarter
	tariff   pricing.Tariff
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// NewEngine wires the engine. live may be nil when no refresh loop is
// wanted (some tests).
func NewEngine(
	drivers driver.Repository,
	trips trip.Store,
	stations *station.Index,
	notifier notify.Notifier,
	live LiveStarter,
	tariff pricing.Tariff,
	cfg Config,
	log *logger.Logger,
) *Engine {
	if cfg.FinishPolicy == "" {
		cfg.FinishPolicy = FinishRequeue
	}
	return &Engine{
		drivers:  drivers,
		trips:    trips,
		stations: stations,
		tracker:  NewTracker(drivers, stations, log),
		notifier: notifier,
		live:     live,
		tariff:   tariff,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Tariff exposes the configured tariff for read-side fare previews.
func (e *Engine) Tariff() pricing.Tariff {
	return e.tariff
}

// Accept opens a trip for the driver. The driver must be queued; the trip
// store enforces one active trip per driver, so a second accept for the
// same driver reports a conflict instead of corrupting state.
func (e *Engine) Accept(ctx context.Context, req AcceptRequest) (*trip.Trip, error) {
	d, err := e.drivers.Get(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if !d.CanAcceptRides() {
		return nil, driver.ErrDriverNotAvailable
	}

	now := e.now()
	t := &trip.Trip{
		DriverID:      req.DriverID,
		ClientID:      req.ClientID,
		ClientName:    req.ClientName,
		ClientContact: req.ClientContact,
		PickupLat:     req.PickupLat,
		PickupLon:     req.PickupLon,
		Phase:         trip.PhaseMatched,
		CreatedAt:     now,
	}
	if err := e.trips.Create(ctx, t); err != nil {
		return nil, err
	}

	d.SetBusy(now)
	if err := e.drivers.Save(ctx, d); err != nil {
		// Roll the trip back so the driver is not stuck half-accepted.
		_ = e.trips.Remove(ctx, req.DriverID, func(*trip.Trip) error { return nil })
		return nil, err
	}

	observability.TripsAccepted.Inc()
	e.logger.Info("Trip accepted",
		logger.Int64("driver_id", req.DriverID),
		logger.Int64("client_id", req.ClientID),
	)
	return t, nil
}

// Arrive marks the driver as arrived at the pickup point, pushes the
// initial status message to both parties and starts the live refresh loop.
// A duplicate arrive is a no-op.
func (e *Engine) Arrive(ctx context.Context, driverID int64) error {
	transitioned := false
	err := e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		if t.Phase != trip.PhaseMatched {
			return nil
		}
		t.Phase = trip.PhaseArrived
		transitioned = true
		return nil
	})
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	e.sendInitialStatus(ctx, driverID)
	if e.live != nil {
		e.live.Start(driverID)
	}
	e.logger.Info("Driver arrived at pickup", logger.Int64("driver_id", driverID))
	return nil
}

// StartWait starts the wait clock. Calling it again while the clock is
// already running is a no-op and must not reset the clock.
func (e *Engine) StartWait(ctx context.Context, driverID int64) error {
	return e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		e.startWait(t)
		return nil
	})
}

// StopWait closes the open wait interval and freezes its duration into the
// accumulated total. A no-op when the clock is not running.
func (e *Engine) StopWait(ctx context.Context, driverID int64) error {
	return e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		e.stopWait(t)
		return nil
	})
}

// ToggleWait flips the wait clock and reports whether it is now running.
func (e *Engine) ToggleWait(ctx context.Context, driverID int64) (waiting bool, err error) {
	err = e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		if t.WaitStartedAt == nil {
			e.startWait(t)
			waiting = true
		} else {
			e.stopWait(t)
		}
		return nil
	})
	return waiting, err
}

// StartRide moves the trip into the riding phase. Any running wait clock
// is stopped first. The distance anchor is reset to the driver's current
// known position, never the pickup point, so the approach leg is free.
func (e *Engine) StartRide(ctx context.Context, driverID int64) error {
	var pos *geo.Point
	if d, err := e.drivers.Get(ctx, driverID); err == nil {
		pos = d.Location()
	}

	err := e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		e.stopWait(t)
		t.Phase = trip.PhaseRiding
		if pos != nil {
			t.LastLat = &pos.Lat
			t.LastLon = &pos.Lon
		} else {
			// Unknown position: the first riding sample becomes the anchor.
			t.LastLat = nil
			t.LastLon = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Ride started", logger.Int64("driver_id", driverID))
	return nil
}

// IngestPosition handles one asynchronous position sample for a driver.
// The driver row is always updated (implicit creation on first report,
// re-stationing while queued); distance accrues only while riding and only
// for steps inside the noise/teleport bounds.
func (e *Engine) IngestPosition(ctx context.Context, driverID int64, lat, lon float64) error {
	if err := e.tracker.Track(ctx, driverID, lat, lon); err != nil {
		return err
	}

	err := e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		if t.Phase != trip.PhaseRiding {
			return nil
		}
		if t.LastLat == nil || t.LastLon == nil {
			t.LastLat = &lat
			t.LastLon = &lon
			return nil
		}

		step := geo.HaversineKM(*t.LastLat, *t.LastLon, lat, lon)
		if step < e.cfg.MinStepKM || step > e.cfg.MaxStepKM {
			// Rejected samples leave the anchor where it is: the next good
			// step is measured against the last accepted location.
			observability.SamplesRejected.Inc()
			e.logger.Debug("Position sample rejected",
				logger.Int64("driver_id", driverID),
				logger.Float64("step_km", step),
			)
			return nil
		}

		t.DistanceKM += step
		t.LastLat = &lat
		t.LastLon = &lon
		observability.SamplesAccepted.Inc()
		return nil
	})
	if errors.Is(err, trip.ErrTripNotFound) {
		return nil
	}
	return err
}

// Finish settles the trip: closes the wait clock, prices the accumulated
// distance and wait with the same fare function the live display uses,
// deletes the trip record (which terminates the refresh loop) and returns
// the driver to dispatch per the configured policy.
func (e *Engine) Finish(ctx context.Context, driverID int64) (*Settlement, error) {
	var s Settlement
	err := e.trips.Remove(ctx, driverID, func(t *trip.Trip) error {
		e.stopWait(t)
		s = Settlement{
			DriverID:    t.DriverID,
			ClientID:    t.ClientID,
			DistanceKM:  t.DistanceKM,
			WaitMinutes: t.WaitMinutes,
			Fare:        e.tariff.Fare(t.DistanceKM, t.WaitMinutes),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.releaseDriver(ctx, driverID)

	text := fmt.Sprintf("Trip finished: %.2f km, %d min waiting. Fare: %.0f so'm",
		s.DistanceKM, int(s.WaitMinutes), s.Fare)
	e.deliver(ctx, s.DriverID, text)
	e.deliver(ctx, s.ClientID, text)

	observability.TripsFinished.Inc()
	e.logger.Info("Trip settled",
		logger.Int64("driver_id", s.DriverID),
		logger.Float64("distance_km", s.DistanceKM),
		logger.Float64("wait_minutes", s.WaitMinutes),
		logger.Float64("fare", s.Fare),
	)
	return &s, nil
}

// Cancel aborts a trip that has not started riding. The driver rejoins the
// station queue.
func (e *Engine) Cancel(ctx context.Context, driverID int64) error {
	var clientID int64
	err := e.trips.Remove(ctx, driverID, func(t *trip.Trip) error {
		if t.Phase == trip.PhaseRiding {
			return trip.ErrRideInProgress
		}
		clientID = t.ClientID
		return nil
	})
	if err != nil {
		return err
	}

	e.requeueDriver(ctx, driverID)
	e.deliver(ctx, clientID, "Your order was cancelled.")
	e.deliver(ctx, driverID, "Order cancelled, you are back in the queue.")

	observability.TripsCanceled.Inc()
	e.logger.Info("Trip cancelled", logger.Int64("driver_id", driverID))
	return nil
}

// startWait is idempotent: a running clock is never reset.
func (e *Engine) startWait(t *trip.Trip) {
	if t.WaitStartedAt != nil {
		return
	}
	now := e.now()
	t.WaitStartedAt = &now
	if t.Phase != trip.PhaseRiding {
		t.Phase = trip.PhaseWaiting
	}
}

func (e *Engine) stopWait(t *trip.Trip) {
	if t.WaitStartedAt == nil {
		return
	}
	t.WaitMinutes += e.now().Sub(*t.WaitStartedAt).Minutes()
	t.WaitStartedAt = nil
	if t.Phase == trip.PhaseWaiting {
		t.Phase = trip.PhaseArrived
	}
}

// releaseDriver applies the post-finish policy.
func (e *Engine) releaseDriver(ctx context.Context, driverID int64) {
	if e.cfg.FinishPolicy == FinishOffline {
		d, err := e.drivers.Get(ctx, driverID)
		if err != nil {
			return
		}
		d.SetOffline(e.now())
		if err := e.drivers.Save(ctx, d); err != nil {
			e.logger.Warn("Failed to set driver offline", logger.Int64("driver_id", driverID), logger.Err(err))
		}
		return
	}
	e.requeueDriver(ctx, driverID)
}

// requeueDriver puts the driver back in a station queue with a fresh
// queue-join timestamp.
func (e *Engine) requeueDriver(ctx context.Context, driverID int64) {
	d, err := e.drivers.Get(ctx, driverID)
	if err != nil {
		e.logger.Warn("Failed to load driver for requeue", logger.Int64("driver_id", driverID), logger.Err(err))
		return
	}

	stationName := ""
	if d.Station != nil {
		stationName = *d.Station
	} else if pos := d.Location(); pos != nil {
		st, _ := e.stations.Nearest(pos.Lat, pos.Lon)
		stationName = st.Name
	} else {
		stationName = station.DefaultStation.Name
	}

	d.Enqueue(stationName, e.now())
	if err := e.drivers.Save(ctx, d); err != nil {
		e.logger.Warn("Failed to requeue driver", logger.Int64("driver_id", driverID), logger.Err(err))
	}
}

// sendInitialStatus pushes the first status line to both parties and
// stores the message handles for the refresh loop to edit.
func (e *Engine) sendInitialStatus(ctx context.Context, driverID int64) {
	t, err := e.trips.Get(ctx, driverID)
	if err != nil {
		return
	}

	text := fmt.Sprintf("Driver arrived. Fare: %.0f so'm", e.tariff.Fare(0, 0))
	driverMsg, dErr := e.notifier.Send(ctx, t.DriverID, text)
	clientMsg, cErr := e.notifier.Send(ctx, t.ClientID, text)
	if dErr != nil {
		e.logger.Warn("Failed to push status to driver", logger.Int64("driver_id", t.DriverID), logger.Err(dErr))
	}
	if cErr != nil {
		e.logger.Warn("Failed to push status to client", logger.Int64("client_id", t.ClientID), logger.Err(cErr))
	}

	_ = e.trips.Update(ctx, driverID, func(t *trip.Trip) error {
		t.DriverMsg = driverMsg
		t.ClientMsg = clientMsg
		return nil
	})
}

// deliver is a one-shot best-effort push; delivery failures are logged and
// swallowed, never propagated into the state transition.
func (e *Engine) deliver(ctx context.Context, recipientID int64, text string) {
	if _, err := e.notifier.Send(ctx, recipientID, text); err != nil {
		e.logger.Warn("Delivery failed",
			logger.Int64("recipient_id", recipientID),
			logger.Err(err),
		)
	}
}
