package liveview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taxipark/station-dispatch/internal/domain/trip"
	"github.com/taxipark/station-dispatch/internal/notify"
	"github.com/taxipark/station-dispatch/internal/observability"
	"github.com/taxipark/station-dispatch/internal/service/pricing"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// Refresher runs one background loop per active trip that keeps the fare
// display of both parties current. A loop is started once per trip (on
// driver arrival) and terminates on its own when it observes that the trip
// record is gone; no explicit cancellation signal is needed.
type Refresher struct {
	trips    trip.Store
	tariff   pricing.Tariff
	notifier notify.Notifier
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[int64]struct{}
}

// NewRefresher creates a refresher. Loops live until the trip disappears
// or Close is called.
func NewRefresher(trips trip.Store, tariff pricing.Tariff, notifier notify.Notifier, interval time.Duration, log *logger.Logger) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		trips:    trips,
		tariff:   tariff,
		notifier: notifier,
		interval: interval,
		logger:   log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[int64]struct{}),
	}
}

// Start launches the refresh loop for the driver's trip. A second Start
// for the same driver while a loop is alive is a no-op, so a duplicate
// arrive press never spawns a second loop.
func (r *Refresher) Start(driverID int64) {
	r.mu.Lock()
	if _, ok := r.running[driverID]; ok {
		r.mu.Unlock()
		return
	}
	r.running[driverID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(driverID)
}

// Running reports whether a loop is alive for the driver.
func (r *Refresher) Running(driverID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[driverID]
	return ok
}

// Close stops all loops and waits for them to exit.
func (r *Refresher) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) run(driverID int64) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.running, driverID)
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if done := r.tick(driverID); done {
				r.logger.Debug("Refresh loop finished", logger.Int64("driver_id", driverID))
				return
			}
		}
	}
}

// tick re-reads the trip and pushes one update. It returns true when the
// trip record is gone and the loop should exit.
func (r *Refresher) tick(driverID int64) bool {
	t, err := r.trips.Get(r.ctx, driverID)
	if errors.Is(err, trip.ErrTripNotFound) {
		return true
	}
	if err != nil {
		r.logger.Warn("Failed to read trip for refresh", logger.Int64("driver_id", driverID), logger.Err(err))
		return false
	}

	waitMin := t.LiveWaitMinutes(r.now())
	fare := r.tariff.Fare(t.DistanceKM, waitMin)
	text := statusLine(t, waitMin, fare)

	driverMsg := r.push(t.DriverMsg, t.DriverID, text)
	clientMsg := r.push(t.ClientMsg, t.ClientID, text)

	if driverMsg != t.DriverMsg || clientMsg != t.ClientMsg {
		_ = r.trips.Update(r.ctx, driverID, func(t *trip.Trip) error {
			t.DriverMsg = driverMsg
			t.ClientMsg = clientMsg
			return nil
		})
	}
	return false
}

// push edits the existing status message, or sends a fresh one when no
// message has been delivered yet. Failures are counted and retried on the
// next tick; they never kill the loop.
func (r *Refresher) push(handle notify.Handle, recipientID int64, text string) notify.Handle {
	if handle.IsZero() {
		newHandle, err := r.notifier.Send(r.ctx, recipientID, text)
		if err != nil {
			observability.RefreshPushFailures.Inc()
			r.logger.Debug("Refresh send failed", logger.Int64("recipient_id", recipientID), logger.Err(err))
			return handle
		}
		return newHandle
	}

	if err := r.notifier.Edit(r.ctx, handle, text); err != nil {
		observability.RefreshPushFailures.Inc()
		r.logger.Debug("Refresh edit failed", logger.Int64("recipient_id", recipientID), logger.Err(err))
	}
	return handle
}

func statusLine(t *trip.Trip, waitMin, fare float64) string {
	switch t.Phase {
	case trip.PhaseRiding:
		return fmt.Sprintf("On the way: %.2f km, %d min waited. Fare: %.0f so'm",
			t.DistanceKM, int(waitMin), fare)
	case trip.PhaseWaiting:
		return fmt.Sprintf("Waiting for client: %d min. Fare: %.0f so'm", int(waitMin), fare)
	default:
		return fmt.Sprintf("At pickup. Fare: %.0f so'm", fare)
	}
}
