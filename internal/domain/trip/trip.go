package trip

import (
	"context"
	"time"

	"github.com/taxipark/station-dispatch/internal/notify"
)

// Phase is the lifecycle phase of an active trip.
type Phase string

const (
	PhaseMatched Phase = "matched"
	PhaseArrived Phase = "arrived"
	PhaseWaiting Phase = "waiting"
	PhaseRiding  Phase = "riding"
)

// Trip is the mutable record of one active ride. A driver owns at most one
// trip at a time, so the owning driver id is the natural key.
type Trip struct {
	DriverID      int64  `json:"driver_id"`
	ClientID      int64  `json:"client_id"`
	ClientName    string `json:"client_name"`
	ClientContact string `json:"client_contact"`

	PickupLat float64 `json:"pickup_lat"`
	PickupLon float64 `json:"pickup_lon"`

	// LastLat/LastLon anchor distance accrual to the last accepted sample.
	// Nil until the ride starts and the first position is known, so the
	// approach leg to the pickup is never billed.
	LastLat *float64 `json:"last_lat,omitempty"`
	LastLon *float64 `json:"last_lon,omitempty"`

	DistanceKM    float64    `json:"distance_km"`
	WaitStartedAt *time.Time `json:"wait_started_at,omitempty"`
	WaitMinutes   float64    `json:"wait_minutes"`

	Phase Phase `json:"phase"`

	// Message handles the live refresh loop edits in place.
	DriverMsg notify.Handle `json:"driver_msg"`
	ClientMsg notify.Handle `json:"client_msg"`

	CreatedAt time.Time `json:"created_at"`
}

// LiveWaitMinutes returns the accumulated wait plus any currently open
// interval, measured up to now.
func (t *Trip) LiveWaitMinutes(now time.Time) float64 {
	total := t.WaitMinutes
	if t.WaitStartedAt != nil {
		total += now.Sub(*t.WaitStartedAt).Minutes()
	}
	return total
}

// Store is the shared trip table. Update and Remove run their mutation
// under the row lock so concurrent position samples, button presses and
// refresh-loop reads never interleave on the same trip.
type Store interface {
	// Create inserts a new trip; fails if the driver already owns one.
	Create(ctx context.Context, t *Trip) error

	// Get returns a copy of the trip, or ErrTripNotFound.
	Get(ctx context.Context, driverID int64) (*Trip, error)

	// Update applies fn to the trip under its row lock. If fn returns an
	// error the mutation is discarded and the error is passed through.
	Update(ctx context.Context, driverID int64, fn func(*Trip) error) error

	// Remove applies fn under the row lock and deletes the trip when fn
	// succeeds. Deletion is what makes the refresh loop terminate.
	Remove(ctx context.Context, driverID int64, fn func(*Trip) error) error
}
