package driver

import (
	"time"

	"github.com/taxipark/station-dispatch/internal/geo"
)

// Status represents driver availability status
type Status string

const (
	StatusOffline Status = "offline"
	StatusQueued  Status = "queued"
	StatusBusy    Status = "busy"
)

// Driver represents a driver entity. Drivers are identified by the opaque
// numeric id assigned by the messaging platform and are created implicitly
// on their first position report.
type Driver struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CarInfo   string     `json:"car_info"`
	Phone     string     `json:"phone"`
	Status    Status     `json:"status"`
	Station   *string    `json:"station,omitempty"`
	LastLat   *float64   `json:"last_lat,omitempty"`
	LastLon   *float64   `json:"last_lon,omitempty"`
	QueuedAt  *time.Time `json:"queued_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusOffline, StatusQueued, StatusBusy:
		return true
	}
	return false
}

// CanAcceptRides returns true if the driver can take a new order.
func (d *Driver) CanAcceptRides() bool {
	return d.Status == StatusQueued
}

// SetLocation updates the driver's last known position.
func (d *Driver) SetLocation(lat, lon float64) {
	d.LastLat = &lat
	d.LastLon = &lon
	d.UpdatedAt = time.Now()
}

// Location returns the driver's last known position, or nil if the driver
// has never reported one.
func (d *Driver) Location() *geo.Point {
	if d.LastLat == nil || d.LastLon == nil {
		return nil
	}
	return &geo.Point{Lat: *d.LastLat, Lon: *d.LastLon}
}

// Enqueue moves the driver into a station queue. The queue-join timestamp
// is refreshed only here, never while the driver is busy, so FIFO ordering
// survives position updates.
func (d *Driver) Enqueue(stationName string, now time.Time) {
	d.Status = StatusQueued
	d.Station = &stationName
	d.QueuedAt = &now
	d.UpdatedAt = now
}

// SetBusy marks the driver as occupied with an active trip.
func (d *Driver) SetBusy(now time.Time) {
	d.Status = StatusBusy
	d.UpdatedAt = now
}

// SetOffline removes the driver from dispatch entirely.
func (d *Driver) SetOffline(now time.Time) {
	d.Status = StatusOffline
	d.Station = nil
	d.QueuedAt = nil
	d.UpdatedAt = now
}
