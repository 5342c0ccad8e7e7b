package driver

import "context"

// Repository defines the interface for driver data access
type Repository interface {
	// Get retrieves a driver by ID
	Get(ctx context.Context, id int64) (*Driver, error)

	// Save upserts a driver row
	Save(ctx context.Context, driver *Driver) error

	// QueuedAtStation retrieves queued drivers assigned to a station,
	// ordered oldest queued_at first (FIFO)
	QueuedAtStation(ctx context.Context, stationName string) ([]*Driver, error)

	// Queued retrieves all queued drivers across stations, FIFO ordered
	Queued(ctx context.Context) ([]*Driver, error)
}
