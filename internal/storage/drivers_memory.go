package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
)

// MemoryDriverRepository is an in-memory driver.Repository used in tests
// and single-process deployments.
type MemoryDriverRepository struct {
	mu      sync.RWMutex
	drivers map[int64]driver.Driver
}

// NewMemoryDriverRepository creates an empty in-memory driver repository.
func NewMemoryDriverRepository() *MemoryDriverRepository {
	return &MemoryDriverRepository{drivers: make(map[int64]driver.Driver)}
}

func (r *MemoryDriverRepository) Get(ctx context.Context, id int64) (*driver.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	if !ok {
		return nil, driver.ErrDriverNotFound
	}
	return &d, nil
}

func (r *MemoryDriverRepository) Save(ctx context.Context, d *driver.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[d.ID] = *d
	return nil
}

func (r *MemoryDriverRepository) QueuedAtStation(ctx context.Context, stationName string) ([]*driver.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*driver.Driver
	for _, d := range r.drivers {
		if d.Status == driver.StatusQueued && d.Station != nil && *d.Station == stationName {
			c := d
			out = append(out, &c)
		}
	}
	sortByQueuedAt(out)
	return out, nil
}

func (r *MemoryDriverRepository) Queued(ctx context.Context) ([]*driver.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*driver.Driver
	for _, d := range r.drivers {
		if d.Status == driver.StatusQueued {
			c := d
			out = append(out, &c)
		}
	}
	sortByQueuedAt(out)
	return out, nil
}

// sortByQueuedAt orders oldest-joined first, id as a deterministic tie-break.
func sortByQueuedAt(drivers []*driver.Driver) {
	sort.Slice(drivers, func(i, j int) bool {
		qi, qj := drivers[i].QueuedAt, drivers[j].QueuedAt
		switch {
		case qi == nil && qj == nil:
			return drivers[i].ID < drivers[j].ID
		case qi == nil:
			return false
		case qj == nil:
			return true
		case qi.Equal(*qj):
			return drivers[i].ID < drivers[j].ID
		default:
			return qi.Before(*qj)
		}
	})
}
