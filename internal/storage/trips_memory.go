package storage

import (
	"context"
	"sync"

	"github.com/taxipark/station-dispatch/internal/domain/trip"
)

// MemoryTripStore keeps active trips in process memory with a lock per
// trip row. All engine mutations and refresh-loop reads for one trip are
// serialized on that row lock; different trips never contend.
type MemoryTripStore struct {
	mu    sync.RWMutex
	trips map[int64]*tripRow
}

type tripRow struct {
	mu      sync.Mutex
	t       trip.Trip
	deleted bool
}

// NewMemoryTripStore creates an empty trip store.
func NewMemoryTripStore() *MemoryTripStore {
	return &MemoryTripStore{trips: make(map[int64]*tripRow)}
}

func (s *MemoryTripStore) Create(ctx context.Context, t *trip.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[t.DriverID]; ok {
		return trip.ErrTripExists
	}
	s.trips[t.DriverID] = &tripRow{t: *t}
	return nil
}

func (s *MemoryTripStore) Get(ctx context.Context, driverID int64) (*trip.Trip, error) {
	row, err := s.row(driverID)
	if err != nil {
		return nil, err
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.deleted {
		return nil, trip.ErrTripNotFound
	}
	c := row.t
	return &c, nil
}

func (s *MemoryTripStore) Update(ctx context.Context, driverID int64, fn func(*trip.Trip) error) error {
	row, err := s.row(driverID)
	if err != nil {
		return err
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.deleted {
		return trip.ErrTripNotFound
	}
	// Mutate a copy so a failed fn leaves the row untouched.
	c := row.t
	if err := fn(&c); err != nil {
		return err
	}
	row.t = c
	return nil
}

func (s *MemoryTripStore) Remove(ctx context.Context, driverID int64, fn func(*trip.Trip) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.trips[driverID]
	if !ok {
		return trip.ErrTripNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	if row.deleted {
		return trip.ErrTripNotFound
	}
	if err := fn(&row.t); err != nil {
		return err
	}
	row.deleted = true
	delete(s.trips, driverID)
	return nil
}

func (s *MemoryTripStore) row(driverID int64) (*tripRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.trips[driverID]
	if !ok {
		return nil, trip.ErrTripNotFound
	}
	return row, nil
}
