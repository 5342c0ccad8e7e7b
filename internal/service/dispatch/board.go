package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Order is an open ride request that has not been accepted yet.
type Order struct {
	ID            uuid.UUID `json:"id"`
	ClientID      int64     `json:"client_id"`
	ClientName    string    `json:"client_name"`
	ClientContact string    `json:"client_contact"`
	PickupLat     float64   `json:"pickup_lat"`
	PickupLon     float64   `json:"pickup_lon"`
	Station       string    `json:"station"`
	Excluded      []int64   `json:"excluded,omitempty"`
	OfferedTo     *int64    `json:"offered_to,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExcludedSet returns the declined drivers as a set for the matcher.
func (o *Order) ExcludedSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(o.Excluded))
	for _, id := range o.Excluded {
		set[id] = struct{}{}
	}
	return set
}

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderClaimed  = errors.New("order already claimed")
)

// Board stores open orders and arbitrates concurrent accepts: Claim is
// first write wins, the losing driver gets ErrOrderClaimed.
type Board interface {
	Put(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	// Claim atomically marks the order as taken by driverID.
	Claim(ctx context.Context, id uuid.UUID, driverID int64) error
	// Unclaim releases a claim that did not turn into a trip, so the
	// order is acceptable again. Only the claiming driver's claim is
	// released; anyone else's call is a no-op.
	Unclaim(ctx context.Context, id uuid.UUID, driverID int64) error
	// Exclude records a declined driver and returns the updated order.
	Exclude(ctx context.Context, id uuid.UUID, driverID int64) (*Order, error)
	// SetOffered records which driver currently holds the offer.
	SetOffered(ctx context.Context, id uuid.UUID, driverID *int64) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// MemoryBoard is the in-process Board implementation.
type MemoryBoard struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*Order
	claimed map[uuid.UUID]int64
}

// NewMemoryBoard creates an empty in-memory order board.
func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{
		orders:  make(map[uuid.UUID]*Order),
		claimed: make(map[uuid.UUID]int64),
	}
}

func (b *MemoryBoard) Put(ctx context.Context, o *Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *o
	b.orders[o.ID] = &c
	return nil
}

func (b *MemoryBoard) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (b *MemoryBoard) Claim(ctx context.Context, id uuid.UUID, driverID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[id]; !ok {
		return ErrOrderNotFound
	}
	if _, taken := b.claimed[id]; taken {
		return ErrOrderClaimed
	}
	b.claimed[id] = driverID
	return nil
}

func (b *MemoryBoard) Unclaim(ctx context.Context, id uuid.UUID, driverID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if owner, taken := b.claimed[id]; taken && owner == driverID {
		delete(b.claimed, id)
	}
	return nil
}

func (b *MemoryBoard) Exclude(ctx context.Context, id uuid.UUID, driverID int64) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	for _, ex := range o.Excluded {
		if ex == driverID {
			c := *o
			return &c, nil
		}
	}
	o.Excluded = append(o.Excluded, driverID)
	if o.OfferedTo != nil && *o.OfferedTo == driverID {
		o.OfferedTo = nil
	}
	c := *o
	return &c, nil
}

func (b *MemoryBoard) SetOffered(ctx context.Context, id uuid.UUID, driverID *int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.OfferedTo = driverID
	return nil
}

func (b *MemoryBoard) Remove(ctx context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, id)
	delete(b.claimed, id)
	return nil
}
