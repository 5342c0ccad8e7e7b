package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/storage"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

func testStations() *station.Index {
	return station.NewIndex([]station.Station{
		{Name: "Markaz", Lat: 41.3111, Lon: 69.2797},
		{Name: "Chilonzor", Lat: 41.2747, Lon: 69.2054},
	})
}

func queueDriver(t *testing.T, repo driver.Repository, id int64, stationName string, queuedAt time.Time) {
	t.Helper()
	d := &driver.Driver{ID: id, Name: "Driver", Status: driver.StatusQueued}
	d.Enqueue(stationName, queuedAt)
	require.NoError(t, repo.Save(context.Background(), d))
}

// TestMatch_FIFO tests that the longest-queued driver wins
func TestMatch_FIFO(t *testing.T) {
	repo := storage.NewMemoryDriverRepository()
	base := time.Now().Add(-time.Hour)
	queueDriver(t, repo, 2, "Markaz", base.Add(10*time.Second))
	queueDriver(t, repo, 1, "Markaz", base)

	m := NewMatcher(repo, testStations(), logger.Nop())

	// Pickup near Markaz
	cand, err := m.Match(context.Background(), 41.3110, 69.2800, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cand.Driver.ID)
	assert.Equal(t, "Markaz", cand.Station)
}

// TestMatch_SkipChain tests declined drivers are excluded until the pool runs out
func TestMatch_SkipChain(t *testing.T) {
	repo := storage.NewMemoryDriverRepository()
	base := time.Now().Add(-time.Hour)
	queueDriver(t, repo, 1, "Markaz", base)
	queueDriver(t, repo, 2, "Markaz", base.Add(10*time.Second))

	m := NewMatcher(repo, testStations(), logger.Nop())
	ctx := context.Background()

	cand, err := m.Match(ctx, 41.3110, 69.2800, map[int64]struct{}{1: {}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cand.Driver.ID)

	_, err = m.Match(ctx, 41.3110, 69.2800, map[int64]struct{}{1: {}, 2: {}})
	assert.ErrorIs(t, err, driver.ErrNoDriversAvailable)
}

// TestMatch_OnlyNearestStationQueue tests drivers at other stations are ignored
func TestMatch_OnlyNearestStationQueue(t *testing.T) {
	repo := storage.NewMemoryDriverRepository()
	queueDriver(t, repo, 1, "Chilonzor", time.Now().Add(-time.Hour))

	m := NewMatcher(repo, testStations(), logger.Nop())

	_, err := m.Match(context.Background(), 41.3110, 69.2800, nil)
	assert.ErrorIs(t, err, driver.ErrNoDriversAvailable)
}

// TestMatch_BusyDriversNotCandidates tests busy drivers never match
func TestMatch_BusyDriversNotCandidates(t *testing.T) {
	repo := storage.NewMemoryDriverRepository()
	d := &driver.Driver{ID: 1, Status: driver.StatusBusy}
	st := "Markaz"
	d.Station = &st
	require.NoError(t, repo.Save(context.Background(), d))

	m := NewMatcher(repo, testStations(), logger.Nop())

	_, err := m.Match(context.Background(), 41.3110, 69.2800, nil)
	assert.ErrorIs(t, err, driver.ErrNoDriversAvailable)
}

// TestMemoryBoard_ClaimFirstWriteWins tests concurrent accepts resolve to one winner
func TestMemoryBoard_ClaimFirstWriteWins(t *testing.T) {
	board := NewMemoryBoard()
	ctx := context.Background()

	o := &Order{ID: uuid.New(), ClientID: 100, Station: "Markaz", CreatedAt: time.Now()}
	require.NoError(t, board.Put(ctx, o))

	const drivers = 8
	var wg sync.WaitGroup
	wins := make(chan int64, drivers)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := board.Claim(ctx, o.ID, id); err == nil {
				wins <- id
			}
		}(int64(i + 1))
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for id := range wins {
		winners = append(winners, id)
	}
	assert.Len(t, winners, 1)
}

// TestMemoryBoard_ClaimMissingOrder tests stale accepts are reported, not crashed
func TestMemoryBoard_ClaimMissingOrder(t *testing.T) {
	board := NewMemoryBoard()
	err := board.Claim(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// TestMemoryBoard_UnclaimReopensOrder tests a failed accept frees the order
func TestMemoryBoard_UnclaimReopensOrder(t *testing.T) {
	board := NewMemoryBoard()
	ctx := context.Background()

	o := &Order{ID: uuid.New(), ClientID: 100, Station: "Markaz", CreatedAt: time.Now()}
	require.NoError(t, board.Put(ctx, o))

	require.NoError(t, board.Claim(ctx, o.ID, 1))
	assert.ErrorIs(t, board.Claim(ctx, o.ID, 2), ErrOrderClaimed)

	require.NoError(t, board.Unclaim(ctx, o.ID, 1))
	assert.NoError(t, board.Claim(ctx, o.ID, 2))
}

// TestMemoryBoard_UnclaimByNonOwnerIsNoOp tests another driver cannot steal a claim
func TestMemoryBoard_UnclaimByNonOwnerIsNoOp(t *testing.T) {
	board := NewMemoryBoard()
	ctx := context.Background()

	o := &Order{ID: uuid.New(), ClientID: 100, Station: "Markaz", CreatedAt: time.Now()}
	require.NoError(t, board.Put(ctx, o))

	require.NoError(t, board.Claim(ctx, o.ID, 1))
	require.NoError(t, board.Unclaim(ctx, o.ID, 2))
	assert.ErrorIs(t, board.Claim(ctx, o.ID, 3), ErrOrderClaimed)
}

// TestMemoryBoard_ExcludeIsIdempotent tests double declines don't duplicate ids
func TestMemoryBoard_ExcludeIsIdempotent(t *testing.T) {
	board := NewMemoryBoard()
	ctx := context.Background()

	o := &Order{ID: uuid.New(), ClientID: 100, CreatedAt: time.Now()}
	require.NoError(t, board.Put(ctx, o))

	_, err := board.Exclude(ctx, o.ID, 7)
	require.NoError(t, err)
	got, err := board.Exclude(ctx, o.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, got.Excluded)
}
