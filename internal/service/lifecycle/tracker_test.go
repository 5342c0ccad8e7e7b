package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/storage"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

func newTrackerFixture() (*Tracker, *storage.MemoryDriverRepository, *time.Time) {
	drivers := storage.NewMemoryDriverRepository()
	stations := station.NewIndex([]station.Station{
		{Name: "Markaz", Lat: 41.3111, Lon: 69.2797},
		{Name: "Chilonzor", Lat: 41.2747, Lon: 69.2054},
	})
	tr := NewTracker(drivers, stations, logger.Nop())
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }
	return tr, drivers, &clock
}

func TestTrack_RegistersUnknownDriverAtNearestStation(t *testing.T) {
	tr, drivers, _ := newTrackerFixture()

	require.NoError(t, tr.Track(context.Background(), 42, 41.2750, 69.2060))

	d, err := drivers.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusQueued, d.Status)
	require.NotNil(t, d.Station)
	assert.Equal(t, "Chilonzor", *d.Station)
	require.NotNil(t, d.QueuedAt)
	require.NotNil(t, d.LastLat)
	assert.InDelta(t, 41.2750, *d.LastLat, 1e-9)
}

func TestTrack_RestationsQueuedDriverWithoutRefreshingQueuedAt(t *testing.T) {
	tr, drivers, clock := newTrackerFixture()

	require.NoError(t, tr.Track(context.Background(), 7, 41.3111, 69.2797))
	d, err := drivers.Get(context.Background(), 7)
	require.NoError(t, err)
	joined := *d.QueuedAt

	*clock = clock.Add(10 * time.Minute)
	require.NoError(t, tr.Track(context.Background(), 7, 41.2747, 69.2054))

	d, err = drivers.Get(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, d.Station)
	assert.Equal(t, "Chilonzor", *d.Station)
	require.NotNil(t, d.QueuedAt)
	assert.True(t, d.QueuedAt.Equal(joined), "queue-join time must survive re-stationing")
}

func TestTrack_BusyDriverKeepsStationAndStatus(t *testing.T) {
	tr, drivers, clock := newTrackerFixture()

	d := &driver.Driver{ID: 9}
	d.Enqueue("Markaz", *clock)
	d.SetBusy(*clock)
	require.NoError(t, drivers.Save(context.Background(), d))

	require.NoError(t, tr.Track(context.Background(), 9, 41.2747, 69.2054))

	got, err := drivers.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusBusy, got.Status)
	require.NotNil(t, got.Station)
	assert.Equal(t, "Markaz", *got.Station)
	require.NotNil(t, got.LastLat)
	assert.InDelta(t, 41.2747, *got.LastLat, 1e-9)
}
