package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxipark/station-dispatch/internal/domain/driver"
)

func queuedDriver(id int64, stationName string, joined time.Time) *driver.Driver {
	d := &driver.Driver{ID: id, Status: driver.StatusOffline}
	d.Enqueue(stationName, joined)
	return d
}

func TestMemoryDriverRepository_GetUnknown(t *testing.T) {
	r := NewMemoryDriverRepository()
	_, err := r.Get(context.Background(), 42)
	assert.ErrorIs(t, err, driver.ErrDriverNotFound)
}

func TestMemoryDriverRepository_QueueOrderIsJoinTime(t *testing.T) {
	r := NewMemoryDriverRepository()
	ctx := context.Background()
	base := time.Now()

	// Saved out of join order on purpose.
	require.NoError(t, r.Save(ctx, queuedDriver(3, "Markaz", base.Add(2*time.Minute))))
	require.NoError(t, r.Save(ctx, queuedDriver(1, "Markaz", base)))
	require.NoError(t, r.Save(ctx, queuedDriver(2, "Markaz", base.Add(time.Minute))))

	queued, err := r.QueuedAtStation(ctx, "Markaz")
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, int64(1), queued[0].ID)
	assert.Equal(t, int64(2), queued[1].ID)
	assert.Equal(t, int64(3), queued[2].ID)
}

func TestMemoryDriverRepository_TiesBreakOnID(t *testing.T) {
	r := NewMemoryDriverRepository()
	ctx := context.Background()
	joined := time.Now()

	require.NoError(t, r.Save(ctx, queuedDriver(9, "Markaz", joined)))
	require.NoError(t, r.Save(ctx, queuedDriver(4, "Markaz", joined)))

	queued, err := r.QueuedAtStation(ctx, "Markaz")
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, int64(4), queued[0].ID)
}

func TestMemoryDriverRepository_StationIsolation(t *testing.T) {
	r := NewMemoryDriverRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Save(ctx, queuedDriver(1, "Markaz", now)))
	require.NoError(t, r.Save(ctx, queuedDriver(2, "Chilonzor", now)))

	busy := queuedDriver(3, "Markaz", now)
	busy.SetBusy(now)
	require.NoError(t, r.Save(ctx, busy))

	queued, err := r.QueuedAtStation(ctx, "Markaz")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, int64(1), queued[0].ID)

	all, err := r.Queued(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryDriverRepository_SaveStoresCopy(t *testing.T) {
	r := NewMemoryDriverRepository()
	ctx := context.Background()

	d := queuedDriver(1, "Markaz", time.Now())
	require.NoError(t, r.Save(ctx, d))
	d.Status = driver.StatusBusy

	got, err := r.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, driver.StatusQueued, got.Status)
}
