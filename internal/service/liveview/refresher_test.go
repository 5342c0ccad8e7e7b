package liveview

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxipark/station-dispatch/internal/domain/trip"
	"github.com/taxipark/station-dispatch/internal/notify"
	"github.com/taxipark/station-dispatch/internal/service/pricing"
	"github.com/taxipark/station-dispatch/internal/storage"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

type recordingNotifier struct {
	mu     sync.Mutex
	nextID int64
	texts  map[int64][]string
	fail   bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{texts: make(map[int64][]string)}
}

func (n *recordingNotifier) Send(ctx context.Context, recipientID int64, text string) (notify.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return notify.Handle{}, errors.New("blocked")
	}
	n.nextID++
	n.texts[recipientID] = append(n.texts[recipientID], text)
	return notify.Handle{RecipientID: recipientID, MessageID: n.nextID}, nil
}

func (n *recordingNotifier) Edit(ctx context.Context, h notify.Handle, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("blocked")
	}
	n.texts[h.RecipientID] = append(n.texts[h.RecipientID], text)
	return nil
}

func (n *recordingNotifier) setFail(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fail
}

func (n *recordingNotifier) textsFor(recipientID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.texts[recipientID]))
	copy(out, n.texts[recipientID])
	return out
}

func testTariff() pricing.Tariff {
	return pricing.Tariff{BaseFare: 5000, FreeDistanceKM: 1.0, PerKMRate: 1000, PerMinuteRate: 500}
}

func seedTrip(t *testing.T, store *storage.MemoryTripStore, driverID int64) {
	t.Helper()
	err := store.Create(context.Background(), &trip.Trip{
		DriverID:  driverID,
		ClientID:  900,
		Phase:     trip.PhaseRiding,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

// fareFromStatus extracts the amount from a status line like
// "... Fare: 9500 so'm".
func fareFromStatus(t *testing.T, line string) float64 {
	t.Helper()
	i := strings.Index(line, "Fare: ")
	require.GreaterOrEqual(t, i, 0, "status line %q has no fare", line)
	rest := strings.TrimSuffix(line[i+len("Fare: "):], " so'm")
	v, err := strconv.ParseFloat(rest, 64)
	require.NoError(t, err)
	return v
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRefresher_TerminatesWhenTripDisappears(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	seedTrip(t, store, 1)
	r.Start(1)
	eventually(t, time.Second, func() bool { return len(notif.textsFor(1)) > 0 })

	require.NoError(t, store.Remove(context.Background(), 1, func(*trip.Trip) error { return nil }))
	eventually(t, time.Second, func() bool { return !r.Running(1) })
}

func TestRefresher_DuplicateStartIsNoOp(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	seedTrip(t, store, 1)
	r.Start(1)
	r.Start(1)

	r.mu.Lock()
	running := len(r.running)
	r.mu.Unlock()
	assert.Equal(t, 1, running)
}

func TestRefresher_LiveFareIsNonDecreasing(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	seedTrip(t, store, 1)
	r.Start(1)

	// Grow the accumulators between ticks the way position ingest would.
	for i := 0; i < 5; i++ {
		time.Sleep(15 * time.Millisecond)
		require.NoError(t, store.Update(context.Background(), 1, func(tr *trip.Trip) error {
			tr.DistanceKM += 0.4
			return nil
		}))
	}
	eventually(t, time.Second, func() bool { return len(notif.textsFor(900)) >= 4 })

	lines := notif.textsFor(900)
	prev := 0.0
	for _, line := range lines {
		fare := fareFromStatus(t, line)
		assert.GreaterOrEqual(t, fare, prev, "live fare decreased across ticks: %v", lines)
		prev = fare
	}
}

func TestRefresher_PushesToBothParties(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	seedTrip(t, store, 1)
	r.Start(1)

	eventually(t, time.Second, func() bool {
		return len(notif.textsFor(1)) > 0 && len(notif.textsFor(900)) > 0
	})
}

func TestRefresher_SurvivesDeliveryFailures(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	seedTrip(t, store, 1)
	notif.setFail(true)
	r.Start(1)

	// Let a few failing ticks pass; the loop must stay alive.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, r.Running(1))

	// Recovery: pushes resume on the next tick.
	notif.setFail(false)
	eventually(t, time.Second, func() bool { return len(notif.textsFor(1)) > 0 })

	// And the loop still honors trip deletion.
	require.NoError(t, store.Remove(context.Background(), 1, func(*trip.Trip) error { return nil }))
	eventually(t, time.Second, func() bool { return !r.Running(1) })
}

func TestRefresher_IncludesOpenWaitInterval(t *testing.T) {
	store := storage.NewMemoryTripStore()
	notif := newRecordingNotifier()
	r := NewRefresher(store, testTariff(), notif, 10*time.Millisecond, logger.Nop())
	defer r.Close()

	started := time.Now().Add(-10 * time.Minute)
	err := store.Create(context.Background(), &trip.Trip{
		DriverID:      1,
		ClientID:      900,
		Phase:         trip.PhaseWaiting,
		WaitStartedAt: &started,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	r.Start(1)
	eventually(t, time.Second, func() bool { return len(notif.textsFor(900)) > 0 })

	// 10 open minutes at 500/min on top of the 5000 base.
	fare := fareFromStatus(t, notif.textsFor(900)[0])
	assert.Equal(t, 10000.0, fare)
}
