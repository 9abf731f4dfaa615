package state_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/state"
)

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s := state.NewStore(0, events.Discard())
	t.Cleanup(s.Close)
	return s
}

func entry(id string) models.ScanHistoryEntry {
	return models.ScanHistoryEntry{ID: id, ToteID: "demo-tote-1", ScannedAt: time.Now(), Success: true}
}

func recv[T any](t *testing.T, sub *state.Subscription[T]) T {
	t.Helper()
	select {
	case v := <-sub.C:
		return v
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	var zero T
	return zero
}

func assertQuiet[T any](t *testing.T, sub *state.Subscription[T]) {
	t.Helper()
	select {
	case v := <-sub.C:
		t.Fatalf("unexpected notification: %v", v)
	default:
	}
}

func TestInitialState(t *testing.T) {
	s := newStore(t)

	assert.Equal(t, models.InitialAppState(), s.Snapshot())
	assert.Nil(t, s.CurrentTote())
	assert.Empty(t, s.ScanHistory())
	assert.False(t, s.IsLoading())
	assert.False(t, s.HasError())
	assert.Equal(t, models.ScanStatusIdle, s.ScanStatus())
	assert.Empty(t, s.LastScannedID())
}

func TestSetters(t *testing.T) {
	s := newStore(t)
	tote := &models.ToteContents{ToteID: "demo-tote-1"}

	s.SetCurrentTote(tote)
	s.SetLastScannedID("demo-tote-1")
	s.SetLoading(true, "Fetching")
	s.SetError(models.ErrorState{HasError: true, Message: "boom", Code: "HTTP_500", Retryable: true})
	s.SetScanStatus(models.ScanStatusSuccess)
	s.AddScanHistory(entry("a"))

	assert.Same(t, tote, s.CurrentTote())
	assert.Equal(t, "demo-tote-1", s.LastScannedID())
	assert.Equal(t, models.LoadingState{IsLoading: true, Message: "Fetching"}, s.Loading())
	assert.Equal(t, "boom", s.Error().Message)
	assert.Equal(t, models.ScanStatusSuccess, s.ScanStatus())
	require.Len(t, s.ScanHistory(), 1)

	s.SetLoading(false, "ignored")
	assert.Equal(t, models.LoadingState{}, s.Loading())
}

func TestInvariantsHold(t *testing.T) {
	s := newStore(t)

	s.SetScanStatus(models.ScanStatusScanning)
	assert.True(t, s.IsLoading())

	s.SetLoading(false, "")
	assert.True(t, s.IsLoading(), "SCANNING keeps loading on")

	s.SetScanStatus(models.ScanStatusError)
	assert.True(t, s.HasError())
	assert.Equal(t, models.GenericErrorMessage, s.Error().Message)
}

func TestHistoryIsNewestFirstAndBounded(t *testing.T) {
	s := newStore(t)

	for i := 0; i < models.MaxScanHistory+5; i++ {
		s.AddScanHistory(entry(fmt.Sprintf("e%d", i)))
	}

	history := s.ScanHistory()
	require.Len(t, history, models.MaxScanHistory)
	assert.Equal(t, "e54", history[0].ID)
	assert.Equal(t, "e5", history[len(history)-1].ID)
}

func TestHistoryCustomBound(t *testing.T) {
	s := state.NewStore(2, events.Discard())
	s.AddScanHistory(entry("a"))
	s.AddScanHistory(entry("b"))
	s.AddScanHistory(entry("c"))

	history := s.ScanHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].ID)
	assert.Equal(t, "b", history[1].ID)
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	s := newStore(t)
	s.AddScanHistory(entry("a"))

	before := s.Snapshot()
	s.AddScanHistory(entry("b"))

	require.Len(t, before.ScanHistory, 1)
	assert.Equal(t, "a", before.ScanHistory[0].ID)
}

func TestClearErrorAndHistory(t *testing.T) {
	s := newStore(t)
	s.FailScan(&models.FetchError{Message: "down", Code: "HTTP_503", Retryable: true}, nil)
	s.AddScanHistory(entry("a"))

	s.ClearError()
	assert.False(t, s.HasError())
	assert.Equal(t, models.ScanStatusIdle, s.ScanStatus())

	s.ClearHistory()
	assert.Empty(t, s.ScanHistory())
	assert.NotNil(t, s.ScanHistory())
}

func TestReset(t *testing.T) {
	s := newStore(t)
	s.BeginScan()
	s.CompleteScan("demo-tote-1", &models.ToteContents{ToteID: "demo-tote-1"}, &models.ScanHistoryEntry{ID: "a"})
	s.BeginScan()

	s.Reset()

	assert.Equal(t, models.InitialAppState(), s.Snapshot())
	assert.Equal(t, 0, s.InFlight())
}

func TestScanLifecycle(t *testing.T) {
	s := newStore(t)
	s.SetError(models.ErrorState{HasError: true, Message: "old"})

	s.BeginScan()
	assert.Equal(t, models.ScanStatusScanning, s.ScanStatus())
	assert.Equal(t, models.LoadingState{IsLoading: true, Message: state.LoadingMessage}, s.Loading())
	assert.False(t, s.HasError())

	tote := &models.ToteContents{ToteID: "demo-tote-1", Items: []models.ToteItem{{ID: "1"}}}
	s.CompleteScan("demo-tote-1", tote, &models.ScanHistoryEntry{ID: "h1", ToteID: "demo-tote-1", ItemCount: 1, Success: true})

	snap := s.Snapshot()
	assert.Equal(t, models.ScanStatusSuccess, snap.ScanStatus)
	assert.False(t, snap.Loading.IsLoading)
	assert.Same(t, tote, snap.CurrentTote)
	assert.Equal(t, "demo-tote-1", snap.LastScannedID)
	require.Len(t, snap.ScanHistory, 1)

	s.BeginScan()
	s.FailScan(&models.FetchError{Kind: models.KindNotFound, Message: "Tote not found. Please check the barcode.", Code: "HTTP_404"},
		&models.ScanHistoryEntry{ID: "h2", ToteID: "demo-tote-2", ErrorMessage: "Tote not found. Please check the barcode."})

	snap = s.Snapshot()
	assert.Equal(t, models.ScanStatusError, snap.ScanStatus)
	assert.True(t, snap.Error.HasError)
	assert.False(t, snap.Error.Retryable)
	assert.Equal(t, "HTTP_404", snap.Error.Code)
	assert.Same(t, tote, snap.CurrentTote, "a failure keeps the previous tote")
	require.Len(t, snap.ScanHistory, 2)
	assert.Equal(t, "h2", snap.ScanHistory[0].ID)
}

func TestLoadingCounter(t *testing.T) {
	s := newStore(t)

	s.BeginScan()
	s.BeginScan()
	assert.Equal(t, 2, s.InFlight())

	s.CompleteScan("demo-tote-1", &models.ToteContents{ToteID: "demo-tote-1"}, nil)
	assert.True(t, s.IsLoading(), "one scan still in flight")

	s.AbandonScan()
	assert.False(t, s.IsLoading())
	assert.Equal(t, 0, s.InFlight())
	assert.Equal(t, models.ScanStatusSuccess, s.ScanStatus())
}

func TestAbandonScanReturnsToIdle(t *testing.T) {
	s := newStore(t)
	s.BeginScan()
	s.AbandonScan()

	assert.Equal(t, models.ScanStatusIdle, s.ScanStatus())
	assert.False(t, s.IsLoading())

	// Extra releases never drive the counter negative.
	s.AbandonScan()
	assert.Equal(t, 0, s.InFlight())
}

func TestWatchDeliversCurrentValue(t *testing.T) {
	s := newStore(t)
	s.SetLastScannedID("demo-tote-1")

	sub := s.WatchLastScannedID()
	defer sub.Close()

	assert.Equal(t, "demo-tote-1", recv(t, sub))
	assertQuiet(t, sub)
}

func TestWatchSkipsUnchangedFields(t *testing.T) {
	s := newStore(t)

	status := s.WatchScanStatus()
	defer status.Close()
	history := s.WatchScanHistory()
	defer history.Close()
	hasError := s.WatchHasError()
	defer hasError.Close()

	recv(t, status)
	recv(t, history)
	recv(t, hasError)

	s.SetLastScannedID("demo-tote-1")
	assertQuiet(t, status)
	assertQuiet(t, history)

	s.SetScanStatus(models.ScanStatusIdle)
	assertQuiet(t, status)

	s.SetError(models.ErrorState{HasError: true, Message: "a"})
	assert.True(t, recv(t, hasError))
	s.SetError(models.ErrorState{HasError: true, Message: "b"})
	assertQuiet(t, hasError)

	s.AddScanHistory(entry("a"))
	assert.Len(t, recv(t, history), 1)
}

func TestWatchStateNoOpUpdates(t *testing.T) {
	s := newStore(t)
	sub := s.WatchState()
	defer sub.Close()
	recv(t, sub)

	s.ClearError()
	s.SetLoading(false, "")
	s.ClearHistory()
	assertQuiet(t, sub)

	s.SetScanStatus(models.ScanStatusSuccess)
	assert.Equal(t, models.ScanStatusSuccess, recv(t, sub).ScanStatus)
}

func TestWatchConflatesToLatest(t *testing.T) {
	s := newStore(t)
	sub := s.WatchLastScannedID()
	defer sub.Close()
	recv(t, sub)

	s.SetLastScannedID("a")
	s.SetLastScannedID("b")
	s.SetLastScannedID("c")

	assert.Equal(t, "c", recv(t, sub))
	assertQuiet(t, sub)
}

func TestWatchSnapshotsAreConsistent(t *testing.T) {
	s := newStore(t)
	sub := s.WatchState()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range sub.C {
			if v.ScanStatus == models.ScanStatusScanning {
				assert.True(t, v.Loading.IsLoading)
			}
			if v.ScanStatus == models.ScanStatusError {
				assert.True(t, v.Error.HasError)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.BeginScan()
			if i%2 == 0 {
				s.FailScan(&models.FetchError{Message: "x", Retryable: true}, nil)
			} else {
				s.CompleteScan("demo-tote-1", &models.ToteContents{ToteID: "demo-tote-1"}, nil)
			}
		}(i)
	}
	wg.Wait()

	sub.Close()
	<-done
	assert.Equal(t, 0, s.InFlight())
	assert.False(t, s.IsLoading())
}

func TestSubscriptionClose(t *testing.T) {
	s := newStore(t)
	sub := s.WatchIsLoading()
	assert.False(t, recv(t, sub))

	sub.Close()
	sub.Close()
	s.SetLoading(true, "x")

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestStoreCloseEndsSubscriptions(t *testing.T) {
	s := state.NewStore(0, events.Discard())
	sub := s.WatchCurrentTote()
	recv(t, sub)

	s.Close()
	_, ok := <-sub.C
	assert.False(t, ok)

	sub.Close()
}

func TestGenericWatch(t *testing.T) {
	s := newStore(t)
	sub := state.Watch(s, func(st models.AppState) int { return len(st.ScanHistory) }, func(a, b int) bool { return a == b })
	defer sub.Close()

	assert.Equal(t, 0, recv(t, sub))
	s.AddScanHistory(entry("a"))
	assert.Equal(t, 1, recv(t, sub))
}
