// Package state owns the single process-wide AppState snapshot.
//
// Every setter builds a new snapshot from the previous one and swaps it in
// under the store's lock, so observers never see a half-applied update.
// Subscribers are notified per field and only when that field changed.
package state

import (
	"sync"

	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
)

// LoadingMessage is shown while a foreground scan is in flight.
const LoadingMessage = "Loading..."

// Store is the reactive state store.
type Store struct {
	mu         sync.Mutex
	state      models.AppState
	inflight   int
	maxHistory int

	subs   map[int]notifier
	nextID int

	logger *events.Logger
}

// notifier is implemented by subscriptions; it runs under the store lock and
// must not block.
type notifier interface {
	notify(prev, next models.AppState)
	close()
}

// NewStore creates a store holding the initial snapshot. maxHistory <= 0
// uses models.MaxScanHistory.
func NewStore(maxHistory int, logger *events.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = models.MaxScanHistory
	}
	return &Store{
		state:      models.InitialAppState(),
		maxHistory: maxHistory,
		subs:       make(map[int]notifier),
		logger:     logger.WithField("component", "state_store"),
	}
}

// Snapshot returns the current state. Slices and pointers inside are shared
// and must be treated as read-only.
func (s *Store) Snapshot() models.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// update applies fn to a copy of the current state and commits the result.
func (s *Store) update(fn func(next *models.AppState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next := prev
	fn(&next)
	normalize(&next)

	if stateEqual(prev, next) {
		return
	}

	s.state = next
	for _, sub := range s.subs {
		sub.notify(prev, next)
	}
}

// normalize enforces the snapshot invariants.
func normalize(st *models.AppState) {
	if st.ScanHistory == nil {
		st.ScanHistory = []models.ScanHistoryEntry{}
	}
	if st.ScanStatus == models.ScanStatusScanning && !st.Loading.IsLoading {
		st.Loading = models.LoadingState{IsLoading: true, Message: LoadingMessage}
	}
	if st.ScanStatus == models.ScanStatusError && !st.Error.HasError {
		st.Error = models.ErrorState{
			HasError:  true,
			Message:   models.GenericErrorMessage,
			Retryable: true,
		}
	}
}

func stateEqual(a, b models.AppState) bool {
	return a.CurrentTote == b.CurrentTote &&
		models.HistoryEqual(a.ScanHistory, b.ScanHistory) &&
		a.Loading == b.Loading &&
		a.Error == b.Error &&
		a.ScanStatus == b.ScanStatus &&
		a.LastScannedID == b.LastScannedID
}

// SetCurrentTote replaces the current tote.
func (s *Store) SetCurrentTote(tote *models.ToteContents) {
	s.update(func(next *models.AppState) {
		next.CurrentTote = tote
	})
}

// SetLoading sets the loading flag. While a scan is SCANNING the flag stays
// true regardless.
func (s *Store) SetLoading(isLoading bool, message string) {
	s.update(func(next *models.AppState) {
		next.Loading = models.LoadingState{IsLoading: isLoading, Message: message}
		if !isLoading {
			next.Loading.Message = ""
		}
	})
}

// SetError replaces the active error.
func (s *Store) SetError(e models.ErrorState) {
	s.update(func(next *models.AppState) {
		next.Error = e
	})
}

// SetScanStatus sets the scan phase.
func (s *Store) SetScanStatus(status models.ScanStatus) {
	s.update(func(next *models.AppState) {
		next.ScanStatus = status
	})
}

// SetLastScannedID records the most recently scanned id.
func (s *Store) SetLastScannedID(id string) {
	s.update(func(next *models.AppState) {
		next.LastScannedID = id
	})
}

// AddScanHistory prepends entry, dropping the oldest beyond the cap.
func (s *Store) AddScanHistory(entry models.ScanHistoryEntry) {
	s.update(func(next *models.AppState) {
		next.ScanHistory = s.prepend(next.ScanHistory, entry)
	})
}

// ClearError drops the active error. A store in ERROR falls back to IDLE.
func (s *Store) ClearError() {
	s.update(func(next *models.AppState) {
		next.Error = models.ErrorState{}
		if next.ScanStatus == models.ScanStatusError {
			next.ScanStatus = models.ScanStatusIdle
		}
	})
}

// ClearHistory empties the scan history.
func (s *Store) ClearHistory() {
	s.update(func(next *models.AppState) {
		next.ScanHistory = []models.ScanHistoryEntry{}
	})
}

// Reset restores the initial snapshot.
func (s *Store) Reset() {
	s.update(func(next *models.AppState) {
		s.inflight = 0
		*next = models.InitialAppState()
	})
	s.logger.Debug("State reset")
}

// BeginScan marks a foreground scan as started: SCANNING, loading, and no
// active error, in one update.
func (s *Store) BeginScan() {
	s.update(func(next *models.AppState) {
		s.inflight++
		next.ScanStatus = models.ScanStatusScanning
		next.Loading = models.LoadingState{IsLoading: true, Message: LoadingMessage}
		next.Error = models.ErrorState{}
	})
}

// CompleteScan applies a successful outcome. entry is appended when non-nil.
func (s *Store) CompleteScan(toteID string, tote *models.ToteContents, entry *models.ScanHistoryEntry) {
	s.update(func(next *models.AppState) {
		s.finishLocked(next)
		next.CurrentTote = tote
		next.LastScannedID = toteID
		next.ScanStatus = models.ScanStatusSuccess
		next.Error = models.ErrorState{}
		if entry != nil {
			next.ScanHistory = s.prepend(next.ScanHistory, *entry)
		}
	})
}

// FailScan applies a failed outcome. entry is appended when non-nil.
func (s *Store) FailScan(fe *models.FetchError, entry *models.ScanHistoryEntry) {
	s.update(func(next *models.AppState) {
		s.finishLocked(next)
		next.ScanStatus = models.ScanStatusError
		next.Error = models.ErrorStateFrom(fe)
		if entry != nil {
			next.ScanHistory = s.prepend(next.ScanHistory, *entry)
		}
	})
}

// AbandonScan releases a scan that ended without an outcome, e.g. because
// its caller went away. The status returns to IDLE once nothing is in flight.
func (s *Store) AbandonScan() {
	s.update(func(next *models.AppState) {
		s.finishLocked(next)
		if s.inflight == 0 && next.ScanStatus == models.ScanStatusScanning {
			next.ScanStatus = models.ScanStatusIdle
		}
	})
}

// finishLocked releases one in-flight scan. Called inside update.
func (s *Store) finishLocked(next *models.AppState) {
	if s.inflight > 0 {
		s.inflight--
	}
	if s.inflight > 0 {
		next.Loading = models.LoadingState{IsLoading: true, Message: LoadingMessage}
	} else {
		next.Loading = models.LoadingState{}
	}
}

func (s *Store) prepend(history []models.ScanHistoryEntry, entry models.ScanHistoryEntry) []models.ScanHistoryEntry {
	n := len(history) + 1
	if n > s.maxHistory {
		n = s.maxHistory
	}
	out := make([]models.ScanHistoryEntry, 0, n)
	out = append(out, entry)
	out = append(out, history[:n-1]...)
	return out
}

// Getters

func (s *Store) CurrentTote() *models.ToteContents { return s.Snapshot().CurrentTote }

func (s *Store) Loading() models.LoadingState { return s.Snapshot().Loading }

func (s *Store) Error() models.ErrorState { return s.Snapshot().Error }

func (s *Store) ScanStatus() models.ScanStatus { return s.Snapshot().ScanStatus }

func (s *Store) ScanHistory() []models.ScanHistoryEntry { return s.Snapshot().ScanHistory }

func (s *Store) LastScannedID() string { return s.Snapshot().LastScannedID }

func (s *Store) IsLoading() bool { return s.Snapshot().Loading.IsLoading }

func (s *Store) HasError() bool { return s.Snapshot().Error.HasError }

// InFlight returns the number of foreground scans not yet settled.
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Close ends every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		sub.close()
		delete(s.subs, id)
	}
}
