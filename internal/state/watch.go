package state

import (
	"sync"

	"github.com/TheMichaelB/totescan/internal/models"
)

// Subscription delivers the latest value of one selected field. C has a
// buffer of one; a slow reader sees only the most recent value, never a
// stale one.
type Subscription[T any] struct {
	C <-chan T

	ch       chan T
	selector func(models.AppState) T
	equal    func(a, b T) bool

	store *Store
	id    int
	once  sync.Once
}

func (sub *Subscription[T]) notify(prev, next models.AppState) {
	a, b := sub.selector(prev), sub.selector(next)
	if sub.equal(a, b) {
		return
	}

	// Conflate: drop the pending value, then deliver the new one.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- b:
	default:
	}
}

func (sub *Subscription[T]) close() {
	sub.once.Do(func() { close(sub.ch) })
}

// Close detaches the subscription and closes C.
func (sub *Subscription[T]) Close() {
	sub.store.mu.Lock()
	delete(sub.store.subs, sub.id)
	sub.store.mu.Unlock()

	sub.close()
}

// Watch subscribes to a derived value of the state. The current value is
// delivered immediately, then again on every change that equal reports.
func Watch[T any](s *Store, selector func(models.AppState) T, equal func(a, b T) bool) *Subscription[T] {
	ch := make(chan T, 1)
	sub := &Subscription[T]{
		C:        ch,
		ch:       ch,
		selector: selector,
		equal:    equal,
		store:    s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub.id = s.nextID
	s.subs[sub.id] = sub
	ch <- selector(s.state)

	return sub
}

func same[T comparable](a, b T) bool { return a == b }

// WatchState delivers every committed snapshot.
func (s *Store) WatchState() *Subscription[models.AppState] {
	return Watch(s, func(st models.AppState) models.AppState { return st }, stateEqual)
}

// WatchCurrentTote delivers the current tote when its identity changes.
func (s *Store) WatchCurrentTote() *Subscription[*models.ToteContents] {
	return Watch(s, func(st models.AppState) *models.ToteContents { return st.CurrentTote }, same[*models.ToteContents])
}

// WatchScanHistory delivers the history when entries are added or removed.
func (s *Store) WatchScanHistory() *Subscription[[]models.ScanHistoryEntry] {
	return Watch(s, func(st models.AppState) []models.ScanHistoryEntry { return st.ScanHistory }, models.HistoryEqual)
}

func (s *Store) WatchLoading() *Subscription[models.LoadingState] {
	return Watch(s, func(st models.AppState) models.LoadingState { return st.Loading }, same[models.LoadingState])
}

func (s *Store) WatchError() *Subscription[models.ErrorState] {
	return Watch(s, func(st models.AppState) models.ErrorState { return st.Error }, same[models.ErrorState])
}

func (s *Store) WatchScanStatus() *Subscription[models.ScanStatus] {
	return Watch(s, func(st models.AppState) models.ScanStatus { return st.ScanStatus }, same[models.ScanStatus])
}

func (s *Store) WatchLastScannedID() *Subscription[string] {
	return Watch(s, func(st models.AppState) string { return st.LastScannedID }, same[string])
}

func (s *Store) WatchIsLoading() *Subscription[bool] {
	return Watch(s, func(st models.AppState) bool { return st.Loading.IsLoading }, same[bool])
}

func (s *Store) WatchHasError() *Subscription[bool] {
	return Watch(s, func(st models.AppState) bool { return st.Error.HasError }, same[bool])
}
