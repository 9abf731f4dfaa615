// Package scan orchestrates tote retrieval: input checks, rate limiting, the
// shared fetch cache and state store updates.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/totescan/internal/cache"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/metrics"
	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/ratelimit"
	"github.com/TheMichaelB/totescan/internal/retry"
	"github.com/TheMichaelB/totescan/internal/state"
	"github.com/TheMichaelB/totescan/internal/storage"
	"github.com/TheMichaelB/totescan/internal/validation"
)

const (
	DefaultDebounce         = 300 * time.Millisecond
	DefaultRecentLimit      = 10
	DefaultExistenceTimeout = 2 * time.Second
)

// Errors
var (
	ErrRateLimited = errors.New("scanning too fast, please wait")
	ErrNoLastScan  = errors.New("no previous scan to repeat")
)

// RejectedError reports a barcode that failed input checks. No request was
// made and neither the history nor the error state was touched.
type RejectedError struct {
	Barcode string
	Result  validation.Result
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("barcode rejected: %s", e.Result.Message())
}

// Recorder receives scan outcomes; *metrics.Metrics implements it.
type Recorder interface {
	RecordScan(outcome string)
	ScanStarted()
	ScanFinished()
}

// Options configure a Service. Zero values select the defaults.
type Options struct {
	Validator *validation.Validator
	Limiter   *ratelimit.Limiter

	// Checker enables the backend existence lookup on Submit.
	Checker          *validation.ExistenceChecker
	ExistenceTimeout time.Duration

	// Recent persists submitted barcodes between runs.
	Recent      storage.RecentStore
	RecentLimit int

	Recorder Recorder
	Debounce time.Duration

	// DisableCache makes every scan issue a fresh request.
	DisableCache bool
}

// Service is the retrieval orchestrator.
type Service struct {
	store     *state.Store
	fetches   *cache.Cache
	validator *validation.Validator
	limiter   *ratelimit.Limiter
	checker   *validation.ExistenceChecker
	recent    storage.RecentStore
	recorder  Recorder
	logger    *events.Logger

	debounce         time.Duration
	recentLimit      int
	existenceTimeout time.Duration
	useCache         bool

	mu             sync.Mutex
	lastAttempted  string
	recentBarcodes []string
	typingTimer    *time.Timer
	typingSeq      uint64

	now   func() time.Time
	newID func() string
}

// NewService creates the orchestrator and loads the saved recent barcodes.
func NewService(store *state.Store, fetches *cache.Cache, logger *events.Logger, opts Options) *Service {
	if opts.Validator == nil {
		opts.Validator = validation.New(validation.DefaultRules())
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.ExistenceTimeout <= 0 {
		opts.ExistenceTimeout = DefaultExistenceTimeout
	}

	s := &Service{
		store:            store,
		fetches:          fetches,
		validator:        opts.Validator,
		limiter:          opts.Limiter,
		checker:          opts.Checker,
		recent:           opts.Recent,
		recorder:         opts.Recorder,
		logger:           logger.WithField("service", "scan"),
		debounce:         opts.Debounce,
		recentLimit:      opts.RecentLimit,
		existenceTimeout: opts.ExistenceTimeout,
		useCache:         !opts.DisableCache,
		recentBarcodes:   []string{},
		now:              time.Now,
		newID:            uuid.NewString,
	}

	s.loadRecent()
	return s
}

// Store returns the state store the service writes to.
func (s *Service) Store() *state.Store {
	return s.store
}

// Submit is the operator entry point: input checks, cooldown and window
// limits, then Scan. Rejections return *RejectedError or ErrRateLimited.
func (s *Service) Submit(ctx context.Context, raw string) (*models.ToteContents, error) {
	now := s.now()

	limited := s.limiter.RateLimited(now)
	s.limiter.Attempt(now)
	if limited {
		s.logger.Debug("Scan attempt during cooldown")
		s.record(metrics.OutcomeRateLimited)
		return nil, ErrRateLimited
	}

	result := s.validate(ctx, raw)
	if !result.Valid {
		s.logger.WithFields(map[string]interface{}{
			"tags":   result.Tags,
			"length": result.Length,
		}).Debug("Barcode rejected")
		s.record(metrics.OutcomeRejected)
		return nil, &RejectedError{Barcode: raw, Result: result}
	}

	if !s.limiter.Allow(now) {
		s.logger.Warn("Scan rate limit reached")
		s.record(metrics.OutcomeRateLimited)
		return nil, ErrRateLimited
	}
	s.limiter.RecordScan(now)

	id := models.NormalizeToteID(raw)
	s.addRecent(id)

	return s.Scan(ctx, id)
}

func (s *Service) validate(ctx context.Context, raw string) validation.Result {
	if s.checker == nil {
		return s.validator.Validate(raw)
	}
	ctx, cancel := context.WithTimeout(ctx, s.existenceTimeout)
	defer cancel()
	return s.validator.ValidateWithExistence(ctx, raw, s.checker)
}

// Scan retrieves raw's tote through the cache and applies the outcome to the
// store. It blocks until the fetch settles or ctx is done; in the latter case
// the fetch continues for other callers and the store is left as if the scan
// had not been made.
func (s *Service) Scan(ctx context.Context, raw string) (*models.ToteContents, error) {
	id := models.NormalizeToteID(raw)
	if id == "" {
		return nil, models.ErrEmptyToteID
	}

	s.mu.Lock()
	s.lastAttempted = id
	s.mu.Unlock()

	return s.scan(ctx, id, s.useCache)
}

func (s *Service) scan(ctx context.Context, id string, useCache bool) (*models.ToteContents, error) {
	ctx = events.WithToteID(ctx, id)
	logger := s.logger.WithField("tote_id", id)

	s.store.BeginScan()
	if s.recorder != nil {
		s.recorder.ScanStarted()
		defer s.recorder.ScanFinished()
	}

	h, hit := s.fetches.Get(id, useCache)
	logger.WithField("cache_hit", hit).Debug("Scanning tote")

	select {
	case <-h.Done():
	case <-ctx.Done():
		s.store.AbandonScan()
		logger.Debug("Scan abandoned by caller")
		return nil, ctx.Err()
	}

	tote, err := h.Result()
	first := h.MarkRecorded()

	if err != nil {
		fe := retry.Classify(err)

		var entry *models.ScanHistoryEntry
		if first {
			entry = s.historyEntry(id, nil, fe)
		}
		s.store.FailScan(fe, entry)
		s.record(metrics.OutcomeFailure)

		logger.WithFields(map[string]interface{}{
			"kind":      fe.Kind,
			"status":    fe.Status,
			"retryable": fe.Retryable,
		}).Warn("Scan failed")
		return nil, fe
	}

	var entry *models.ScanHistoryEntry
	if first {
		entry = s.historyEntry(id, tote, nil)
	}
	s.store.CompleteScan(id, tote, entry)
	s.record(metrics.OutcomeSuccess)

	logger.WithField("items", tote.ItemCount()).Info("Scan completed")
	return tote, nil
}

func (s *Service) historyEntry(id string, tote *models.ToteContents, fe *models.FetchError) *models.ScanHistoryEntry {
	entry := &models.ScanHistoryEntry{
		ID:        s.newID(),
		ToteID:    id,
		ScannedAt: s.now(),
		ItemCount: tote.ItemCount(),
		Success:   fe == nil,
	}
	if fe != nil {
		entry.ItemCount = 0
		entry.ErrorMessage = fe.Message
	}
	return entry
}

// Retry repeats the last attempted scan.
func (s *Service) Retry(ctx context.Context) (*models.ToteContents, error) {
	id := s.LastAttempted()
	if id == "" {
		return nil, ErrNoLastScan
	}
	s.logger.WithField("tote_id", id).Info("Retrying scan")
	return s.Scan(ctx, id)
}

// Refresh drops the cached result for the last attempted scan and repeats it.
func (s *Service) Refresh(ctx context.Context) (*models.ToteContents, error) {
	id := s.LastAttempted()
	if id == "" {
		return nil, ErrNoLastScan
	}
	s.fetches.Invalidate(id)
	s.logger.WithField("tote_id", id).Info("Refreshing tote")
	return s.Scan(ctx, id)
}

// LastAttempted returns the id of the most recent Scan call.
func (s *Service) LastAttempted() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAttempted
}

// ClearHistory empties the scan history and the recent barcode list.
func (s *Service) ClearHistory() {
	s.store.ClearHistory()

	s.mu.Lock()
	s.recentBarcodes = []string{}
	s.mu.Unlock()

	s.saveRecent([]string{})
}

// ClearError drops the active error.
func (s *Service) ClearError() {
	s.store.ClearError()
}

// RateLimited reports whether the post-attempt cooldown is running.
func (s *Service) RateLimited() bool {
	return s.limiter.RateLimited(s.now())
}

// Validate runs the synchronous input checks only.
func (s *Service) Validate(raw string) validation.Result {
	return s.validator.Validate(raw)
}

// Close stops the typing debounce timer.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typingSeq++
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordScan(outcome)
	}
}
