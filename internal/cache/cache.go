// Package cache deduplicates tote fetches: at most one outstanding request per
// id, with the settled result replayed to late callers until the entry expires.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/retry"
)

// DefaultTTL bounds how long a fetch result is replayed, measured from the
// start of the request.
const DefaultTTL = 5 * time.Minute

// Fetcher performs one raw fetch attempt.
type Fetcher interface {
	FetchTote(ctx context.Context, toteID string) (*models.ToteContents, error)
}

// Observer receives cache and fetch outcomes. Implementations must not block.
type Observer interface {
	CacheLookup(hit bool)
	FetchCompleted(elapsed time.Duration, err error)
}

// Cache maps tote ids to shared fetch handles.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Handle

	ttl      time.Duration
	fetcher  Fetcher
	policy   *retry.Policy
	observer Observer
	logger   *events.Logger

	// Fetches outlive the callers that started them; they stop only on Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New creates a cache. ttl <= 0 uses DefaultTTL.
func New(fetcher Fetcher, policy *retry.Policy, ttl time.Duration, logger *events.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.WithField("component", "cache")

	return &Cache{
		entries: make(map[string]*Handle),
		ttl:     ttl,
		fetcher: fetcher,
		policy:  policy,
		logger:  logger,
		ctx:     events.WithLogger(ctx, logger),
		cancel:  cancel,
		now:     time.Now,
	}
}

// SetObserver installs the outcome observer. Call before first use.
func (c *Cache) SetObserver(o Observer) {
	c.observer = o
}

// Get returns the handle for toteID. With useCache, an existing pending or
// settled handle is shared and hit is true. Otherwise a new fetch starts;
// it is registered for later callers only when useCache is set.
func (c *Cache) Get(toteID string, useCache bool) (h *Handle, hit bool) {
	key := models.NormalizeToteID(toteID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if useCache {
		if existing, ok := c.entries[key]; ok {
			existing.subscribers.Add(1)
			c.observe(true)
			c.logger.WithField("tote_id", key).Debug("Cache hit")
			return existing, true
		}
	}

	c.observe(false)

	h = newHandle(key, c.now())
	h.subscribers.Add(1)

	if useCache {
		c.entries[key] = h
		h.timer = time.AfterFunc(c.ttl, func() { c.expire(h) })
	}

	c.wg.Add(1)
	go c.run(h, useCache)

	return h, false
}

func (c *Cache) run(h *Handle, registered bool) {
	defer c.wg.Done()

	ctx := events.WithToteID(c.ctx, h.key)
	ctx = events.WithRequestID(ctx, uuid.NewString())
	logger := events.FromContext(ctx)

	start := time.Now()
	var tote *models.ToteContents

	err := c.policy.Do(ctx, func(ctx context.Context) error {
		t, err := c.fetcher.FetchTote(ctx, h.key)
		if err != nil {
			return err
		}
		tote = t
		return nil
	})

	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer.FetchCompleted(elapsed, err)
	}

	if err != nil {
		fe := retry.Classify(err)
		logger.WithFields(map[string]interface{}{
			"status":   fe.Status,
			"attempts": fe.Attempts,
		}).Debug("Fetch failed")

		// Failures are not replayed to later callers.
		if registered {
			c.remove(h)
		}
		h.settle(nil, fe)
		return
	}

	logger.WithFields(map[string]interface{}{
		"items":   tote.ItemCount(),
		"elapsed": elapsed.String(),
	}).Debug("Fetch completed")

	h.settle(tote, nil)
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(hit)
	}
}

func (c *Cache) expire(h *Handle) {
	if c.remove(h) {
		c.logger.WithField("tote_id", h.key).Debug("Cache entry expired")
	}
}

// remove deletes h if it is still the entry for its key.
func (c *Cache) remove(h *Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[h.key] != h {
		return false
	}
	delete(c.entries, h.key)
	if h.timer != nil {
		h.timer.Stop()
	}
	return true
}

// Invalidate drops the entry for toteID. A fetch already in flight still
// settles for the callers holding its handle.
func (c *Cache) Invalidate(toteID string) {
	key := models.NormalizeToteID(toteID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.entries[key]; ok {
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(c.entries, key)
		c.logger.WithField("tote_id", key).Debug("Cache entry invalidated")
	}
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, h := range c.entries {
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(c.entries, key)
	}
}

// Len returns the number of registered entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Peek returns the registered handle for toteID without attaching to it.
func (c *Cache) Peek(toteID string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.entries[models.NormalizeToteID(toteID)]
	return h, ok
}

// Close cancels in-flight fetches, waits for them to settle and drops all
// entries.
func (c *Cache) Close() error {
	c.cancel()
	c.wg.Wait()
	c.InvalidateAll()
	return nil
}
