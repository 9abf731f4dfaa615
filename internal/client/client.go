package client

import (
	"fmt"

	"github.com/TheMichaelB/totescan/internal/cache"
	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/metrics"
	"github.com/TheMichaelB/totescan/internal/ratelimit"
	"github.com/TheMichaelB/totescan/internal/retry"
	"github.com/TheMichaelB/totescan/internal/services/scan"
	"github.com/TheMichaelB/totescan/internal/state"
	"github.com/TheMichaelB/totescan/internal/storage"
	"github.com/TheMichaelB/totescan/internal/transport"
	"github.com/TheMichaelB/totescan/internal/validation"
)

// Client provides the high-level API for tote scanning.
type Client struct {
	Scan    *scan.Service
	State   *state.Store
	Cache   *cache.Cache
	Metrics *metrics.Metrics
	Recent  storage.RecentStore

	config    *config.Config
	logger    *events.Logger
	transport transport.Transport
}

// New creates a client talking to the configured API.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	return NewWithTransport(cfg, transport.NewTransport(&cfg.API, logger), logger)
}

// NewWithTransport builds the client graph around an existing transport.
func NewWithTransport(cfg *config.Config, tr transport.Transport, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	recent, err := storage.New(&cfg.History, logger)
	if err != nil {
		return nil, fmt.Errorf("open recent store: %w", err)
	}

	m := metrics.New("totescan")

	policy := retry.New(cfg.API.MaxRetries, cfg.API.RetryBaseDelay, logger)
	policy.OnRetry = m.RecordRetry

	fetches := cache.New(tr, policy, cfg.Cache.TTL, logger)
	fetches.SetObserver(m)

	store := state.NewStore(cfg.History.MaxEntries, logger)

	opts := scan.Options{
		Validator: validation.New(validation.Rules{
			MinLength: cfg.Scan.MinLength,
			MaxLength: cfg.Scan.MaxLength,
			Blacklist: cfg.Scan.Blacklist,
		}),
		Limiter: ratelimit.New(ratelimit.Config{
			Window:   cfg.Scan.RateLimitWindow,
			MaxScans: cfg.Scan.RateLimitMaxScans,
			Cooldown: cfg.Scan.Cooldown,
		}),
		Recent:       recent,
		RecentLimit:  cfg.History.RecentLimit,
		Recorder:     m,
		Debounce:     cfg.Scan.PrefetchDebounce,
		DisableCache: !cfg.Cache.Enabled,
	}
	if cfg.Scan.CheckExistence {
		opts.Checker = validation.NewExistenceChecker(tr, logger)
	}

	return &Client{
		Scan:      scan.NewService(store, fetches, logger, opts),
		State:     store,
		Cache:     fetches,
		Metrics:   m,
		Recent:    recent,
		config:    cfg,
		logger:    logger,
		transport: tr,
	}, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.config
}

// Close releases every resource in dependency order.
func (c *Client) Close() error {
	c.Scan.Close()

	if err := c.Cache.Close(); err != nil {
		c.logger.WithError(err).Warn("Failed to close cache")
	}
	c.State.Close()

	if err := c.Recent.Close(); err != nil {
		c.logger.WithError(err).Warn("Failed to close recent store")
	}
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
