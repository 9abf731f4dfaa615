// Package ratelimit gates scan attempts with a short cooldown and a sliding
// window ceiling.
package ratelimit

import (
	"sync"
	"time"
)

// Config for the limiter.
type Config struct {
	Window   time.Duration
	MaxScans int
	Cooldown time.Duration
}

// DefaultConfig returns 5 scans per 10s with a 500ms cooldown.
func DefaultConfig() Config {
	return Config{
		Window:   10 * time.Second,
		MaxScans: 5,
		Cooldown: 500 * time.Millisecond,
	}
}

// Limiter tracks accepted scans and the post-attempt cooldown. All methods
// take the current time explicitly.
type Limiter struct {
	mu  sync.Mutex
	cfg Config

	count         int
	lastScan      time.Time
	cooldownUntil time.Time
}

// New creates a limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxScans <= 0 {
		cfg.MaxScans = DefaultConfig().MaxScans
	}
	return &Limiter{cfg: cfg}
}

// CanScan reports whether a new scan may proceed: the cooldown must have
// elapsed and the window must have room.
func (l *Limiter) CanScan(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.inCooldown(now) && l.allow(now)
}

// Allow applies only the sliding window check.
func (l *Limiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.allow(now)
}

// RecordScan counts an accepted scan.
func (l *Limiter) RecordScan(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	l.lastScan = now
}

// Attempt restarts the cooldown. It is called for every attempt, valid or not.
func (l *Limiter) Attempt(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cooldownUntil = now.Add(l.cfg.Cooldown)
}

// RateLimited is the UI-facing signal: true while the cooldown runs.
func (l *Limiter) RateLimited(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inCooldown(now)
}

// Remaining returns how many scans the window still admits.
func (l *Limiter) Remaining(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.allow(now) {
		return 0
	}
	return l.cfg.MaxScans - l.count
}

// Reset clears all counters.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count = 0
	l.lastScan = time.Time{}
	l.cooldownUntil = time.Time{}
}

func (l *Limiter) inCooldown(now time.Time) bool {
	return now.Before(l.cooldownUntil)
}

func (l *Limiter) allow(now time.Time) bool {
	if l.lastScan.IsZero() || now.Sub(l.lastScan) > l.cfg.Window {
		l.count = 0
		return true
	}
	return l.count < l.cfg.MaxScans
}
