// Package ratelimit provides a process-local sliding-window admission
// limiter. It is best-effort abuse mitigation, not cluster-synchronized
// quota enforcement: counters live in memory and reset on restart.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RouteClass groups endpoints sharing one admission window configuration.
type RouteClass string

const (
	ClassAuth    RouteClass = "auth"
	ClassUpload  RouteClass = "upload"
	ClassDefault RouteClass = "default"
)

// WindowConfig is the admission window for one route class.
type WindowConfig struct {
	Window time.Duration
	Max    int
}

// DefaultConfigs returns the per-class window configuration.
func DefaultConfigs() map[RouteClass]WindowConfig {
	return map[RouteClass]WindowConfig{
		ClassAuth:    {Window: 15 * time.Minute, Max: 10},
		ClassUpload:  {Window: time.Minute, Max: 5},
		ClassDefault: {Window: time.Minute, Max: 60},
	}
}

// Result reports an admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the current window expires; on denial the caller
	// can derive a retry-after duration from it.
	ResetAt time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks admission windows keyed by (caller identity, route class).
// Construct one per process and pass it where admission checks happen; it
// is not a hidden global. Expired windows are swept periodically to bound
// memory.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	configs map[RouteClass]WindowConfig

	now func() time.Time // injectable clock for tests
}

// NewLimiter creates a limiter with the given per-class configuration.
// Nil configs means DefaultConfigs.
func NewLimiter(configs map[RouteClass]WindowConfig) *Limiter {
	if configs == nil {
		configs = DefaultConfigs()
	}
	return &Limiter{
		windows: make(map[string]*window),
		configs: configs,
		now:     time.Now,
	}
}

// Allow checks one request from caller against the route class window.
func (l *Limiter) Allow(caller string, class RouteClass) Result {
	cfg, ok := l.configs[class]
	if !ok {
		cfg = l.configs[ClassDefault]
	}
	if cfg.Max <= 0 {
		return Result{Allowed: true}
	}

	key := caller + ":" + string(class)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		// Fresh window: this request is the first of the window.
		w = &window{count: 1, resetAt: now.Add(cfg.Window)}
		l.windows[key] = w
		return Result{Allowed: true, Remaining: cfg.Max - 1, ResetAt: w.resetAt}
	}

	w.count++
	if w.count > cfg.Max {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}
	return Result{Allowed: true, Remaining: cfg.Max - w.count, ResetAt: w.resetAt}
}

// Sweep removes expired windows. Returns the number removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired windows on the given interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Len returns the number of tracked windows, for observability.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
