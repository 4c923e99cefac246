// Package cache is the freshness-bounded symbol cache that decides when a
// chain snapshot can be reused and when it must be refetched. Fetches are
// deduplicated per symbol: concurrent callers share one in-flight fetch and
// callers for other symbols are never blocked.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/OUgly/GEXCalculator/internal/chain"
)

const (
	// DefaultTTL is the maximum snapshot age before a refetch is required.
	DefaultTTL = 30 * time.Minute

	// DefaultFetchTimeout bounds a single provider fetch so a hung fetch
	// degrades into the stale-fallback path instead of hanging callers.
	DefaultFetchTimeout = 30 * time.Second
)

// Fetcher is the narrow external collaborator that produces fresh snapshots.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*chain.Snapshot, error)
}

// Archive receives successful fetches for persistence. Write-through is best
// effort: a persist failure is logged, never surfaced to the caller.
type Archive interface {
	SaveSnapshot(snap *chain.Snapshot) error
}

// Result is the outcome of a GetChain call. Stale marks a snapshot served
// from cache past its TTL because the refresh fetch failed; Warning then
// carries the fetch error.
type Result struct {
	Snapshot  *chain.Snapshot
	FromCache bool
	Stale     bool
	Warning   error
}

// Config tunes a SymbolCache. Zero values fall back to defaults; Now is
// injectable so freshness logic is testable without real delays.
type Config struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
	Archive      Archive
}

type entry struct {
	snap      *chain.Snapshot
	fetchedAt time.Time
}

// SymbolCache maps symbol -> latest snapshot with fetch coordination.
type SymbolCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	flight  singleflight.Group
	fetcher Fetcher
	archive Archive

	now          func() time.Time
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// New creates a SymbolCache around the given fetch collaborator.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) *SymbolCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SymbolCache{
		entries:      make(map[string]entry),
		fetcher:      fetcher,
		archive:      cfg.Archive,
		now:          cfg.Now,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		logger:       logger,
	}
}

// GetChain returns a fresh-enough snapshot for symbol. A cached entry younger
// than maxAge (the cache TTL when maxAge <= 0) is returned directly unless
// force is set. Otherwise one fetch runs per symbol regardless of how many
// callers arrive concurrently; all share its result. On fetch failure an
// existing entry of any age is returned with Stale set and the error in
// Warning; with no prior entry the failure is returned as an error.
func (c *SymbolCache) GetChain(ctx context.Context, symbol string, force bool, maxAge time.Duration) (Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Result{}, fmt.Errorf("empty symbol")
	}
	if maxAge <= 0 {
		maxAge = c.ttl
	}

	if !force {
		if res, ok := c.lookupFresh(symbol, maxAge); ok {
			return res, nil
		}
	}

	v, err, _ := c.flight.Do(symbol, func() (any, error) {
		// A concurrent flight may have refreshed the entry while this
		// caller waited on the flight lock.
		if !force {
			if res, ok := c.lookupFresh(symbol, maxAge); ok {
				return res, nil
			}
		}
		return c.refresh(ctx, symbol)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *SymbolCache) lookupFresh(symbol string, maxAge time.Duration) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.fetchedAt) >= maxAge {
		return Result{}, false
	}
	return Result{Snapshot: e.snap, FromCache: true}, true
}

// refresh performs the single outstanding fetch for a symbol. The fetch
// context is detached from the triggering caller so late joiners of the
// flight are not failed by the first caller's cancellation, and bounded by
// the configured fetch timeout.
func (c *SymbolCache) refresh(ctx context.Context, symbol string) (Result, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	snap, err := c.fetcher.Fetch(fetchCtx, symbol)
	if err != nil {
		c.mu.RLock()
		prev, ok := c.entries[symbol]
		c.mu.RUnlock()
		if ok {
			c.logger.Warn("fetch failed, serving stale snapshot",
				zap.String("symbol", symbol),
				zap.Duration("age", c.now().Sub(prev.fetchedAt)),
				zap.Error(err),
			)
			return Result{Snapshot: prev.snap, FromCache: true, Stale: true, Warning: err}, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = c.now()
	}
	c.store(symbol, snap, fetchedAt)

	if c.archive != nil {
		if err := c.archive.SaveSnapshot(snap); err != nil {
			c.logger.Warn("persisting snapshot failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
	return Result{Snapshot: snap}, nil
}

// Put replaces the entry for a snapshot's symbol, for uploads and warm
// starts. The snapshot's own FetchedAt governs subsequent freshness checks.
func (c *SymbolCache) Put(snap *chain.Snapshot) {
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = c.now()
	}
	c.store(strings.ToUpper(snap.Symbol), snap, fetchedAt)
}

func (c *SymbolCache) store(symbol string, snap *chain.Snapshot, fetchedAt time.Time) {
	c.mu.Lock()
	c.entries[symbol] = entry{snap: snap, fetchedAt: fetchedAt}
	c.mu.Unlock()
}

// Symbols returns the symbols currently held in the cache.
func (c *SymbolCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for s := range c.entries {
		out = append(out, s)
	}
	return out
}
