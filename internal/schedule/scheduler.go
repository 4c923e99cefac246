// Package schedule drives periodic background refresh of configured symbols
// on market days.
package schedule

import (
	"context"
	"time"

	"github.com/scmhub/calendar"
	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/cache"
)

// Refresher keeps the cached snapshots of a fixed symbol list warm. Fetches
// only happen on NYSE business days; outside those the loop idles.
type Refresher struct {
	cache    *cache.SymbolCache
	symbols  []string
	interval time.Duration
	location *time.Location
	nyse     *calendar.Calendar
	logger   *zap.Logger
}

// NewRefresher creates a refresher. An unknown timezone falls back to UTC.
func NewRefresher(symbolCache *cache.SymbolCache, symbols []string, interval time.Duration, timezone string, logger *zap.Logger) *Refresher {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", zap.String("timezone", timezone))
		loc = time.UTC
	}
	return &Refresher{
		cache:    symbolCache,
		symbols:  symbols,
		interval: interval,
		location: loc,
		nyse:     calendar.XNYS(),
		logger:   logger,
	}
}

// IsMarketDay reports whether t falls on a trading day (not weekend/holiday)
// in the configured timezone.
func (r *Refresher) IsMarketDay(t time.Time) bool {
	local := t.In(r.location)
	// Anchor at noon so date comparison is unaffected by DST edges
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, r.location)
	return r.nyse.IsBusinessDay(noon)
}

// Run refreshes all configured symbols every interval. Call in a goroutine.
// Returns when context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("refresher started",
		zap.Strings("symbols", r.symbols),
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	if !r.IsMarketDay(time.Now()) {
		r.logger.Debug("market closed, skipping refresh")
		return
	}

	for _, symbol := range r.symbols {
		res, err := r.cache.GetChain(ctx, symbol, false, 0)
		if err != nil {
			r.logger.Warn("refresh failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("symbol refreshed",
			zap.String("symbol", symbol),
			zap.Bool("from_cache", res.FromCache),
			zap.Bool("stale", res.Stale),
		)
	}
}
