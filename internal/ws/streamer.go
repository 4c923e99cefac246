package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/cache"
	"github.com/OUgly/GEXCalculator/internal/gex"
)

// Streamer periodically recomputes GEX profiles for symbols with active
// subscribers and broadcasts the result as a JSON frame.
type Streamer struct {
	hub      *Hub
	cache    *cache.SymbolCache
	engine   *gex.Engine
	interval time.Duration
	logger   *zap.Logger
}

func NewStreamer(hub *Hub, symbolCache *cache.SymbolCache, engine *gex.Engine, interval time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		hub:      hub,
		cache:    symbolCache,
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// streamFrame is the wire shape of one broadcast update.
type streamFrame struct {
	Symbol         string    `json:"symbol"`
	Spot           float64   `json:"spot"`
	FetchedAt      time.Time `json:"fetched_at"`
	Stale          bool      `json:"stale"`
	ZeroGamma      *float64  `json:"zero_gamma"`
	TotalCallGamma float64   `json:"total_call_gamma"`
	TotalPutGamma  float64   `json:"total_put_gamma"`
	TotalNetGamma  float64   `json:"total_net_gamma"`
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	// Align first tick to top of second for predictable timing
	now := time.Now()
	nextSecond := now.Truncate(time.Second).Add(time.Second)

	select {
	case <-ctx.Done():
		s.logger.Info("streamer cancelled during alignment")
		return
	case <-time.After(time.Until(nextSecond)):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.broadcastNext(ctx)
		}
	}
}

// broadcastNext refreshes and broadcasts every symbol with subscribers.
func (s *Streamer) broadcastNext(ctx context.Context) {
	symbols := s.hub.ActiveSymbols()
	if len(symbols) == 0 {
		return
	}

	for _, symbol := range symbols {
		res, err := s.cache.GetChain(ctx, symbol, false, 0)
		if err != nil {
			s.logger.Debug("stream refresh failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}

		result := s.engine.Compute(res.Snapshot)
		frame := streamFrame{
			Symbol:         result.Symbol,
			Spot:           result.Spot,
			FetchedAt:      res.Snapshot.FetchedAt,
			Stale:          res.Stale,
			TotalCallGamma: result.TotalCall(),
			TotalPutGamma:  result.TotalPut(),
			TotalNetGamma:  result.TotalNet(),
		}
		if zero, ok := gex.ZeroGamma(result.Records); ok {
			frame.ZeroGamma = &zero
		}

		payload, err := json.Marshal(frame)
		if err != nil {
			s.logger.Debug("stream encode failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}

		s.hub.Broadcast(symbol, payload)

		s.logger.Debug("broadcast profile",
			zap.String("symbol", symbol),
			zap.Bool("stale", res.Stale),
		)
	}
}
