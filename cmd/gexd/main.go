package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OUgly/GEXCalculator/internal/cache"
	"github.com/OUgly/GEXCalculator/internal/config"
	"github.com/OUgly/GEXCalculator/internal/fetch"
	"github.com/OUgly/GEXCalculator/internal/gex"
	"github.com/OUgly/GEXCalculator/internal/schedule"
	"github.com/OUgly/GEXCalculator/internal/server"
	"github.com/OUgly/GEXCalculator/internal/store"
	"github.com/OUgly/GEXCalculator/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	// Setup logger
	logger, err := setupLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.Duration("ttl", cfg.TTL()),
		zap.Bool("wsEnabled", cfg.Server.WSEnabled),
		zap.Bool("refreshEnabled", cfg.Refresh.Enabled),
		zap.String("storagePath", cfg.Storage.Path),
	)

	// Open persistence
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer st.Close()

	// Provider fetch client
	client := fetch.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.Token,
		cfg.Provider.RatePerSecond,
		time.Duration(cfg.Provider.TimeoutSec)*time.Second,
		time.Duration(cfg.Provider.RetryDelaySec)*time.Second,
		cfg.Provider.RetryCount,
		logger,
	)

	// Symbol cache with write-through persistence
	symbolCache := cache.New(client, cache.Config{
		TTL:          cfg.TTL(),
		FetchTimeout: cfg.FetchTimeout(),
		Archive:      st,
	}, logger)

	// Warm-start from persisted snapshots
	snaps, err := st.LoadAllSnapshots()
	if err != nil {
		logger.Warn("failed to load persisted snapshots", zap.Error(err))
	} else {
		for _, snap := range snaps {
			symbolCache.Put(snap)
		}
		if len(snaps) > 0 {
			logger.Info("cache warmed from store", zap.Int("snapshots", len(snaps)))
		}
	}

	engine := gex.NewEngine()
	srv := server.NewServer(symbolCache, engine, st, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket components (optional)
	var hub *ws.Hub
	if cfg.Server.WSEnabled {
		hub = ws.NewHub(logger)
		go hub.Run(ctx)

		streamer := ws.NewStreamer(hub, symbolCache, engine, cfg.StreamInterval(), logger)
		go streamer.Run(ctx)

		logger.Info("WebSocket enabled", zap.Duration("streamInterval", cfg.StreamInterval()))
	}

	// Background refresh (optional)
	if cfg.Refresh.Enabled {
		refresher := schedule.NewRefresher(
			symbolCache,
			cfg.Refresh.Symbols,
			cfg.RefreshInterval(),
			cfg.Refresh.Timezone,
			logger,
		)
		go refresher.Run(ctx)
	}

	// Create router
	router, err := server.NewRouter(srv, hub, logger)
	if err != nil {
		logger.Error("failed to create router", zap.Error(err))
		return 1
	}

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Cancel context to stop WebSocket components and refresher
	cancel()

	// Graceful HTTP server shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func setupLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
