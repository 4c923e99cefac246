package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/fetch"
	"github.com/OUgly/GEXCalculator/internal/store"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch SYMBOL [SYMBOL...]",
		Short: "Fetch chain snapshots from the provider and persist them",
		Long: `Fetch the current option chain for each symbol from the configured
provider and persist the snapshots for later analysis and server warm-start.

Requires a provider token (set GEXD_PROVIDER_TOKEN).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if cfg.Provider.Token == "" {
				return fmt.Errorf("provider token is required (set GEXD_PROVIDER_TOKEN)")
			}

			st, err := store.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			client := fetch.NewClient(
				cfg.Provider.BaseURL,
				cfg.Provider.Token,
				cfg.Provider.RatePerSecond,
				time.Duration(cfg.Provider.TimeoutSec)*time.Second,
				time.Duration(cfg.Provider.RetryDelaySec)*time.Second,
				cfg.Provider.RetryCount,
				logger,
			)

			var failed []string
			for _, symbol := range args {
				symbol = strings.ToUpper(symbol)
				snap, err := client.Fetch(ctx, symbol)
				if err != nil {
					logger.Error("fetch failed",
						zap.String("symbol", symbol),
						zap.Error(err),
					)
					failed = append(failed, symbol)
					continue
				}
				if err := st.SaveSnapshot(snap); err != nil {
					logger.Error("persist failed",
						zap.String("symbol", symbol),
						zap.Error(err),
					)
					failed = append(failed, symbol)
					continue
				}
				fmt.Printf("%s: %d contracts, spot %.2f\n",
					snap.Symbol, len(snap.Contracts), snap.UnderlyingPrice)
			}

			if len(failed) > 0 {
				return fmt.Errorf("failed symbols: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	return cmd
}
