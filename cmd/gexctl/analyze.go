package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OUgly/GEXCalculator/internal/chain"
	"github.com/OUgly/GEXCalculator/internal/gex"
)

func analyzeCmd() *cobra.Command {
	var (
		expiry string
		week   string
		month  string
		csvOut string
	)

	cmd := &cobra.Command{
		Use:   "analyze CHAIN_FILE",
		Short: "Compute a GEX profile from a chain snapshot file",
		Long: `Compute a gamma exposure profile from a raw provider chain document.

Examples:
  # Full profile, one row per (strike, expiry)
  gexctl analyze spx_chain.json

  # Restrict to one expiry
  gexctl analyze --expiry 2026-09-18 spx_chain.json

  # Group the calendar week containing a date, write CSV
  gexctl analyze --week 2026-09-14 --csv out.csv spx_chain.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := buildSelector(expiry, week, month)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading chain file: %w", err)
			}

			snap, err := chain.Parse(raw, time.Now())
			if err != nil {
				return fmt.Errorf("parsing chain: %w", err)
			}

			engine := gex.NewEngine()
			result := engine.Compute(snap)
			if result.Skipped > 0 {
				logger.Warn("contracts skipped for missing data",
					zap.Int("skipped", result.Skipped),
				)
			}

			aggs := gex.FilterAndGroup(result.Records, sel)

			if csvOut != "" {
				f, err := os.Create(csvOut)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				if err := gex.WriteCSV(f, aggs); err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
				logger.Info("profile written",
					zap.String("path", csvOut),
					zap.Int("rows", len(aggs)),
				)
				return nil
			}

			printProfile(snap, result, aggs, sel)
			return nil
		},
	}

	cmd.Flags().StringVar(&expiry, "expiry", "", "restrict to one expiry (YYYY-MM-DD)")
	cmd.Flags().StringVar(&week, "week", "", "group the calendar week containing this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&month, "month", "", "group this calendar month (YYYY-MM)")
	cmd.Flags().StringVar(&csvOut, "csv", "", "write the profile to this CSV file instead of stdout")

	return cmd
}

func buildSelector(expiry, week, month string) (gex.ExpirySelector, error) {
	set := 0
	for _, v := range []string{expiry, week, month} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return gex.ExpirySelector{}, fmt.Errorf("--expiry, --week, and --month are mutually exclusive")
	}

	switch {
	case expiry != "":
		d, err := time.ParseInLocation("2006-01-02", expiry, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("--expiry must be YYYY-MM-DD")
		}
		return gex.SingleExpiry(d), nil
	case week != "":
		d, err := time.ParseInLocation("2006-01-02", week, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("--week must be YYYY-MM-DD")
		}
		return gex.WeekOf(d), nil
	case month != "":
		d, err := time.ParseInLocation("2006-01", month, time.UTC)
		if err != nil {
			return gex.ExpirySelector{}, fmt.Errorf("--month must be YYYY-MM")
		}
		return gex.MonthOf(d), nil
	default:
		return gex.AllExpiries(), nil
	}
}

func printProfile(snap *chain.Snapshot, result gex.Result, aggs []gex.Aggregate, sel gex.ExpirySelector) {
	fmt.Printf("%s  spot=%.2f  expiries=%d  fetched=%s\n\n",
		snap.Symbol, snap.UnderlyingPrice, len(snap.Expiries()), snap.FetchedAt.Format(time.RFC3339))

	fmt.Printf("%10s  %-10s  %18s  %18s  %18s\n",
		"strike", "expiry", "call_gamma", "put_gamma", "net_gamma")
	var totalCall, totalPut, totalNet float64
	for _, a := range aggs {
		fmt.Printf("%10.2f  %-10s  %18.2f  %18.2f  %18.2f\n",
			a.Strike, a.Label, a.CallGamma, a.PutGamma, a.NetGamma)
		totalCall += a.CallGamma
		totalPut += a.PutGamma
		totalNet += a.NetGamma
	}

	fmt.Printf("\ntotals: call=%.2f put=%.2f net=%.2f\n", totalCall, totalPut, totalNet)

	filtered := gex.FilterRecords(result.Records, sel)
	if zero, ok := gex.ZeroGamma(filtered); ok {
		fmt.Printf("zero gamma: %.2f\n", zero)
	} else {
		fmt.Println("zero gamma: undefined (no sign change)")
	}
	if result.Skipped > 0 {
		fmt.Printf("skipped contracts: %d\n", result.Skipped)
	}
}
