package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/equityrun/internal/gates"
)

// optFloat returns the flag value only when the caller set it; unset
// optional telemetry stays nil and skips its gates.
func optFloat(flags *pflag.FlagSet, name string) *float64 {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetFloat64(name)
	return &v
}

func newDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate one entry candidate and print the decision",
		Long: `Runs a single symbol through the full gate chain using bar history
from a CSV file and market facts from flags, then prints the decision as
JSON on stdout.`,
		RunE: runDecide,
	}

	cmd.Flags().String("symbol", "", "Symbol to evaluate (required)")
	cmd.Flags().String("bars", "", "CSV file with OHLCV history (required)")
	cmd.Flags().Float64("equity", 0, "Account equity in USD (required)")
	cmd.Flags().Float64("price", 0, "Current price; defaults to the last close")
	cmd.Flags().Float64("tick-size", 0.01, "Price tick size")
	cmd.Flags().Float64("spread-pct", 0, "Current spread as % of mid")
	cmd.Flags().Float64("atr-pct", 0, "Current ATR as % of price")
	cmd.Flags().Float64("atr-multiple", 0, "Current ATR vs its average")
	cmd.Flags().Float64("volume-atr-ratio", 0, "Volume vs ATR ratio")
	cmd.Flags().Float64("adv-30d", 0, "30-day average dollar volume")
	cmd.Flags().Bool("day-trade", false, "Treat the entry as a same-day round trip")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("bars")
	_ = cmd.MarkFlagRequired("equity")

	return cmd
}

func runDecide(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadEngineConfig(configPath)
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg, nil)
	if err != nil {
		return err
	}

	symbol, _ := cmd.Flags().GetString("symbol")
	barsPath, _ := cmd.Flags().GetString("bars")
	equity, _ := cmd.Flags().GetFloat64("equity")
	tickSize, _ := cmd.Flags().GetFloat64("tick-size")
	dayTrade, _ := cmd.Flags().GetBool("day-trade")

	bars, err := loadBarsCSV(barsPath)
	if err != nil {
		return err
	}

	price, _ := cmd.Flags().GetFloat64("price")
	if !cmd.Flags().Changed("price") && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}

	now := time.Now()
	eng.evaluator.UpdateEquity(now, equity)

	decision, err := eng.evaluator.EvaluateEntry(gates.EntryRequest{
		Symbol:             symbol,
		Now:                now,
		Equity:             equity,
		Bars:               bars,
		Price:              price,
		TickSize:           tickSize,
		SpreadPct:          optFloat(cmd.Flags(), "spread-pct"),
		ATRPct:             optFloat(cmd.Flags(), "atr-pct"),
		ATRMultiple:        optFloat(cmd.Flags(), "atr-multiple"),
		VolumeATRRatio:     optFloat(cmd.Flags(), "volume-atr-ratio"),
		AvgDollarVolume30d: optFloat(cmd.Flags(), "adv-30d"),
		IsDayTrade:         dayTrade,
	})
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", symbol, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
