package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/application"
	"github.com/sawpanic/stresslens/internal/artifacts"
	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/models"
)

// runScore scores one ticker and prints the result.
func runScore(cmd *cobra.Command, args []string) error {
	ticker, _ := cmd.Flags().GetString("ticker")
	asOf, _ := cmd.Flags().GetString("asof")
	universeFile, _ := cmd.Flags().GetString("universe")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return scoreOne(cfg, ticker, asOf, universeFile, format)
}

func scoreOne(cfg *config.Config, ticker, asOf, universeFile, format string) error {
	if asOf != "" {
		if _, ok := models.ParsePeriod(asOf); !ok {
			return fmt.Errorf("invalid as-of date: %s (want YYYY-MM-DD)", asOf)
		}
	}

	builder, err := buildBuilder(cfg, nil)
	if err != nil {
		return err
	}
	pipeline, err := buildPipeline(cfg, builder, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var universe []models.UniverseMetric
	if universeFile != "" {
		tickers, err := application.LoadUniverse(universeFile)
		if err != nil {
			return err
		}
		log.Info().Int("tickers", len(tickers)).Msg("Building peer table")
		universe, err = builder.BuildUniverse(ctx, tickers, asOf)
		if err != nil {
			return fmt.Errorf("build universe: %w", err)
		}
	} else {
		log.Warn().Msg("No universe file given, peer-relative valuation will degrade")
	}

	result := pipeline.ScoreTicker(ctx, ticker, universe, asOf)
	if result.Failed() {
		return fmt.Errorf("score %s: %s", ticker, result.Err)
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printScoreTable(result)
	return nil
}

func printScoreTable(r artifacts.TickerResult) {
	fmt.Printf("\n%s", r.Ticker)
	if r.AsOf != "" {
		fmt.Printf("  as of %s", r.AsOf)
	}
	fmt.Println()

	if b := r.BRS; b != nil {
		fmt.Printf("\nBRS  %5.1f / 100", b.Scores.Total)
		if b.PeerCount > 0 {
			fmt.Printf("   (peers: %s, %d)", b.PeerLevel, b.PeerCount)
		}
		fmt.Println()
		fmt.Printf("  %-22s %5.1f / 30\n", "Valuation", b.Scores.Valuation.Subtotal)
		fmt.Printf("  %-22s %5.1f / 20\n", "Cash truth", b.Scores.CashTruth.Subtotal)
		fmt.Printf("  %-22s %5.1f / 25\n", "Capital efficiency", b.Scores.CapitalEfficiency.Subtotal)
		fmt.Printf("  %-22s %5.1f / 15\n", "Balance sheet", b.Scores.BalanceSheet.Subtotal)
		fmt.Printf("  %-22s %5.1f / 15\n", "Durability", b.Scores.Durability.Subtotal)
	}

	if m := r.MDS; m != nil {
		fmt.Printf("\nMDS  %5.1f / 100\n", m.Scores.Total)
		fmt.Printf("  %-22s %5.1f / 30\n", "Multiple compression", m.Scores.Compression.Subtotal)
		fmt.Printf("  %-22s %5.1f / 25\n", "Expectation reset", m.Scores.Expectation.Subtotal)
		fmt.Printf("  %-22s %5.1f / 25\n", "Operating resilience", m.Scores.Operating.Subtotal)
		fmt.Printf("  %-22s %5.1f / 20\n", "Market positioning", m.Scores.Positioning.Subtotal)
		if n := m.Narrative; n != nil && n.PrimaryEvent != "" {
			fmt.Printf("  %-22s %s (%s, severity %.0f)\n", "Narrative", n.PrimaryEvent, n.ShockType, n.Severity)
		}
	}

	var warnings []string
	if r.BRS != nil {
		for _, w := range r.BRS.Warnings {
			warnings = append(warnings, "brs: "+string(w))
		}
	}
	if r.MDS != nil {
		for _, w := range r.MDS.Warnings {
			warnings = append(warnings, "mds: "+string(w))
		}
	}
	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  %s\n", w)
		}
	}
	fmt.Println()
}
