package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/narrative"
)

// runNarrative classifies a document file and prints the result as JSON.
func runNarrative(cmd *cobra.Command, args []string) error {
	ticker, _ := cmd.Flags().GetString("ticker")
	docsFile, _ := cmd.Flags().GetString("docs")
	windowEnd, _ := cmd.Flags().GetString("window-end")

	data, err := os.ReadFile(docsFile)
	if err != nil {
		return fmt.Errorf("read docs file: %w", err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parse docs file: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("docs file %s has no documents", docsFile)
	}

	opts := narrative.Options{Ticker: ticker}
	if windowEnd != "" {
		end, err := time.Parse("2006-01-02", windowEnd)
		if err != nil {
			return fmt.Errorf("invalid --window-end date: %s (want YYYY-MM-DD)", windowEnd)
		}
		opts.WindowEnd = end
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.NarrativeParamsFile != "" {
		overrides, err := narrative.LoadOverrides(cfg.NarrativeParamsFile)
		if err != nil {
			return fmt.Errorf("narrative params: %w", err)
		}
		opts.Params = overrides.Apply(nil)
	}

	result := narrative.Classify(docs, opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
