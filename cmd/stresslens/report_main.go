package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/artifacts"
)

// runReport loads a finished run directory and re-renders artifacts from it.
func runReport(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("run")
	wantXLSX, _ := cmd.Flags().GetBool("xlsx")
	wantHTML, _ := cmd.Flags().GetBool("html")
	return renderRun(dir, wantXLSX, wantHTML)
}

func renderRun(dir string, wantXLSX, wantHTML bool) error {
	dir = filepath.Clean(dir)
	results, manifest, err := artifacts.ReadRunDir(dir)
	if err != nil {
		return err
	}

	runID := filepath.Base(dir)
	writer := artifacts.NewWriter(filepath.Dir(dir))

	var summary artifacts.RunSummary
	if manifest != nil {
		summary = manifest.Summary
	} else {
		summary = artifacts.SummaryFromResults(runID, results)
	}

	fmt.Printf("Run %s: %d requested, %d scored, %d failed\n\n", runID, summary.Requested, summary.Scored, summary.Failed)
	fmt.Printf("%-8s %-12s %7s %7s %s\n", "TICKER", "AS OF", "BRS", "MDS", "WARNINGS")
	for _, r := range results {
		if r.Failed() {
			fmt.Printf("%-8s %-12s %7s %7s failed: %s\n", r.Ticker, r.AsOf, "-", "-", r.Err)
			continue
		}
		brsTotal, mdsTotal := "-", "-"
		warnings := 0
		if r.BRS != nil {
			brsTotal = fmt.Sprintf("%.1f", r.BRS.Scores.Total)
			warnings += len(r.BRS.Warnings)
		}
		if r.MDS != nil {
			mdsTotal = fmt.Sprintf("%.1f", r.MDS.Scores.Total)
			warnings += len(r.MDS.Warnings)
		}
		fmt.Printf("%-8s %-12s %7s %7s %d\n", r.Ticker, r.AsOf, brsTotal, mdsTotal, warnings)
	}
	fmt.Println()

	if wantXLSX {
		path, err := writer.WriteXLSX(runID, results)
		if err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	if wantHTML {
		if _, err := os.Stat(filepath.Join(dir, "report.md")); os.IsNotExist(err) {
			if _, err := writer.WriteReport(runID, summary, results); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
		path, err := writer.RenderHTML(runID)
		if err != nil {
			return fmt.Errorf("render html: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	return nil
}
