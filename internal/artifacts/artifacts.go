// Package artifacts writes batch run outputs under out/scores/<run-id>/:
// one JSON file per ticker, a CSV summary, an XLSX scorecard, a Markdown
// run report with optional HTML rendering, and a manifest indexing the run.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	atomicio "github.com/sawpanic/stresslens/internal/io"
	"github.com/sawpanic/stresslens/internal/score/brs"
	"github.com/sawpanic/stresslens/internal/score/mds"
)

// DefaultRoot is where runs land unless configured otherwise.
const DefaultRoot = "out/scores"

// TickerResult is everything a run produced for one ticker. Either engine
// result may be nil when scoring failed; Err carries the reason.
type TickerResult struct {
	Ticker     string      `json:"ticker"`
	AsOf       string      `json:"as_of,omitempty"`
	BRS        *brs.Result `json:"brs,omitempty"`
	MDS        *mds.Result `json:"mds,omitempty"`
	Err        string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// Failed reports whether the ticker produced no scores at all.
func (r TickerResult) Failed() bool {
	return r.BRS == nil && r.MDS == nil
}

// warningCodes flattens both engines' warnings into prefixed strings.
func (r TickerResult) warningCodes() []string {
	var codes []string
	if r.BRS != nil {
		for _, w := range r.BRS.Warnings {
			codes = append(codes, "brs:"+string(w))
		}
	}
	if r.MDS != nil {
		for _, w := range r.MDS.Warnings {
			codes = append(codes, "mds:"+string(w))
		}
	}
	return codes
}

// RunSummary captures run-level metadata for reports and manifests.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Universe   string `json:"universe,omitempty"`
	AsOf       string `json:"as_of,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Requested  int    `json:"requested"`
	Scored     int    `json:"scored"`
	Failed     int    `json:"failed"`
}

// Writer lays out one run directory per run ID under its root.
type Writer struct {
	root string
}

// NewWriter creates a writer rooted at dir. Empty means DefaultRoot.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultRoot
	}
	return &Writer{root: dir}
}

// Root returns the base output directory.
func (w *Writer) Root() string { return w.root }

// RunDir returns the directory for a run, without creating it.
func (w *Writer) RunDir(runID string) string {
	return filepath.Join(w.root, runID)
}

func (w *Writer) ensureRunDir(runID string) (string, error) {
	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// WriteTicker writes one ticker's full result as <TICKER>.json and returns
// the file path.
func (w *Writer) WriteTicker(runID string, result TickerResult) (string, error) {
	dir, err := w.ensureRunDir(runID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, strings.ToUpper(result.Ticker)+".json")
	if err := atomicio.WriteJSONAtomic(path, result); err != nil {
		return "", err
	}

	log.Debug().Str("ticker", result.Ticker).Str("path", path).Msg("Wrote ticker artifact")
	return path, nil
}

// csvHeader matches the row layout in WriteSummaryCSV.
var csvHeader = []string{
	"ticker", "as_of",
	"brs_total", "brs_valuation", "brs_cash_truth", "brs_capital_efficiency", "brs_balance_sheet", "brs_durability",
	"mds_total", "mds_compression", "mds_expectation", "mds_operating", "mds_positioning",
	"warnings", "error",
}

// WriteSummaryCSV writes summary.csv with one row per ticker, sorted by
// ticker for stable diffs.
func (w *Writer) WriteSummaryCSV(runID string, results []TickerResult) (string, error) {
	dir, err := w.ensureRunDir(runID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "summary.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range sortedByTicker(results) {
		row := []string{strings.ToUpper(r.Ticker), r.AsOf}
		if r.BRS != nil {
			row = append(row,
				formatScore(r.BRS.Scores.Total),
				formatScore(r.BRS.Scores.Valuation.Subtotal),
				formatScore(r.BRS.Scores.CashTruth.Subtotal),
				formatScore(r.BRS.Scores.CapitalEfficiency.Subtotal),
				formatScore(r.BRS.Scores.BalanceSheet.Subtotal),
				formatScore(r.BRS.Scores.Durability.Subtotal),
			)
		} else {
			row = append(row, "", "", "", "", "", "")
		}
		if r.MDS != nil {
			row = append(row,
				formatScore(r.MDS.Scores.Total),
				formatScore(r.MDS.Scores.Compression.Subtotal),
				formatScore(r.MDS.Scores.Expectation.Subtotal),
				formatScore(r.MDS.Scores.Operating.Subtotal),
				formatScore(r.MDS.Scores.Positioning.Subtotal),
			)
		} else {
			row = append(row, "", "", "", "", "")
		}
		row = append(row, strings.Join(r.warningCodes(), ";"), r.Err)

		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write csv row for %s: %w", r.Ticker, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	log.Debug().Int("rows", len(results)).Str("path", path).Msg("Wrote run summary CSV")
	return path, nil
}

func sortedByTicker(results []TickerResult) []TickerResult {
	out := make([]TickerResult, len(results))
	copy(out, results)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Ticker) < strings.ToUpper(out[j].Ticker)
	})
	return out
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
