package artifacts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	atomicio "github.com/sawpanic/stresslens/internal/io"
)

const (
	reportMD   = "report.md"
	reportHTML = "report.html"
)

// WriteReport writes report.md: run metadata, a score table, warning
// frequencies, and failures.
func (w *Writer) WriteReport(runID string, summary RunSummary, results []TickerResult) (string, error) {
	dir, err := w.ensureRunDir(runID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Score Run %s\n\n", runID)
	fmt.Fprintf(&b, "- Started: %s\n", summary.StartedAt)
	fmt.Fprintf(&b, "- Finished: %s\n", summary.FinishedAt)
	if summary.Universe != "" {
		fmt.Fprintf(&b, "- Universe: %s\n", summary.Universe)
	}
	if summary.AsOf != "" {
		fmt.Fprintf(&b, "- As of: %s\n", summary.AsOf)
	}
	fmt.Fprintf(&b, "- Tickers: %d requested, %d scored, %d failed\n\n", summary.Requested, summary.Scored, summary.Failed)

	sorted := sortedByTicker(results)

	b.WriteString("## Scores\n\n")
	b.WriteString("| Ticker | BRS | MDS | Primary Event | Warnings |\n")
	b.WriteString("|--------|----:|----:|---------------|---------:|\n")
	for _, r := range sorted {
		if r.Failed() {
			continue
		}
		brsCell, mdsCell, event := "", "", ""
		if r.BRS != nil {
			brsCell = formatScore(r.BRS.Scores.Total)
		}
		if r.MDS != nil {
			mdsCell = formatScore(r.MDS.Scores.Total)
			if r.MDS.Narrative != nil && r.MDS.Narrative.PrimaryEvent != "" {
				event = r.MDS.Narrative.PrimaryEvent
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
			strings.ToUpper(r.Ticker), brsCell, mdsCell, event, len(r.warningCodes()))
	}
	b.WriteString("\n")

	if freq := warningFrequencies(sorted); len(freq) > 0 {
		b.WriteString("## Warnings\n\n")
		b.WriteString("| Code | Count |\n")
		b.WriteString("|------|------:|\n")
		for _, wc := range freq {
			fmt.Fprintf(&b, "| %s | %d |\n", wc.code, wc.count)
		}
		b.WriteString("\n")
	}

	var failed []TickerResult
	for _, r := range sorted {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		b.WriteString("## Failures\n\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", strings.ToUpper(r.Ticker), r.Err)
		}
		b.WriteString("\n")
	}

	path := filepath.Join(dir, reportMD)
	if err := atomicio.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}

	log.Debug().Str("path", path).Msg("Wrote run report")
	return path, nil
}

type warningCount struct {
	code  string
	count int
}

// warningFrequencies tallies warning codes across the run, most frequent
// first, ties broken by code.
func warningFrequencies(results []TickerResult) []warningCount {
	counts := make(map[string]int)
	for _, r := range results {
		for _, code := range r.warningCodes() {
			counts[code]++
		}
	}

	out := make([]warningCount, 0, len(counts))
	for code, count := range counts {
		out = append(out, warningCount{code: code, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].code < out[j].code
	})
	return out
}

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 64rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a2e; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #cfd4dc; padding: 0.35rem 0.75rem; }
th { background: #f0f2f5; text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`

// RenderHTML converts an existing report.md into report.html.
func (w *Writer) RenderHTML(runID string) (string, error) {
	dir := w.RunDir(runID)
	source, err := os.ReadFile(filepath.Join(dir, reportMD))
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	path := filepath.Join(dir, reportHTML)
	page := fmt.Sprintf(htmlShell, "Score Run "+runID, buf.String())
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	log.Debug().Str("path", path).Msg("Rendered HTML report")
	return path, nil
}
