package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/narrative"
	"github.com/sawpanic/stresslens/internal/score/brs"
	"github.com/sawpanic/stresslens/internal/score/mds"
)

func sampleResults() []TickerResult {
	return []TickerResult{
		{
			Ticker: "ACME",
			AsOf:   "2024-06-30",
			BRS: &brs.Result{
				Ticker:    "ACME",
				PeerLevel: "industry",
				PeerCount: 24,
				Scores: brs.Scores{
					Valuation:         brs.ValuationScore{Subtotal: 22},
					CashTruth:         brs.CashTruthScore{Subtotal: 14},
					CapitalEfficiency: brs.CapitalEfficiencyScore{Subtotal: 15},
					BalanceSheet:      brs.BalanceSheetScore{Subtotal: 10},
					Durability:        brs.DurabilityScore{Subtotal: 11},
					Total:             72,
				},
				Warnings: []brs.Warning{brs.WarnMissingSBC},
			},
			MDS: &mds.Result{
				Ticker: "ACME",
				AsOf:   "2024-06-30",
				Scores: mds.Scores{
					Compression: mds.CompressionScore{Subtotal: 18},
					Expectation: mds.ExpectationScore{Subtotal: 12},
					Operating:   mds.OperatingScore{Subtotal: 10},
					Positioning: mds.PositioningScore{Subtotal: 8},
					Total:       48,
				},
				Narrative: &narrative.Result{
					PrimaryEvent: narrative.ClassGuidanceShock,
					ShockType:    narrative.ShockStructuralRisk,
				},
				Warnings: []mds.Warning{mds.WarnMissingEstimates},
			},
			DurationMS: 840,
		},
		{
			Ticker: "zeta",
			BRS: &brs.Result{
				Ticker: "ZETA",
				Scores: brs.Scores{Total: 35},
			},
		},
		{
			Ticker: "BUST",
			Err:    "snapshot fetch failed",
		},
	}
}

func TestWriteTicker_RoundTrip(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.WriteTicker("run-1", sampleResults()[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Root(), "run-1", "ACME.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got TickerResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ACME", got.Ticker)
	require.NotNil(t, got.BRS)
	assert.Equal(t, 72.0, got.BRS.Scores.Total)
	require.NotNil(t, got.MDS)
	assert.Equal(t, narrative.ClassGuidanceShock, got.MDS.Narrative.PrimaryEvent)
	assert.Equal(t, int64(840), got.DurationMS)
}

func TestWriteTicker_UppercasesFilename(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.WriteTicker("run-1", TickerResult{Ticker: "msft"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT.json", filepath.Base(path))
}

func TestWriteSummaryCSV(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.WriteSummaryCSV("run-1", sampleResults())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])

	// Sorted: ACME, BUST, ZETA.
	acme := rows[1]
	assert.Equal(t, "ACME", acme[0])
	assert.Equal(t, "72.0", acme[2])
	assert.Equal(t, "48.0", acme[8])
	assert.Equal(t, "brs:missing_sbc;mds:missing_estimates", acme[13])

	bust := rows[2]
	assert.Equal(t, "BUST", bust[0])
	assert.Equal(t, "", bust[2])
	assert.Equal(t, "snapshot fetch failed", bust[14])

	zeta := rows[3]
	assert.Equal(t, "ZETA", zeta[0])
	assert.Equal(t, "35.0", zeta[2])
	assert.Equal(t, "", zeta[8])
}

func TestWriteManifest_IndexesRunFiles(t *testing.T) {
	w := NewWriter(t.TempDir())
	results := sampleResults()

	for _, r := range results {
		_, err := w.WriteTicker("run-1", r)
		require.NoError(t, err)
	}
	_, err := w.WriteSummaryCSV("run-1", results)
	require.NoError(t, err)

	summary := RunSummary{RunID: "run-1", Requested: 3, Scored: 2, Failed: 1}
	path, err := w.WriteManifest("run-1", summary)
	require.NoError(t, err)
	assert.Equal(t, "manifest.json", filepath.Base(path))

	m, err := w.ReadManifest("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, 2, m.Summary.Scored)

	var names []string
	for _, file := range m.Files {
		names = append(names, file.Path)
		assert.Greater(t, file.Bytes, int64(0))
	}
	assert.Equal(t, []string{"ACME.json", "BUST.json", "ZETA.json", "summary.csv"}, names)
	assert.NotContains(t, names, "manifest.json")
	assert.Greater(t, m.TotalBytes, int64(0))
}

func TestPrune_KeepsNewestRuns(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	for i, runID := range []string{"run-old", "run-mid", "run-new"} {
		_, err := w.WriteTicker(runID, TickerResult{Ticker: "ACME"})
		require.NoError(t, err)
		stamp := time.Now().Add(time.Duration(i-3) * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(root, runID), stamp, stamp))
	}

	removed, err := w.Prune(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-old"}, removed)

	_, err = os.Stat(filepath.Join(root, "run-old"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "run-new"))
	assert.NoError(t, err)
}

func TestPrune_NothingToRemove(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing"))

	removed, err := w.Prune(5)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestWarningFrequencies_SortsByCountThenCode(t *testing.T) {
	results := []TickerResult{
		{Ticker: "A", BRS: &brs.Result{Warnings: []brs.Warning{brs.WarnMissingOCF, brs.WarnMissingFCF}}},
		{Ticker: "B", BRS: &brs.Result{Warnings: []brs.Warning{brs.WarnMissingOCF}}},
	}

	freq := warningFrequencies(results)
	require.Len(t, freq, 2)
	assert.Equal(t, "brs:missing_ocf", freq[0].code)
	assert.Equal(t, 2, freq[0].count)
	assert.Equal(t, "brs:missing_fcf", freq[1].code)
}
