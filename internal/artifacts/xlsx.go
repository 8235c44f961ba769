package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	brsSheet     = "BRS"
	mdsSheet     = "MDS"
)

// Band cutoffs for scorecard coloring, on the 0-100 total scale.
const (
	strongCutoff   = 70.0
	middlingCutoff = 40.0
)

type scorecardStyles struct {
	header   int
	strong   int
	middling int
	weak     int
}

// newScorecardStyles registers the header and band styles. Band fills use
// the stock Excel conditional-format palette.
func newScorecardStyles(f *excelize.File) (scorecardStyles, error) {
	var s scorecardStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return s, err
	}
	s.strong, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Font: &excelize.Font{Color: "006100"},
	})
	if err != nil {
		return s, err
	}
	s.middling, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
		Font: &excelize.Font{Color: "9C6500"},
	})
	if err != nil {
		return s, err
	}
	s.weak, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Font: &excelize.Font{Color: "9C0006"},
	})
	return s, err
}

func (s scorecardStyles) band(total float64) int {
	switch {
	case total >= strongCutoff:
		return s.strong
	case total >= middlingCutoff:
		return s.middling
	default:
		return s.weak
	}
}

// WriteXLSX writes scorecard.xlsx: a summary sheet plus one sheet per
// engine, with total cells colored by band.
func (w *Writer) WriteXLSX(runID string, results []TickerResult) (string, error) {
	dir, err := w.ensureRunDir(runID)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newScorecardStyles(f)
	if err != nil {
		return "", fmt.Errorf("build styles: %w", err)
	}

	sorted := sortedByTicker(results)
	if err := writeSummarySheet(f, styles, sorted); err != nil {
		return "", err
	}
	if err := writeBRSSheet(f, styles, sorted); err != nil {
		return "", err
	}
	if err := writeMDSSheet(f, styles, sorted); err != nil {
		return "", err
	}

	if index, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(index)
	}

	path := filepath.Join(dir, "scorecard.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}

	log.Debug().Int("tickers", len(results)).Str("path", path).Msg("Wrote XLSX scorecard")
	return path, nil
}

func writeSummarySheet(f *excelize.File, styles scorecardStyles, results []TickerResult) error {
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	header := []interface{}{"Ticker", "As Of", "BRS", "MDS", "Warnings", "Error"}
	if err := writeHeaderRow(f, summarySheet, styles.header, header); err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2
		values := []interface{}{strings.ToUpper(r.Ticker), r.AsOf, nil, nil, len(r.warningCodes()), r.Err}
		if r.BRS != nil {
			values[2] = r.BRS.Scores.Total
		}
		if r.MDS != nil {
			values[3] = r.MDS.Scores.Total
		}
		if err := setRow(f, summarySheet, row, values); err != nil {
			return err
		}
		if r.BRS != nil {
			if err := colorCell(f, summarySheet, 3, row, styles.band(r.BRS.Scores.Total)); err != nil {
				return err
			}
		}
		if r.MDS != nil {
			if err := colorCell(f, summarySheet, 4, row, styles.band(r.MDS.Scores.Total)); err != nil {
				return err
			}
		}
	}

	return setColWidths(f, summarySheet, map[string]float64{"A": 10, "B": 12, "E": 10, "F": 40})
}

func writeBRSSheet(f *excelize.File, styles scorecardStyles, results []TickerResult) error {
	if _, err := f.NewSheet(brsSheet); err != nil {
		return err
	}

	header := []interface{}{
		"Ticker", "Total",
		"Valuation (30)", "Cash Truth (20)", "Capital Efficiency (25)", "Balance Sheet (15)", "Durability (15)",
		"Peer Level", "Peer Count", "Warnings",
	}
	if err := writeHeaderRow(f, brsSheet, styles.header, header); err != nil {
		return err
	}

	row := 1
	for _, r := range results {
		if r.BRS == nil {
			continue
		}
		row++
		sc := r.BRS.Scores
		values := []interface{}{
			strings.ToUpper(r.Ticker), sc.Total,
			sc.Valuation.Subtotal, sc.CashTruth.Subtotal, sc.CapitalEfficiency.Subtotal,
			sc.BalanceSheet.Subtotal, sc.Durability.Subtotal,
			string(r.BRS.PeerLevel), r.BRS.PeerCount,
			joinWarnings(r.BRS.Warnings),
		}
		if err := setRow(f, brsSheet, row, values); err != nil {
			return err
		}
		if err := colorCell(f, brsSheet, 2, row, styles.band(sc.Total)); err != nil {
			return err
		}
	}

	return setColWidths(f, brsSheet, map[string]float64{"A": 10, "C": 14, "D": 14, "E": 20, "F": 16, "G": 14, "H": 10, "J": 50})
}

func writeMDSSheet(f *excelize.File, styles scorecardStyles, results []TickerResult) error {
	if _, err := f.NewSheet(mdsSheet); err != nil {
		return err
	}

	header := []interface{}{
		"Ticker", "Total",
		"Multiple Compression (30)", "Expectation Reset (25)", "Operating Resilience (25)", "Market Positioning (20)",
		"Primary Event", "Shock Type", "Warnings",
	}
	if err := writeHeaderRow(f, mdsSheet, styles.header, header); err != nil {
		return err
	}

	row := 1
	for _, r := range results {
		if r.MDS == nil {
			continue
		}
		row++
		sc := r.MDS.Scores
		values := []interface{}{
			strings.ToUpper(r.Ticker), sc.Total,
			sc.Compression.Subtotal, sc.Expectation.Subtotal, sc.Operating.Subtotal, sc.Positioning.Subtotal,
			nil, nil,
			joinWarnings(r.MDS.Warnings),
		}
		if r.MDS.Narrative != nil {
			values[6] = r.MDS.Narrative.PrimaryEvent
			values[7] = r.MDS.Narrative.ShockType
		}
		if err := setRow(f, mdsSheet, row, values); err != nil {
			return err
		}
		if err := colorCell(f, mdsSheet, 2, row, styles.band(sc.Total)); err != nil {
			return err
		}
	}

	return setColWidths(f, mdsSheet, map[string]float64{"A": 10, "C": 22, "D": 20, "E": 22, "F": 22, "G": 24, "H": 16, "I": 50})
}

func writeHeaderRow(f *excelize.File, sheet string, style int, header []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func colorCell(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func setColWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func joinWarnings[W ~string](warnings []W) string {
	if len(warnings) == 0 {
		return ""
	}
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = string(w)
	}
	return strings.Join(parts, "; ")
}
