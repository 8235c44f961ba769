package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadRunDir loads every per-ticker result and the manifest, when present,
// from a finished run directory. Unreadable files are skipped with a
// warning so one corrupt artifact does not sink the report.
func ReadRunDir(dir string) ([]TickerResult, *Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read run dir: %w", err)
	}

	var results []TickerResult
	var manifest *Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if entry.Name() == manifestName {
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Manifest unreadable, skipping")
				continue
			}
			manifest = &m
			continue
		}
		var result TickerResult
		if err := json.Unmarshal(data, &result); err != nil || result.Ticker == "" {
			log.Warn().Str("path", path).Msg("Skipping non-result JSON")
			continue
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return nil, manifest, fmt.Errorf("no ticker results in %s", dir)
	}
	return sortedByTicker(results), manifest, nil
}

// SummaryFromResults reconstructs a run summary for directories missing
// their manifest.
func SummaryFromResults(runID string, results []TickerResult) RunSummary {
	s := RunSummary{RunID: runID, Requested: len(results)}
	for _, r := range results {
		if r.Failed() {
			s.Failed++
		} else {
			s.Scored++
		}
		if s.AsOf == "" && r.AsOf != "" {
			s.AsOf = r.AsOf
		}
	}
	return s
}
