package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	atomicio "github.com/sawpanic/stresslens/internal/io"
)

const manifestName = "manifest.json"

// ManifestFile is one artifact inside a run directory.
type ManifestFile struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Manifest indexes everything a run wrote, so downstream tooling can pick
// up a run directory without globbing.
type Manifest struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Summary     RunSummary     `json:"summary"`
	Files       []ManifestFile `json:"files"`
	TotalBytes  int64          `json:"total_bytes"`
}

// WriteManifest scans the run directory and writes manifest.json listing
// every file except the manifest itself.
func (w *Writer) WriteManifest(runID string, summary RunSummary) (string, error) {
	dir, err := w.ensureRunDir(runID)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan run dir: %w", err)
	}

	m := Manifest{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == manifestName {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		m.Files = append(m.Files, ManifestFile{Path: entry.Name(), Bytes: info.Size()})
		m.TotalBytes += info.Size()
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })

	// Atomic, so a reader never sees a manifest naming files that are not
	// all on disk yet.
	path := filepath.Join(dir, manifestName)
	if err := atomicio.WriteJSONAtomic(path, m); err != nil {
		return "", err
	}

	log.Debug().Int("files", len(m.Files)).Int64("bytes", m.TotalBytes).Str("path", path).Msg("Wrote run manifest")
	return path, nil
}

// ReadManifest loads a run's manifest.json.
func (w *Writer) ReadManifest(runID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(w.RunDir(runID), manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Prune deletes the oldest run directories under the root, keeping the
// newest keep runs. It returns the run IDs it removed.
func (w *Writer) Prune(keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}

	entries, err := os.ReadDir(w.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", w.root, err)
	}

	type runDir struct {
		name    string
		modTime time.Time
	}
	var runs []runDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runDir{name: entry.Name(), modTime: info.ModTime()})
	}
	if len(runs) <= keep {
		return nil, nil
	}

	// Newest first; everything past keep goes.
	sort.Slice(runs, func(i, j int) bool { return runs[i].modTime.After(runs[j].modTime) })

	var removed []string
	for _, run := range runs[keep:] {
		if err := os.RemoveAll(filepath.Join(w.root, run.name)); err != nil {
			return removed, fmt.Errorf("remove run %s: %w", run.name, err)
		}
		removed = append(removed, run.name)
		log.Info().Str("run_id", run.name).Msg("Pruned old run directory")
	}
	return removed, nil
}
