package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File is the on-disk tier. Each entry is one JSON file under the cache
// directory carrying its own expiry, so entries written by a previous
// process still honor their TTL.
type File struct {
	dir string
}

type fileEntry struct {
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

// NewFile creates the file tier rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Get reads the entry for key, returning ErrNotFound when absent, expired,
// or unreadable. A corrupt entry file counts as a miss, not an error.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, ErrNotFound
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.ExpiresAt) {
		os.Remove(f.path(key))
		return nil, ErrNotFound
	}
	return entry.Value, nil
}

// Set writes the entry atomically: temp file then rename.
func (f *File) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	data, err := json.Marshal(fileEntry{
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Value:     json.RawMessage(value),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	path := f.path(key)
	tmp, err := os.CreateTemp(f.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Expiry returns the stored expiry for key so upper tiers can backfill with
// the remaining TTL rather than a fresh one.
func (f *File) Expiry(key string) (time.Time, bool) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return time.Time{}, false
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return time.Time{}, false
	}
	return entry.ExpiresAt, true
}

func (f *File) path(key string) string {
	name := strings.ReplaceAll(key, "/", "_") + ".json"
	return filepath.Join(f.dir, name)
}
