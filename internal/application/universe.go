// Package application wires the provider, cache, engines, persistence, and
// artifacts into snapshot assembly and batch scoring. All concurrency lives
// here; the scoring engines stay synchronous and pure.
package application

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadUniverse reads a ticker universe file: one ticker per line, blank
// lines and #-comments ignored, tickers uppercased, duplicates dropped,
// order preserved.
func LoadUniverse(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	var tickers []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		ticker := strings.ToUpper(strings.TrimSpace(line))
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("universe file %s has no tickers", path)
	}
	return tickers, nil
}
