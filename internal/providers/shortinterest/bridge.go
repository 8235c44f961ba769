// Package shortinterest shells out to a yfinance helper script for short
// interest readings. The script is best-effort: a missing or failing lookup
// becomes an absent reading, never a fatal error for the run.
package shortinterest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stresslens/internal/models"
)

const (
	DefaultScript  = "scripts/short_interest.py"
	DefaultPython  = "python3"
	DefaultTimeout = 2 * time.Minute
)

// Config controls how the helper script is invoked.
type Config struct {
	Script  string
	Python  string
	Timeout time.Duration
}

// DefaultConfig returns the standard script invocation.
func DefaultConfig() Config {
	return Config{
		Script:  DefaultScript,
		Python:  DefaultPython,
		Timeout: DefaultTimeout,
	}
}

// Bridge runs the helper script and parses its JSON payload.
type Bridge struct {
	config Config
}

// NewBridge creates a bridge. Zero fields in config fall back to defaults.
func NewBridge(config Config) *Bridge {
	if config.Script == "" {
		config.Script = DefaultScript
	}
	if config.Python == "" {
		config.Python = DefaultPython
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Bridge{config: config}
}

// Available reports whether the script and its interpreter can be found.
func (b *Bridge) Available() bool {
	if _, err := os.Stat(b.config.Script); err != nil {
		return false
	}
	if _, err := exec.LookPath(b.config.Python); err != nil {
		return false
	}
	return true
}

type scriptPayload struct {
	Timestamp int64          `json:"timestamp"`
	Results   []scriptResult `json:"results"`
	Errors    []scriptError  `json:"errors"`
}

type scriptResult struct {
	Ticker      string   `json:"ticker"`
	Pct         *float64 `json:"short_interest_pct"`
	SourceField string   `json:"source_field"`
}

type scriptError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// Fetch runs the script once for the given tickers and returns a reading per
// ticker that produced a usable value. Tickers without a reading are absent
// from the map. The error is non-nil only when the script produced no
// parseable payload at all.
func (b *Bridge) Fetch(ctx context.Context, tickers []string) (map[string]models.ShortInterest, error) {
	upper := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			upper = append(upper, t)
		}
	}
	if len(upper) == 0 {
		return map[string]models.ShortInterest{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.config.Python, b.config.Script, strings.Join(upper, ","))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	// The script prints its payload even when it exits non-zero, so parse
	// stdout before judging the exit status.
	var payload scriptPayload
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &payload); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("short interest script timed out after %v", b.config.Timeout)
		}
		if runErr != nil {
			return nil, fmt.Errorf("short interest script failed: %v, stderr: %s",
				runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("short interest script output unparseable: %w", err)
	}

	readings := make(map[string]models.ShortInterest, len(payload.Results))
	for _, res := range payload.Results {
		if res.Pct == nil {
			continue
		}
		pct, ok := normalizePct(*res.Pct)
		if !ok {
			continue
		}
		ticker := strings.ToUpper(res.Ticker)
		readings[ticker] = models.ShortInterest{
			Ticker:      ticker,
			PctOfFloat:  pct,
			SourceField: res.SourceField,
		}
	}

	for _, se := range payload.Errors {
		log.Debug().
			Str("ticker", se.Ticker).
			Str("error", se.Error).
			Msg("Short interest lookup failed")
	}

	log.Debug().
		Int("requested", len(upper)).
		Int("resolved", len(readings)).
		Dur("duration", time.Since(start)).
		Msg("Short interest script completed")

	return readings, nil
}

// FetchOne runs the script for a single ticker. A nil reading with a nil
// error means the script ran but had no usable value.
func (b *Bridge) FetchOne(ctx context.Context, ticker string) (*models.ShortInterest, error) {
	readings, err := b.Fetch(ctx, []string{ticker})
	if err != nil {
		return nil, err
	}
	si, ok := readings[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return nil, nil
	}
	return &si, nil
}

// normalizePct coerces a raw reading onto the fraction-of-float scale.
// Values in (1, 100] are read as percentages; negatives and anything above
// 100 are discarded.
func normalizePct(v float64) (float64, bool) {
	switch {
	case v < 0:
		return 0, false
	case v <= 1:
		return v, true
	case v <= 100:
		return v / 100, true
	default:
		return 0, false
	}
}
