// Package cache provides the tiered response cache: an in-memory TTL tier,
// an optional Redis tier, and a JSON file tier that survives restarts.
// Values are raw JSON payloads; keys follow <ticker>/<dataset>/<params-hash>.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrNotFound reports a cache miss. Every tier returns it so callers can
// branch with errors.Is regardless of which tier answered.
var ErrNotFound = errors.New("cache: not found")

// Store is a single cache tier.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key builds a cache key from ticker, dataset, and request parameters. The
// parameter hash is order-independent, so equivalent requests share a key.
func Key(ticker, dataset string, params map[string]string) string {
	h := sha256.New()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(params[k]))
		h.Write([]byte{0})
	}
	digest := hex.EncodeToString(h.Sum(nil))[:12]
	return strings.ToUpper(ticker) + "/" + dataset + "/" + digest
}
