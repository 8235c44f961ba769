package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/stresslens/internal/data/cache"
	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/series"
)

// Dataset names, shared between cache keys, TTL lookup, and metrics labels.
const (
	DatasetFacts         = "facts"
	DatasetIncome        = "income"
	DatasetBalance       = "balance"
	DatasetCashFlow      = "cashflow"
	DatasetMetrics       = "metrics"
	DatasetEstimates     = "estimates"
	DatasetOwnership     = "ownership"
	DatasetInsider       = "insider"
	DatasetNews          = "news"
	DatasetShortInterest = "short_interest"
)

const (
	// DefaultHistoryLimit covers the five fiscal years the engines look
	// back over, with headroom for irregular reporting calendars.
	DefaultHistoryLimit = 24

	// DefaultNewsWindow bounds the document fetch for the narrative
	// classifier. The classifier applies its own, tighter window.
	DefaultNewsWindow = 120 * 24 * time.Hour

	DefaultNewsLimit    = 100
	DefaultCacheTTL     = 6 * time.Hour
	DefaultUniverseJobs = 4
)

// FundamentalsAPI is the slice of the provider client the snapshot
// builder consumes.
type FundamentalsAPI interface {
	CompanyFacts(ctx context.Context, ticker string) (*models.CompanyFacts, error)
	IncomeStatements(ctx context.Context, ticker string, limit int) ([]models.IncomeStatement, error)
	BalanceSheets(ctx context.Context, ticker string, limit int) ([]models.BalanceSheet, error)
	CashFlowStatements(ctx context.Context, ticker string, limit int) ([]models.CashFlowStatement, error)
	FinancialMetrics(ctx context.Context, ticker string, limit int) ([]models.MetricsPoint, error)
	EarningsEstimates(ctx context.Context, ticker string, limit int) ([]models.EstimatePoint, error)
	InstitutionalOwnership(ctx context.Context, ticker string, limit int) ([]models.OwnershipPoint, error)
	InsiderTrades(ctx context.Context, ticker string, limit int) ([]models.InsiderTrade, error)
	News(ctx context.Context, ticker string, start, end time.Time, limit int) ([]models.Document, error)
}

// ShortInterestSource resolves short interest readings outside the main
// provider, typically through the yfinance bridge.
type ShortInterestSource interface {
	Fetch(ctx context.Context, tickers []string) (map[string]models.ShortInterest, error)
}

// SnapshotBuilder assembles one ticker's scoring inputs from the provider,
// reading through the cache when one is configured. Dataset failures
// degrade to warnings; Build errors only when the context dies or no
// statement data could be fetched at all.
type SnapshotBuilder struct {
	api     FundamentalsAPI
	store   cache.Store
	short   ShortInterestSource
	metrics *metrics.Registry

	historyLimit int
	newsWindow   time.Duration
	newsLimit    int
	universeJobs int
	ttlFor       func(dataset string) time.Duration
}

// SnapshotOption configures a SnapshotBuilder.
type SnapshotOption func(*SnapshotBuilder)

// WithCache routes dataset fetches through store. ttlFor maps a dataset
// name to its TTL; nil applies DefaultCacheTTL to everything.
func WithCache(store cache.Store, ttlFor func(dataset string) time.Duration) SnapshotOption {
	return func(b *SnapshotBuilder) {
		b.store = store
		b.ttlFor = ttlFor
	}
}

// WithShortInterest attaches a short interest source. Live builds consult
// it; as-of builds skip it, since the readings are not point-in-time.
func WithShortInterest(src ShortInterestSource) SnapshotOption {
	return func(b *SnapshotBuilder) { b.short = src }
}

// WithSnapshotMetrics records cache hit/miss counts per dataset.
func WithSnapshotMetrics(reg *metrics.Registry) SnapshotOption {
	return func(b *SnapshotBuilder) { b.metrics = reg }
}

// WithHistoryLimit overrides the per-series fetch depth.
func WithHistoryLimit(n int) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if n > 0 {
			b.historyLimit = n
		}
	}
}

// WithNewsWindow overrides the document fetch window and limit.
func WithNewsWindow(window time.Duration, limit int) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if window > 0 {
			b.newsWindow = window
		}
		if limit > 0 {
			b.newsLimit = limit
		}
	}
}

// WithUniverseJobs caps concurrent universe member fetches.
func WithUniverseJobs(n int) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if n > 0 {
			b.universeJobs = n
		}
	}
}

// NewSnapshotBuilder wires a builder over the provider API.
func NewSnapshotBuilder(api FundamentalsAPI, opts ...SnapshotOption) *SnapshotBuilder {
	b := &SnapshotBuilder{
		api:          api,
		historyLimit: DefaultHistoryLimit,
		newsWindow:   DefaultNewsWindow,
		newsLimit:    DefaultNewsLimit,
		universeJobs: DefaultUniverseJobs,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fetches every dataset for ticker concurrently. asOf, when set
// (YYYY-MM-DD), truncates period series to the cutoff and anchors the news
// window so a rescore reproduces what was knowable then. Returned warnings
// name the datasets that could not be fetched.
func (b *SnapshotBuilder) Build(ctx context.Context, ticker, asOf string) (*models.Snapshot, []string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, nil, errors.New("ticker is empty")
	}

	snap := &models.Snapshot{Ticker: ticker, AsOf: asOf}
	limitParams := map[string]string{"limit": strconv.Itoa(b.historyLimit)}

	var mu sync.Mutex
	var warnings []string
	var statementFailures int32
	warn := func(dataset string, core bool, err error) {
		mu.Lock()
		warnings = append(warnings, dataset+"_unavailable")
		mu.Unlock()
		if core {
			atomic.AddInt32(&statementFailures, 1)
		}
		log.Warn().Err(err).Str("ticker", ticker).Str("dataset", dataset).Msg("Dataset fetch failed")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		facts, err := fetchCached(gctx, b, ticker, DatasetFacts, nil, func(ctx context.Context) (*models.CompanyFacts, error) {
			return b.api.CompanyFacts(ctx, ticker)
		})
		if err != nil {
			warn(DatasetFacts, false, err)
			return nil
		}
		if facts != nil {
			snap.Facts = *facts
		}
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetIncome, limitParams, func(ctx context.Context) ([]models.IncomeStatement, error) {
			return b.api.IncomeStatements(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetIncome, true, err)
			return nil
		}
		snap.Income = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetBalance, limitParams, func(ctx context.Context) ([]models.BalanceSheet, error) {
			return b.api.BalanceSheets(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetBalance, true, err)
			return nil
		}
		snap.Balance = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetCashFlow, limitParams, func(ctx context.Context) ([]models.CashFlowStatement, error) {
			return b.api.CashFlowStatements(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetCashFlow, true, err)
			return nil
		}
		snap.CashFlow = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetMetrics, limitParams, func(ctx context.Context) ([]models.MetricsPoint, error) {
			return b.api.FinancialMetrics(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetMetrics, true, err)
			return nil
		}
		snap.Metrics = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetEstimates, limitParams, func(ctx context.Context) ([]models.EstimatePoint, error) {
			return b.api.EarningsEstimates(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetEstimates, false, err)
			return nil
		}
		snap.Estimates = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetOwnership, limitParams, func(ctx context.Context) ([]models.OwnershipPoint, error) {
			return b.api.InstitutionalOwnership(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetOwnership, false, err)
			return nil
		}
		snap.Ownership = rows
		return nil
	})
	g.Go(func() error {
		rows, err := fetchCached(gctx, b, ticker, DatasetInsider, limitParams, func(ctx context.Context) ([]models.InsiderTrade, error) {
			return b.api.InsiderTrades(ctx, ticker, b.historyLimit)
		})
		if err != nil {
			warn(DatasetInsider, false, err)
			return nil
		}
		snap.InsiderTrades = rows
		return nil
	})
	g.Go(func() error {
		start, end := b.newsRange(asOf)
		params := map[string]string{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
			"limit": strconv.Itoa(b.newsLimit),
		}
		docs, err := fetchCached(gctx, b, ticker, DatasetNews, params, func(ctx context.Context) ([]models.Document, error) {
			return b.api.News(ctx, ticker, start, end, b.newsLimit)
		})
		if err != nil {
			warn(DatasetNews, false, err)
			return nil
		}
		snap.Documents = docs
		return nil
	})
	if b.short != nil && asOf == "" {
		g.Go(func() error {
			b.fetchShortInterest(gctx, ticker, snap, warn)
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, warnings, err
	}
	if atomic.LoadInt32(&statementFailures) == 4 {
		return nil, warnings, fmt.Errorf("no fundamental data for %s: all statement fetches failed", ticker)
	}

	if asOf != "" {
		snap.Income = cutByPeriod(snap.Income, asOf, func(r models.IncomeStatement) string { return r.ReportPeriod })
		snap.Balance = cutByPeriod(snap.Balance, asOf, func(r models.BalanceSheet) string { return r.ReportPeriod })
		snap.CashFlow = cutByPeriod(snap.CashFlow, asOf, func(r models.CashFlowStatement) string { return r.ReportPeriod })
		snap.Metrics = cutByPeriod(snap.Metrics, asOf, func(r models.MetricsPoint) string { return r.ReportPeriod })
		snap.Ownership = cutByPeriod(snap.Ownership, asOf, func(r models.OwnershipPoint) string { return r.ReportPeriod })
		snap.InsiderTrades = cutByPeriod(snap.InsiderTrades, asOf, func(r models.InsiderTrade) string { return r.TransactionDate })
	}
	return snap, warnings, nil
}

func (b *SnapshotBuilder) fetchShortInterest(ctx context.Context, ticker string, snap *models.Snapshot, warn func(string, bool, error)) {
	key := cache.Key(ticker, DatasetShortInterest, nil)
	if b.store != nil {
		var cached models.ShortInterest
		if err := cache.GetJSON(ctx, b.store, key, &cached); err == nil {
			b.cacheHit(DatasetShortInterest)
			snap.ShortInterest = &cached
			return
		}
		b.cacheMiss(DatasetShortInterest)
	}

	readings, err := b.short.Fetch(ctx, []string{ticker})
	if err != nil {
		warn(DatasetShortInterest, false, err)
		return
	}
	si, ok := readings[ticker]
	if !ok {
		// The bridge ran but had no reading. The scoring engine reports
		// the gap itself, so no warning here.
		return
	}
	snap.ShortInterest = &si
	if b.store != nil {
		if err := cache.SetJSON(ctx, b.store, key, si, b.ttl(DatasetShortInterest)); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
}

// newsRange anchors the document window at asOf, or at now for live runs.
func (b *SnapshotBuilder) newsRange(asOf string) (time.Time, time.Time) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if asOf != "" {
		if t, err := time.Parse("2006-01-02", asOf); err == nil {
			end = t
		}
	}
	return end.Add(-b.newsWindow), end
}

// BuildUniverse assembles the cross-sectional peer table for a run. Each
// member needs company facts for classification plus the metrics history
// for EV/EBITDA and ROIC; members that fail to resolve are skipped.
func (b *SnapshotBuilder) BuildUniverse(ctx context.Context, tickers []string, asOf string) ([]models.UniverseMetric, error) {
	members := make([]models.UniverseMetric, len(tickers))
	resolved := make([]bool, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.universeJobs)
	for i, ticker := range tickers {
		g.Go(func() error {
			member, err := b.universeMember(gctx, ticker, asOf)
			if err != nil {
				log.Warn().Err(err).Str("ticker", ticker).Msg("Universe member skipped")
				return nil
			}
			members[i] = *member
			resolved[i] = true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.UniverseMetric, 0, len(tickers))
	for i := range members {
		if resolved[i] {
			out = append(out, members[i])
		}
	}
	return out, nil
}

func (b *SnapshotBuilder) universeMember(ctx context.Context, ticker, asOf string) (*models.UniverseMetric, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	limitParams := map[string]string{"limit": strconv.Itoa(b.historyLimit)}

	facts, err := fetchCached(ctx, b, ticker, DatasetFacts, nil, func(ctx context.Context) (*models.CompanyFacts, error) {
		return b.api.CompanyFacts(ctx, ticker)
	})
	if err != nil {
		return nil, fmt.Errorf("company facts: %w", err)
	}
	points, err := fetchCached(ctx, b, ticker, DatasetMetrics, limitParams, func(ctx context.Context) ([]models.MetricsPoint, error) {
		return b.api.FinancialMetrics(ctx, ticker, b.historyLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("financial metrics: %w", err)
	}
	if asOf != "" {
		points = cutByPeriod(points, asOf, func(r models.MetricsPoint) string { return r.ReportPeriod })
	}

	member := &models.UniverseMetric{Ticker: ticker}
	if facts != nil {
		member.Sector = facts.Sector
		member.Industry = facts.Industry
	}
	sorted := series.SortedByPeriod(points, func(m models.MetricsPoint) string { return m.ReportPeriod })
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].EVToEBITDA != nil {
			member.EVToEBITDA = sorted[i].EVToEBITDA
			break
		}
	}
	for _, m := range sorted {
		member.ROICSeries = append(member.ROICSeries, models.RoicPoint{ReportPeriod: m.ReportPeriod, Value: m.ROIC})
	}
	return member, nil
}

// fetchCached reads dataset through the cache when one is configured,
// falling back to fetch and writing the result back on success.
func fetchCached[T any](ctx context.Context, b *SnapshotBuilder, ticker, dataset string, params map[string]string, fetch func(context.Context) (T, error)) (T, error) {
	key := cache.Key(ticker, dataset, params)
	if b.store != nil {
		var cached T
		err := cache.GetJSON(ctx, b.store, key, &cached)
		if err == nil {
			b.cacheHit(dataset)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			log.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		b.cacheMiss(dataset)
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}
	if b.store != nil {
		if err := cache.SetJSON(ctx, b.store, key, value, b.ttl(dataset)); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return value, nil
}

func (b *SnapshotBuilder) ttl(dataset string) time.Duration {
	if b.ttlFor != nil {
		if ttl := b.ttlFor(dataset); ttl > 0 {
			return ttl
		}
	}
	return DefaultCacheTTL
}

func (b *SnapshotBuilder) cacheHit(dataset string) {
	if b.metrics != nil {
		b.metrics.RecordCacheHit(dataset)
	}
}

func (b *SnapshotBuilder) cacheMiss(dataset string) {
	if b.metrics != nil {
		b.metrics.RecordCacheMiss(dataset)
	}
}

// cutByPeriod drops rows dated after the cutoff. Periods are ISO dates, so
// string comparison orders them.
func cutByPeriod[T any](rows []T, cutoff string, period func(T) string) []T {
	if len(rows) == 0 {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if period(row) <= cutoff {
			out = append(out, row)
		}
	}
	return out
}
