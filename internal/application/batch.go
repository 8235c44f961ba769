package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stresslens/internal/artifacts"
	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/persistence"
)

// DefaultConcurrency bounds parallel ticker scoring in a batch run.
const DefaultConcurrency = 4

// BatchConfig carries the per-run knobs.
type BatchConfig struct {
	// Concurrency caps parallel ticker scoring. Zero means
	// DefaultConcurrency.
	Concurrency int
	// AsOf pins the run to a YYYY-MM-DD cutoff. Empty scores live.
	AsOf string
	// Universe records the source universe file in the run summary.
	Universe string
	// KeepRuns prunes the artifact root down to the newest N runs after
	// the run finishes. Zero keeps everything.
	KeepRuns int
}

// BatchRunner scores a universe of tickers concurrently and emits the run
// artifacts. Persistence and metrics are optional.
type BatchRunner struct {
	pipeline *Pipeline
	writer   *artifacts.Writer
	repo     persistence.ScoreRepo
	metrics  *metrics.Registry
	progress func(ticker string, failed bool)
	config   BatchConfig
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithScoreRepo persists every scored ticker after the run.
func WithScoreRepo(repo persistence.ScoreRepo) BatchOption {
	return func(r *BatchRunner) { r.repo = repo }
}

// WithRunMetrics tracks run lifecycle gauges and durations.
func WithRunMetrics(reg *metrics.Registry) BatchOption {
	return func(r *BatchRunner) { r.metrics = reg }
}

// WithProgress calls step as each ticker result lands, for terminal
// progress display.
func WithProgress(step func(ticker string, failed bool)) BatchOption {
	return func(r *BatchRunner) { r.progress = step }
}

// NewBatchRunner wires a runner over the pipeline and artifact writer.
func NewBatchRunner(pipeline *Pipeline, writer *artifacts.Writer, config BatchConfig, opts ...BatchOption) *BatchRunner {
	r := &BatchRunner{
		pipeline: pipeline,
		writer:   writer,
		config:   config,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOutput summarizes one finished batch run.
type RunOutput struct {
	RunID   string
	Dir     string
	Summary artifacts.RunSummary
	Results []artifacts.TickerResult
}

// Run scores every ticker and writes the run directory. Individual ticker
// failures become failed result rows; Run itself errors only on an empty
// universe, a dead context, or when the peer table cannot be built.
func (r *BatchRunner) Run(ctx context.Context, tickers []string) (*RunOutput, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers to score")
	}
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	runID := uuid.New().String()
	started := time.Now().UTC()
	if r.metrics != nil {
		r.metrics.RunStarted()
	}
	log.Info().
		Str("run_id", runID).
		Int("tickers", len(tickers)).
		Int("concurrency", concurrency).
		Str("as_of", r.config.AsOf).
		Msg("Batch run started")

	universe, err := r.pipeline.builder.BuildUniverse(ctx, tickers, r.config.AsOf)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RunFinished(time.Since(started))
		}
		return nil, fmt.Errorf("build universe: %w", err)
	}
	log.Debug().Int("members", len(universe)).Msg("Peer table built")

	semaphore := make(chan struct{}, concurrency)
	resultsChan := make(chan artifacts.TickerResult, len(tickers))
	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				resultsChan <- artifacts.TickerResult{Ticker: ticker, AsOf: r.config.AsOf, Err: ctx.Err().Error()}
				return
			}
			resultsChan <- r.pipeline.ScoreTicker(ctx, ticker, universe, r.config.AsOf)
		}(ticker)
	}
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]artifacts.TickerResult, 0, len(tickers))
	scored, failed := 0, 0
	for result := range resultsChan {
		results = append(results, result)
		if result.Failed() {
			failed++
		} else {
			scored++
		}
		if r.progress != nil {
			r.progress(result.Ticker, result.Failed())
		}
		if _, err := r.writer.WriteTicker(runID, result); err != nil {
			log.Error().Err(err).Str("ticker", result.Ticker).Msg("Ticker artifact write failed")
		}
	}

	finished := time.Now().UTC()
	summary := artifacts.RunSummary{
		RunID:      runID,
		Universe:   r.config.Universe,
		AsOf:       r.config.AsOf,
		StartedAt:  started.Format(time.RFC3339),
		FinishedAt: finished.Format(time.RFC3339),
		Requested:  len(tickers),
		Scored:     scored,
		Failed:     failed,
	}

	if _, err := r.writer.WriteSummaryCSV(runID, results); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Summary CSV write failed")
	}
	if _, err := r.writer.WriteReport(runID, summary, results); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Report write failed")
	}
	r.persist(ctx, runID, results)
	// Manifest last, once every other artifact is on disk.
	if _, err := r.writer.WriteManifest(runID, summary); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Manifest write failed")
	}
	if r.config.KeepRuns > 0 {
		if removed, err := r.writer.Prune(r.config.KeepRuns); err != nil {
			log.Warn().Err(err).Msg("Run pruning failed")
		} else if len(removed) > 0 {
			log.Info().Int("removed", len(removed)).Msg("Old runs pruned")
		}
	}

	if r.metrics != nil {
		r.metrics.RunFinished(finished.Sub(started))
	}
	log.Info().
		Str("run_id", runID).
		Int("scored", scored).
		Int("failed", failed).
		Dur("duration", finished.Sub(started)).
		Msg("Batch run finished")

	out := &RunOutput{
		RunID:   runID,
		Dir:     r.writer.RunDir(runID),
		Summary: summary,
		Results: results,
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *BatchRunner) persist(ctx context.Context, runID string, results []artifacts.TickerResult) {
	if r.repo == nil {
		return
	}
	var records []persistence.ScoreRecord
	for _, result := range results {
		records = append(records, Records(runID, result)...)
	}
	if len(records) == 0 {
		return
	}
	if err := r.repo.UpsertBatch(ctx, records); err != nil {
		log.Error().Err(err).Str("run_id", runID).Int("records", len(records)).Msg("Score persistence failed")
		return
	}
	log.Debug().Str("run_id", runID).Int("records", len(records)).Msg("Scores persisted")
}
