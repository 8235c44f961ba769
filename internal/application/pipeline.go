package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stresslens/internal/artifacts"
	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/narrative"
	"github.com/sawpanic/stresslens/internal/persistence"
	"github.com/sawpanic/stresslens/internal/score/brs"
	"github.com/sawpanic/stresslens/internal/score/mds"
)

// Pipeline scores one ticker end to end: snapshot assembly, both engines,
// and the per-ticker result row. Safe for concurrent use.
type Pipeline struct {
	builder   *SnapshotBuilder
	brs       *brs.Engine
	mds       *mds.Engine
	narrative *narrative.Overrides
	metrics   *metrics.Registry
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithBRSEngine swaps the default resilience engine.
func WithBRSEngine(e *brs.Engine) PipelineOption {
	return func(p *Pipeline) {
		if e != nil {
			p.brs = e
		}
	}
}

// WithMDSEngine swaps the default dislocation engine.
func WithMDSEngine(e *mds.Engine) PipelineOption {
	return func(p *Pipeline) {
		if e != nil {
			p.mds = e
		}
	}
}

// WithNarrativeOverrides applies classifier tuning to every MDS compute.
func WithNarrativeOverrides(o *narrative.Overrides) PipelineOption {
	return func(p *Pipeline) { p.narrative = o }
}

// WithPipelineMetrics records engine timings, score gauges, and warning
// counts.
func WithPipelineMetrics(reg *metrics.Registry) PipelineOption {
	return func(p *Pipeline) { p.metrics = reg }
}

// NewPipeline wires a pipeline over the snapshot builder. Engines default
// to their stock configs.
func NewPipeline(builder *SnapshotBuilder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		builder: builder,
		brs:     brs.NewEngine(nil),
		mds:     mds.NewEngine(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ScoreTicker builds the snapshot and runs both engines against it. A
// snapshot failure yields a failed result row, never an aborted run.
func (p *Pipeline) ScoreTicker(ctx context.Context, ticker string, universe []models.UniverseMetric, asOf string) artifacts.TickerResult {
	start := time.Now()
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	snap, fetchWarnings, err := p.builder.Build(ctx, ticker, asOf)
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("Snapshot failed")
		return artifacts.TickerResult{
			Ticker:     ticker,
			AsOf:       asOf,
			Err:        err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		}
	}
	for _, w := range fetchWarnings {
		log.Warn().Str("ticker", ticker).Str("warning", w).Msg("Snapshot degraded")
	}
	snap.Universe = universe

	brsResult := p.scoreBRS(snap)
	mdsResult := p.scoreMDS(snap, asOf)

	result := artifacts.TickerResult{
		Ticker:     ticker,
		AsOf:       asOf,
		BRS:        &brsResult,
		MDS:        &mdsResult,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if result.AsOf == "" {
		result.AsOf = brsResult.AsOf
	}
	return result
}

func (p *Pipeline) scoreBRS(snap *models.Snapshot) brs.Result {
	var timer *metrics.EngineTimer
	if p.metrics != nil {
		timer = p.metrics.StartEngineTimer(persistence.EngineBRS)
	}
	result := p.brs.Compute(brs.Inputs{
		Ticker:   snap.Ticker,
		Facts:    []models.CompanyFacts{snap.Facts},
		Income:   snap.Income,
		Balance:  snap.Balance,
		CashFlow: snap.CashFlow,
		Metrics:  snap.Metrics,
		Universe: snap.Universe,
	})
	p.observe(timer, persistence.EngineBRS, snap.Ticker, result.Scores.Total, warningsOf(result.Warnings))
	return result
}

func (p *Pipeline) scoreMDS(snap *models.Snapshot, asOf string) mds.Result {
	var timer *metrics.EngineTimer
	if p.metrics != nil {
		timer = p.metrics.StartEngineTimer(persistence.EngineMDS)
	}
	result := p.mds.Compute(mds.Inputs{
		Ticker:             snap.Ticker,
		AsOf:               asOf,
		Income:             snap.Income,
		CashFlow:           snap.CashFlow,
		Metrics:            snap.Metrics,
		Estimates:          snap.Estimates,
		Ownership:          snap.Ownership,
		InsiderTrades:      snap.InsiderTrades,
		ShortInterest:      snap.ShortInterest,
		Documents:          snap.Documents,
		NarrativeOverrides: p.narrative,
	})
	p.observe(timer, persistence.EngineMDS, snap.Ticker, result.Scores.Total, warningsOf(result.Warnings))
	return result
}

func (p *Pipeline) observe(timer *metrics.EngineTimer, engine, ticker string, total float64, warnings []string) {
	status := "ok"
	if len(warnings) > 0 {
		status = "degraded"
	}
	if timer != nil {
		timer.Stop(status)
	}
	if p.metrics != nil {
		p.metrics.RecordScore(ticker, engine, total)
		for _, w := range warnings {
			p.metrics.RecordWarning(engine, w)
		}
	}
	for _, w := range warnings {
		log.Warn().Str("ticker", ticker).Str("engine", engine).Str("warning", w).Msg("Score degraded")
	}
}

// Records flattens one ticker result into persistence rows, one per engine.
func Records(runID string, r artifacts.TickerResult) []persistence.ScoreRecord {
	var records []persistence.ScoreRecord
	if r.BRS != nil {
		if detail, err := json.Marshal(r.BRS); err == nil {
			records = append(records, persistence.ScoreRecord{
				RunID:    runID,
				Ticker:   r.Ticker,
				AsOf:     r.BRS.AsOf,
				Engine:   persistence.EngineBRS,
				Total:    r.BRS.Scores.Total,
				Detail:   detail,
				Warnings: warningsOf(r.BRS.Warnings),
			})
		}
	}
	if r.MDS != nil {
		if detail, err := json.Marshal(r.MDS); err == nil {
			records = append(records, persistence.ScoreRecord{
				RunID:    runID,
				Ticker:   r.Ticker,
				AsOf:     r.MDS.AsOf,
				Engine:   persistence.EngineMDS,
				Total:    r.MDS.Scores.Total,
				Detail:   detail,
				Warnings: warningsOf(r.MDS.Warnings),
			})
		}
	}
	return records
}

func warningsOf[W ~string](warnings []W) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = string(w)
	}
	return out
}
