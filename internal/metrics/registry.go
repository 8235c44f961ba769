// Package metrics holds the Prometheus instrumentation for scoring runs,
// provider calls, and cache behavior.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for StressLens.
type Registry struct {
	// Engine metrics
	ScoreDuration  *prometheus.HistogramVec
	TickersScored  *prometheus.CounterVec
	EngineWarnings *prometheus.CounterVec
	ScoreTotal     *prometheus.GaugeVec

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Cache metrics
	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	// Run metrics
	ActiveRuns  prometheus.Gauge
	TotalRuns   prometheus.Counter
	RunDuration prometheus.Histogram

	gatherer prometheus.Gatherer

	cacheHitCount  int64
	cacheMissCount int64
}

// NewRegistry creates the metrics registry. A nil registerer uses the
// process-default Prometheus registry; tests pass prometheus.NewRegistry()
// to stay isolated.
func NewRegistry(reg *prometheus.Registry) *Registry {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		gatherer = reg
	}

	r := &Registry{
		ScoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stresslens_score_duration_seconds",
				Help:    "Duration of one engine computation in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"engine", "result"},
		),

		TickersScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stresslens_tickers_scored_total",
				Help: "Total tickers scored by engine and status",
			},
			[]string{"engine", "status"},
		),

		EngineWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stresslens_engine_warnings_total",
				Help: "Total degradation warnings emitted by engine and code",
			},
			[]string{"engine", "warning"},
		),

		ScoreTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stresslens_score_total",
				Help: "Latest total score per ticker and engine",
			},
			[]string{"ticker", "engine"},
		),

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stresslens_provider_requests_total",
				Help: "Total upstream API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stresslens_provider_latency_seconds",
				Help:    "Upstream API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
			},
			[]string{"endpoint"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stresslens_cache_hit_ratio",
				Help: "Current cache hit ratio (0.0 to 1.0)",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stresslens_cache_hits_total",
				Help: "Total cache hits by dataset",
			},
			[]string{"dataset"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stresslens_cache_misses_total",
				Help: "Total cache misses by dataset",
			},
			[]string{"dataset"},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stresslens_active_runs",
				Help: "Number of batch runs currently executing",
			},
		),

		TotalRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stresslens_runs_total",
				Help: "Total batch runs started",
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stresslens_run_duration_seconds",
				Help:    "Duration of batch runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),

		gatherer: gatherer,
	}

	registerer.MustRegister(
		r.ScoreDuration,
		r.TickersScored,
		r.EngineWarnings,
		r.ScoreTotal,
		r.ProviderRequests,
		r.ProviderLatency,
		r.CacheHitRatio,
		r.CacheHits,
		r.CacheMisses,
		r.ActiveRuns,
		r.TotalRuns,
		r.RunDuration,
	)

	return r
}

// EngineTimer tracks one engine computation.
type EngineTimer struct {
	registry *Registry
	engine   string
	start    time.Time
}

// StartEngineTimer begins timing an engine computation.
func (r *Registry) StartEngineTimer(engine string) *EngineTimer {
	return &EngineTimer{
		registry: r,
		engine:   engine,
		start:    time.Now(),
	}
}

// Stop completes the timing and records the metric.
func (t *EngineTimer) Stop(result string) {
	duration := time.Since(t.start)
	t.registry.ScoreDuration.WithLabelValues(t.engine, result).Observe(duration.Seconds())
	t.registry.TickersScored.WithLabelValues(t.engine, result).Inc()

	log.Debug().
		Str("engine", t.engine).
		Str("result", result).
		Dur("duration", duration).
		Msg("Engine computation completed")
}

// RecordScore publishes the latest total for a ticker and engine.
func (r *Registry) RecordScore(ticker, engine string, total float64) {
	r.ScoreTotal.WithLabelValues(ticker, engine).Set(total)
}

// RecordWarning counts one engine degradation warning.
func (r *Registry) RecordWarning(engine, warning string) {
	r.EngineWarnings.WithLabelValues(engine, warning).Inc()
}

// RecordProviderRequest records one upstream API call.
func (r *Registry) RecordProviderRequest(endpoint, status string, latency time.Duration) {
	r.ProviderRequests.WithLabelValues(endpoint, status).Inc()
	r.ProviderLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit for the dataset.
func (r *Registry) RecordCacheHit(dataset string) {
	r.CacheHits.WithLabelValues(dataset).Inc()
	atomic.AddInt64(&r.cacheHitCount, 1)
	r.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the dataset.
func (r *Registry) RecordCacheMiss(dataset string) {
	r.CacheMisses.WithLabelValues(dataset).Inc()
	atomic.AddInt64(&r.cacheMissCount, 1)
	r.updateCacheHitRatio()
}

func (r *Registry) updateCacheHitRatio() {
	hits := float64(atomic.LoadInt64(&r.cacheHitCount))
	misses := float64(atomic.LoadInt64(&r.cacheMissCount))
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}

// RunStarted marks a batch run as active.
func (r *Registry) RunStarted() {
	r.ActiveRuns.Inc()
	r.TotalRuns.Inc()
}

// RunFinished marks a batch run as complete and records its duration.
func (r *Registry) RunFinished(duration time.Duration) {
	r.ActiveRuns.Dec()
	r.RunDuration.Observe(duration.Seconds())
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Snapshot gathers the current metric families for JSON reporting.
func (r *Registry) Snapshot() ([]*dto.MetricFamily, error) {
	return r.gatherer.Gather()
}
