package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}

func TestRegistry_EngineTimerRecords(t *testing.T) {
	r := newTestRegistry()

	timer := r.StartEngineTimer("brs")
	timer.Stop("success")

	count := testutil.ToFloat64(r.TickersScored.WithLabelValues("brs", "success"))
	assert.Equal(t, 1.0, count)
}

func TestRegistry_CacheHitRatio(t *testing.T) {
	r := newTestRegistry()

	r.RecordCacheHit("metrics")
	r.RecordCacheHit("metrics")
	r.RecordCacheHit("income")
	r.RecordCacheMiss("news")

	assert.Equal(t, 0.75, testutil.ToFloat64(r.CacheHitRatio))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheHits.WithLabelValues("metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheMisses.WithLabelValues("news")))
}

func TestRegistry_ScoreGauge(t *testing.T) {
	r := newTestRegistry()

	r.RecordScore("ACME", "mds", 82.5)
	r.RecordScore("ACME", "mds", 71.0)

	assert.Equal(t, 71.0, testutil.ToFloat64(r.ScoreTotal.WithLabelValues("ACME", "mds")))
}

func TestRegistry_RunLifecycle(t *testing.T) {
	r := newTestRegistry()

	r.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveRuns))

	r.RunFinished(3 * time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TotalRuns))
}

func TestRegistry_SnapshotContainsFamilies(t *testing.T) {
	r := newTestRegistry()

	r.RecordWarning("mds", "missing_estimates")
	r.RecordProviderRequest("/financial-metrics", "ok", 120*time.Millisecond)

	families, err := r.Snapshot()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["stresslens_engine_warnings_total"])
	assert.True(t, names["stresslens_provider_requests_total"])
	assert.True(t, names["stresslens_provider_latency_seconds"])
}

func TestRegistry_IsolatedRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestRegistry()
		newTestRegistry()
	})
}
