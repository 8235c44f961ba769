package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/persistence"
)

type stubScoreRepo struct {
	latestFn  func(ticker string) ([]persistence.ScoreRecord, error)
	historyFn func(ticker string, limit int) ([]persistence.ScoreRecord, error)

	gotTicker string
	gotLimit  int
}

func (s *stubScoreRepo) Upsert(ctx context.Context, record persistence.ScoreRecord) error {
	return nil
}

func (s *stubScoreRepo) UpsertBatch(ctx context.Context, records []persistence.ScoreRecord) error {
	return nil
}

func (s *stubScoreRepo) Latest(ctx context.Context, ticker string) ([]persistence.ScoreRecord, error) {
	s.gotTicker = ticker
	if s.latestFn != nil {
		return s.latestFn(ticker)
	}
	return nil, persistence.ErrNotFound
}

func (s *stubScoreRepo) History(ctx context.Context, ticker string, limit int) ([]persistence.ScoreRecord, error) {
	s.gotTicker = ticker
	s.gotLimit = limit
	if s.historyFn != nil {
		return s.historyFn(ticker, limit)
	}
	return nil, nil
}

func (s *stubScoreRepo) ListByRun(ctx context.Context, runID string) ([]persistence.ScoreRecord, error) {
	return nil, nil
}

type stubHealth struct {
	check persistence.HealthCheck
}

func (s *stubHealth) Health(ctx context.Context) persistence.HealthCheck { return s.check }
func (s *stubHealth) Ping(ctx context.Context) error                     { return nil }

func newTestServer(t *testing.T, scores persistence.ScoreRepo, health persistence.RepositoryHealth) *Server {
	t.Helper()

	config := ServerConfig{
		Addr:         "127.0.0.1:0",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	registry := metrics.NewRegistry(prometheus.NewRegistry())

	s, err := NewServer(config, scores, health, registry)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth_WithoutDatabase(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.Database)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)
}

func TestHealth_DegradedWhenDatabaseUnhealthy(t *testing.T) {
	health := &stubHealth{check: persistence.HealthCheck{
		Healthy:   false,
		Errors:    []string{"connection refused"},
		LastCheck: time.Now(),
	}}
	s := newTestServer(t, nil, health)

	rec := doRequest(s, "GET", "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	require.NotNil(t, resp.Database)
	assert.False(t, resp.Database.Healthy)
}

func TestScores_PersistenceDisabled(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, "GET", "/api/v1/scores/AAPL")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "persistence_disabled", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestScores_UnknownTicker(t *testing.T) {
	repo := &stubScoreRepo{}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, "GET", "/api/v1/scores/ZZZZ")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ticker_not_scored", resp.Code)
}

func TestScores_ReturnsLatestPerEngine(t *testing.T) {
	repo := &stubScoreRepo{
		latestFn: func(ticker string) ([]persistence.ScoreRecord, error) {
			return []persistence.ScoreRecord{
				{Ticker: ticker, Engine: persistence.EngineBRS, Total: 61.5},
				{Ticker: ticker, Engine: persistence.EngineMDS, Total: 42.0},
			}, nil
		},
	}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, "GET", "/api/v1/scores/aapl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "AAPL", repo.gotTicker)

	var resp struct {
		Ticker string                    `json:"ticker"`
		Scores []persistence.ScoreRecord `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Ticker)
	require.Len(t, resp.Scores, 2)
	assert.Equal(t, persistence.EngineBRS, resp.Scores[0].Engine)
}

func TestScoreHistory_InvalidLimit(t *testing.T) {
	repo := &stubScoreRepo{}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, "GET", "/api/v1/scores/AAPL/history?limit=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_limit", resp.Code)
}

func TestScoreHistory_PassesLimitThrough(t *testing.T) {
	repo := &stubScoreRepo{}
	s := newTestServer(t, repo, nil)

	rec := doRequest(s, "GET", "/api/v1/scores/AAPL/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, repo.gotLimit)

	rec = doRequest(s, "GET", "/api/v1/scores/AAPL/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, repo.gotLimit)
}

func TestMetricsSnapshot(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.metrics.RunStarted()
	s.metrics.RecordScore("AAPL", "brs", 61.5)

	rec := doRequest(s, "GET", "/api/v1/metrics/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Families []snapshotFamily `json:"families"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Families)

	names := make(map[string]bool, len(resp.Families))
	for _, family := range resp.Families {
		names[family.Name] = true
	}
	assert.True(t, names["stresslens_runs_total"])
	assert.True(t, names["stresslens_score_total"])
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.metrics.RunStarted()

	rec := doRequest(s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stresslens_runs_total")
}

func TestNotFound_UnknownRoute(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, "GET", "/api/v1/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "endpoint_not_found", resp.Code)
}

func TestCORS_LocalhostOnly(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServer_BusyAddress(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	_, err = NewServer(ServerConfig{Addr: listener.Addr().String()}, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy or unavailable")
}
