package fundamentals

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(1000, 1000),
	)
	return client, srv
}

func TestClient_IncomeStatements_DecodesEnvelope(t *testing.T) {
	var gotReq *http.Request
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"income_statements": [
			{"report_period": "2024-12-31", "revenue": 100.5, "operating_income": 20},
			{"report_period": "2024-09-30", "revenue": 110}
		]}`))
	})

	rows, err := client.IncomeStatements(context.Background(), "ACME", 8)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-12-31", rows[0].ReportPeriod)
	require.NotNil(t, rows[0].Revenue)
	assert.Equal(t, 100.5, *rows[0].Revenue)
	assert.Nil(t, rows[1].OperatingIncome)

	require.NotNil(t, gotReq)
	assert.Equal(t, "/financials/income-statements", gotReq.URL.Path)
	assert.Equal(t, "test-key", gotReq.Header.Get("X-API-KEY"))
	assert.Equal(t, "ACME", gotReq.URL.Query().Get("ticker"))
	assert.Equal(t, "quarterly", gotReq.URL.Query().Get("period"))
	assert.Equal(t, "8", gotReq.URL.Query().Get("limit"))
}

func TestClient_DefaultLimitApplied(t *testing.T) {
	var gotLimit string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"financial_metrics": []}`))
	})

	_, err := client.FinancialMetrics(context.Background(), "ACME", 0)
	require.NoError(t, err)
	assert.Equal(t, "40", gotLimit)
}

func TestClient_News_DefaultsSourceType(t *testing.T) {
	var gotReq *http.Request
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.Write([]byte(`{"news": [
			{"title": "untagged wire item", "published_at": "2024-12-30"},
			{"title": "8-K", "source_type": "SEC_FILING", "published_at": "2024-12-29"}
		]}`))
	})

	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	docs, err := client.News(context.Background(), "ACME", start, end, 50)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, models.SourceNews, docs[0].SourceType)
	assert.Equal(t, models.SourceSECFiling, docs[1].SourceType)
	assert.Equal(t, "2024-12-01", gotReq.URL.Query().Get("start_date"))
	assert.Equal(t, "2024-12-31", gotReq.URL.Query().Get("end_date"))
}

func TestClient_CompanyFacts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"company_facts": {"ticker": "ACME", "name": "Acme Corp", "sector": "Industrials", "industry": "Machinery"}}`))
	})

	facts, err := client.CompanyFacts(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", facts.Name)
	assert.Equal(t, "Machinery", facts.Industry)
}

func TestClient_NonOKStatusReturnsAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ticker not found", http.StatusNotFound)
	})

	_, err := client.InsiderTrades(context.Background(), "NOPE", 10)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/insider-trades", apiErr.Endpoint)
	assert.Contains(t, apiErr.Message, "ticker not found")
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(1000, 1000),
		WithBreaker(BreakerConfig{FailureThreshold: 2, OpenFor: time.Minute}),
	)

	ctx := context.Background()
	_, err := client.EarningsEstimates(ctx, "ACME", 4)
	require.Error(t, err)
	_, err = client.EarningsEstimates(ctx, "ACME", 4)
	require.Error(t, err)

	// Breaker is now open: the server must not see a third request.
	_, err = client.EarningsEstimates(ctx, "ACME", 4)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, hits)
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"institutional_ownership": []}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.InstitutionalOwnership(ctx, "ACME", 4)
	assert.Error(t, err)
}
