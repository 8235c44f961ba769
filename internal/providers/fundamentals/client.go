// Package fundamentals is the HTTP client for the upstream financial-data
// API: statements, metrics, company facts, news, insider trades,
// institutional ownership, and earnings estimates as JSON over REST.
//
// The client rate-limits and circuit-breaks every call but never retries;
// retry policy belongs to the caller.
package fundamentals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/stresslens/internal/models"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.financialdatasets.ai"

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 20 * time.Second

	// DefaultRPS and DefaultBurst gate outbound request rate.
	DefaultRPS   = 4
	DefaultBurst = 8

	// defaultLimit is the row cap sent when the caller passes limit <= 0.
	// Ten years of quarters covers every trailing window the engines use.
	defaultLimit = 40
)

// Client talks to the fundamentals API. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit replaces the default request rate gate.
func WithRateLimit(rps, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// BreakerConfig tunes the circuit breaker around API calls.
type BreakerConfig struct {
	FailureThreshold int
	OpenFor          time.Duration
	HalfOpenRequests int
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker(cfg)
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 2
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fundamentals",
		MaxRequests: uint32(cfg.HalfOpenRequests),
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
}

// NewClient creates a fundamentals API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		breaker: newBreaker(BreakerConfig{}),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs one rate-limited, circuit-broken GET and decodes the body
// into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, params, result)
	})
	return err
}

func (c *Client) do(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	log.Debug().
		Str("endpoint", path).
		Str("query", params.Encode()).
		Msg("Fundamentals API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func tickerParams(ticker string, limit int) url.Values {
	if limit <= 0 {
		limit = defaultLimit
	}
	params := url.Values{}
	params.Set("ticker", ticker)
	params.Set("limit", strconv.Itoa(limit))
	return params
}

// IncomeStatements fetches quarterly income statements, most recent first.
func (c *Client) IncomeStatements(ctx context.Context, ticker string, limit int) ([]models.IncomeStatement, error) {
	params := tickerParams(ticker, limit)
	params.Set("period", "quarterly")

	var result incomeStatementsResponse
	if err := c.get(ctx, "/financials/income-statements", params, &result); err != nil {
		return nil, err
	}
	return result.IncomeStatements, nil
}

// BalanceSheets fetches quarterly balance sheets.
func (c *Client) BalanceSheets(ctx context.Context, ticker string, limit int) ([]models.BalanceSheet, error) {
	params := tickerParams(ticker, limit)
	params.Set("period", "quarterly")

	var result balanceSheetsResponse
	if err := c.get(ctx, "/financials/balance-sheets", params, &result); err != nil {
		return nil, err
	}
	return result.BalanceSheets, nil
}

// CashFlowStatements fetches quarterly cash-flow statements.
func (c *Client) CashFlowStatements(ctx context.Context, ticker string, limit int) ([]models.CashFlowStatement, error) {
	params := tickerParams(ticker, limit)
	params.Set("period", "quarterly")

	var result cashFlowStatementsResponse
	if err := c.get(ctx, "/financials/cash-flow-statements", params, &result); err != nil {
		return nil, err
	}
	return result.CashFlowStatements, nil
}

// FinancialMetrics fetches quarterly valuation and quality metrics.
func (c *Client) FinancialMetrics(ctx context.Context, ticker string, limit int) ([]models.MetricsPoint, error) {
	params := tickerParams(ticker, limit)
	params.Set("period", "quarterly")

	var result financialMetricsResponse
	if err := c.get(ctx, "/financial-metrics", params, &result); err != nil {
		return nil, err
	}
	return result.FinancialMetrics, nil
}

// CompanyFacts fetches name, sector, and industry for a ticker.
func (c *Client) CompanyFacts(ctx context.Context, ticker string) (*models.CompanyFacts, error) {
	params := url.Values{}
	params.Set("ticker", ticker)

	var result companyFactsResponse
	if err := c.get(ctx, "/company/facts", params, &result); err != nil {
		return nil, err
	}
	return &result.CompanyFacts, nil
}

// News fetches dated company documents between start and end. Zero times
// leave the corresponding bound unset. Items without a source type come
// back tagged NEWS so classifier weighting stays defined.
func (c *Client) News(ctx context.Context, ticker string, start, end time.Time, limit int) ([]models.Document, error) {
	params := tickerParams(ticker, limit)
	if !start.IsZero() {
		params.Set("start_date", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("end_date", end.Format("2006-01-02"))
	}

	var result newsResponse
	if err := c.get(ctx, "/news", params, &result); err != nil {
		return nil, err
	}
	for i := range result.News {
		if result.News[i].SourceType == "" {
			result.News[i].SourceType = models.SourceNews
		}
	}
	return result.News, nil
}

// InsiderTrades fetches insider transactions, signed (buys positive).
func (c *Client) InsiderTrades(ctx context.Context, ticker string, limit int) ([]models.InsiderTrade, error) {
	var result insiderTradesResponse
	if err := c.get(ctx, "/insider-trades", tickerParams(ticker, limit), &result); err != nil {
		return nil, err
	}
	return result.InsiderTrades, nil
}

// InstitutionalOwnership fetches quarterly institutional holder counts and
// shares held.
func (c *Client) InstitutionalOwnership(ctx context.Context, ticker string, limit int) ([]models.OwnershipPoint, error) {
	var result institutionalOwnershipResponse
	if err := c.get(ctx, "/institutional-ownership", tickerParams(ticker, limit), &result); err != nil {
		return nil, err
	}
	return result.InstitutionalOwnership, nil
}

// EarningsEstimates fetches consensus EPS and revenue estimates, oldest
// first.
func (c *Client) EarningsEstimates(ctx context.Context, ticker string, limit int) ([]models.EstimatePoint, error) {
	var result earningsEstimatesResponse
	if err := c.get(ctx, "/earnings-estimates", tickerParams(ticker, limit), &result); err != nil {
		return nil, err
	}
	return result.EarningsEstimates, nil
}
