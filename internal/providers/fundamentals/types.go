package fundamentals

import (
	"fmt"

	"github.com/sawpanic/stresslens/internal/models"
)

// APIError is a non-2xx response from the fundamentals API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fundamentals API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Response envelopes. The API wraps every payload in a single-key object
// named after the dataset.
type incomeStatementsResponse struct {
	IncomeStatements []models.IncomeStatement `json:"income_statements"`
}

type balanceSheetsResponse struct {
	BalanceSheets []models.BalanceSheet `json:"balance_sheets"`
}

type cashFlowStatementsResponse struct {
	CashFlowStatements []models.CashFlowStatement `json:"cash_flow_statements"`
}

type financialMetricsResponse struct {
	FinancialMetrics []models.MetricsPoint `json:"financial_metrics"`
}

type companyFactsResponse struct {
	CompanyFacts models.CompanyFacts `json:"company_facts"`
}

type newsResponse struct {
	News []models.Document `json:"news"`
}

type insiderTradesResponse struct {
	InsiderTrades []models.InsiderTrade `json:"insider_trades"`
}

type institutionalOwnershipResponse struct {
	InstitutionalOwnership []models.OwnershipPoint `json:"institutional_ownership"`
}

type earningsEstimatesResponse struct {
	EarningsEstimates []models.EstimatePoint `json:"earnings_estimates"`
}
