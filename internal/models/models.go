// Package models defines the shared data records exchanged between the
// fundamentals provider, the scoring engines, and the persistence layer.
// Numeric facts that a filing may simply not contain are pointers; nil means
// "not reported", which is distinct from a reported zero.
package models

// IncomeStatement is one fiscal-quarter income statement.
type IncomeStatement struct {
	ReportPeriod    string   `json:"report_period"`
	Revenue         *float64 `json:"revenue,omitempty"`
	GrossProfit     *float64 `json:"gross_profit,omitempty"`
	OperatingIncome *float64 `json:"operating_income,omitempty"`
	InterestExpense *float64 `json:"interest_expense,omitempty"`
}

// BalanceSheet is one fiscal-quarter balance sheet.
type BalanceSheet struct {
	ReportPeriod       string   `json:"report_period"`
	TotalDebt          *float64 `json:"total_debt,omitempty"`
	CashAndEquivalents *float64 `json:"cash_and_equivalents,omitempty"`
}

// CashFlowStatement is one fiscal-quarter cash flow statement.
type CashFlowStatement struct {
	ReportPeriod           string   `json:"report_period"`
	DepreciationAmort      *float64 `json:"depreciation_and_amortization,omitempty"`
	OperatingCashFlow      *float64 `json:"net_cash_flow_from_operations,omitempty"`
	FreeCashFlow           *float64 `json:"free_cash_flow,omitempty"`
	CapitalExpenditure     *float64 `json:"capital_expenditure,omitempty"`
	DividendsPaid          *float64 `json:"dividends_and_other_cash_distributions,omitempty"`
	NetShareIssuance       *float64 `json:"issuance_or_purchase_of_equity_shares,omitempty"`
	ShareBasedCompensation *float64 `json:"share_based_compensation,omitempty"`
}

// MetricsPoint is one period of provider-computed financial metrics. Engines
// prefer these over deriving the same ratio from raw statements.
type MetricsPoint struct {
	ReportPeriod     string   `json:"report_period"`
	EVToEBITDA       *float64 `json:"enterprise_value_to_ebitda_ratio,omitempty"`
	FreeCashFlowYld  *float64 `json:"free_cash_flow_yield,omitempty"`
	ROIC             *float64 `json:"return_on_invested_capital,omitempty"`
	InterestCoverage *float64 `json:"interest_coverage,omitempty"`
	GrossMargin      *float64 `json:"gross_margin,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	EnterpriseValue  *float64 `json:"enterprise_value,omitempty"`
}

// RoicPoint is one period of a peer's return on invested capital.
type RoicPoint struct {
	ReportPeriod string   `json:"report_period"`
	Value        *float64 `json:"value,omitempty"`
}

// UniverseMetric is the cross-sectional snapshot of one comparable company,
// used for peer-relative scoring.
type UniverseMetric struct {
	Ticker     string      `json:"ticker"`
	Sector     string      `json:"sector,omitempty"`
	Industry   string      `json:"industry,omitempty"`
	EVToEBITDA *float64    `json:"ev_to_ebitda,omitempty"`
	ROICSeries []RoicPoint `json:"roic_series,omitempty"`
}

// CompanyFacts identifies a company and its classification.
type CompanyFacts struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// EstimatePoint is one period of consensus analyst estimates.
type EstimatePoint struct {
	Period     string   `json:"period"`
	EPSAvg     *float64 `json:"eps_avg,omitempty"`
	RevenueAvg *float64 `json:"revenue_avg,omitempty"`
}

// OwnershipPoint is one reporting period of aggregate institutional
// ownership.
type OwnershipPoint struct {
	ReportPeriod     string   `json:"report_period"`
	InvestorsHolding *float64 `json:"investors_holding,omitempty"`
	SharesHeld       *float64 `json:"shares_held,omitempty"`
}

// InsiderTrade is one reported insider transaction. Shares and value are
// signed: purchases positive, dispositions negative.
type InsiderTrade struct {
	TransactionDate   string   `json:"transaction_date"`
	TransactionShares *float64 `json:"transaction_shares,omitempty"`
	TransactionValue  *float64 `json:"transaction_value,omitempty"`
}

// Document source types, ordered by evidentiary weight.
const (
	SourceSECFiling       = "SEC_FILING"
	SourceEarningsRelease = "EARNINGS_RELEASE"
	SourcePressRelease    = "PRESS_RELEASE"
	SourceNews            = "NEWS"
)

// Document is one dated text document about a company: a filing, an earnings
// release, a press release, or a news item.
type Document struct {
	ID          string `json:"id,omitempty"`
	SourceType  string `json:"source_type"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	PublishedAt string `json:"published_at"`
	FormType    string `json:"form_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ShortInterest is a point-in-time short interest reading for a ticker,
// expressed as a fraction of float in [0, 1].
type ShortInterest struct {
	Ticker      string  `json:"ticker"`
	PctOfFloat  float64 `json:"short_interest_pct"`
	SourceField string  `json:"source_field,omitempty"`
}

// Snapshot bundles everything the scoring engines consume for one ticker.
// Any slice may be empty; engines degrade with warnings rather than fail.
type Snapshot struct {
	Ticker        string              `json:"ticker"`
	AsOf          string              `json:"as_of,omitempty"`
	Facts         CompanyFacts        `json:"facts"`
	Income        []IncomeStatement   `json:"income_statements,omitempty"`
	Balance       []BalanceSheet      `json:"balance_sheets,omitempty"`
	CashFlow      []CashFlowStatement `json:"cash_flow_statements,omitempty"`
	Metrics       []MetricsPoint      `json:"metrics,omitempty"`
	Universe      []UniverseMetric    `json:"universe,omitempty"`
	Estimates     []EstimatePoint     `json:"estimates,omitempty"`
	Ownership     []OwnershipPoint    `json:"ownership,omitempty"`
	InsiderTrades []InsiderTrade      `json:"insider_trades,omitempty"`
	Documents     []Document          `json:"documents,omitempty"`
	ShortInterest *ShortInterest      `json:"short_interest,omitempty"`
}
