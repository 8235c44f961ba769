package brs

import "github.com/sawpanic/stresslens/internal/peers"

// Warning is a degraded-input code. The set below is closed; tests assert
// exact membership.
type Warning string

const (
	WarnAsOfMisalignment          Warning = "asof_misalignment"
	WarnPeerSetTooSmall           Warning = "peer_set_too_small"
	WarnMissingEVEBITDA           Warning = "missing_ev_ebitda"
	WarnMissingPeerEVEBITDA       Warning = "missing_peer_ev_ebitda"
	WarnMissingFCFYield           Warning = "missing_fcf_yield"
	WarnMissingEBITDA             Warning = "missing_ebitda"
	WarnMissingOCF                Warning = "missing_ocf"
	WarnMissingFCF                Warning = "missing_fcf"
	WarnMissingROIC               Warning = "missing_roic"
	WarnMissingPeerROIC           Warning = "missing_peer_roic"
	WarnROICProxyEBITDA           Warning = "roic_proxy_ebitda"
	WarnMissingGrowthHistory      Warning = "missing_growth_history"
	WarnMissingNetDebt            Warning = "missing_net_debt"
	WarnMissingInterestCoverage   Warning = "missing_interest_coverage"
	WarnMissingGrossMarginHistory Warning = "missing_gross_margin_history"
	WarnShortHistoryGrossMargin   Warning = "short_history_gross_margin"
	WarnMissingMarketCap          Warning = "missing_market_cap"
	WarnMissingShareholderYield   Warning = "missing_shareholder_yield"
	WarnMissingSBC                Warning = "missing_sbc"
)

// Multiple-source tags reported by the EV/EBITDA fallback chain.
const (
	MultipleFromMetrics = "metrics_ratio"
	MultipleFromDerived = "derived_ev_over_ebitda"
	MultipleFromLatest  = "latest_known_ratio"
)

// ValuationScore is the 0-30 valuation sanity sub-dimension.
type ValuationScore struct {
	EVToEBITDA     *float64 `json:"ev_to_ebitda,omitempty"`
	MultipleSource string   `json:"multiple_source,omitempty"`
	PeerPercentile *float64 `json:"peer_percentile,omitempty"`
	MedianRatio    *float64 `json:"median_ratio,omitempty"`
	MultipleScore  float64  `json:"multiple_score"`
	FCFYield       *float64 `json:"fcf_yield,omitempty"`
	FCFYieldScore  float64  `json:"fcf_yield_score"`
	Subtotal       float64  `json:"subtotal"`
}

// CashTruthScore is the 0-20 cash conversion sub-dimension.
type CashTruthScore struct {
	OCFToEBITDA *float64 `json:"ocf_to_ebitda,omitempty"`
	OCFScore    float64  `json:"ocf_score"`
	FCFToEBITDA *float64 `json:"fcf_to_ebitda,omitempty"`
	FCFScore    float64  `json:"fcf_score"`
	Subtotal    float64  `json:"subtotal"`
}

// CapitalEfficiencyScore is the 0-25 returns sub-dimension.
type CapitalEfficiencyScore struct {
	ROIC             *float64 `json:"roic,omitempty"`
	WACCProxy        *float64 `json:"wacc_proxy,omitempty"`
	SpreadScore      float64  `json:"spread_score"`
	MedianYoYGrowth  *float64 `json:"median_yoy_growth,omitempty"`
	UsedEBITDAProxy  bool     `json:"used_ebitda_proxy,omitempty"`
	IncrementalScore float64  `json:"incremental_score"`
	Subtotal         float64  `json:"subtotal"`
}

// BalanceSheetScore is the 0-15 leverage sub-dimension.
type BalanceSheetScore struct {
	NetDebtToEBITDA  *float64 `json:"net_debt_to_ebitda,omitempty"`
	LeverageScore    float64  `json:"leverage_score"`
	InterestCoverage *float64 `json:"interest_coverage,omitempty"`
	CoverageScore    float64  `json:"coverage_score"`
	Subtotal         float64  `json:"subtotal"`
}

// DurabilityScore is the 0-15 durability sub-dimension.
type DurabilityScore struct {
	MarginSlope      *float64 `json:"margin_slope,omitempty"`
	MarginStdev      *float64 `json:"margin_stdev,omitempty"`
	MarginQuarters   int      `json:"margin_quarters"`
	StabilityScore   float64  `json:"stability_score"`
	ShareholderYield *float64 `json:"shareholder_yield,omitempty"`
	YieldScore       float64  `json:"yield_score"`
	SBCToFCF         *float64 `json:"sbc_to_fcf,omitempty"`
	SBCScore         float64  `json:"sbc_score"`
	Subtotal         float64  `json:"subtotal"`
}

// Scores is the decomposed resilience score tree.
type Scores struct {
	Valuation         ValuationScore         `json:"valuation"`
	CashTruth         CashTruthScore         `json:"cash_truth"`
	CapitalEfficiency CapitalEfficiencyScore `json:"capital_efficiency"`
	BalanceSheet      BalanceSheetScore      `json:"balance_sheet"`
	Durability        DurabilityScore        `json:"durability"`
	Total             float64                `json:"total"`
}

// Result is one resilience score computation, produced fresh per call.
type Result struct {
	Ticker    string      `json:"ticker"`
	AsOf      string      `json:"as_of,omitempty"`
	PeerLevel peers.Level `json:"peer_level,omitempty"`
	PeerCount int         `json:"peer_count"`
	Scores    Scores      `json:"scores"`
	Warnings  []Warning   `json:"warnings,omitempty"`
}
