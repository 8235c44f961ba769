package mds

import "github.com/sawpanic/stresslens/internal/narrative"

// Warning is a machine-readable data-quality code. Engines never fail on
// bad inputs; they score what they can and report the rest here.
type Warning string

const (
	WarnUnparseableAsOf    Warning = "unparseable_asof"
	WarnAsOfMisalignment   Warning = "asof_misalignment"
	WarnMissingEBITDATrend Warning = "missing_ebitda_trend"

	WarnMissingHistoryEVEBITDA Warning = "missing_history_ev_ebitda"
	WarnShortHistoryEVEBITDA   Warning = "short_history_ev_ebitda"
	WarnMissingHistoryFCFYield Warning = "missing_history_fcf_yield"
	WarnShortHistoryFCFYield   Warning = "short_history_fcf_yield"

	WarnMissingEstimates    Warning = "missing_estimates"
	WarnMissingDocs         Warning = "missing_docs"
	WarnMarginRegimeUnknown Warning = "margin_regime_unknown"
	WarnOCFRegimeUnknown    Warning = "ocf_regime_unknown"
	WarnFCFRegimeUnknown    Warning = "fcf_regime_unknown"
	WarnMissingCapex        Warning = "missing_capex"
	WarnMissingRevenueTrend Warning = "missing_revenue_trend"

	WarnMissingShortInterest Warning = "missing_short_interest"
	WarnMissingOwnership     Warning = "missing_ownership"
	WarnMissingInsiderTrades Warning = "missing_insider_trades"
)

// Regime labels. Unknown always scores zero and carries a warning.
const (
	RegimeFlat     = "flat"
	RegimeMild     = "mild_decline"
	RegimeCollapse = "collapse"

	RegimeStable        = "stable"
	RegimeSlightDecline = "slight_decline"
	RegimeVolatile      = "volatile"
	RegimeDeteriorating = "deteriorating"

	RegimeUnknown = "unknown"
)

// Regimes classifies the operating backdrop before any points are
// assigned. Scoring branches on these labels rather than on raw series.
type Regimes struct {
	EBITDATrend  string `json:"ebitda_trend"`
	FCFStability string `json:"fcf_stability"`
	OCFStability string `json:"ocf_stability"`
	MarginRegime string `json:"margin_regime"`
}

// CompressionScore decomposes multiple compression (0-30).
type CompressionScore struct {
	EVToEBITDA       *float64 `json:"ev_to_ebitda,omitempty"`
	ShortWindowRatio *float64 `json:"short_window_ratio,omitempty"`
	LongWindowRatio  *float64 `json:"long_window_ratio,omitempty"`
	CompressionScore float64  `json:"compression_score"`
	FCFYield         *float64 `json:"fcf_yield,omitempty"`
	ExpansionScore   float64  `json:"expansion_score"`
	Subtotal         float64  `json:"subtotal"`
}

// ExpectationScore decomposes the expectation reset plus the folded-in
// narrative shock points (0-25 combined).
type ExpectationScore struct {
	EPSDrop          *float64 `json:"eps_drop,omitempty"`
	RevenueHoldingUp *bool    `json:"revenue_holding_up,omitempty"`
	ResetScore       float64  `json:"reset_score"`
	NarrativePoints  float64  `json:"narrative_points"`
	Subtotal         float64  `json:"subtotal"`
}

// OperatingScore decomposes operating resilience (0-25).
type OperatingScore struct {
	RevenueDeclining *bool    `json:"revenue_declining,omitempty"`
	MarginDefense    float64  `json:"margin_defense"`
	OCFScore         float64  `json:"ocf_score"`
	CapexSlope       *float64 `json:"capex_slope,omitempty"`
	CapexScore       float64  `json:"capex_score"`
	Subtotal         float64  `json:"subtotal"`
}

// PositioningScore decomposes market positioning (0-20).
type PositioningScore struct {
	ShortInterestPct   *float64 `json:"short_interest_pct,omitempty"`
	ShortInterestScore float64  `json:"short_interest_score"`
	CapitulationScore  float64  `json:"capitulation_score"`
	InsiderNetValue    *float64 `json:"insider_net_value,omitempty"`
	InsiderScore       float64  `json:"insider_score"`
	Subtotal           float64  `json:"subtotal"`
}

// Scores groups the sub-dimension breakdowns with the clamped total.
type Scores struct {
	Compression CompressionScore `json:"multiple_compression"`
	Expectation ExpectationScore `json:"expectation_reset"`
	Operating   OperatingScore   `json:"operating_resilience"`
	Positioning PositioningScore `json:"market_positioning"`
	Total       float64          `json:"total"`
}

// Result is the full dislocation report for one ticker.
type Result struct {
	Ticker    string            `json:"ticker"`
	AsOf      string            `json:"as_of"`
	Regimes   Regimes           `json:"regimes"`
	Scores    Scores            `json:"scores"`
	Narrative *narrative.Result `json:"narrative,omitempty"`
	Warnings  []Warning         `json:"warnings"`
}
