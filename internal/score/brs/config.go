package brs

// Config holds every numeric threshold of the resilience score. Band points
// themselves (15/10/5 ladders) are part of the score's definition and are
// not configurable; thresholds are.
type Config struct {
	// MinPeers is the smallest peer group accepted for percentile ranking.
	MinPeers int `yaml:"min_peers"`
	// WinsorizeLoPct and WinsorizeHiPct bound the peer multiple
	// distribution before ranking.
	WinsorizeLoPct float64 `yaml:"winsorize_lo_pct"`
	WinsorizeHiPct float64 `yaml:"winsorize_hi_pct"`

	// Valuation: peer-percentile cutoffs for the multiple score and the
	// median-ratio bands used when the peer set is too small.
	MultiplePctCheap  float64 `yaml:"multiple_pct_cheap"`  // <=: 15 points
	MultiplePctFair   float64 `yaml:"multiple_pct_fair"`   // <=: 10 points
	MultiplePctRich   float64 `yaml:"multiple_pct_rich"`   // <=: 5 points
	MedianRatioCheap  float64 `yaml:"median_ratio_cheap"`  // <=: 15 points
	MedianRatioFair   float64 `yaml:"median_ratio_fair"`   // <=: 10 points
	MedianRatioRich   float64 `yaml:"median_ratio_rich"`   // <=: 5 points
	FCFYieldStrong    float64 `yaml:"fcf_yield_strong"`    // >: 10 points
	FCFYieldGood      float64 `yaml:"fcf_yield_good"`      // >=: 7 points
	FCFYieldAdequate  float64 `yaml:"fcf_yield_adequate"`  // >=: 4 points

	// Cash truth: OCF/EBITDA and FCF/EBITDA conversion bands.
	OCFConvStrong float64 `yaml:"ocf_conv_strong"` // >=: 10 points
	OCFConvGood   float64 `yaml:"ocf_conv_good"`   // >=: 6 points
	OCFConvWeak   float64 `yaml:"ocf_conv_weak"`   // >=: 3 points
	FCFConvStrong float64 `yaml:"fcf_conv_strong"` // >=: 10 points
	FCFConvGood   float64 `yaml:"fcf_conv_good"`   // >=: 6 points
	FCFConvWeak   float64 `yaml:"fcf_conv_weak"`   // >=: 3 points

	// Capital efficiency.
	ROICPremium       float64 `yaml:"roic_premium"`       // spread over WACC proxy for full points
	IncrementalStrong float64 `yaml:"incremental_strong"` // median YoY ROIC growth >: 10 points
	IncrementalGood   float64 `yaml:"incremental_good"`   // >=: 6 points

	// Balance sheet.
	NetDebtLow   float64 `yaml:"net_debt_low"`   // <: 10 points
	NetDebtMid   float64 `yaml:"net_debt_mid"`   // <=: 5 points
	CoverageHigh float64 `yaml:"coverage_high"`  // >: 5 points
	CoverageMid  float64 `yaml:"coverage_mid"`   // >=: 3 points

	// Durability.
	MarginStdevMax         float64 `yaml:"margin_stdev_max"`
	ShareholderYieldStrong float64 `yaml:"shareholder_yield_strong"` // >: 5 points
	ShareholderYieldGood   float64 `yaml:"shareholder_yield_good"`   // >=: 3 points
	SBCToFCFLow            float64 `yaml:"sbc_to_fcf_low"`           // <: 5 points
	SBCToFCFMid            float64 `yaml:"sbc_to_fcf_mid"`           // <=: 3 points

	// HistoryQuarters is the trailing window for margin stability and
	// incremental ROIC.
	HistoryQuarters int `yaml:"history_quarters"`
	// MetricsAlignMaxDays bounds nearest-date alignment between the
	// statement as-of period and the metrics feed.
	MetricsAlignMaxDays int `yaml:"metrics_align_max_days"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		MinPeers:       15,
		WinsorizeLoPct: 5,
		WinsorizeHiPct: 95,

		MultiplePctCheap: 30,
		MultiplePctFair:  60,
		MultiplePctRich:  80,
		MedianRatioCheap: 0.7,
		MedianRatioFair:  1.0,
		MedianRatioRich:  1.3,
		FCFYieldStrong:   0.10,
		FCFYieldGood:     0.06,
		FCFYieldAdequate: 0.03,

		OCFConvStrong: 0.85,
		OCFConvGood:   0.65,
		OCFConvWeak:   0.45,
		FCFConvStrong: 0.55,
		FCFConvGood:   0.35,
		FCFConvWeak:   0.15,

		ROICPremium:       0.05,
		IncrementalStrong: 0.15,
		IncrementalGood:   0.08,

		NetDebtLow:   2,
		NetDebtMid:   4,
		CoverageHigh: 8,
		CoverageMid:  4,

		MarginStdevMax:         0.03,
		ShareholderYieldStrong: 0.05,
		ShareholderYieldGood:   0.02,
		SBCToFCFLow:            0.10,
		SBCToFCFMid:            0.25,

		HistoryQuarters:     8,
		MetricsAlignMaxDays: 120,
	}
}

// Overrides is a partial Config; nil fields keep the default value. An
// override replaces single keys, never removes them.
type Overrides struct {
	MinPeers       *int     `yaml:"min_peers"`
	WinsorizeLoPct *float64 `yaml:"winsorize_lo_pct"`
	WinsorizeHiPct *float64 `yaml:"winsorize_hi_pct"`

	MultiplePctCheap *float64 `yaml:"multiple_pct_cheap"`
	MultiplePctFair  *float64 `yaml:"multiple_pct_fair"`
	MultiplePctRich  *float64 `yaml:"multiple_pct_rich"`
	MedianRatioCheap *float64 `yaml:"median_ratio_cheap"`
	MedianRatioFair  *float64 `yaml:"median_ratio_fair"`
	MedianRatioRich  *float64 `yaml:"median_ratio_rich"`
	FCFYieldStrong   *float64 `yaml:"fcf_yield_strong"`
	FCFYieldGood     *float64 `yaml:"fcf_yield_good"`
	FCFYieldAdequate *float64 `yaml:"fcf_yield_adequate"`

	OCFConvStrong *float64 `yaml:"ocf_conv_strong"`
	OCFConvGood   *float64 `yaml:"ocf_conv_good"`
	OCFConvWeak   *float64 `yaml:"ocf_conv_weak"`
	FCFConvStrong *float64 `yaml:"fcf_conv_strong"`
	FCFConvGood   *float64 `yaml:"fcf_conv_good"`
	FCFConvWeak   *float64 `yaml:"fcf_conv_weak"`

	ROICPremium       *float64 `yaml:"roic_premium"`
	IncrementalStrong *float64 `yaml:"incremental_strong"`
	IncrementalGood   *float64 `yaml:"incremental_good"`

	NetDebtLow   *float64 `yaml:"net_debt_low"`
	NetDebtMid   *float64 `yaml:"net_debt_mid"`
	CoverageHigh *float64 `yaml:"coverage_high"`
	CoverageMid  *float64 `yaml:"coverage_mid"`

	MarginStdevMax         *float64 `yaml:"margin_stdev_max"`
	ShareholderYieldStrong *float64 `yaml:"shareholder_yield_strong"`
	ShareholderYieldGood   *float64 `yaml:"shareholder_yield_good"`
	SBCToFCFLow            *float64 `yaml:"sbc_to_fcf_low"`
	SBCToFCFMid            *float64 `yaml:"sbc_to_fcf_mid"`

	HistoryQuarters     *int `yaml:"history_quarters"`
	MetricsAlignMaxDays *int `yaml:"metrics_align_max_days"`
}

// Apply merges o over a copy of base (nil base means DefaultConfig) and
// returns the merged config.
func (o *Overrides) Apply(base *Config) *Config {
	if base == nil {
		base = DefaultConfig()
	}
	merged := *base
	if o == nil {
		return &merged
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&merged.MinPeers, o.MinPeers)
	setFloat(&merged.WinsorizeLoPct, o.WinsorizeLoPct)
	setFloat(&merged.WinsorizeHiPct, o.WinsorizeHiPct)
	setFloat(&merged.MultiplePctCheap, o.MultiplePctCheap)
	setFloat(&merged.MultiplePctFair, o.MultiplePctFair)
	setFloat(&merged.MultiplePctRich, o.MultiplePctRich)
	setFloat(&merged.MedianRatioCheap, o.MedianRatioCheap)
	setFloat(&merged.MedianRatioFair, o.MedianRatioFair)
	setFloat(&merged.MedianRatioRich, o.MedianRatioRich)
	setFloat(&merged.FCFYieldStrong, o.FCFYieldStrong)
	setFloat(&merged.FCFYieldGood, o.FCFYieldGood)
	setFloat(&merged.FCFYieldAdequate, o.FCFYieldAdequate)
	setFloat(&merged.OCFConvStrong, o.OCFConvStrong)
	setFloat(&merged.OCFConvGood, o.OCFConvGood)
	setFloat(&merged.OCFConvWeak, o.OCFConvWeak)
	setFloat(&merged.FCFConvStrong, o.FCFConvStrong)
	setFloat(&merged.FCFConvGood, o.FCFConvGood)
	setFloat(&merged.FCFConvWeak, o.FCFConvWeak)
	setFloat(&merged.ROICPremium, o.ROICPremium)
	setFloat(&merged.IncrementalStrong, o.IncrementalStrong)
	setFloat(&merged.IncrementalGood, o.IncrementalGood)
	setFloat(&merged.NetDebtLow, o.NetDebtLow)
	setFloat(&merged.NetDebtMid, o.NetDebtMid)
	setFloat(&merged.CoverageHigh, o.CoverageHigh)
	setFloat(&merged.CoverageMid, o.CoverageMid)
	setFloat(&merged.MarginStdevMax, o.MarginStdevMax)
	setFloat(&merged.ShareholderYieldStrong, o.ShareholderYieldStrong)
	setFloat(&merged.ShareholderYieldGood, o.ShareholderYieldGood)
	setFloat(&merged.SBCToFCFLow, o.SBCToFCFLow)
	setFloat(&merged.SBCToFCFMid, o.SBCToFCFMid)
	setInt(&merged.HistoryQuarters, o.HistoryQuarters)
	setInt(&merged.MetricsAlignMaxDays, o.MetricsAlignMaxDays)
	return &merged
}
