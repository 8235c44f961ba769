package mds

// Config holds every numeric threshold of the dislocation score.
type Config struct {
	// HistoryMin is the observation count at which window scores are
	// undiscounted; shorter windows scale by available/HistoryMin.
	HistoryMin int `yaml:"history_min"`
	// WindowShort and WindowLong are the dual lookback windows for
	// multiple compression. The final score is the minimum of the two.
	WindowShort int `yaml:"window_short"`
	WindowLong  int `yaml:"window_long"`

	// Multiple compression: current-to-median ratio bands.
	CompressionDeep  float64 `yaml:"compression_deep"`  // <=: 20 points
	CompressionMid   float64 `yaml:"compression_mid"`   // <=: 12 points
	CompressionLight float64 `yaml:"compression_light"` // <=: 6 points

	// FCF yield expansion: current-to-median ratio bands.
	ExpansionStrong float64 `yaml:"expansion_strong"` // >=: 10 points
	ExpansionMid    float64 `yaml:"expansion_mid"`    // >=: 6 points
	ExpansionLight  float64 `yaml:"expansion_light"`  // >=: 3 points

	// EBITDA trend regime cutoffs on median YoY growth of TTM EBITDA.
	EBITDAFlatMin    float64 `yaml:"ebitda_flat_min"`    // >=: flat
	EBITDACollapseAt float64 `yaml:"ebitda_collapse_at"` // <: collapse

	// FCF and OCF stability regimes over trailing ratio-to-revenue series.
	FCFStablePositives   float64 `yaml:"fcf_stable_positives"`
	FCFStdevTight        float64 `yaml:"fcf_stdev_tight"`
	FCFVolatilePositives float64 `yaml:"fcf_volatile_positives"`
	FCFStdevLoose        float64 `yaml:"fcf_stdev_loose"`
	OCFStablePositives   float64 `yaml:"ocf_stable_positives"`
	OCFStdevTight        float64 `yaml:"ocf_stdev_tight"`
	OCFVolatilePositives float64 `yaml:"ocf_volatile_positives"`
	OCFStdevLoose        float64 `yaml:"ocf_stdev_loose"`

	// MarginStdevCollapse is the gross-margin stdev above which the
	// margin regime is collapse.
	MarginStdevCollapse float64 `yaml:"margin_stdev_collapse"`

	// Expectation reset.
	EPSDropThreshold     float64 `yaml:"eps_drop_threshold"`
	RevenueDropThreshold float64 `yaml:"revenue_drop_threshold"`

	// Capex discipline: a slope within this epsilon counts as flat.
	CapexFlatEps float64 `yaml:"capex_flat_eps"`

	// Market positioning.
	ShortExtreme        float64 `yaml:"short_extreme"`  // >=: 5 points
	ShortElevated       float64 `yaml:"short_elevated"` // >=: 10 points
	CapitulationDrop    float64 `yaml:"capitulation_drop"`
	InsiderMinValue     float64 `yaml:"insider_min_value"`
	InsiderMinPctMktCap float64 `yaml:"insider_min_pct_mkt_cap"`
	InsiderWindowDays   int     `yaml:"insider_window_days"`

	// HistoryQuarters is the trailing window for regime series.
	HistoryQuarters int `yaml:"history_quarters"`
	// MinRegimePoints is the series length below which a regime is
	// unknown.
	MinRegimePoints int `yaml:"min_regime_points"`
	// MetricsAlignMaxDays bounds nearest-date metrics alignment.
	MetricsAlignMaxDays int `yaml:"metrics_align_max_days"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		HistoryMin:  12,
		WindowShort: 12,
		WindowLong:  20,

		CompressionDeep:  0.60,
		CompressionMid:   0.75,
		CompressionLight: 0.90,

		ExpansionStrong: 1.50,
		ExpansionMid:    1.25,
		ExpansionLight:  1.10,

		EBITDAFlatMin:    -0.05,
		EBITDACollapseAt: -0.20,

		FCFStablePositives:   0.75,
		FCFStdevTight:        0.08,
		FCFVolatilePositives: 0.50,
		FCFStdevLoose:        0.20,
		OCFStablePositives:   0.875,
		OCFStdevTight:        0.06,
		OCFVolatilePositives: 0.625,
		OCFStdevLoose:        0.15,

		MarginStdevCollapse: 0.04,

		EPSDropThreshold:     0.15,
		RevenueDropThreshold: 0.05,

		CapexFlatEps: 0.005,

		ShortExtreme:        0.20,
		ShortElevated:       0.10,
		CapitulationDrop:    0.10,
		InsiderMinValue:     1_000_000,
		InsiderMinPctMktCap: 0.0005,
		InsiderWindowDays:   180,

		HistoryQuarters:     8,
		MinRegimePoints:     4,
		MetricsAlignMaxDays: 120,
	}
}

// Overrides is a partial Config; nil fields keep defaults.
type Overrides struct {
	HistoryMin  *int `yaml:"history_min"`
	WindowShort *int `yaml:"window_short"`
	WindowLong  *int `yaml:"window_long"`

	CompressionDeep  *float64 `yaml:"compression_deep"`
	CompressionMid   *float64 `yaml:"compression_mid"`
	CompressionLight *float64 `yaml:"compression_light"`

	ExpansionStrong *float64 `yaml:"expansion_strong"`
	ExpansionMid    *float64 `yaml:"expansion_mid"`
	ExpansionLight  *float64 `yaml:"expansion_light"`

	EBITDAFlatMin    *float64 `yaml:"ebitda_flat_min"`
	EBITDACollapseAt *float64 `yaml:"ebitda_collapse_at"`

	FCFStablePositives   *float64 `yaml:"fcf_stable_positives"`
	FCFStdevTight        *float64 `yaml:"fcf_stdev_tight"`
	FCFVolatilePositives *float64 `yaml:"fcf_volatile_positives"`
	FCFStdevLoose        *float64 `yaml:"fcf_stdev_loose"`
	OCFStablePositives   *float64 `yaml:"ocf_stable_positives"`
	OCFStdevTight        *float64 `yaml:"ocf_stdev_tight"`
	OCFVolatilePositives *float64 `yaml:"ocf_volatile_positives"`
	OCFStdevLoose        *float64 `yaml:"ocf_stdev_loose"`

	MarginStdevCollapse *float64 `yaml:"margin_stdev_collapse"`

	EPSDropThreshold     *float64 `yaml:"eps_drop_threshold"`
	RevenueDropThreshold *float64 `yaml:"revenue_drop_threshold"`

	CapexFlatEps *float64 `yaml:"capex_flat_eps"`

	ShortExtreme        *float64 `yaml:"short_extreme"`
	ShortElevated       *float64 `yaml:"short_elevated"`
	CapitulationDrop    *float64 `yaml:"capitulation_drop"`
	InsiderMinValue     *float64 `yaml:"insider_min_value"`
	InsiderMinPctMktCap *float64 `yaml:"insider_min_pct_mkt_cap"`
	InsiderWindowDays   *int     `yaml:"insider_window_days"`

	HistoryQuarters     *int `yaml:"history_quarters"`
	MinRegimePoints     *int `yaml:"min_regime_points"`
	MetricsAlignMaxDays *int `yaml:"metrics_align_max_days"`
}

// Apply merges o over a copy of base (nil base means DefaultConfig).
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
	setInt(&merged.HistoryMin, o.HistoryMin)
	setInt(&merged.WindowShort, o.WindowShort)
	setInt(&merged.WindowLong, o.WindowLong)
	setFloat(&merged.CompressionDeep, o.CompressionDeep)
	setFloat(&merged.CompressionMid, o.CompressionMid)
	setFloat(&merged.CompressionLight, o.CompressionLight)
	setFloat(&merged.ExpansionStrong, o.ExpansionStrong)
	setFloat(&merged.ExpansionMid, o.ExpansionMid)
	setFloat(&merged.ExpansionLight, o.ExpansionLight)
	setFloat(&merged.EBITDAFlatMin, o.EBITDAFlatMin)
	setFloat(&merged.EBITDACollapseAt, o.EBITDACollapseAt)
	setFloat(&merged.FCFStablePositives, o.FCFStablePositives)
	setFloat(&merged.FCFStdevTight, o.FCFStdevTight)
	setFloat(&merged.FCFVolatilePositives, o.FCFVolatilePositives)
	setFloat(&merged.FCFStdevLoose, o.FCFStdevLoose)
	setFloat(&merged.OCFStablePositives, o.OCFStablePositives)
	setFloat(&merged.OCFStdevTight, o.OCFStdevTight)
	setFloat(&merged.OCFVolatilePositives, o.OCFVolatilePositives)
	setFloat(&merged.OCFStdevLoose, o.OCFStdevLoose)
	setFloat(&merged.MarginStdevCollapse, o.MarginStdevCollapse)
	setFloat(&merged.EPSDropThreshold, o.EPSDropThreshold)
	setFloat(&merged.RevenueDropThreshold, o.RevenueDropThreshold)
	setFloat(&merged.CapexFlatEps, o.CapexFlatEps)
	setFloat(&merged.ShortExtreme, o.ShortExtreme)
	setFloat(&merged.ShortElevated, o.ShortElevated)
	setFloat(&merged.CapitulationDrop, o.CapitulationDrop)
	setFloat(&merged.InsiderMinValue, o.InsiderMinValue)
	setFloat(&merged.InsiderMinPctMktCap, o.InsiderMinPctMktCap)
	setInt(&merged.InsiderWindowDays, o.InsiderWindowDays)
	setInt(&merged.HistoryQuarters, o.HistoryQuarters)
	setInt(&merged.MinRegimePoints, o.MinRegimePoints)
	setInt(&merged.MetricsAlignMaxDays, o.MetricsAlignMaxDays)
	return &merged
}
