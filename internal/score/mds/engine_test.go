package mds

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/narrative"
)

func f(v float64) *float64 { return &v }

func quartersFrom(startYear, n int) []string {
	ends := []string{"03-31", "06-30", "09-30", "12-31"}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%d-%s", startYear+i/4, ends[i%4]))
	}
	return out
}

// dislocatedInputs models a company whose multiple halved while revenue
// eased and every operating regime held: the canonical high-dislocation,
// high-resilience setup.
func dislocatedInputs() Inputs {
	quarters := quartersFrom(2023, 8)
	income := make([]models.IncomeStatement, 0, len(quarters))
	cashflow := make([]models.CashFlowStatement, 0, len(quarters))
	for i, q := range quarters {
		rev, capex := 110.0, -11.0
		if i >= 4 {
			rev, capex = 100.0, -10.0
		}
		income = append(income, models.IncomeStatement{
			ReportPeriod:    q,
			Revenue:         f(rev),
			GrossProfit:     f(0.4 * rev),
			OperatingIncome: f(20),
			InterestExpense: f(2),
		})
		cashflow = append(cashflow, models.CashFlowStatement{
			ReportPeriod:       q,
			DepreciationAmort:  f(5),
			OperatingCashFlow:  f(24),
			FreeCashFlow:       f(15),
			CapitalExpenditure: f(capex),
		})
	}

	metricPeriods := quartersFrom(2020, 20)
	metrics := make([]models.MetricsPoint, 0, len(metricPeriods))
	for i, q := range metricPeriods {
		m := models.MetricsPoint{
			ReportPeriod:    q,
			EVToEBITDA:      f(10),
			FreeCashFlowYld: f(0.06),
			GrossMargin:     f(0.40),
		}
		if i == len(metricPeriods)-1 {
			m.EVToEBITDA = f(5.5)
			m.FreeCashFlowYld = f(0.10)
			m.MarketCap = f(1e9)
		}
		metrics = append(metrics, m)
	}

	return Inputs{
		Ticker:   "ACME",
		Income:   income,
		CashFlow: cashflow,
		Metrics:  metrics,
		Estimates: []models.EstimatePoint{
			{Period: "2024-03-31", EPSAvg: f(2.00), RevenueAvg: f(400)},
			{Period: "2024-06-30", EPSAvg: f(2.00), RevenueAvg: f(400)},
			{Period: "2024-09-30", EPSAvg: f(2.00), RevenueAvg: f(400)},
			{Period: "2024-12-31", EPSAvg: f(1.60), RevenueAvg: f(395)},
		},
		Ownership: []models.OwnershipPoint{
			{ReportPeriod: "2024-06-30", InvestorsHolding: f(100), SharesHeld: f(1e6)},
			{ReportPeriod: "2024-09-30", InvestorsHolding: f(100), SharesHeld: f(1e6)},
			{ReportPeriod: "2024-12-31", InvestorsHolding: f(85), SharesHeld: f(1e6)},
		},
		InsiderTrades: []models.InsiderTrade{
			{TransactionDate: "2024-11-15", TransactionShares: f(40000), TransactionValue: f(2e6)},
		},
		ShortInterest: &models.ShortInterest{Ticker: "ACME", PctOfFloat: 0.15},
		Narrative:     &narrative.Result{ShockType: narrative.ShockOneOff, MdsPoints: 15},
	}
}

func TestCompute_DislocatedResilientCompanyScoresFull(t *testing.T) {
	r := NewEngine(nil).Compute(dislocatedInputs())

	require.Equal(t, "2024-12-31", r.AsOf)
	assert.Equal(t, RegimeFlat, r.Regimes.EBITDATrend)
	assert.Equal(t, RegimeStable, r.Regimes.FCFStability)
	assert.Equal(t, RegimeStable, r.Regimes.OCFStability)
	assert.Equal(t, RegimeStable, r.Regimes.MarginRegime)

	assert.Equal(t, 20.0, r.Scores.Compression.CompressionScore)
	assert.Equal(t, 10.0, r.Scores.Compression.ExpansionScore)
	assert.Equal(t, 30.0, r.Scores.Compression.Subtotal)

	assert.Equal(t, 10.0, r.Scores.Expectation.ResetScore)
	assert.Equal(t, 15.0, r.Scores.Expectation.NarrativePoints)
	assert.Equal(t, 25.0, r.Scores.Expectation.Subtotal)
	require.NotNil(t, r.Scores.Expectation.RevenueHoldingUp)
	assert.True(t, *r.Scores.Expectation.RevenueHoldingUp)

	require.NotNil(t, r.Scores.Operating.RevenueDeclining)
	assert.True(t, *r.Scores.Operating.RevenueDeclining)
	assert.Equal(t, 10.0, r.Scores.Operating.MarginDefense)
	assert.Equal(t, 10.0, r.Scores.Operating.OCFScore)
	assert.Equal(t, 5.0, r.Scores.Operating.CapexScore)
	assert.Equal(t, 25.0, r.Scores.Operating.Subtotal)

	assert.Equal(t, 10.0, r.Scores.Positioning.ShortInterestScore)
	assert.Equal(t, 10.0, r.Scores.Positioning.CapitulationScore)
	assert.Equal(t, 5.0, r.Scores.Positioning.InsiderScore)
	assert.Equal(t, 20.0, r.Scores.Positioning.Subtotal)

	assert.Equal(t, 100.0, r.Scores.Total)
	assert.Empty(t, r.Warnings)
}

func TestCompute_EmptyInputsDegradeToZeroWithWarnings(t *testing.T) {
	r := NewEngine(nil).Compute(Inputs{Ticker: "ACME"})

	assert.Equal(t, "", r.AsOf)
	assert.Equal(t, 0.0, r.Scores.Total)
	assert.Nil(t, r.Narrative)
	assert.ElementsMatch(t, []Warning{
		WarnAsOfMisalignment,
		WarnMissingEBITDATrend,
		WarnFCFRegimeUnknown,
		WarnOCFRegimeUnknown,
		WarnMarginRegimeUnknown,
		WarnMissingRevenueTrend,
		WarnMissingDocs,
		WarnMissingHistoryEVEBITDA,
		WarnMissingHistoryFCFYield,
		WarnMissingEstimates,
		WarnMissingCapex,
		WarnMissingShortInterest,
		WarnMissingOwnership,
		WarnMissingInsiderTrades,
	}, r.Warnings)
}

func shortOnly(pct float64) Inputs {
	return Inputs{
		Ticker:        "ACME",
		ShortInterest: &models.ShortInterest{Ticker: "ACME", PctOfFloat: pct},
	}
}

func TestCompute_ShortInterestBandsPenalizeExtremes(t *testing.T) {
	e := NewEngine(nil)

	crowded := e.Compute(shortOnly(0.25))
	assert.Equal(t, 5.0, crowded.Scores.Positioning.ShortInterestScore)

	elevated := e.Compute(shortOnly(0.15))
	assert.Equal(t, 10.0, elevated.Scores.Positioning.ShortInterestScore)

	quiet := e.Compute(shortOnly(0.05))
	assert.Equal(t, 0.0, quiet.Scores.Positioning.ShortInterestScore)
	require.NotNil(t, quiet.Scores.Positioning.ShortInterestPct)
	assert.Equal(t, 0.05, *quiet.Scores.Positioning.ShortInterestPct)
}

func multiplesOnly(n int) Inputs {
	periods := quartersFrom(2020, n)
	metrics := make([]models.MetricsPoint, 0, n)
	for i, q := range periods {
		v := 10.0
		if i == n-1 {
			v = 5.5
		}
		metrics = append(metrics, models.MetricsPoint{ReportPeriod: q, EVToEBITDA: f(v)})
	}
	return Inputs{Ticker: "ACME", Metrics: metrics}
}

func TestCompute_WindowCoverageDiscount(t *testing.T) {
	e := NewEngine(nil)

	full := e.Compute(multiplesOnly(12))
	assert.Equal(t, 20.0, full.Scores.Compression.CompressionScore)
	assert.NotContains(t, full.Warnings, WarnShortHistoryEVEBITDA)

	half := e.Compute(multiplesOnly(6))
	assert.Equal(t, 10.0, half.Scores.Compression.CompressionScore)
	assert.Contains(t, half.Warnings, WarnShortHistoryEVEBITDA)

	none := e.Compute(Inputs{Ticker: "ACME"})
	assert.Equal(t, 0.0, none.Scores.Compression.CompressionScore)
	assert.Contains(t, none.Warnings, WarnMissingHistoryEVEBITDA)
}

func expansionInputs(fcfByQuarter []float64) Inputs {
	quarters := quartersFrom(2023, 8)
	income := make([]models.IncomeStatement, 0, len(quarters))
	cashflow := make([]models.CashFlowStatement, 0, len(quarters))
	for i, q := range quarters {
		income = append(income, models.IncomeStatement{
			ReportPeriod: q, Revenue: f(100), GrossProfit: f(40),
		})
		cashflow = append(cashflow, models.CashFlowStatement{
			ReportPeriod: q, OperatingCashFlow: f(24), FreeCashFlow: f(fcfByQuarter[i]),
		})
	}
	metricPeriods := quartersFrom(2022, 12)
	metrics := make([]models.MetricsPoint, 0, len(metricPeriods))
	for i, q := range metricPeriods {
		y := 0.06
		if i == len(metricPeriods)-1 {
			y = 0.10
		}
		metrics = append(metrics, models.MetricsPoint{ReportPeriod: q, FreeCashFlowYld: f(y)})
	}
	return Inputs{Ticker: "ACME", Income: income, CashFlow: cashflow, Metrics: metrics}
}

func TestCompute_YieldExpansionGatedByFCFStability(t *testing.T) {
	e := NewEngine(nil)

	stable := e.Compute(expansionInputs([]float64{15, 15, 15, 15, 15, 15, 15, 15}))
	require.Equal(t, RegimeStable, stable.Regimes.FCFStability)
	assert.Equal(t, 10.0, stable.Scores.Compression.ExpansionScore)

	volatile := e.Compute(expansionInputs([]float64{15, -5, 15, -5, 15, -5, 15, -5}))
	require.Equal(t, RegimeVolatile, volatile.Regimes.FCFStability)
	assert.Equal(t, 5.0, volatile.Scores.Compression.ExpansionScore)

	burning := e.Compute(expansionInputs([]float64{-10, -10, -10, -10, -10, -10, -10, -10}))
	require.Equal(t, RegimeDeteriorating, burning.Regimes.FCFStability)
	assert.Equal(t, 0.0, burning.Scores.Compression.ExpansionScore)
}

func TestCompute_ExpectationResetBranches(t *testing.T) {
	e := NewEngine(nil)

	in := dislocatedInputs()
	in.Estimates[3].RevenueAvg = f(360)
	cut := e.Compute(in)
	require.NotNil(t, cut.Scores.Expectation.RevenueHoldingUp)
	assert.False(t, *cut.Scores.Expectation.RevenueHoldingUp)
	assert.Equal(t, 5.0, cut.Scores.Expectation.ResetScore)

	in = dislocatedInputs()
	in.Estimates[3].EPSAvg = f(1.80)
	mild := e.Compute(in)
	assert.Equal(t, 0.0, mild.Scores.Expectation.ResetScore)
	require.NotNil(t, mild.Scores.Expectation.EPSDrop)
	assert.InDelta(t, 0.10, *mild.Scores.Expectation.EPSDrop, 1e-9)
}

func TestCompute_ExpectationResetFallsBackToTrailingRevenue(t *testing.T) {
	in := dislocatedInputs()
	for i := range in.Estimates {
		in.Estimates[i].RevenueAvg = nil
	}

	r := NewEngine(nil).Compute(in)

	// Trailing TTM revenue fell about 9%, past the holding-up threshold.
	require.NotNil(t, r.Scores.Expectation.RevenueHoldingUp)
	assert.False(t, *r.Scores.Expectation.RevenueHoldingUp)
	assert.Equal(t, 5.0, r.Scores.Expectation.ResetScore)
}

func TestCompute_ClassifiesDocumentsWhenNoPrecomputedNarrative(t *testing.T) {
	in := dislocatedInputs()
	in.Narrative = nil
	in.Documents = []models.Document{
		{
			SourceType:  models.SourceNews,
			Title:       "Markets slide",
			Body:        "a sector selloff hit industrials across the board",
			PublishedAt: "2024-12-30",
		},
		{
			SourceType:  models.SourceNews,
			Title:       "Rotation continues",
			Body:        "the sector rotation out of cyclicals accelerated",
			PublishedAt: "2024-12-29",
		},
	}

	r := NewEngine(nil).Compute(in)

	require.NotNil(t, r.Narrative)
	assert.Equal(t, "2024-12-31", r.Narrative.WindowEnd)
	assert.Equal(t, narrative.ShockMacroRotation, r.Narrative.ShockType)
	assert.Equal(t, 10.0, r.Scores.Expectation.NarrativePoints)
	assert.NotContains(t, r.Warnings, WarnMissingDocs)
}

func TestCompute_PrecomputedNarrativeWinsOverDocuments(t *testing.T) {
	in := dislocatedInputs()
	pre := in.Narrative
	in.Documents = []models.Document{
		{SourceType: models.SourceNews, Body: "the sector rotation out of cyclicals accelerated", PublishedAt: "2024-12-30"},
	}

	r := NewEngine(nil).Compute(in)

	assert.Same(t, pre, r.Narrative)
	assert.Equal(t, 15.0, r.Scores.Expectation.NarrativePoints)
}

func capitulationInputs(ocf float64) Inputs {
	return Inputs{
		Ticker:   "ACME",
		Income:   []models.IncomeStatement{{ReportPeriod: "2024-12-31", Revenue: f(100)}},
		CashFlow: []models.CashFlowStatement{{ReportPeriod: "2024-12-31", OperatingCashFlow: f(ocf)}},
		Ownership: []models.OwnershipPoint{
			{ReportPeriod: "2024-06-30", InvestorsHolding: f(100)},
			{ReportPeriod: "2024-09-30", InvestorsHolding: f(100)},
			{ReportPeriod: "2024-12-31", InvestorsHolding: f(80)},
		},
	}
}

func TestCompute_CapitulationRequiresPositiveOCF(t *testing.T) {
	e := NewEngine(nil)

	intact := e.Compute(capitulationInputs(5))
	assert.Equal(t, 10.0, intact.Scores.Positioning.CapitulationScore)

	burning := e.Compute(capitulationInputs(-5))
	assert.Equal(t, 0.0, burning.Scores.Positioning.CapitulationScore)
}

func TestCompute_InsiderThresholdScalesWithMarketCap(t *testing.T) {
	e := NewEngine(nil)
	base := Inputs{
		Ticker:   "ACME",
		Income:   []models.IncomeStatement{{ReportPeriod: "2024-12-31", Revenue: f(100)}},
		CashFlow: []models.CashFlowStatement{{ReportPeriod: "2024-12-31", OperatingCashFlow: f(24)}},
		InsiderTrades: []models.InsiderTrade{
			{TransactionDate: "2024-11-15", TransactionValue: f(600_000)},
		},
	}

	absolute := e.Compute(base)
	require.NotNil(t, absolute.Scores.Positioning.InsiderNetValue)
	assert.Equal(t, 600_000.0, *absolute.Scores.Positioning.InsiderNetValue)
	assert.Equal(t, 0.0, absolute.Scores.Positioning.InsiderScore)

	withCap := base
	withCap.Metrics = []models.MetricsPoint{{ReportPeriod: "2024-12-31", MarketCap: f(1e9)}}
	relative := e.Compute(withCap)
	assert.Equal(t, 5.0, relative.Scores.Positioning.InsiderScore)
}

func TestCompute_ExplicitAsOfCapsEveryWindow(t *testing.T) {
	in := dislocatedInputs()
	in.AsOf = "2024-06-30"

	r := NewEngine(nil).Compute(in)

	require.Equal(t, "2024-06-30", r.AsOf)
	assert.NotContains(t, r.Warnings, WarnUnparseableAsOf)
	// The compressed quarter sits after the cap, so no compression shows.
	assert.Equal(t, 0.0, r.Scores.Compression.CompressionScore)
}

func TestCompute_UnparseableAsOfFallsBackToLatestCommon(t *testing.T) {
	in := dislocatedInputs()
	in.AsOf = "mid-december"

	r := NewEngine(nil).Compute(in)

	assert.Equal(t, "2024-12-31", r.AsOf)
	assert.Contains(t, r.Warnings, WarnUnparseableAsOf)
}

func TestEBITDATrendRegime_ConsecutiveCollapseOverridesMedian(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, RegimeCollapse, ebitdaTrendRegime([]float64{0.3, -0.25, -0.25, 0.3, 0.3}, cfg))
	assert.Equal(t, RegimeCollapse, ebitdaTrendRegime([]float64{-0.6}, cfg))
	assert.Equal(t, RegimeMild, ebitdaTrendRegime([]float64{-0.10}, cfg))
	assert.Equal(t, RegimeFlat, ebitdaTrendRegime([]float64{0}, cfg))
	assert.Equal(t, RegimeUnknown, ebitdaTrendRegime(nil, cfg))
}

func TestRatioStability_Bands(t *testing.T) {
	assert.Equal(t, RegimeStable,
		ratioStability([]float64{0.12, 0.12, 0.12, 0.12, 0.12, 0.12, 0.12, 0.12}, 4, 0.75, 0.08, 0.5, 0.2))
	assert.Equal(t, RegimeVolatile,
		ratioStability([]float64{0.15, -0.05, 0.15, -0.05, 0.15, -0.05, 0.15, -0.05}, 4, 0.75, 0.08, 0.5, 0.2))
	assert.Equal(t, RegimeDeteriorating,
		ratioStability([]float64{-0.1, -0.1, -0.1, -0.1}, 4, 0.75, 0.08, 0.5, 0.2))
	assert.Equal(t, RegimeUnknown,
		ratioStability([]float64{0.1, 0.1, 0.1}, 4, 0.75, 0.08, 0.5, 0.2))
}

func TestMarginRegime_Labels(t *testing.T) {
	assert.Equal(t, RegimeStable,
		marginRegime([]float64{0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4}, 4, 0.04))
	assert.Equal(t, RegimeSlightDecline,
		marginRegime([]float64{0.40, 0.39, 0.38, 0.37, 0.36, 0.35, 0.34, 0.33}, 4, 0.04))
	assert.Equal(t, RegimeCollapse,
		marginRegime([]float64{0.40, 0.30, 0.40, 0.30}, 4, 0.04))
	assert.Equal(t, RegimeUnknown,
		marginRegime([]float64{0.4, 0.4, 0.4}, 4, 0.04))
}

func TestCompute_OverridesReplaceSingleKeys(t *testing.T) {
	in := shortOnly(0.25)
	in.Overrides = &Overrides{ShortExtreme: f(0.50)}

	r := NewEngine(nil).Compute(in)

	assert.Equal(t, 10.0, r.Scores.Positioning.ShortInterestScore)
}

func TestApply_NilReceiverAndNilBase(t *testing.T) {
	var o *Overrides
	assert.Equal(t, DefaultConfig(), o.Apply(nil))
}

func TestCompute_Idempotent(t *testing.T) {
	e := NewEngine(nil)
	in := dislocatedInputs()

	first := e.Compute(in)
	second := e.Compute(in)

	assert.Equal(t, first, second)
}

func TestCompute_DoesNotMutateCallerSlices(t *testing.T) {
	in := dislocatedInputs()
	in.Income[0], in.Income[1] = in.Income[1], in.Income[0]
	firstPeriod := in.Income[0].ReportPeriod

	NewEngine(nil).Compute(in)

	assert.Equal(t, firstPeriod, in.Income[0].ReportPeriod)
}
