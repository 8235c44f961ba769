// Package brs computes the Business Resilience Score: a deterministic 0-100
// rating of balance-sheet and cash-generation quality, decomposed into five
// sub-dimensions. Missing inputs degrade individual branches to zero with a
// warning code; the engine never fails on incomplete data.
package brs

import (
	"math"
	"time"

	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/peers"
	"github.com/sawpanic/stresslens/internal/series"
)

// Inputs is one scoring request. Slices may be empty; the engine owns none
// of them and copies before sorting.
type Inputs struct {
	Ticker    string
	Facts     []models.CompanyFacts
	Income    []models.IncomeStatement
	Balance   []models.BalanceSheet
	CashFlow  []models.CashFlowStatement
	Metrics   []models.MetricsPoint
	Universe  []models.UniverseMetric
	Overrides *Overrides
}

// Engine scores tickers against a base config. Safe for concurrent use; each
// Compute call works on its own merged config and freshly allocated result.
type Engine struct {
	config *Config
}

// NewEngine returns an engine over the given base config, defaulting when
// nil.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

type opt struct {
	val float64
	ok  bool
}

func some(v float64) opt { return opt{val: v, ok: true} }

func (o opt) ptr() *float64 {
	if !o.ok {
		return nil
	}
	v := o.val
	return &v
}

type warnSet struct {
	list []Warning
	seen map[Warning]struct{}
}

func newWarnSet() *warnSet {
	return &warnSet{seen: make(map[Warning]struct{})}
}

func (w *warnSet) add(code Warning) {
	if _, dup := w.seen[code]; dup {
		return
	}
	w.seen[code] = struct{}{}
	w.list = append(w.list, code)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// asOf carries the resolved alignment between the three statement families.
type asOf struct {
	period      string
	misaligned  bool
	incomeCut   time.Time
	cashflowCut time.Time
	balanceIdx  int
	time        time.Time
}

func latestParseable[T any](rows []T, period func(T) string) (int, time.Time) {
	best := -1
	var bestTime time.Time
	for i, r := range rows {
		if t, ok := models.ParsePeriod(period(r)); ok {
			if best == -1 || t.After(bestTime) {
				best, bestTime = i, t
			}
		}
	}
	return best, bestTime
}

// resolveAsOf finds the latest period present in all three statement
// families. Without full overlap each family falls back to its own latest
// period and the result is flagged misaligned.
func resolveAsOf(income []models.IncomeStatement, balance []models.BalanceSheet, cashflow []models.CashFlowStatement) asOf {
	incomeKeys := make(map[string]time.Time)
	for _, r := range income {
		if t, ok := models.ParsePeriod(r.ReportPeriod); ok {
			incomeKeys[dateKey(t)] = t
		}
	}
	balanceKeys := make(map[string]int)
	for i, r := range balance {
		if t, ok := models.ParsePeriod(r.ReportPeriod); ok {
			balanceKeys[dateKey(t)] = i
		}
	}
	cashflowKeys := make(map[string]struct{})
	for _, r := range cashflow {
		if t, ok := models.ParsePeriod(r.ReportPeriod); ok {
			cashflowKeys[dateKey(t)] = struct{}{}
		}
	}

	var common string
	var commonTime time.Time
	for key, t := range incomeKeys {
		if _, inBal := balanceKeys[key]; !inBal {
			continue
		}
		if _, inCF := cashflowKeys[key]; !inCF {
			continue
		}
		if common == "" || t.After(commonTime) {
			common, commonTime = key, t
		}
	}
	if common != "" {
		return asOf{
			period:      common,
			incomeCut:   commonTime,
			cashflowCut: commonTime,
			balanceIdx:  balanceKeys[common],
			time:        commonTime,
		}
	}

	a := asOf{misaligned: true, balanceIdx: -1}
	if i, t := latestParseable(income, func(r models.IncomeStatement) string { return r.ReportPeriod }); i >= 0 {
		a.incomeCut = t
		a.period = dateKey(t)
		a.time = t
	}
	if i, t := latestParseable(cashflow, func(r models.CashFlowStatement) string { return r.ReportPeriod }); i >= 0 {
		a.cashflowCut = t
		if a.time.IsZero() {
			a.time = t
		}
	}
	if i, t := latestParseable(balance, func(r models.BalanceSheet) string { return r.ReportPeriod }); i >= 0 {
		a.balanceIdx = i
		if a.time.IsZero() {
			a.time = t
		}
	}
	return a
}

// ttmAt returns the last trailing-twelve-month sum at or before cutoff. A
// zero cutoff means the end of the series.
func ttmAt(points []series.Point, cutoff time.Time) opt {
	samples := series.RollingTTM(points)
	for i := len(samples) - 1; i >= 0; i-- {
		if cutoff.IsZero() || !samples[i].Time.After(cutoff) {
			return some(samples[i].Value)
		}
	}
	return opt{}
}

// ttmSeriesAt truncates a TTM series to samples at or before cutoff.
func ttmSeriesAt(points []series.Point, cutoff time.Time) []series.Sample {
	samples := series.RollingTTM(points)
	if cutoff.IsZero() {
		return samples
	}
	out := samples[:0:0]
	for _, s := range samples {
		if !s.Time.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

type ttmSet struct {
	revenue, grossProfit, ebit, interest opt
	da, ocf, fcf, dividends, buybacks    opt
	sbc                                  opt
	ebitda                               opt
	ebitdaSeries                         []series.Sample
}

func buildTTM(income []models.IncomeStatement, cashflow []models.CashFlowStatement, a asOf) ttmSet {
	incomePts := func(value func(models.IncomeStatement) *float64) []series.Point {
		return series.PointsOf(income, func(r models.IncomeStatement) string { return r.ReportPeriod }, value)
	}
	cfPts := func(value func(models.CashFlowStatement) *float64) []series.Point {
		return series.PointsOf(cashflow, func(r models.CashFlowStatement) string { return r.ReportPeriod }, value)
	}

	t := ttmSet{
		revenue:     ttmAt(incomePts(func(r models.IncomeStatement) *float64 { return r.Revenue }), a.incomeCut),
		grossProfit: ttmAt(incomePts(func(r models.IncomeStatement) *float64 { return r.GrossProfit }), a.incomeCut),
		ebit:        ttmAt(incomePts(func(r models.IncomeStatement) *float64 { return r.OperatingIncome }), a.incomeCut),
		interest:    ttmAt(incomePts(func(r models.IncomeStatement) *float64 { return r.InterestExpense }), a.incomeCut),
		da:          ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.DepreciationAmort }), a.cashflowCut),
		ocf:         ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.OperatingCashFlow }), a.cashflowCut),
		fcf:         ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.FreeCashFlow }), a.cashflowCut),
		dividends:   ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.DividendsPaid }), a.cashflowCut),
		buybacks:    ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.NetShareIssuance }), a.cashflowCut),
		sbc:         ttmAt(cfPts(func(r models.CashFlowStatement) *float64 { return r.ShareBasedCompensation }), a.cashflowCut),
	}
	if t.ebit.ok && t.da.ok {
		t.ebitda = some(t.ebit.val + t.da.val)
	}
	t.ebitdaSeries = ttmSeriesAt(quarterlyEBITDA(income, cashflow), a.incomeCut)
	return t
}

// quarterlyEBITDA joins EBIT and D&A per report period. Quarters missing
// either side are omitted.
func quarterlyEBITDA(income []models.IncomeStatement, cashflow []models.CashFlowStatement) []series.Point {
	da := make(map[string]float64)
	for _, r := range cashflow {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || r.DepreciationAmort == nil {
			continue
		}
		da[dateKey(t)] = *r.DepreciationAmort
	}
	var pts []series.Point
	for _, r := range income {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || r.OperatingIncome == nil {
			continue
		}
		d, joined := da[dateKey(t)]
		if !joined {
			continue
		}
		v := *r.OperatingIncome + d
		pts = append(pts, series.Point{Period: dateKey(t), Value: &v})
	}
	series.SortByPeriod(pts, func(p series.Point) string { return p.Period })
	return pts
}

// metricsAt aligns the metrics feed with the statement as-of date by nearest
// period within maxDays. A zero date falls back to the latest metrics row.
func metricsAt(metrics []models.MetricsPoint, at time.Time, maxDays int) (models.MetricsPoint, bool) {
	if len(metrics) == 0 {
		return models.MetricsPoint{}, false
	}
	if at.IsZero() {
		if i, _ := latestParseable(metrics, func(m models.MetricsPoint) string { return m.ReportPeriod }); i >= 0 {
			return metrics[i], true
		}
		return models.MetricsPoint{}, false
	}
	periods := make([]string, len(metrics))
	for i, m := range metrics {
		periods[i] = m.ReportPeriod
	}
	if i, ok := series.NearestByDate(periods, at, maxDays); ok {
		return metrics[i], true
	}
	return models.MetricsPoint{}, false
}

// metricSeriesAt collects a metrics field in chronological order, restricted
// to periods at or before the cutoff, keeping at most the trailing n values.
func metricSeriesAt(metrics []models.MetricsPoint, value func(models.MetricsPoint) *float64, cutoff time.Time, n int) []float64 {
	var vals []float64
	for _, m := range metrics {
		t, ok := models.ParsePeriod(m.ReportPeriod)
		if !ok {
			continue
		}
		if !cutoff.IsZero() && t.After(cutoff) {
			continue
		}
		if v := value(m); v != nil && !math.IsNaN(*v) {
			vals = append(vals, *v)
		}
	}
	if n > 0 && len(vals) > n {
		vals = vals[len(vals)-n:]
	}
	return vals
}

// resolveMultiple is the EV/EBITDA fallback chain. Priority: the provider's
// ratio at the as-of metrics point, then enterprise value over TTM EBITDA,
// then the latest known ratio anywhere in the aligned history.
func resolveMultiple(mp models.MetricsPoint, haveMP bool, metrics []models.MetricsPoint, ebitda opt, cutoff time.Time) (opt, string) {
	if haveMP && mp.EVToEBITDA != nil {
		return some(*mp.EVToEBITDA), MultipleFromMetrics
	}
	if haveMP && mp.EnterpriseValue != nil && ebitda.ok && ebitda.val > 0 {
		return some(*mp.EnterpriseValue / ebitda.val), MultipleFromDerived
	}
	vals := metricSeriesAt(metrics, func(m models.MetricsPoint) *float64 { return m.EVToEBITDA }, cutoff, 0)
	if len(vals) > 0 {
		return some(vals[len(vals)-1]), MultipleFromLatest
	}
	return opt{}, ""
}

// resolveFCFYield prefers the provider's yield, then TTM FCF over market
// cap.
func resolveFCFYield(mp models.MetricsPoint, haveMP bool, fcf opt) opt {
	if haveMP && mp.FreeCashFlowYld != nil {
		return some(*mp.FreeCashFlowYld)
	}
	if haveMP && fcf.ok && mp.MarketCap != nil && *mp.MarketCap > 0 {
		return some(fcf.val / *mp.MarketCap)
	}
	return opt{}
}

type scorer struct {
	cfg   *Config
	warns *warnSet
}

// Compute scores one ticker. The call is pure: identical inputs produce
// identical results.
func (e *Engine) Compute(in Inputs) Result {
	cfg := in.Overrides.Apply(e.config)
	s := scorer{cfg: cfg, warns: newWarnSet()}

	income := series.SortedByPeriod(in.Income, func(r models.IncomeStatement) string { return r.ReportPeriod })
	balance := series.SortedByPeriod(in.Balance, func(r models.BalanceSheet) string { return r.ReportPeriod })
	cashflow := series.SortedByPeriod(in.CashFlow, func(r models.CashFlowStatement) string { return r.ReportPeriod })
	metrics := series.SortedByPeriod(in.Metrics, func(r models.MetricsPoint) string { return r.ReportPeriod })

	a := resolveAsOf(income, balance, cashflow)
	if a.misaligned {
		s.warns.add(WarnAsOfMisalignment)
	}

	ttm := buildTTM(income, cashflow, a)
	mp, haveMP := metricsAt(metrics, a.time, cfg.MetricsAlignMaxDays)

	var facts models.CompanyFacts
	if len(in.Facts) > 0 {
		facts = in.Facts[0]
	}
	res := peers.Resolve(facts.Industry, facts.Sector, in.Universe, cfg.MinPeers)
	if res.TooSmall {
		s.warns.add(WarnPeerSetTooSmall)
	}

	scores := Scores{
		Valuation:         s.valuation(mp, haveMP, metrics, ttm, res, a),
		CashTruth:         s.cashTruth(ttm),
		CapitalEfficiency: s.capitalEfficiency(mp, haveMP, metrics, ttm, res, a),
		BalanceSheet:      s.balanceSheet(mp, haveMP, balance, ttm, a),
		Durability:        s.durability(mp, haveMP, metrics, income, ttm, a),
	}
	scores.Total = clamp(
		scores.Valuation.Subtotal+
			scores.CashTruth.Subtotal+
			scores.CapitalEfficiency.Subtotal+
			scores.BalanceSheet.Subtotal+
			scores.Durability.Subtotal,
		0, 100)

	return Result{
		Ticker:    in.Ticker,
		AsOf:      a.period,
		PeerLevel: res.Level,
		PeerCount: len(res.Peers),
		Scores:    scores,
		Warnings:  s.warns.list,
	}
}

func (s *scorer) valuation(mp models.MetricsPoint, haveMP bool, metrics []models.MetricsPoint, ttm ttmSet, res peers.Resolution, a asOf) ValuationScore {
	v := ValuationScore{}

	mult, source := resolveMultiple(mp, haveMP, metrics, ttm.ebitda, a.time)
	v.EVToEBITDA = mult.ptr()
	v.MultipleSource = source
	if !mult.ok {
		s.warns.add(WarnMissingEVEBITDA)
	} else {
		peerVals := peers.EVToEBITDA(res.Peers)
		if len(peerVals) == 0 {
			s.warns.add(WarnMissingPeerEVEBITDA)
		} else if res.Level == peers.LevelMedian {
			med, _ := series.Median(peerVals)
			ratio := mult.val / med
			v.MedianRatio = &ratio
			switch {
			case ratio <= s.cfg.MedianRatioCheap:
				v.MultipleScore = 15
			case ratio <= s.cfg.MedianRatioFair:
				v.MultipleScore = 10
			case ratio <= s.cfg.MedianRatioRich:
				v.MultipleScore = 5
			}
		} else {
			wins := series.Winsorize(peerVals, s.cfg.WinsorizeLoPct, s.cfg.WinsorizeHiPct)
			pct, _ := series.PercentileRank(wins, mult.val)
			v.PeerPercentile = &pct
			switch {
			case pct <= s.cfg.MultiplePctCheap:
				v.MultipleScore = 15
			case pct <= s.cfg.MultiplePctFair:
				v.MultipleScore = 10
			case pct <= s.cfg.MultiplePctRich:
				v.MultipleScore = 5
			}
		}
	}

	yield := resolveFCFYield(mp, haveMP, ttm.fcf)
	v.FCFYield = yield.ptr()
	if !yield.ok {
		s.warns.add(WarnMissingFCFYield)
	} else {
		switch {
		case yield.val > s.cfg.FCFYieldStrong:
			v.FCFYieldScore = 10
		case yield.val >= s.cfg.FCFYieldGood:
			v.FCFYieldScore = 7
		case yield.val >= s.cfg.FCFYieldAdequate:
			v.FCFYieldScore = 4
		}
	}

	v.Subtotal = clamp(v.MultipleScore+v.FCFYieldScore, 0, 30)
	return v
}

func (s *scorer) cashTruth(ttm ttmSet) CashTruthScore {
	c := CashTruthScore{}
	if !ttm.ebitda.ok || ttm.ebitda.val <= 0 {
		s.warns.add(WarnMissingEBITDA)
		return c
	}
	if !ttm.ocf.ok {
		s.warns.add(WarnMissingOCF)
	} else {
		ratio := ttm.ocf.val / ttm.ebitda.val
		c.OCFToEBITDA = &ratio
		switch {
		case ratio >= s.cfg.OCFConvStrong:
			c.OCFScore = 10
		case ratio >= s.cfg.OCFConvGood:
			c.OCFScore = 6
		case ratio >= s.cfg.OCFConvWeak:
			c.OCFScore = 3
		}
	}
	if !ttm.fcf.ok {
		s.warns.add(WarnMissingFCF)
	} else {
		ratio := ttm.fcf.val / ttm.ebitda.val
		c.FCFToEBITDA = &ratio
		switch {
		case ratio >= s.cfg.FCFConvStrong:
			c.FCFScore = 10
		case ratio >= s.cfg.FCFConvGood:
			c.FCFScore = 6
		case ratio >= s.cfg.FCFConvWeak:
			c.FCFScore = 3
		}
	}
	c.Subtotal = clamp(c.OCFScore+c.FCFScore, 0, 20)
	return c
}

func (s *scorer) capitalEfficiency(mp models.MetricsPoint, haveMP bool, metrics []models.MetricsPoint, ttm ttmSet, res peers.Resolution, a asOf) CapitalEfficiencyScore {
	c := CapitalEfficiencyScore{}

	var roic opt
	if haveMP && mp.ROIC != nil {
		roic = some(*mp.ROIC)
	}
	c.ROIC = roic.ptr()

	var peerMedians []float64
	for _, p := range res.Peers {
		vals := series.Collect(series.PointsOf(p.ROICSeries,
			func(r models.RoicPoint) string { return r.ReportPeriod },
			func(r models.RoicPoint) *float64 { return r.Value }))
		if med, ok := series.Median(vals); ok {
			peerMedians = append(peerMedians, med)
		}
	}
	proxy, haveProxy := series.Median(peerMedians)
	if haveProxy {
		c.WACCProxy = &proxy
	}

	switch {
	case !roic.ok:
		s.warns.add(WarnMissingROIC)
	case !haveProxy:
		s.warns.add(WarnMissingPeerROIC)
	case roic.val >= proxy+s.cfg.ROICPremium:
		c.SpreadScore = 15
	case roic.val >= proxy:
		c.SpreadScore = 10
	}

	roicVals := metricSeriesAt(metrics, func(m models.MetricsPoint) *float64 { return m.ROIC }, a.time, s.cfg.HistoryQuarters)
	growths := series.Growth(roicVals, 4)
	if len(growths) == 0 {
		ebitdaVals := make([]float64, 0, len(ttm.ebitdaSeries))
		for _, smp := range ttm.ebitdaSeries {
			ebitdaVals = append(ebitdaVals, smp.Value)
		}
		if len(ebitdaVals) > s.cfg.HistoryQuarters {
			ebitdaVals = ebitdaVals[len(ebitdaVals)-s.cfg.HistoryQuarters:]
		}
		growths = series.Growth(ebitdaVals, 4)
		if len(growths) > 0 {
			c.UsedEBITDAProxy = true
			s.warns.add(WarnROICProxyEBITDA)
		}
	}
	if med, ok := series.Median(growths); ok {
		c.MedianYoYGrowth = &med
		switch {
		case med > s.cfg.IncrementalStrong:
			c.IncrementalScore = 10
		case med >= s.cfg.IncrementalGood:
			c.IncrementalScore = 6
		}
	} else {
		s.warns.add(WarnMissingGrowthHistory)
	}

	c.Subtotal = clamp(c.SpreadScore+c.IncrementalScore, 0, 25)
	return c
}

func (s *scorer) balanceSheet(mp models.MetricsPoint, haveMP bool, balance []models.BalanceSheet, ttm ttmSet, a asOf) BalanceSheetScore {
	b := BalanceSheetScore{}

	var netDebt opt
	if a.balanceIdx >= 0 && a.balanceIdx < len(balance) {
		row := balance[a.balanceIdx]
		if row.TotalDebt != nil && row.CashAndEquivalents != nil {
			netDebt = some(*row.TotalDebt - *row.CashAndEquivalents)
		}
	}
	switch {
	case !netDebt.ok:
		s.warns.add(WarnMissingNetDebt)
	case !ttm.ebitda.ok || ttm.ebitda.val <= 0:
		s.warns.add(WarnMissingEBITDA)
	default:
		ratio := netDebt.val / ttm.ebitda.val
		b.NetDebtToEBITDA = &ratio
		switch {
		case ratio < s.cfg.NetDebtLow:
			b.LeverageScore = 10
		case ratio <= s.cfg.NetDebtMid:
			b.LeverageScore = 5
		}
	}

	var coverage opt
	if haveMP && mp.InterestCoverage != nil {
		coverage = some(*mp.InterestCoverage)
	} else if ttm.ebit.ok && ttm.interest.ok && ttm.interest.val > 0 {
		coverage = some(ttm.ebit.val / ttm.interest.val)
	}
	b.InterestCoverage = coverage.ptr()
	if !coverage.ok {
		s.warns.add(WarnMissingInterestCoverage)
	} else {
		switch {
		case coverage.val > s.cfg.CoverageHigh:
			b.CoverageScore = 5
		case coverage.val >= s.cfg.CoverageMid:
			b.CoverageScore = 3
		}
	}

	b.Subtotal = clamp(b.LeverageScore+b.CoverageScore, 0, 15)
	return b
}

// grossMarginSeries prefers the provider's per-period gross margin, deriving
// gross_profit/revenue from income statements when the metrics feed has
// none.
func grossMarginSeries(metrics []models.MetricsPoint, income []models.IncomeStatement, cutoff time.Time, n int) []float64 {
	vals := metricSeriesAt(metrics, func(m models.MetricsPoint) *float64 { return m.GrossMargin }, cutoff, n)
	if len(vals) > 0 {
		return vals
	}
	var derived []float64
	for _, r := range income {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok {
			continue
		}
		if !cutoff.IsZero() && t.After(cutoff) {
			continue
		}
		if r.Revenue != nil && r.GrossProfit != nil && *r.Revenue > 0 {
			derived = append(derived, *r.GrossProfit / *r.Revenue)
		}
	}
	if n > 0 && len(derived) > n {
		derived = derived[len(derived)-n:]
	}
	return derived
}

func (s *scorer) durability(mp models.MetricsPoint, haveMP bool, metrics []models.MetricsPoint, income []models.IncomeStatement, ttm ttmSet, a asOf) DurabilityScore {
	d := DurabilityScore{}

	margins := grossMarginSeries(metrics, income, a.time, s.cfg.HistoryQuarters)
	d.MarginQuarters = len(margins)
	if len(margins) < 2 {
		s.warns.add(WarnMissingGrossMarginHistory)
	} else {
		slope, _ := series.Slope(margins)
		stdev, _ := series.Stdev(margins)
		d.MarginSlope = &slope
		d.MarginStdev = &stdev
		if len(margins) < s.cfg.HistoryQuarters {
			s.warns.add(WarnShortHistoryGrossMargin)
		}
		if slope >= 0 && stdev <= s.cfg.MarginStdevMax {
			d.StabilityScore = 5
			if len(margins) < s.cfg.HistoryQuarters {
				d.StabilityScore = 2.5
			}
		}
	}

	// Dividends and buybacks are reported as outflows; the return to
	// shareholders is their negation. A missing component contributes
	// nothing rather than poisoning the other.
	if !ttm.dividends.ok && !ttm.buybacks.ok {
		s.warns.add(WarnMissingShareholderYield)
	} else {
		returned := 0.0
		if ttm.dividends.ok {
			returned -= ttm.dividends.val
		}
		if ttm.buybacks.ok {
			returned -= ttm.buybacks.val
		}
		if !haveMP || mp.MarketCap == nil || *mp.MarketCap <= 0 {
			s.warns.add(WarnMissingMarketCap)
		} else {
			yield := returned / *mp.MarketCap
			d.ShareholderYield = &yield
			switch {
			case yield > s.cfg.ShareholderYieldStrong:
				d.YieldScore = 5
			case yield >= s.cfg.ShareholderYieldGood:
				d.YieldScore = 3
			}
		}
	}

	switch {
	case !ttm.sbc.ok:
		s.warns.add(WarnMissingSBC)
	case !ttm.fcf.ok || ttm.fcf.val <= 0:
		s.warns.add(WarnMissingFCF)
	default:
		ratio := ttm.sbc.val / ttm.fcf.val
		d.SBCToFCF = &ratio
		switch {
		case ratio < s.cfg.SBCToFCFLow:
			d.SBCScore = 5
		case ratio <= s.cfg.SBCToFCFMid:
			d.SBCScore = 3
		}
	}

	d.Subtotal = clamp(d.StabilityScore+d.YieldScore+d.SBCScore, 0, 15)
	return d
}
