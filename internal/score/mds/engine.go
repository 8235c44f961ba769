// Package mds computes the Market Dislocation Score: a deterministic 0-100
// rating of how hard the market has repriced a company relative to what its
// operating trajectory supports. High readings mean heavy dislocation on
// still-functioning fundamentals. Missing inputs degrade individual branches
// to zero with a warning code; the engine never fails on incomplete data.
package mds

import (
	"math"
	"time"

	"github.com/sawpanic/stresslens/internal/models"
	"github.com/sawpanic/stresslens/internal/narrative"
	"github.com/sawpanic/stresslens/internal/series"
)

// Inputs is one scoring request. Slices may be empty; the engine owns none
// of them and copies before sorting. A precomputed Narrative result wins
// over Documents.
type Inputs struct {
	Ticker string
	// AsOf caps the analysis at an explicit date. Empty means the latest
	// period shared by the income and cash-flow histories.
	AsOf               string
	Income             []models.IncomeStatement
	CashFlow           []models.CashFlowStatement
	Metrics            []models.MetricsPoint
	Estimates          []models.EstimatePoint
	Ownership          []models.OwnershipPoint
	InsiderTrades      []models.InsiderTrade
	ShortInterest      *models.ShortInterest
	Documents          []models.Document
	Narrative          *narrative.Result
	NarrativeOverrides *narrative.Overrides
	Overrides          *Overrides
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

func latestWithin[T any](rows []T, period func(T) string, limit time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	for _, r := range rows {
		t, ok := models.ParsePeriod(period(r))
		if !ok {
			continue
		}
		if !limit.IsZero() && t.After(limit) {
			continue
		}
		if !found || t.After(best) {
			best, found = t, true
		}
	}
	return best, found
}

// asOf carries the resolved alignment between the income and cash-flow
// families, capped at the caller's explicit date when one was given.
type asOf struct {
	period      string
	misaligned  bool
	incomeCut   time.Time
	cashflowCut time.Time
	time        time.Time
}

// resolveAsOf finds the latest period present in both statement families at
// or before the explicit cap. Without overlap each family falls back to its
// own latest period and the result is flagged misaligned.
func resolveAsOf(explicit string, income []models.IncomeStatement, cashflow []models.CashFlowStatement, warns *warnSet) asOf {
	var limit time.Time
	if explicit != "" {
		if t, ok := models.ParsePeriod(explicit); ok {
			limit = t
		} else {
			warns.add(WarnUnparseableAsOf)
		}
	}

	incomeKeys := make(map[string]time.Time)
	for _, r := range income {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || (!limit.IsZero() && t.After(limit)) {
			continue
		}
		incomeKeys[dateKey(t)] = t
	}
	cashflowKeys := make(map[string]struct{})
	for _, r := range cashflow {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || (!limit.IsZero() && t.After(limit)) {
			continue
		}
		cashflowKeys[dateKey(t)] = struct{}{}
	}

	var common string
	var commonTime time.Time
	for key, t := range incomeKeys {
		if _, inCF := cashflowKeys[key]; !inCF {
			continue
		}
		if common == "" || t.After(commonTime) {
			common, commonTime = key, t
		}
	}
	if common != "" {
		return asOf{period: common, incomeCut: commonTime, cashflowCut: commonTime, time: commonTime}
	}

	a := asOf{misaligned: true}
	if t, ok := latestWithin(income, func(r models.IncomeStatement) string { return r.ReportPeriod }, limit); ok {
		a.incomeCut = t
		a.period = dateKey(t)
		a.time = t
	}
	if t, ok := latestWithin(cashflow, func(r models.CashFlowStatement) string { return r.ReportPeriod }, limit); ok {
		a.cashflowCut = t
		if a.time.IsZero() {
			a.time = t
			a.period = dateKey(t)
		}
	}
	if a.time.IsZero() && !limit.IsZero() {
		a.time = limit
		a.period = dateKey(limit)
	}
	return a
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

// metricsAt aligns the metrics feed with the as-of date by nearest period
// within maxDays. A zero date falls back to the latest metrics row.
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

// ratioToRevenue joins a cash-flow field against same-period revenue and
// returns the trailing chronological ratio series. Quarters with missing or
// non-positive revenue are omitted.
func ratioToRevenue(income []models.IncomeStatement, cashflow []models.CashFlowStatement, value func(models.CashFlowStatement) *float64, cutoff time.Time, n int, absolute bool) []float64 {
	revenue := make(map[string]float64)
	for _, r := range income {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || r.Revenue == nil || *r.Revenue <= 0 {
			continue
		}
		revenue[dateKey(t)] = *r.Revenue
	}
	var ratios []float64
	for _, r := range cashflow {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok {
			continue
		}
		if !cutoff.IsZero() && t.After(cutoff) {
			continue
		}
		v := value(r)
		if v == nil || math.IsNaN(*v) {
			continue
		}
		rev, joined := revenue[dateKey(t)]
		if !joined {
			continue
		}
		num := *v
		if absolute {
			num = math.Abs(num)
		}
		ratios = append(ratios, num/rev)
	}
	if n > 0 && len(ratios) > n {
		ratios = ratios[len(ratios)-n:]
	}
	return ratios
}

// history bundles the trailing series the regimes and scorers read.
type history struct {
	revenueTTM  []series.Sample
	ebitdaTTM   []series.Sample
	fcfRatios   []float64
	ocfRatios   []float64
	capexRatios []float64
	margins     []float64
	latestOCF   opt
}

func buildHistory(income []models.IncomeStatement, cashflow []models.CashFlowStatement, metrics []models.MetricsPoint, a asOf, cfg *Config) history {
	revenuePts := series.PointsOf(income,
		func(r models.IncomeStatement) string { return r.ReportPeriod },
		func(r models.IncomeStatement) *float64 { return r.Revenue })

	h := history{
		revenueTTM: ttmSeriesAt(revenuePts, a.incomeCut),
		ebitdaTTM:  ttmSeriesAt(quarterlyEBITDA(income, cashflow), a.incomeCut),
		fcfRatios: ratioToRevenue(income, cashflow,
			func(r models.CashFlowStatement) *float64 { return r.FreeCashFlow },
			a.cashflowCut, cfg.HistoryQuarters, false),
		ocfRatios: ratioToRevenue(income, cashflow,
			func(r models.CashFlowStatement) *float64 { return r.OperatingCashFlow },
			a.cashflowCut, cfg.HistoryQuarters, false),
		capexRatios: ratioToRevenue(income, cashflow,
			func(r models.CashFlowStatement) *float64 { return r.CapitalExpenditure },
			a.cashflowCut, cfg.HistoryQuarters, true),
		margins: grossMarginSeries(metrics, income, a.time, cfg.HistoryQuarters),
	}
	for _, r := range cashflow {
		t, ok := models.ParsePeriod(r.ReportPeriod)
		if !ok || r.OperatingCashFlow == nil {
			continue
		}
		if !a.cashflowCut.IsZero() && t.After(a.cashflowCut) {
			continue
		}
		h.latestOCF = some(*r.OperatingCashFlow)
	}
	return h
}

// ownershipThrough drops ownership rows dated after the as-of date.
func ownershipThrough(rows []models.OwnershipPoint, limit time.Time) []models.OwnershipPoint {
	if limit.IsZero() {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if t, ok := models.ParsePeriod(r.ReportPeriod); ok && !t.After(limit) {
			out = append(out, r)
		}
	}
	return out
}

func medianGrowth(samples []series.Sample) opt {
	vals := make([]float64, 0, len(samples))
	for _, s := range samples {
		vals = append(vals, s.Value)
	}
	if med, ok := series.Median(series.Growth(vals, 4)); ok {
		return some(med)
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
	cashflow := series.SortedByPeriod(in.CashFlow, func(r models.CashFlowStatement) string { return r.ReportPeriod })
	metrics := series.SortedByPeriod(in.Metrics, func(r models.MetricsPoint) string { return r.ReportPeriod })
	estimates := series.SortedByPeriod(in.Estimates, func(r models.EstimatePoint) string { return r.Period })
	ownership := series.SortedByPeriod(in.Ownership, func(r models.OwnershipPoint) string { return r.ReportPeriod })

	a := resolveAsOf(in.AsOf, income, cashflow, s.warns)
	if a.misaligned {
		s.warns.add(WarnAsOfMisalignment)
	}
	ownership = ownershipThrough(ownership, a.time)

	hist := buildHistory(income, cashflow, metrics, a, cfg)

	ebitdaVals := make([]float64, 0, len(hist.ebitdaTTM))
	for _, smp := range hist.ebitdaTTM {
		ebitdaVals = append(ebitdaVals, smp.Value)
	}
	reg := Regimes{
		EBITDATrend:  ebitdaTrendRegime(series.Growth(ebitdaVals, 4), cfg),
		FCFStability: ratioStability(hist.fcfRatios, cfg.MinRegimePoints, cfg.FCFStablePositives, cfg.FCFStdevTight, cfg.FCFVolatilePositives, cfg.FCFStdevLoose),
		OCFStability: ratioStability(hist.ocfRatios, cfg.MinRegimePoints, cfg.OCFStablePositives, cfg.OCFStdevTight, cfg.OCFVolatilePositives, cfg.OCFStdevLoose),
		MarginRegime: marginRegime(hist.margins, cfg.MinRegimePoints, cfg.MarginStdevCollapse),
	}
	if reg.EBITDATrend == RegimeUnknown {
		s.warns.add(WarnMissingEBITDATrend)
	}
	if reg.FCFStability == RegimeUnknown {
		s.warns.add(WarnFCFRegimeUnknown)
	}
	if reg.OCFStability == RegimeUnknown {
		s.warns.add(WarnOCFRegimeUnknown)
	}
	if reg.MarginRegime == RegimeUnknown {
		s.warns.add(WarnMarginRegimeUnknown)
	}

	mp, haveMP := metricsAt(metrics, a.time, cfg.MetricsAlignMaxDays)

	revGrowth := medianGrowth(hist.revenueTTM)
	if !revGrowth.ok {
		s.warns.add(WarnMissingRevenueTrend)
	}

	var nres *narrative.Result
	switch {
	case in.Narrative != nil:
		nres = in.Narrative
	case len(in.Documents) > 0:
		r := narrative.Classify(in.Documents, narrative.Options{
			Ticker:    in.Ticker,
			WindowEnd: a.time,
			Params:    in.NarrativeOverrides.Apply(nil),
		})
		nres = &r
	default:
		s.warns.add(WarnMissingDocs)
	}
	narrativePts := 0.0
	if nres != nil {
		narrativePts = nres.MdsPoints
	}

	scores := Scores{
		Compression: s.compression(metrics, reg, a),
		Expectation: s.expectation(estimates, revGrowth, narrativePts),
		Operating:   s.operating(reg, revGrowth, hist.capexRatios),
		Positioning: s.positioning(in.ShortInterest, ownership, in.InsiderTrades, mp, haveMP, hist.latestOCF, a),
	}
	scores.Total = clamp(
		scores.Compression.Subtotal+
			scores.Expectation.Subtotal+
			scores.Operating.Subtotal+
			scores.Positioning.Subtotal,
		0, 100)

	return Result{
		Ticker:    in.Ticker,
		AsOf:      a.period,
		Regimes:   reg,
		Scores:    scores,
		Narrative: nres,
		Warnings:  s.warns.list,
	}
}

func (s *scorer) compressionBand(ratio float64) float64 {
	switch {
	case ratio <= s.cfg.CompressionDeep:
		return 20
	case ratio <= s.cfg.CompressionMid:
		return 12
	case ratio <= s.cfg.CompressionLight:
		return 6
	}
	return 0
}

func (s *scorer) expansionBand(ratio float64) float64 {
	switch {
	case ratio >= s.cfg.ExpansionStrong:
		return 10
	case ratio >= s.cfg.ExpansionMid:
		return 6
	case ratio >= s.cfg.ExpansionLight:
		return 3
	}
	return 0
}

// windowScore rates the latest observation against the median of the
// trailing window. Windows shorter than HistoryMin are scaled by
// available/HistoryMin and flagged.
func (s *scorer) windowScore(vals []float64, window int, band func(float64) float64, short Warning) (opt, float64) {
	if len(vals) == 0 {
		return opt{}, 0
	}
	w := vals
	if len(w) > window {
		w = w[len(w)-window:]
	}
	med, ok := series.Median(w)
	if !ok || med <= 0 {
		return opt{}, 0
	}
	ratio := w[len(w)-1] / med
	score := band(ratio)
	if len(w) < s.cfg.HistoryMin {
		score *= float64(len(w)) / float64(s.cfg.HistoryMin)
		s.warns.add(short)
	}
	return some(ratio), score
}

func (s *scorer) compression(metrics []models.MetricsPoint, reg Regimes, a asOf) CompressionScore {
	c := CompressionScore{}

	evVals := metricSeriesAt(metrics, func(m models.MetricsPoint) *float64 { return m.EVToEBITDA }, a.time, 0)
	multiples := make([]float64, 0, len(evVals))
	for _, v := range evVals {
		if v > 0 {
			multiples = append(multiples, v)
		}
	}
	if len(multiples) == 0 {
		s.warns.add(WarnMissingHistoryEVEBITDA)
	} else {
		cur := multiples[len(multiples)-1]
		c.EVToEBITDA = &cur
		shortRatio, shortScore := s.windowScore(multiples, s.cfg.WindowShort, s.compressionBand, WarnShortHistoryEVEBITDA)
		longRatio, longScore := s.windowScore(multiples, s.cfg.WindowLong, s.compressionBand, WarnShortHistoryEVEBITDA)
		c.ShortWindowRatio = shortRatio.ptr()
		c.LongWindowRatio = longRatio.ptr()
		c.CompressionScore = math.Min(shortScore, longScore)
	}

	yields := metricSeriesAt(metrics, func(m models.MetricsPoint) *float64 { return m.FreeCashFlowYld }, a.time, 0)
	if len(yields) == 0 {
		s.warns.add(WarnMissingHistoryFCFYield)
	} else {
		cur := yields[len(yields)-1]
		c.FCFYield = &cur
		_, shortScore := s.windowScore(yields, s.cfg.WindowShort, s.expansionBand, WarnShortHistoryFCFYield)
		_, longScore := s.windowScore(yields, s.cfg.WindowLong, s.expansionBand, WarnShortHistoryFCFYield)
		expansion := math.Min(shortScore, longScore)
		// Yield expansion only counts when the cash flows behind it hold up.
		switch reg.FCFStability {
		case RegimeStable:
		case RegimeVolatile:
			expansion *= 0.5
		default:
			expansion = 0
		}
		c.ExpansionScore = expansion
	}

	c.Subtotal = clamp(c.CompressionScore+c.ExpansionScore, 0, 30)
	return c
}

func estimateSeries(estimates []models.EstimatePoint, value func(models.EstimatePoint) *float64) []float64 {
	var vals []float64
	for _, e := range estimates {
		if v := value(e); v != nil && !math.IsNaN(*v) {
			vals = append(vals, *v)
		}
	}
	return vals
}

func (s *scorer) expectation(estimates []models.EstimatePoint, revGrowth opt, narrativePts float64) ExpectationScore {
	x := ExpectationScore{NarrativePoints: narrativePts}

	eps := estimateSeries(estimates, func(e models.EstimatePoint) *float64 { return e.EPSAvg })
	if len(eps) < 4 || eps[len(eps)-4] == 0 {
		s.warns.add(WarnMissingEstimates)
	} else {
		latest, prior := eps[len(eps)-1], eps[len(eps)-4]
		drop := (prior - latest) / math.Abs(prior)
		x.EPSDrop = &drop
		if drop > s.cfg.EPSDropThreshold {
			holding, known := s.revenueHoldingUp(estimates, revGrowth)
			if known {
				x.RevenueHoldingUp = &holding
			}
			if known && holding {
				x.ResetScore = 10
			} else {
				x.ResetScore = 5
			}
		}
	}

	x.Subtotal = clamp(x.ResetScore+narrativePts, 0, 25)
	return x
}

// revenueHoldingUp checks whether revenue expectations survived the EPS cut,
// falling back to the trailing revenue trend when revenue estimates are
// absent.
func (s *scorer) revenueHoldingUp(estimates []models.EstimatePoint, revGrowth opt) (holding, known bool) {
	rev := estimateSeries(estimates, func(e models.EstimatePoint) *float64 { return e.RevenueAvg })
	if len(rev) >= 4 && rev[len(rev)-4] != 0 {
		latest, prior := rev[len(rev)-1], rev[len(rev)-4]
		drop := (prior - latest) / math.Abs(prior)
		return drop < s.cfg.RevenueDropThreshold, true
	}
	if revGrowth.ok {
		return revGrowth.val >= -s.cfg.RevenueDropThreshold, true
	}
	return false, false
}

func (s *scorer) operating(reg Regimes, revGrowth opt, capexRatios []float64) OperatingScore {
	o := OperatingScore{}

	declining := revGrowth.ok && revGrowth.val < 0
	if revGrowth.ok {
		o.RevenueDeclining = &declining
	}

	switch {
	case reg.MarginRegime == RegimeStable && declining:
		o.MarginDefense = 10
	case reg.MarginRegime == RegimeStable || reg.MarginRegime == RegimeSlightDecline:
		o.MarginDefense = 5
	}

	switch reg.OCFStability {
	case RegimeStable:
		o.OCFScore = 10
	case RegimeVolatile:
		o.OCFScore = 5
	}

	if len(capexRatios) < 2 {
		s.warns.add(WarnMissingCapex)
	} else {
		slope, _ := series.Slope(capexRatios)
		o.CapexSlope = &slope
		switch {
		case slope <= 0:
			o.CapexScore = 5
		case declining && slope <= s.cfg.CapexFlatEps:
			o.CapexScore = 3
		}
	}

	o.Subtotal = clamp(o.MarginDefense+o.OCFScore+o.CapexScore, 0, 25)
	return o
}

func (s *scorer) positioning(short *models.ShortInterest, ownership []models.OwnershipPoint, insider []models.InsiderTrade, mp models.MetricsPoint, haveMP bool, latestOCF opt, a asOf) PositioningScore {
	p := PositioningScore{}

	if short == nil {
		s.warns.add(WarnMissingShortInterest)
	} else {
		pct := short.PctOfFloat
		p.ShortInterestPct = &pct
		// Extreme crowding caps the appeal: squeezes cut both ways.
		switch {
		case pct >= s.cfg.ShortExtreme:
			p.ShortInterestScore = 5
		case pct >= s.cfg.ShortElevated:
			p.ShortInterestScore = 10
		}
	}

	if len(ownership) < 3 {
		s.warns.add(WarnMissingOwnership)
	} else {
		latest, prior := ownership[len(ownership)-1], ownership[len(ownership)-3]
		dropped := func(now, then *float64) bool {
			if now == nil || then == nil || *then <= 0 {
				return false
			}
			return (*then - *now) / *then >= s.cfg.CapitulationDrop
		}
		if (dropped(latest.InvestorsHolding, prior.InvestorsHolding) ||
			dropped(latest.SharesHeld, prior.SharesHeld)) &&
			latestOCF.ok && latestOCF.val > 0 {
			p.CapitulationScore = 10
		}
	}

	if len(insider) == 0 {
		s.warns.add(WarnMissingInsiderTrades)
	} else {
		end := a.time
		if end.IsZero() {
			if i, t := latestParseable(insider, func(r models.InsiderTrade) string { return r.TransactionDate }); i >= 0 {
				end = t
			}
		}
		start := end.AddDate(0, 0, -s.cfg.InsiderWindowDays)
		net := 0.0
		counted := false
		for _, tr := range insider {
			t, ok := models.ParsePeriod(tr.TransactionDate)
			if !ok || tr.TransactionValue == nil {
				continue
			}
			if t.Before(start) || t.After(end) {
				continue
			}
			net += *tr.TransactionValue
			counted = true
		}
		if counted {
			p.InsiderNetValue = &net
			threshold := s.cfg.InsiderMinValue
			if haveMP && mp.MarketCap != nil && *mp.MarketCap > 0 {
				threshold = math.Min(threshold, s.cfg.InsiderMinPctMktCap * *mp.MarketCap)
			}
			if net > threshold {
				p.InsiderScore = 5
			}
		}
	}

	p.Subtotal = clamp(p.ShortInterestScore+p.CapitulationScore+p.InsiderScore, 0, 20)
	return p
}
