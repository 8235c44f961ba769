package mds

import "github.com/sawpanic/stresslens/internal/series"

// ebitdaTrendRegime labels the YoY growth series of TTM EBITDA.
// Collapse wins on median below the collapse cutoff or on two
// consecutive observations below it.
func ebitdaTrendRegime(growths []float64, cfg *Config) string {
	if len(growths) == 0 {
		return RegimeUnknown
	}
	med, _ := series.Median(growths)
	consecutive := 0
	twoBelow := false
	for _, g := range growths {
		if g < cfg.EBITDACollapseAt {
			consecutive++
			if consecutive >= 2 {
				twoBelow = true
			}
		} else {
			consecutive = 0
		}
	}
	switch {
	case med < cfg.EBITDACollapseAt || twoBelow:
		return RegimeCollapse
	case med < cfg.EBITDAFlatMin:
		return RegimeMild
	default:
		return RegimeFlat
	}
}

// ratioStability labels a trailing ratio-to-revenue series. Stable needs
// a high share of positive observations and a tight stdev; volatile
// tolerates a looser spread; everything else is deteriorating.
func ratioStability(ratios []float64, minPts int, stablePositives, stdevTight, volatilePositives, stdevLoose float64) string {
	if len(ratios) < minPts {
		return RegimeUnknown
	}
	positives := 0
	for _, r := range ratios {
		if r > 0 {
			positives++
		}
	}
	share := float64(positives) / float64(len(ratios))
	sd, ok := series.Stdev(ratios)
	if !ok {
		return RegimeUnknown
	}
	switch {
	case share >= stablePositives && sd < stdevTight:
		return RegimeStable
	case share >= volatilePositives && sd < stdevLoose:
		return RegimeVolatile
	default:
		return RegimeDeteriorating
	}
}

// marginRegime labels the trailing gross-margin series.
func marginRegime(margins []float64, minPts int, stdevCollapse float64) string {
	if len(margins) < minPts {
		return RegimeUnknown
	}
	sd, ok := series.Stdev(margins)
	if !ok {
		return RegimeUnknown
	}
	if sd > stdevCollapse {
		return RegimeCollapse
	}
	slope, ok := series.Slope(margins)
	if !ok {
		return RegimeUnknown
	}
	if slope >= 0 {
		return RegimeStable
	}
	return RegimeSlightDecline
}
