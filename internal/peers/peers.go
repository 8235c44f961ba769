// Package peers resolves the comparable-company set used for peer-relative
// valuation scoring. Resolution walks industry, sector, then the whole
// universe, and when even that is too thin it degrades to median mode
// instead of failing.
package peers

import (
	"strings"

	"github.com/sawpanic/stresslens/internal/models"
)

// Level identifies which rung of the fallback ladder produced the peer set.
type Level string

const (
	LevelIndustry Level = "industry"
	LevelSector   Level = "sector"
	LevelUniverse Level = "universe"
	// LevelMedian means no rung reached the minimum peer count. Scoring
	// falls back to comparing against the group median instead of a
	// percentile rank.
	LevelMedian Level = "median"
)

// DefaultMinPeers is the smallest group considered statistically usable for
// percentile ranking.
const DefaultMinPeers = 15

// Resolution is the outcome of a peer lookup.
type Resolution struct {
	Level    Level
	Peers    []models.UniverseMetric
	TooSmall bool
}

func groupMatch(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

func filter(universe []models.UniverseMetric, match func(models.UniverseMetric) bool) []models.UniverseMetric {
	var out []models.UniverseMetric
	for _, u := range universe {
		if match(u) {
			out = append(out, u)
		}
	}
	return out
}

// Resolve picks the peer set for a company classified under the given
// industry and sector. minPeers <= 0 uses DefaultMinPeers.
//
// Ladder: industry members, then sector members, then the entire universe,
// each accepted only at minPeers or more entries. Below that the resolution
// is median mode over the sector subset when it has any members, otherwise
// over the whole universe, and TooSmall is set so the caller can surface a
// peer_set_too_small warning.
func Resolve(industry, sector string, universe []models.UniverseMetric, minPeers int) Resolution {
	if minPeers <= 0 {
		minPeers = DefaultMinPeers
	}

	industryPeers := filter(universe, func(u models.UniverseMetric) bool {
		return groupMatch(u.Industry, industry)
	})
	if len(industryPeers) >= minPeers {
		return Resolution{Level: LevelIndustry, Peers: industryPeers}
	}

	sectorPeers := filter(universe, func(u models.UniverseMetric) bool {
		return groupMatch(u.Sector, sector)
	})
	if len(sectorPeers) >= minPeers {
		return Resolution{Level: LevelSector, Peers: sectorPeers}
	}

	if len(universe) >= minPeers {
		return Resolution{Level: LevelUniverse, Peers: universe}
	}

	fallback := sectorPeers
	if len(fallback) == 0 {
		fallback = universe
	}
	return Resolution{Level: LevelMedian, Peers: fallback, TooSmall: true}
}

// EVToEBITDA collects the positive EV/EBITDA multiples reported by the peer
// set. Non-positive multiples come from negative-EBITDA companies and are
// not comparable, so they are dropped.
func EVToEBITDA(peers []models.UniverseMetric) []float64 {
	out := make([]float64, 0, len(peers))
	for _, p := range peers {
		if p.EVToEBITDA != nil && *p.EVToEBITDA > 0 {
			out = append(out, *p.EVToEBITDA)
		}
	}
	return out
}
