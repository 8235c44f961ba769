package peers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/models"
)

func universeOf(industryCount, sectorOnlyCount, otherCount int) []models.UniverseMetric {
	var u []models.UniverseMetric
	for i := 0; i < industryCount; i++ {
		u = append(u, models.UniverseMetric{
			Ticker: fmt.Sprintf("IND%d", i), Sector: "Industrials", Industry: "Machinery",
		})
	}
	for i := 0; i < sectorOnlyCount; i++ {
		u = append(u, models.UniverseMetric{
			Ticker: fmt.Sprintf("SEC%d", i), Sector: "Industrials", Industry: "Aerospace",
		})
	}
	for i := 0; i < otherCount; i++ {
		u = append(u, models.UniverseMetric{
			Ticker: fmt.Sprintf("OTH%d", i), Sector: "Energy", Industry: "Oil & Gas",
		})
	}
	return u
}

func TestResolve_IndustryWinsWhenLargeEnough(t *testing.T) {
	r := Resolve("Machinery", "Industrials", universeOf(15, 10, 10), 15)

	assert.Equal(t, LevelIndustry, r.Level)
	assert.Len(t, r.Peers, 15)
	assert.False(t, r.TooSmall)
}

func TestResolve_FallsToSectorAtFourteenIndustryPeers(t *testing.T) {
	r := Resolve("Machinery", "Industrials", universeOf(14, 10, 10), 15)

	assert.Equal(t, LevelSector, r.Level)
	assert.Len(t, r.Peers, 24)
}

func TestResolve_FallsToUniverseWhenSectorThin(t *testing.T) {
	r := Resolve("Machinery", "Industrials", universeOf(5, 5, 10), 15)

	assert.Equal(t, LevelUniverse, r.Level)
	assert.Len(t, r.Peers, 20)
	assert.False(t, r.TooSmall)
}

func TestResolve_MedianModeOnTinyUniverse(t *testing.T) {
	r := Resolve("Machinery", "Industrials", universeOf(3, 2, 4), 15)

	assert.Equal(t, LevelMedian, r.Level)
	assert.True(t, r.TooSmall)
	// Median mode still prefers the sector subset over strangers.
	assert.Len(t, r.Peers, 5)
}

func TestResolve_MedianModeUsesUniverseWhenSectorEmpty(t *testing.T) {
	r := Resolve("Machinery", "Utilities", universeOf(0, 0, 4), 15)

	assert.Equal(t, LevelMedian, r.Level)
	assert.Len(t, r.Peers, 4)
}

func TestResolve_MatchingIsCaseInsensitiveAndTrimmed(t *testing.T) {
	u := universeOf(15, 0, 0)
	r := Resolve("  machinery ", "industrials", u, 15)

	assert.Equal(t, LevelIndustry, r.Level)
}

func TestResolve_EmptyClassificationNeverMatches(t *testing.T) {
	u := []models.UniverseMetric{}
	for i := 0; i < 20; i++ {
		u = append(u, models.UniverseMetric{Ticker: fmt.Sprintf("X%d", i)})
	}
	r := Resolve("", "", u, 15)

	// Blank industry and sector match nothing; the whole universe rung
	// still applies.
	assert.Equal(t, LevelUniverse, r.Level)
}

func TestEVToEBITDA_DropsNonPositive(t *testing.T) {
	pos, neg := 8.0, -3.0
	peers := []models.UniverseMetric{
		{Ticker: "A", EVToEBITDA: &pos},
		{Ticker: "B", EVToEBITDA: &neg},
		{Ticker: "C"},
	}
	got := EVToEBITDA(peers)

	require.Len(t, got, 1)
	assert.Equal(t, 8.0, got[0])
}
