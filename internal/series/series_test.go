package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestSortByPeriod_ChronologicalAscending(t *testing.T) {
	rows := []Point{
		{Period: "2024-06-30", Value: f(2)},
		{Period: "2023-12-31", Value: f(1)},
		{Period: "2024-09-30", Value: f(3)},
	}
	SortByPeriod(rows, func(p Point) string { return p.Period })

	assert.Equal(t, "2023-12-31", rows[0].Period)
	assert.Equal(t, "2024-06-30", rows[1].Period)
	assert.Equal(t, "2024-09-30", rows[2].Period)
}

func TestSortByPeriod_UnparseableRowsKeepTheirSlots(t *testing.T) {
	rows := []Point{
		{Period: "2024-09-30"},
		{Period: "not-a-date"},
		{Period: "2023-12-31"},
		{Period: "2024-03-31"},
	}
	SortByPeriod(rows, func(p Point) string { return p.Period })

	// Parseable rows are ordered among indexes 0, 2, 3; the junk row stays
	// exactly where it was.
	assert.Equal(t, "2023-12-31", rows[0].Period)
	assert.Equal(t, "not-a-date", rows[1].Period)
	assert.Equal(t, "2024-03-31", rows[2].Period)
	assert.Equal(t, "2024-09-30", rows[3].Period)
}

func TestMedian_OddAndEvenCounts(t *testing.T) {
	m, ok := Median([]float64{3, 1, 2})
	require.True(t, ok)
	assert.Equal(t, 2.0, m)

	m, ok = Median([]float64{4, 1, 3, 2})
	require.True(t, ok)
	assert.Equal(t, 2.5, m)
}

func TestMedian_EmptyIsUnavailable(t *testing.T) {
	_, ok := Median(nil)
	assert.False(t, ok)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	p, ok := Percentile(values, 25)
	require.True(t, ok)
	assert.InDelta(t, 17.5, p, 1e-9)

	p, ok = Percentile(values, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, p)

	p, ok = Percentile(values, 100)
	require.True(t, ok)
	assert.Equal(t, 40.0, p)
}

func TestPercentileRank_InclusiveOfEqualValues(t *testing.T) {
	values := []float64{1, 2, 2, 3, 4}

	r, ok := PercentileRank(values, 2)
	require.True(t, ok)
	assert.InDelta(t, 60.0, r, 1e-9)

	r, ok = PercentileRank(values, 0.5)
	require.True(t, ok)
	assert.Equal(t, 0.0, r)

	_, ok = PercentileRank(nil, 1)
	assert.False(t, ok)
}

func TestStdev_PopulationDivisor(t *testing.T) {
	s, ok := Stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 2.0, s, 1e-9)

	s, ok = Stdev([]float64{5})
	require.True(t, ok)
	assert.Equal(t, 0.0, s)
}

func TestSlope_EndpointsOnly(t *testing.T) {
	s, ok := Slope([]float64{1, 100, -50, 7})
	require.True(t, ok)
	assert.InDelta(t, 2.0, s, 1e-9)

	_, ok = Slope([]float64{1})
	assert.False(t, ok)
}

func TestSum_NilAndNaNPropagate(t *testing.T) {
	total, ok := Sum([]*float64{f(1), f(2), f(3)})
	require.True(t, ok)
	assert.Equal(t, 6.0, total)

	_, ok = Sum([]*float64{f(1), nil, f(3)})
	assert.False(t, ok)

	_, ok = Sum([]*float64{f(1), f(math.NaN())})
	assert.False(t, ok)

	total, ok = Sum(nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, total)
}

func TestGrowth_SkipsZeroBase(t *testing.T) {
	got := Growth([]float64{100, 0, 110, 50}, 2)
	// 110 vs 100 = +10%; 50 vs 0 skipped.
	require.Len(t, got, 1)
	assert.InDelta(t, 0.10, got[0], 1e-9)
}

func TestGrowth_NegativeBaseUsesMagnitude(t *testing.T) {
	got := Growth([]float64{-100, -50}, 1)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0], 1e-9)
}

func TestRollingTTM_FourQuartersYieldOnePoint(t *testing.T) {
	points := []Point{
		{Period: "2023-12-31", Value: f(100)},
		{Period: "2024-03-31", Value: f(100)},
		{Period: "2024-06-30", Value: f(100)},
		{Period: "2024-09-30", Value: f(100)},
	}
	got := RollingTTM(points)

	require.Len(t, got, 1)
	assert.Equal(t, "2024-09-30", got[0].Period)
	assert.Equal(t, 400.0, got[0].Value)
}

func TestRollingTTM_FullHistoryEmitsNMinusThree(t *testing.T) {
	points := make([]Point, 8)
	for i := range points {
		points[i] = Point{
			Period: time.Date(2023, time.Month(3*(i+1)), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Value:  f(float64(i + 1)),
		}
	}
	got := RollingTTM(points)

	require.Len(t, got, 5)
	assert.Equal(t, 1.0+2+3+4, got[0].Value)
	assert.Equal(t, 5.0+6+7+8, got[4].Value)
}

func TestRollingTTM_MissingQuarterDropsWindowsTouchingIt(t *testing.T) {
	points := []Point{
		{Period: "2023-03-31", Value: f(10)},
		{Period: "2023-06-30", Value: f(10)},
		{Period: "2023-09-30", Value: nil},
		{Period: "2023-12-31", Value: f(10)},
		{Period: "2024-03-31", Value: f(10)},
		{Period: "2024-06-30", Value: f(10)},
		{Period: "2024-09-30", Value: f(10)},
	}
	got := RollingTTM(points)

	// Only the final window avoids the gap.
	require.Len(t, got, 1)
	assert.Equal(t, "2024-09-30", got[0].Period)
	assert.Equal(t, 40.0, got[0].Value)
}

func TestNearestByDate_TiePrefersEarlierIndex(t *testing.T) {
	periods := []string{"2024-01-10", "2024-01-20"}
	target := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	i, ok := NearestByDate(periods, target, 30)
	require.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestNearestByDate_ToleranceExcludesFarDates(t *testing.T) {
	periods := []string{"2023-01-01", "garbage"}
	target := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := NearestByDate(periods, target, 90)
	assert.False(t, ok)
}

func TestWinsorize_ClampsTails(t *testing.T) {
	values := []float64{1, 2, 3, 4, 100}
	got := Winsorize(values, 5, 95)

	lo, _ := Percentile(values, 5)
	hi, _ := Percentile(values, 95)
	assert.Equal(t, lo, got[0])
	assert.Equal(t, hi, got[4])
	assert.Equal(t, 3.0, got[2])
	// Input untouched.
	assert.Equal(t, 100.0, values[4])
}

func TestCollect_DropsMissingValues(t *testing.T) {
	points := []Point{
		{Period: "2024-03-31", Value: f(1)},
		{Period: "2024-06-30", Value: nil},
		{Period: "2024-09-30", Value: f(3)},
	}
	assert.Equal(t, []float64{1, 3}, Collect(points))
}
