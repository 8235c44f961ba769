// Package series provides the deterministic time-series and distribution
// helpers shared by the scoring engines: period-aware sorting, percentile
// math, trailing-twelve-month aggregation, and nearest-date alignment.
//
// Scalar helpers return (value, ok). Empty or unusable input yields ok=false,
// never a fabricated zero, so callers can tell "computed as zero" apart from
// "could not be computed".
package series

import (
	"math"
	"sort"
	"time"

	"github.com/sawpanic/stresslens/internal/models"
)

// Point is one dated observation whose value may be missing.
type Point struct {
	Period string
	Value  *float64
}

// Sample is one dated observation known to be present.
type Sample struct {
	Period string
	Time   time.Time
	Value  float64
}

// SortByPeriod sorts rows chronologically ascending by their period key,
// stable for equal dates. Rows whose key does not parse keep their original
// index positions; parseable rows are ordered among the remaining slots.
func SortByPeriod[T any](rows []T, period func(T) string) {
	idx := make([]int, 0, len(rows))
	times := make(map[int]time.Time, len(rows))
	for i, r := range rows {
		if t, ok := models.ParsePeriod(period(r)); ok {
			idx = append(idx, i)
			times[i] = t
		}
	}
	order := make([]int, len(idx))
	copy(order, idx)
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})
	sorted := make([]T, len(order))
	for k, i := range order {
		sorted[k] = rows[i]
	}
	for k, i := range idx {
		rows[i] = sorted[k]
	}
}

// Median returns the middle value of values, averaging the two middle values
// for even counts.
func Median(values []float64) (float64, bool) {
	return Percentile(values, 50)
}

// Percentile returns the p-th percentile of values (p in [0,100]) with
// linear interpolation between closest ranks.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0], true
	}
	if p >= 100 {
		return sorted[len(sorted)-1], true
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], true
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), true
}

// PercentileRank returns the percentile rank of v within values as the
// inclusive fraction of values <= v, scaled to [0,100].
func PercentileRank(values []float64, v float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	count := 0
	for _, x := range values {
		if x <= v {
			count++
		}
	}
	return float64(count) / float64(len(values)) * 100, true
}

// Stdev returns the population standard deviation of values (divisor N).
func Stdev(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance), true
}

// Slope returns the endpoint slope (last-first)/(N-1). Fewer than two
// observations have no slope.
func Slope(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	return (values[len(values)-1] - values[0]) / float64(len(values)-1), true
}

// Sum adds the values, propagating absence: any nil or NaN element makes the
// whole sum unavailable.
func Sum(values []*float64) (float64, bool) {
	total := 0.0
	for _, v := range values {
		if v == nil || math.IsNaN(*v) {
			return 0, false
		}
		total += *v
	}
	return total, true
}

// Growth returns period-over-period growth rates of values at the given lag
// (lag 4 on a quarterly series is year over year). Pairs whose base is zero
// are skipped; growth against a negative base is measured against its
// magnitude so that an improving series reports positive growth.
func Growth(values []float64, lag int) []float64 {
	if lag <= 0 || len(values) <= lag {
		return nil
	}
	out := make([]float64, 0, len(values)-lag)
	for i := lag; i < len(values); i++ {
		base := values[i-lag]
		if base == 0 {
			continue
		}
		out = append(out, (values[i]-base)/math.Abs(base))
	}
	return out
}

// RollingTTM sums each window of four consecutive chronological points,
// dating the result by the window's last quarter. A window containing any
// missing value is omitted entirely rather than padded, so N fully populated
// points yield exactly N-3 sums. Points must already be in chronological
// order; points whose period does not parse are excluded beforehand.
func RollingTTM(points []Point) []Sample {
	usable := make([]Point, 0, len(points))
	parsed := make([]time.Time, 0, len(points))
	for _, p := range points {
		t, ok := models.ParsePeriod(p.Period)
		if !ok {
			continue
		}
		usable = append(usable, p)
		parsed = append(parsed, t)
	}

	var out []Sample
	for i := 3; i < len(usable); i++ {
		window := usable[i-3 : i+1]
		sum := 0.0
		complete := true
		for _, p := range window {
			if p.Value == nil || math.IsNaN(*p.Value) {
				complete = false
				break
			}
			sum += *p.Value
		}
		if !complete {
			continue
		}
		out = append(out, Sample{Period: usable[i].Period, Time: parsed[i], Value: sum})
	}
	return out
}

// NearestByDate returns the index of the period closest to target within
// maxDays. Unparseable periods are skipped; when two periods are equally
// close the earlier index wins.
func NearestByDate(periods []string, target time.Time, maxDays int) (int, bool) {
	best := -1
	var bestDiff time.Duration
	limit := time.Duration(maxDays) * 24 * time.Hour
	for i, p := range periods {
		t, ok := models.ParsePeriod(p)
		if !ok {
			continue
		}
		diff := target.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff > limit {
			continue
		}
		if best == -1 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best, best != -1
}

// Winsorize returns a copy of values with elements below the loPct percentile
// raised to it and elements above the hiPct percentile lowered to it.
func Winsorize(values []float64, loPct, hiPct float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	lo, _ := Percentile(values, loPct)
	hi, _ := Percentile(values, hiPct)
	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}

// Collect extracts the present values of points in order.
func Collect(points []Point) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Value != nil && !math.IsNaN(*p.Value) {
			out = append(out, *p.Value)
		}
	}
	return out
}

// PointsOf projects rows into dated points through the given accessors.
func PointsOf[T any](rows []T, period func(T) string, value func(T) *float64) []Point {
	out := make([]Point, 0, len(rows))
	for _, r := range rows {
		out = append(out, Point{Period: period(r), Value: value(r)})
	}
	return out
}

// SortedByPeriod returns a chronologically sorted copy of rows, leaving the
// caller's slice untouched. Engines use this to honor input immutability.
func SortedByPeriod[T any](rows []T, period func(T) string) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	SortByPeriod(out, period)
	return out
}
