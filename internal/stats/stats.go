// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stats holds the frozen corpus-level statistics shared by the
// signal extractors and the feature pipeline: percentile rank tables,
// quantiles, medians and population moments.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RankTable is an immutable sorted sample. Ranks are computed against it
// without ever modifying it, so concurrent readers need no locking.
type RankTable struct {
	Values []float64 `json:"values" yaml:"values"`
}

// NewRankTable copies and sorts values.
func NewRankTable(values []float64) RankTable {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return RankTable{Values: sorted}
}

// Len returns the sample size.
func (t RankTable) Len() int {
	return len(t.Values)
}

// Rank returns the percentile rank of x in [0,1]: the number of sample
// values strictly below x divided by n-1, clipped. The smallest sample value
// ranks 0 and the largest ranks 1. Rank is non-decreasing in x.
func (t RankTable) Rank(x float64) float64 {
	n := len(t.Values)
	switch n {
	case 0:
		return 0
	case 1:
		if x <= t.Values[0] {
			return 0
		}
		return 1
	}
	below := sort.SearchFloat64s(t.Values, x)
	return Clip01(float64(below) / float64(n-1))
}

// Quantile returns the p-quantile of sorted, interpolating linearly between
// the order statistics at positions (n-1)p (Hyndman-Fan type 7). It returns
// NaN for an empty sample.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * Clip01(p)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// EmpiricalQuantile returns the smallest sample value whose cumulative
// fraction reaches p. The result is always a member of sorted.
func EmpiricalQuantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	return stat.Quantile(Clip01(p), stat.Empirical, sorted, nil)
}

// Median returns the middle value of sorted, averaging the two middle values
// for even sizes. It returns NaN for an empty sample.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MeanStd returns the population mean and standard deviation of values.
// Samples with fewer than two values have zero deviation.
func MeanStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	n := float64(len(values))
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// Clip01 bounds v to [0,1]. NaN maps to 0.
func Clip01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
