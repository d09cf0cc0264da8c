// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankTable(t *testing.T) {
	table := NewRankTable([]float64{30, 10, 20, 20, 40})

	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"below minimum", 0, 0},
		{"minimum", 10, 0},
		{"tied middle", 20, 0.25},
		{"between", 25, 0.75},
		{"maximum", 40, 1},
		{"above maximum clips", 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, table.Rank(tt.x), 1e-12)
		})
	}
}

func TestNewRankTableDoesNotAliasInput(t *testing.T) {
	in := []float64{3, 1, 2}
	table := NewRankTable(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
	assert.Equal(t, []float64{1, 2, 3}, table.Values)
}

func TestRankTableSmallSamples(t *testing.T) {
	assert.Equal(t, 0.0, RankTable{}.Rank(5))

	single := NewRankTable([]float64{7})
	assert.Equal(t, 0.0, single.Rank(7))
	assert.Equal(t, 0.0, single.Rank(3))
	assert.Equal(t, 1.0, single.Rank(8))
}

func TestRankIsMonotone(t *testing.T) {
	table := NewRankTable([]float64{1, 5, 5, 9, 14, 30, 200})
	prev := -1.0
	for x := 0.0; x <= 250; x += 0.5 {
		r := table.Rank(x)
		require.GreaterOrEqual(t, r, prev, "rank decreased at x=%v", x)
		prev = r
	}
}

func TestQuantiles(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
	assert.True(t, math.IsNaN(EmpiricalQuantile(nil, 0.5)))

	q1, q3 := Quantile(sorted, 0.25), Quantile(sorted, 0.75)
	assert.LessOrEqual(t, q1, q3)
	assert.GreaterOrEqual(t, q1, sorted[0])
	assert.LessOrEqual(t, q3, sorted[len(sorted)-1])

	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"lower quartile of eight", sorted, 0.25, 2.75},
		{"upper quartile of eight", sorted, 0.75, 6.25},
		{"lower quartile of tens", tens(), 0.25, 32.5},
		{"upper quartile of tens", tens(), 0.75, 77.5},
		{"median of tens", tens(), 0.5, 55},
		{"minimum", sorted, 0, 1},
		{"maximum", sorted, 1, 8},
		{"p above one clips", sorted, 1.5, 8},
		{"single value", []float64{4}, 0.3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.sorted, tt.p), 1e-12)
		})
	}

	e := EmpiricalQuantile(sorted, 0.57)
	assert.Contains(t, sorted, e)
	assert.Equal(t, 5.0, e)
}

// tens returns 10, 20, ..., 100.
func tens() []float64 {
	out := make([]float64, 10)
	for i := range out {
		out[i] = float64(10 * (i + 1))
	}
	return out
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.Equal(t, 3.0, Median([]float64{1, 3, 9}))
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-12)
	assert.InDelta(t, 2, std, 1e-12)

	mean, std = MeanStd([]float64{3})
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestClip01(t *testing.T) {
	assert.Equal(t, 0.0, Clip01(-0.5))
	assert.Equal(t, 0.0, Clip01(math.NaN()))
	assert.Equal(t, 0.25, Clip01(0.25))
	assert.Equal(t, 1.0, Clip01(3))
}
