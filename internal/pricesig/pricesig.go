// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pricesig computes the IQR outlier flag, the price sanity score and
// the price rank from frozen training-corpus price statistics.
package pricesig

import (
	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// FenceMultiplier scales the IQR to place the outlier fences.
const FenceMultiplier = 1.5

// Stats are the frozen price statistics of a training corpus. Only valid
// prices (present, finite, positive) contribute; missing prices are excluded,
// never zero-filled.
type Stats struct {
	// Fitted is false when the corpus had no valid price at all.
	Fitted bool `json:"fitted" yaml:"fitted"`

	Q1     float64 `json:"q1" yaml:"q1"`
	Q3     float64 `json:"q3" yaml:"q3"`
	IQR    float64 `json:"iqr" yaml:"iqr"`
	Lower  float64 `json:"lower_fence" yaml:"lower_fence"`
	Upper  float64 `json:"upper_fence" yaml:"upper_fence"`
	Median float64 `json:"median" yaml:"median"`

	Ranks stats.RankTable `json:"ranks" yaml:"ranks"`
}

// Fit freezes price statistics over the valid prices of items.
func Fit(items []types.CatalogItem) Stats {
	var prices []float64
	for _, it := range items {
		if p, ok := it.ValidPrice(); ok {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return Stats{}
	}

	ranks := stats.NewRankTable(prices)
	sorted := ranks.Values
	q1 := stats.Quantile(sorted, 0.25)
	q3 := stats.Quantile(sorted, 0.75)
	iqr := q3 - q1

	return Stats{
		Fitted: true,
		Q1:     q1,
		Q3:     q3,
		IQR:    iqr,
		Lower:  q1 - FenceMultiplier*iqr,
		Upper:  q3 + FenceMultiplier*iqr,
		Median: stats.Median(sorted),
		Ranks:  ranks,
	}
}

// Signals holds the price-derived signals for one item.
type Signals struct {
	HasPrice    bool
	IsOutlier   bool
	SanityScore float64
	Rank        float64
}

// Score derives the price signals for item. A missing price, or any price
// scored against unfitted statistics, is the worst case: outlier with zero
// sanity.
func (s Stats) Score(item types.CatalogItem) Signals {
	p, ok := item.ValidPrice()
	if !ok || !s.Fitted {
		return Signals{IsOutlier: true}
	}
	return Signals{
		HasPrice:    true,
		IsOutlier:   s.IsOutlier(p),
		SanityScore: s.Sanity(p),
		Rank:        s.Ranks.Rank(p),
	}
}

// IsOutlier applies the IQR rule. It depends on nothing but p and the fences.
func (s Stats) IsOutlier(p float64) bool {
	return p < s.Lower || p > s.Upper
}

// Sanity returns 1 inside [Q1, Q3] and decays linearly to 0 at the fences.
func (s Stats) Sanity(p float64) float64 {
	switch {
	case p >= s.Q1 && p <= s.Q3:
		return 1
	case p < s.Q1:
		span := s.Q1 - s.Lower
		if span <= 0 {
			return 0
		}
		return stats.Clip01((p - s.Lower) / span)
	default:
		span := s.Upper - s.Q3
		if span <= 0 {
			return 0
		}
		return stats.Clip01((s.Upper - p) / span)
	}
}
