// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consistency scores agreement between how detailed a description is
// and how expensive the item is. Both inputs are percentile ranks on [0,1],
// so the comparison is unit-free. A large divergence (thin text on an
// expensive item, or the reverse) is a risk proxy, not a quality verdict.
package consistency

import (
	"math"

	"github.com/pdiddy/quality-engine/internal/stats"
)

// Score returns 1 - |textScore - priceRank| clipped to [0,1]. Without a
// price the agreement cannot be evaluated and the score is 0.
func Score(textScore, priceRank float64, hasPrice bool) float64 {
	if !hasPrice {
		return 0
	}
	return stats.Clip01(1 - math.Abs(textScore-priceRank))
}
