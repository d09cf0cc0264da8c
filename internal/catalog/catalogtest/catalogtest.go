// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalogtest generates synthetic catalogs for tests and demos. Each
// item is drawn from one of three hidden tiers; higher tiers have longer
// descriptions, tier-specific vocabulary and higher prices, so the weak
// labels computed from them are learnable from text and price.
package catalogtest

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pdiddy/quality-engine/pkg/types"
)

var tierWords = [types.NumClasses][]string{
	{"cheap", "basic", "plastic", "simple", "small", "generic", "lite", "budget", "thin", "disposable"},
	{"durable", "cotton", "standard", "classic", "reliable", "everyday", "steel", "practical", "sturdy", "washable"},
	{"premium", "handcrafted", "leather", "organic", "professional", "ergonomic", "stainless", "luxury", "certified", "warranty"},
}

var commonWords = []string{"item", "product", "color", "pack", "size", "quality", "design", "use", "home", "gift"}

var tierShare = [types.NumClasses]float64{0.57, 0.21, 0.22}

// Corpus returns n synthetic items. The output is a pure function of n and
// seed. About 2% of items have no price and 1% have no description.
func Corpus(n int, seed int64) []types.CatalogItem {
	rng := rand.New(rand.NewSource(seed))
	items := make([]types.CatalogItem, n)
	for i := range items {
		tier := pickTier(rng.Float64())
		item := types.CatalogItem{
			ID:       fmt.Sprintf("item-%05d", i),
			ImageURL: fmt.Sprintf("https://images.example.com/%05d.jpg", i),
		}
		if rng.Float64() >= 0.01 {
			item.Description = describe(rng, tier)
		}
		if rng.Float64() >= 0.02 {
			mu := []float64{2.3, 2.8, 2.8}[tier]
			item.Price = types.Price(math.Round(math.Exp(mu+0.2*rng.NormFloat64())*100) / 100)
		}
		items[i] = item
	}
	return items
}

func pickTier(u float64) int {
	for t, share := range tierShare {
		if u < share {
			return t
		}
		u -= share
	}
	return types.NumClasses - 1
}

func describe(rng *rand.Rand, tier int) string {
	var n int
	switch tier {
	case 0:
		n = 2 + rng.Intn(12)
	case 1:
		n = 25 + rng.Intn(30)
	default:
		n = 80 + rng.Intn(80)
	}
	words := make([]string, n)
	for i := range words {
		if rng.Float64() < 0.7 {
			list := tierWords[tier]
			words[i] = list[rng.Intn(len(list))]
		} else {
			words[i] = commonWords[rng.Intn(len(commonWords))]
		}
	}
	return strings.Join(words, " ")
}

// Embeddings returns a random unit-variance vector of length dim per item,
// independent of anything else about the item.
func Embeddings(items []types.CatalogItem, dim int, seed int64) map[string][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make(map[string][]float64, len(items))
	for _, it := range items {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.NormFloat64()
		}
		out[it.ID] = v
	}
	return out
}
