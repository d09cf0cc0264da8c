// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// --- test helpers ---

func labeled(items ...types.CatalogItem) []types.LabeledItem {
	out := make([]types.LabeledItem, len(items))
	for i, it := range items {
		out[i] = types.LabeledItem{
			CatalogItem: it,
			Label:       types.WeakLabel{QualityLabel: types.QualityLabel(i % types.NumClasses)},
		}
	}
	return out
}

// trainOf puts every item in the training partition.
func trainOf(t *testing.T, items ...types.CatalogItem) dataset.Train {
	t.Helper()
	train, _, err := dataset.Split(labeled(items...), types.SplitConfig{ValidationFraction: 0})
	require.NoError(t, err)
	return train
}

func item(id, desc string, price float64) types.CatalogItem {
	it := types.CatalogItem{ID: id, Description: desc}
	if price > 0 {
		it.Price = types.Price(price)
	}
	return it
}

func plainCfg() types.FeatureConfig {
	return types.FeatureConfig{MinDF: 1, MaxDF: 1, NGramMax: 1}
}

// --- tokenizer ---

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation and case", "The Red-Shoe, size 9!", []string{"the", "red", "shoe", "size"}},
		{"digits kept", "Pack of 12 AA batteries", []string{"pack", "of", "12", "aa", "batteries"}},
		{"markup stripped", "<p>Soft</p><p>cotton</p>", []string{"soft", "cotton"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTermsBigramsAfterStopWords(t *testing.T) {
	got := Terms([]string{"the", "red", "shoe", "for", "kids"}, 2, true)
	assert.Equal(t, []string{"red", "shoe", "kids", "red shoe", "shoe kids"}, got)

	got = Terms([]string{"the", "red"}, 1, false)
	assert.Equal(t, []string{"the", "red"}, got)
}

// --- fit ---

func TestFitEmptySplit(t *testing.T) {
	_, err := Fit(dataset.Train{}, plainCfg())
	assert.ErrorIs(t, err, types.ErrCorpusStatisticUndefined)
}

func TestFitDocumentFrequencyPruning(t *testing.T) {
	train := trainOf(t,
		item("1", "apple banana", 1),
		item("2", "apple cherry", 2),
		item("3", "apple banana", 3),
		item("4", "apple durian", 4),
	)
	p, err := Fit(train, types.FeatureConfig{MinDF: 2, MaxDF: 0.9, NGramMax: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"banana"}, p.Terms())
	assert.Equal(t, 2, p.Dim())
	assert.InDelta(t, math.Log(5.0/3.0)+1, p.IDF[0], 1e-12)
}

func TestFitMaxFeaturesKeepsMostFrequent(t *testing.T) {
	train := trainOf(t,
		item("1", "zeta zeta zeta alpha beta", 1),
		item("2", "zeta alpha gamma", 1),
		item("3", "beta gamma", 1),
	)
	cfg := plainCfg()
	cfg.MaxFeatures = 2
	p, err := Fit(train, cfg)
	require.NoError(t, err)

	// zeta: 4, alpha/beta/gamma: 2 each, alpha wins the tie.
	assert.Equal(t, []string{"alpha", "zeta"}, p.Terms())
}

func TestPriceScaler(t *testing.T) {
	var items []types.CatalogItem
	for i, p := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		items = append(items, item(fmt.Sprint(i), "x", p))
	}
	items = append(items, types.CatalogItem{ID: "missing"}, types.CatalogItem{ID: "negative", Price: types.Price(-3)})

	p, err := Fit(trainOf(t, items...), plainCfg())
	require.NoError(t, err)

	assert.InDelta(t, 5.0, p.Price.Mean, 1e-12)
	assert.InDelta(t, 2.0, p.Price.Std, 1e-12)
	assert.InDelta(t, 4.5, p.Price.Median, 1e-12)

	v := p.Transform(types.CatalogItem{ID: "new"})
	require.Equal(t, []int{p.PriceIndex()}, v.Indices)
	assert.InDelta(t, -0.25, v.Values[0], 1e-12)

	v = p.Transform(item("new", "", 9))
	assert.InDelta(t, 2.0, v.Values[len(v.Values)-1], 1e-12)
}

func TestPriceScalerConstantPrices(t *testing.T) {
	p, err := Fit(trainOf(t, item("1", "a", 10), item("2", "b", 10)), plainCfg())
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Price.Std)
	assert.Equal(t, 0.0, p.Price.Scale(item("3", "", 10)))
}

// --- transform ---

func TestTransformNormalizedAndSorted(t *testing.T) {
	train := trainOf(t,
		item("1", "wool socks warm", 10),
		item("2", "cotton socks", 12),
		item("3", "wool hat", 20),
	)
	p, err := Fit(train, plainCfg())
	require.NoError(t, err)

	v := p.Transform(item("x", "warm wool socks socks unknownterm", 15))
	require.True(t, sort.IntsAreSorted(v.Indices))
	assert.Len(t, v.Indices, 4)
	assert.Equal(t, p.PriceIndex(), v.Indices[len(v.Indices)-1])

	var norm float64
	for _, x := range v.Values[:len(v.Values)-1] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-12)
	for _, i := range v.Indices {
		assert.Less(t, i, p.Dim())
	}
}

func TestTransformOutOfVocabularyIgnored(t *testing.T) {
	p, err := Fit(trainOf(t, item("1", "lamp shade", 5), item("2", "desk lamp", 7)), plainCfg())
	require.NoError(t, err)

	v := p.Transform(item("x", "quantum flux capacitor", 6))
	assert.Equal(t, []int{p.PriceIndex()}, v.Indices)
}

func TestTransformIdempotent(t *testing.T) {
	train := trainOf(t,
		item("1", "stainless steel water bottle insulated", 25),
		item("2", "steel water bottle", 18),
		item("3", "insulated lunch bag", 15),
	)
	cfg := plainCfg()
	cfg.NGramMax = 2
	p, err := Fit(train, cfg)
	require.NoError(t, err)

	in := item("q", "Insulated steel water bottle, stainless", 22)
	first := p.Transform(in)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, p.Transform(in)); diff != "" {
			t.Fatalf("transform not idempotent (-first +again):\n%s", diff)
		}
	}
}

func TestFitUsesTrainingRowsOnly(t *testing.T) {
	var rows []types.LabeledItem
	for i := 0; i < 60; i++ {
		desc := fmt.Sprintf("common term%d", i%6)
		rows = append(rows, types.LabeledItem{
			CatalogItem: item(fmt.Sprint(i), desc, float64(10+i)),
			Label:       types.WeakLabel{QualityLabel: types.QualityLabel(i % types.NumClasses)},
		})
	}
	train, val, err := dataset.Split(rows, types.SplitConfig{ValidationFraction: 0.5, Seed: 3})
	require.NoError(t, err)
	require.Positive(t, val.Len())

	cfg := types.FeatureConfig{MinDF: 1, MaxDF: 1, NGramMax: 1}
	p, err := Fit(train, cfg)
	require.NoError(t, err)

	trainTerms := map[string]bool{}
	var prices []float64
	for _, it := range train.Items() {
		for _, term := range Terms(Tokenize(it.Description), 1, false) {
			trainTerms[term] = true
		}
		prices = append(prices, *it.Price)
	}
	for _, term := range p.Terms() {
		assert.True(t, trainTerms[term], "term %q not from training rows", term)
	}
	sort.Float64s(prices)
	assert.Equal(t, stats.Median(prices), p.Price.Median)
	assert.Equal(t, len(trainTerms), len(p.Terms()))
}
