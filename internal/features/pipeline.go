// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package features converts catalog items into sparse numeric vectors: a
// TF-IDF block over description n-grams followed by one standardized price
// column. All statistics are frozen by Fit on the training split and only
// read by Transform.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Pipeline is the fitted TF-IDF vocabulary plus the price scaler.
type Pipeline struct {
	Settings   types.FeatureConfig `json:"settings"`
	Vocabulary map[string]int      `json:"vocabulary"`
	IDF        []float64           `json:"idf"`
	Price      PriceScaler         `json:"price"`
}

// PriceScaler standardizes price with frozen training moments. Missing
// prices are imputed with the training median before scaling.
type PriceScaler struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
}

// Scale returns the standardized price of item.
func (s PriceScaler) Scale(item types.CatalogItem) float64 {
	p, ok := item.ValidPrice()
	if !ok {
		p = s.Median
	}
	std := s.Std
	if std == 0 {
		std = 1
	}
	return (p - s.Mean) / std
}

func fitPriceScaler(items []types.LabeledItem) PriceScaler {
	var prices []float64
	for _, it := range items {
		if p, ok := it.ValidPrice(); ok {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return PriceScaler{Std: 1}
	}
	sort.Float64s(prices)
	mean, std := stats.MeanStd(prices)
	if std == 0 {
		std = 1
	}
	return PriceScaler{Mean: mean, Std: std, Median: stats.Median(prices)}
}

// Fit learns the vocabulary, IDF weights and price scaler from the training
// split. An empty split is types.ErrCorpusStatisticUndefined.
func Fit(train dataset.Train, cfg types.FeatureConfig) (*Pipeline, error) {
	items := train.Items()
	if len(items) == 0 {
		return nil, fmt.Errorf("fitting feature pipeline: empty training split: %w", types.ErrCorpusStatisticUndefined)
	}

	df := make(map[string]int)
	total := make(map[string]int)
	for _, it := range items {
		seen := make(map[string]struct{})
		for _, term := range Terms(Tokenize(it.Description), cfg.NGramMax, cfg.StopWords) {
			total[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	n := len(items)
	maxDocs := cfg.MaxDF * float64(n)
	kept := make([]string, 0, len(df))
	for term, d := range df {
		if d >= cfg.MinDF && float64(d) <= maxDocs {
			kept = append(kept, term)
		}
	}
	if cfg.MaxFeatures > 0 && len(kept) > cfg.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if total[kept[i]] != total[kept[j]] {
				return total[kept[i]] > total[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:cfg.MaxFeatures]
	}
	sort.Strings(kept)

	p := &Pipeline{
		Settings:   cfg,
		Vocabulary: make(map[string]int, len(kept)),
		IDF:        make([]float64, len(kept)),
		Price:      fitPriceScaler(items),
	}
	for i, term := range kept {
		p.Vocabulary[term] = i
		p.IDF[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
	return p, nil
}

// Dim is the vocabulary size plus the price column.
func (p *Pipeline) Dim() int { return len(p.IDF) + 1 }

// PriceIndex is the column holding the scaled price.
func (p *Pipeline) PriceIndex() int { return len(p.IDF) }

// Terms returns the vocabulary in column order.
func (p *Pipeline) Terms() []string {
	out := make([]string, len(p.IDF))
	for term, i := range p.Vocabulary {
		out[i] = term
	}
	return out
}

// Transform vectorizes item. Terms outside the frozen vocabulary are
// ignored. Repeated calls on the same item return identical vectors.
func (p *Pipeline) Transform(item types.CatalogItem) Vector {
	tf := make(map[int]float64)
	for _, term := range Terms(Tokenize(item.Description), p.Settings.NGramMax, p.Settings.StopWords) {
		if i, ok := p.Vocabulary[term]; ok {
			tf[i]++
		}
	}

	idx := make([]int, 0, len(tf)+1)
	for i := range tf {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	vals := make([]float64, len(idx), len(idx)+1)
	var norm float64
	for k, i := range idx {
		vals[k] = tf[i] * p.IDF[i]
		norm += vals[k] * vals[k]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range vals {
			vals[k] /= norm
		}
	}

	idx = append(idx, p.PriceIndex())
	vals = append(vals, p.Price.Scale(item))
	return Vector{Indices: idx, Values: vals}
}
