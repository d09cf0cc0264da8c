// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package label synthesizes the weak 3-class quality label from the text,
// price and consistency signals. A Snapshot freezes every corpus-level
// statistic before any item is scored, so scoring one item never depends on
// any other item or on processing order.
package label

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/quality-engine/internal/consistency"
	"github.com/pdiddy/quality-engine/internal/pricesig"
	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/internal/textsig"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Cutpoints partition the composite score line into three contiguous
// intervals: (-inf, Low] is Low, (Low, High] is Medium, (High, +inf) is High.
type Cutpoints struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Label discretizes a composite score.
func (c Cutpoints) Label(score float64) types.QualityLabel {
	switch {
	case score <= c.Low:
		return types.QualityLow
	case score <= c.High:
		return types.QualityMedium
	default:
		return types.QualityHigh
	}
}

// Snapshot is the frozen labeling state of one training corpus. Re-running
// Fit on a different corpus slice produces a new Snapshot with a new ID.
type Snapshot struct {
	ID        string              `json:"id" yaml:"id"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
	Size      int                 `json:"size" yaml:"size"`
	Text      textsig.Table       `json:"text" yaml:"text"`
	Price     pricesig.Stats      `json:"price" yaml:"price"`
	Weights   types.SignalWeights `json:"weights" yaml:"weights"`
	Cutpoints Cutpoints           `json:"cutpoints" yaml:"cutpoints"`
}

// Fit freezes the corpus statistics of items and derives the label
// cut-points from the resulting composite distribution. An empty corpus is
// types.ErrCorpusStatisticUndefined.
func Fit(ctx context.Context, items []types.CatalogItem, cfg types.LabelConfig) (*Snapshot, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("fitting label snapshot: empty corpus: %w", types.ErrCorpusStatisticUndefined)
	}

	counts := make([]int, len(items))
	if err := forEach(ctx, len(items), cfg.Workers, func(i int) {
		counts[i] = textsig.WordCount(items[i].Description)
	}); err != nil {
		return nil, fmt.Errorf("counting words: %w", err)
	}

	s := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Size:      len(items),
		Text:      textsig.FitTable(counts),
		Price:     pricesig.Fit(items),
		Weights:   cfg.Weights,
	}

	composites := make([]float64, len(items))
	if err := forEach(ctx, len(items), cfg.Workers, func(i int) {
		composites[i] = s.Composite(s.signals(items[i], counts[i]))
	}); err != nil {
		return nil, fmt.Errorf("scoring corpus: %w", err)
	}
	sort.Float64s(composites)
	s.Cutpoints = fitCutpoints(composites, cfg.Thresholds)

	return s, nil
}

func fitCutpoints(sorted []float64, cfg types.ThresholdConfig) Cutpoints {
	if cfg.Mode == types.ThresholdFixed {
		return Cutpoints{Low: cfg.Low, High: cfg.High}
	}
	low := stats.EmpiricalQuantile(sorted, cfg.LowPercentile)
	high := stats.EmpiricalQuantile(sorted, cfg.HighPercentile)
	if high < low {
		high = low
	}
	return Cutpoints{Low: low, High: high}
}

// Signals derives the SignalBundle of item from the frozen statistics.
func (s *Snapshot) Signals(item types.CatalogItem) types.SignalBundle {
	return s.signals(item, textsig.WordCount(item.Description))
}

func (s *Snapshot) signals(item types.CatalogItem, wordCount int) types.SignalBundle {
	text := s.Text.Score(wordCount)
	price := s.Price.Score(item)
	return types.SignalBundle{
		WordCount:        wordCount,
		TextScore:        text,
		PriceIsOutlier:   price.IsOutlier,
		PriceSanityScore: price.SanityScore,
		PriceRank:        price.Rank,
		ConsistencyScore: consistency.Score(text, price.Rank, price.HasPrice),
	}
}

// Composite combines the three signals with the frozen weights.
func (s *Snapshot) Composite(sig types.SignalBundle) float64 {
	w := s.Weights
	return w.Text*sig.TextScore + w.PriceSanity*sig.PriceSanityScore + w.Consistency*sig.ConsistencyScore
}

// WeakLabel returns the composite score and label for a SignalBundle.
func (s *Snapshot) WeakLabel(sig types.SignalBundle) types.WeakLabel {
	score := s.Composite(sig)
	return types.WeakLabel{CompositeScore: score, QualityLabel: s.Cutpoints.Label(score)}
}

// Label scores one item end to end.
func (s *Snapshot) Label(item types.CatalogItem) types.LabeledItem {
	sig := s.Signals(item)
	return types.LabeledItem{CatalogItem: item, Signals: sig, Label: s.WeakLabel(sig)}
}

// Apply labels every item against the snapshot using up to workers
// goroutines. Output order matches input order.
func Apply(ctx context.Context, s *Snapshot, items []types.CatalogItem, workers int) ([]types.LabeledItem, error) {
	out := make([]types.LabeledItem, len(items))
	if err := forEach(ctx, len(items), workers, func(i int) {
		out[i] = s.Label(items[i])
	}); err != nil {
		return nil, fmt.Errorf("labeling items: %w", err)
	}
	return out, nil
}

// Distribution counts labeled items per class.
type Distribution struct {
	Counts [types.NumClasses]int `json:"counts" yaml:"counts"`
	Total  int                   `json:"total" yaml:"total"`
}

// Summarize builds the label distribution of items.
func Summarize(items []types.LabeledItem) Distribution {
	var d Distribution
	for _, it := range items {
		if it.Label.QualityLabel.Valid() {
			d.Counts[it.Label.QualityLabel]++
			d.Total++
		}
	}
	return d
}

// Fraction returns the share of items carrying label l.
func (d Distribution) Fraction(l types.QualityLabel) float64 {
	if d.Total == 0 || !l.Valid() {
		return 0
	}
	return float64(d.Counts[l]) / float64(d.Total)
}
