// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset splits a labeled dataset into training and validation
// partitions. Train is the only value the fitting APIs accept, and Split is
// the only way to obtain one, so nothing downstream can fit on validation
// rows by accident.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/pdiddy/quality-engine/pkg/types"
)

// Train is the designated training partition.
type Train struct {
	items []types.LabeledItem
}

// Validation is the held-out partition. It is never passed to a fit.
type Validation struct {
	items []types.LabeledItem
}

// Items returns a copy of the training rows.
func (t Train) Items() []types.LabeledItem { return slices.Clone(t.items) }

// Len returns the number of training rows.
func (t Train) Len() int { return len(t.items) }

// Labels returns the weak labels of the training rows in order.
func (t Train) Labels() []types.QualityLabel { return labelsOf(t.items) }

// Items returns a copy of the validation rows.
func (v Validation) Items() []types.LabeledItem { return slices.Clone(v.items) }

// Len returns the number of validation rows.
func (v Validation) Len() int { return len(v.items) }

// Labels returns the weak labels of the validation rows in order.
func (v Validation) Labels() []types.QualityLabel { return labelsOf(v.items) }

func labelsOf(items []types.LabeledItem) []types.QualityLabel {
	out := make([]types.QualityLabel, len(items))
	for i, it := range items {
		out[i] = it.Label.QualityLabel
	}
	return out
}

// Split partitions items into a stratified train/validation pair. Each class
// contributes round(fraction × class size) rows to validation. The result is
// deterministic for a fixed seed and input order; both partitions keep the
// input order.
func Split(items []types.LabeledItem, cfg types.SplitConfig) (Train, Validation, error) {
	if len(items) == 0 {
		return Train{}, Validation{}, fmt.Errorf("splitting dataset: no rows: %w", types.ErrCorpusStatisticUndefined)
	}
	if cfg.ValidationFraction < 0 || cfg.ValidationFraction >= 1 {
		return Train{}, Validation{}, fmt.Errorf("validation fraction %.3f outside [0,1)", cfg.ValidationFraction)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var trainIdx, valIdx []int
	for _, group := range byClass(items) {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		n := int(math.Round(cfg.ValidationFraction * float64(len(group))))
		valIdx = append(valIdx, group[:n]...)
		trainIdx = append(trainIdx, group[n:]...)
	}
	if len(trainIdx) == 0 {
		return Train{}, Validation{}, fmt.Errorf("splitting dataset: training partition is empty: %w", types.ErrCorpusStatisticUndefined)
	}

	return Train{items: pick(items, trainIdx)}, Validation{items: pick(items, valIdx)}, nil
}

// Subsample draws n rows stratified by label, preserving class proportions
// with largest-remainder rounding. If n covers the whole dataset, every row
// is returned.
func Subsample(items []types.LabeledItem, n int, seed int64) []types.LabeledItem {
	if n <= 0 {
		return nil
	}
	groups := byClass(items)
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if n >= total {
		return slices.Clone(items)
	}

	quotas := make([]int, len(groups))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, len(groups))
	assigned := 0
	for c, g := range groups {
		exact := float64(n) * float64(len(g)) / float64(total)
		quotas[c] = int(math.Floor(exact))
		assigned += quotas[c]
		rems[c] = remainder{class: c, frac: exact - math.Floor(exact)}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < n; i = (i + 1) % len(rems) {
		c := rems[i].class
		if quotas[c] < len(groups[c]) {
			quotas[c]++
			assigned++
		}
	}

	rng := rand.New(rand.NewSource(seed))
	var idx []int
	for c, group := range groups {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		idx = append(idx, group[:quotas[c]]...)
	}
	return pick(items, idx)
}

// byClass returns row indices grouped by label, in label order.
func byClass(items []types.LabeledItem) [types.NumClasses][]int {
	var groups [types.NumClasses][]int
	for i, it := range items {
		l := it.Label.QualityLabel
		if !l.Valid() {
			continue
		}
		groups[l] = append(groups[l], i)
	}
	return groups
}

func pick(items []types.LabeledItem, idx []int) []types.LabeledItem {
	sort.Ints(idx)
	out := make([]types.LabeledItem, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
