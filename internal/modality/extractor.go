// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package modality compares alternative feature extractors under one
// evaluation protocol. It never touches the production model; it exists to
// record whether a candidate modality earns its cost.
package modality

import (
	"fmt"

	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/features"
	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// FeatureExtractor fits a transformer on a training split. Each modality
// under comparison implements it; the harness treats them identically.
type FeatureExtractor interface {
	Name() string
	Fit(train dataset.Train) (features.Transformer, error)
}

// TextPrice is the production modality: TF-IDF over the description plus
// the scaled price.
type TextPrice struct {
	Config types.FeatureConfig
}

// Name returns "text+price".
func (TextPrice) Name() string { return "text+price" }

// Fit fits the feature pipeline.
func (e TextPrice) Fit(train dataset.Train) (features.Transformer, error) {
	return features.Fit(train, e.Config)
}

// ImageEmbedding uses precomputed image embeddings looked up by item ID.
type ImageEmbedding struct {
	Embeddings *Embeddings
}

// Name returns "image-embedding".
func (ImageEmbedding) Name() string { return "image-embedding" }

// Fit freezes per-dimension mean and deviation over the training items that
// have an embedding.
func (e ImageEmbedding) Fit(train dataset.Train) (features.Transformer, error) {
	if e.Embeddings == nil || e.Embeddings.Dim == 0 {
		return nil, fmt.Errorf("image embedding extractor: no embeddings loaded")
	}
	items := train.Items()
	if len(items) == 0 {
		return nil, fmt.Errorf("image embedding extractor: empty training split: %w", types.ErrCorpusStatisticUndefined)
	}

	dim := e.Embeddings.Dim
	columns := make([][]float64, dim)
	for _, it := range items {
		vec, ok := e.Embeddings.Vectors[it.ID]
		if !ok {
			continue
		}
		for j, x := range vec {
			columns[j] = append(columns[j], x)
		}
	}

	t := &embeddingTransformer{
		vectors: e.Embeddings.Vectors,
		mean:    make([]float64, dim),
		std:     make([]float64, dim),
	}
	for j, col := range columns {
		t.mean[j], t.std[j] = stats.MeanStd(col)
		if t.std[j] == 0 {
			t.std[j] = 1
		}
	}
	return t, nil
}

type embeddingTransformer struct {
	vectors map[string][]float64
	mean    []float64
	std     []float64
}

func (t *embeddingTransformer) Dim() int { return len(t.mean) }

// Transform standardizes the item's embedding. Items without one map to the
// zero vector.
func (t *embeddingTransformer) Transform(item types.CatalogItem) features.Vector {
	var v features.Vector
	vec, ok := t.vectors[item.ID]
	if !ok {
		return v
	}
	for j, x := range vec {
		z := (x - t.mean[j]) / t.std[j]
		if z != 0 {
			v.Indices = append(v.Indices, j)
			v.Values = append(v.Values, z)
		}
	}
	return v
}
