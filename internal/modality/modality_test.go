// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package modality

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/quality-engine/internal/catalog/catalogtest"
	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// --- test helpers ---

func labeledCorpus(t *testing.T, n int, seed int64) []types.LabeledItem {
	t.Helper()
	ctx := context.Background()
	items := catalogtest.Corpus(n, seed)
	cfg := types.DefaultPipelineConfig().Label
	snap, err := label.Fit(ctx, items, cfg)
	require.NoError(t, err)
	rows, err := label.Apply(ctx, snap, items, cfg.Workers)
	require.NoError(t, err)
	return rows
}

func embeddingsFor(rows []types.LabeledItem, dim int, seed int64) *Embeddings {
	items := make([]types.CatalogItem, len(rows))
	for i, r := range rows {
		items[i] = r.CatalogItem
	}
	return &Embeddings{Dim: dim, Vectors: catalogtest.Embeddings(items, dim, seed)}
}

// --- embeddings ---

func TestReadEmbeddingsNDJSON(t *testing.T) {
	in := `{"id": "a", "embedding": [1, 2, 3]}

{"id": "b", "embedding": [4, 5, 6]}
`
	e, err := ReadEmbeddingsNDJSON(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dim)
	assert.Equal(t, []float64{4, 5, 6}, e.Vectors["b"])
}

func TestReadEmbeddingsCSV(t *testing.T) {
	in := "id,e0,e1\na,0.5,1.5\nb, -1 ,2\n"
	e, err := ReadEmbeddingsCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dim)
	assert.Equal(t, []float64{-1, 2}, e.Vectors["b"])
}

func TestReadEmbeddingsErrors(t *testing.T) {
	tests := []struct {
		name string
		read func() error
	}{
		{"ndjson dimension mismatch", func() error {
			_, err := ReadEmbeddingsNDJSON(strings.NewReader("{\"id\":\"a\",\"embedding\":[1,2]}\n{\"id\":\"b\",\"embedding\":[1]}\n"))
			return err
		}},
		{"ndjson missing id", func() error {
			_, err := ReadEmbeddingsNDJSON(strings.NewReader(`{"embedding":[1,2]}`))
			return err
		}},
		{"ndjson malformed", func() error {
			_, err := ReadEmbeddingsNDJSON(strings.NewReader(`{"id":`))
			return err
		}},
		{"csv ragged rows", func() error {
			_, err := ReadEmbeddingsCSV(strings.NewReader("id,e0,e1\na,1,2\nb,1\n"))
			return err
		}},
		{"csv non-numeric", func() error {
			_, err := ReadEmbeddingsCSV(strings.NewReader("id,e0\na,abc\n"))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.read())
		})
	}
}

func TestLoadEmbeddingsByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "emb.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,e0\nx,3\n"), 0o644))
	jsonPath := filepath.Join(dir, "emb.ndjson")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"id":"x","embedding":[3]}`+"\n"), 0o644))

	for _, p := range []string{csvPath, jsonPath} {
		e, err := LoadEmbeddings(p)
		require.NoError(t, err, p)
		assert.Equal(t, []float64{3}, e.Vectors["x"])
	}
}

// --- extractors ---

func TestImageEmbeddingStandardizes(t *testing.T) {
	rows := []types.LabeledItem{
		{CatalogItem: types.CatalogItem{ID: "a"}, Label: types.WeakLabel{QualityLabel: types.QualityLow}},
		{CatalogItem: types.CatalogItem{ID: "b"}, Label: types.WeakLabel{QualityLabel: types.QualityMedium}},
		{CatalogItem: types.CatalogItem{ID: "c"}, Label: types.WeakLabel{QualityLabel: types.QualityHigh}},
	}
	train, _, err := dataset.Split(rows, types.SplitConfig{})
	require.NoError(t, err)

	emb := &Embeddings{Dim: 2, Vectors: map[string][]float64{
		"a": {1, 5},
		"b": {3, 5},
	}}
	tr, err := ImageEmbedding{Embeddings: emb}.Fit(train)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Dim())

	v := tr.Transform(types.CatalogItem{ID: "b"})
	assert.Equal(t, []int{0}, v.Indices, "constant dimension standardizes to zero")
	assert.InDelta(t, 1.0, v.Values[0], 1e-12)

	assert.Zero(t, tr.Transform(types.CatalogItem{ID: "c"}).Len())
}

func TestImageEmbeddingWithoutEmbeddings(t *testing.T) {
	_, err := ImageEmbedding{}.Fit(dataset.Train{})
	assert.Error(t, err)
}

func TestExtractorNames(t *testing.T) {
	assert.Equal(t, "text+price", TextPrice{}.Name())
	assert.Equal(t, "image-embedding", ImageEmbedding{}.Name())
}

// --- decision ---

func TestDecide(t *testing.T) {
	base := []Point{{Extractor: "text+price", Size: 100, MacroF1: 0.7}, {Extractor: "text+price", Size: 500, MacroF1: 0.8}}

	tests := []struct {
		name     string
		cand     []float64
		accepted bool
	}{
		{"far below at largest size", []float64{0.75, 0.70}, false},
		{"within margin", []float64{0.40, 0.76}, true},
		{"better", []float64{0.90, 0.85}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := []Point{
				{Extractor: "image-embedding", Size: 100, MacroF1: tt.cand[0]},
				{Extractor: "image-embedding", Size: 500, MacroF1: tt.cand[1]},
			}
			d, err := Decide(base, cand, 0.05)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, d.Accepted)
			assert.Len(t, d.Evidence, 2)
			assert.Contains(t, d.Reasoning, "500 items")
		})
	}
}

func TestDecideMismatchedPoints(t *testing.T) {
	_, err := Decide([]Point{{Size: 1}}, nil, 0.05)
	assert.Error(t, err)

	_, err = Decide([]Point{{Size: 1}}, []Point{{Size: 2}}, 0.05)
	assert.Error(t, err)
}

func TestWriteDecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records", "decision.yaml")
	d, err := Decide(
		[]Point{{Extractor: "text+price", Size: 10, MacroF1: 0.8}},
		[]Point{{Extractor: "image-embedding", Size: 10, MacroF1: 0.3}},
		0.05,
	)
	require.NoError(t, err)
	require.NoError(t, WriteDecision(path, d))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Decision
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.False(t, got.Accepted)
	assert.Equal(t, "image-embedding", got.Candidate)
	assert.Equal(t, d.Evidence, got.Evidence)
}

// --- comparison ---

func TestImageOnlyBelowTextPriceAtEverySize(t *testing.T) {
	rows := labeledCorpus(t, 1200, 7)
	cfg := types.DefaultPipelineConfig()
	cfg.Modality.SampleSizes = []int{300, 600, 1200}

	baseline := TextPrice{Config: cfg.Features}
	candidate := ImageEmbedding{Embeddings: embeddingsFor(rows, 16, 11)}

	var out bytes.Buffer
	d, err := Compare(context.Background(), rows, cfg, baseline, candidate, &out)
	require.NoError(t, err)

	require.Len(t, d.Evidence, 3)
	for _, ev := range d.Evidence {
		assert.Less(t, ev.CandidateMacroF1, ev.BaselineMacroF1, "size %d", ev.Size)
	}
	assert.False(t, d.Accepted)
	assert.Contains(t, out.String(), "image-embedding")

	h := Harness{Split: cfg.Split, Classifier: cfg.Classifier, Workers: 2}
	again, err := h.Evaluate(context.Background(), rows, cfg.Modality.SampleSizes, candidate)
	require.NoError(t, err)
	for i, p := range again {
		assert.Equal(t, d.Evidence[i].CandidateMacroF1, p.MacroF1, "rerun at %d items", p.Size)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	rows := labeledCorpus(t, 200, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := Harness{Split: types.DefaultPipelineConfig().Split, Classifier: types.DefaultPipelineConfig().Classifier}
	_, err := h.Evaluate(ctx, rows, []int{100}, TextPrice{Config: types.DefaultPipelineConfig().Features})
	assert.ErrorIs(t, err, context.Canceled)
}
