// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package modality

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/quality-engine/internal/classifier"
	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Point is one evaluation of one extractor at one sample size.
type Point struct {
	Extractor  string  `json:"extractor" yaml:"extractor"`
	Size       int     `json:"size" yaml:"size"`
	Train      int     `json:"train" yaml:"train"`
	Validation int     `json:"validation" yaml:"validation"`
	MacroF1    float64 `json:"macro_f1" yaml:"macro_f1"`
	Accuracy   float64 `json:"accuracy" yaml:"accuracy"`
}

// Harness evaluates extractors with a shared protocol: the same stratified
// subsample, the same split and the same classifier settings for every
// extractor at a given size.
type Harness struct {
	Split      types.SplitConfig
	Classifier types.ClassifierConfig

	// Workers bounds how many sample sizes are evaluated at once.
	Workers int
}

// Evaluate runs ex at every size in sizes. Sizes beyond the dataset use
// every row. Points are returned in the order of sizes.
func (h Harness) Evaluate(ctx context.Context, rows []types.LabeledItem, sizes []int, ex FeatureExtractor) ([]Point, error) {
	points := make([]Point, len(sizes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(h.Workers, 1))
	for i, size := range sizes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := h.evaluateAt(rows, size, ex)
			if err != nil {
				return fmt.Errorf("%s at %d items: %w", ex.Name(), size, err)
			}
			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

func (h Harness) evaluateAt(rows []types.LabeledItem, size int, ex FeatureExtractor) (Point, error) {
	sample := dataset.Subsample(rows, size, h.Split.Seed)
	train, val, err := dataset.Split(sample, h.Split)
	if err != nil {
		return Point{}, err
	}
	tr, err := ex.Fit(train)
	if err != nil {
		return Point{}, err
	}
	clf, err := classifier.Fit(train, tr, h.Classifier)
	if err != nil {
		return Point{}, err
	}
	report, err := clf.Evaluate(val, tr)
	if err != nil {
		return Point{}, err
	}
	return Point{
		Extractor:  ex.Name(),
		Size:       len(sample),
		Train:      train.Len(),
		Validation: val.Len(),
		MacroF1:    report.MacroF1,
		Accuracy:   report.Accuracy,
	}, nil
}

// Evidence pairs the baseline and candidate scores at one size.
type Evidence struct {
	Size             int     `json:"size" yaml:"size"`
	BaselineMacroF1  float64 `json:"baseline_macro_f1" yaml:"baseline_macro_f1"`
	CandidateMacroF1 float64 `json:"candidate_macro_f1" yaml:"candidate_macro_f1"`
	Delta            float64 `json:"delta" yaml:"delta"`
}

// Decision is the recorded outcome of a modality comparison.
type Decision struct {
	Baseline  string     `json:"baseline" yaml:"baseline"`
	Candidate string     `json:"candidate" yaml:"candidate"`
	Accepted  bool       `json:"accepted" yaml:"accepted"`
	Margin    float64    `json:"margin" yaml:"margin"`
	Reasoning string     `json:"reasoning" yaml:"reasoning"`
	Evidence  []Evidence `json:"evidence" yaml:"evidence"`
	DecidedAt time.Time  `json:"decided_at" yaml:"decided_at"`
}

// Decide applies the acceptance rule: the candidate is rejected when its
// macro-F1 at the largest evaluated size falls more than margin below the
// baseline. Points must come from the same sizes in the same order.
func Decide(baseline, candidate []Point, margin float64) (Decision, error) {
	if len(baseline) == 0 || len(baseline) != len(candidate) {
		return Decision{}, fmt.Errorf("deciding modality: %d baseline points vs %d candidate points",
			len(baseline), len(candidate))
	}

	d := Decision{
		Baseline:  baseline[0].Extractor,
		Candidate: candidate[0].Extractor,
		Margin:    margin,
		DecidedAt: time.Now().UTC(),
	}
	largest := 0
	for i := range baseline {
		if baseline[i].Size != candidate[i].Size {
			return Decision{}, fmt.Errorf("deciding modality: size mismatch at point %d: %d vs %d",
				i, baseline[i].Size, candidate[i].Size)
		}
		d.Evidence = append(d.Evidence, Evidence{
			Size:             baseline[i].Size,
			BaselineMacroF1:  baseline[i].MacroF1,
			CandidateMacroF1: candidate[i].MacroF1,
			Delta:            candidate[i].MacroF1 - baseline[i].MacroF1,
		})
		if baseline[i].Size >= baseline[largest].Size {
			largest = i
		}
	}

	top := d.Evidence[largest]
	d.Accepted = top.CandidateMacroF1 >= top.BaselineMacroF1-margin
	verdict := "rejected"
	if d.Accepted {
		verdict = "accepted"
	}
	d.Reasoning = fmt.Sprintf("%s %s: macro-F1 %.4f vs %s %.4f at %d items (delta %+.4f, margin %.4f)",
		d.Candidate, verdict, top.CandidateMacroF1, d.Baseline, top.BaselineMacroF1, top.Size, top.Delta, margin)
	return d, nil
}

// Compare evaluates baseline and candidate at every configured size and
// decides. Progress lines go to w.
func Compare(ctx context.Context, rows []types.LabeledItem, cfg types.PipelineConfig, baseline, candidate FeatureExtractor, w io.Writer) (Decision, error) {
	h := Harness{Split: cfg.Split, Classifier: cfg.Classifier, Workers: cfg.Label.Workers}
	sizes := cfg.Modality.SampleSizes
	if len(sizes) == 0 {
		return Decision{}, fmt.Errorf("comparing modalities: no sample sizes configured")
	}

	var points [2][]Point
	for i, ex := range []FeatureExtractor{baseline, candidate} {
		fmt.Fprintf(w, "evaluating %s at %v items\n", ex.Name(), sizes)
		pts, err := h.Evaluate(ctx, rows, sizes, ex)
		if err != nil {
			return Decision{}, fmt.Errorf("comparing modalities: %w", err)
		}
		for _, p := range pts {
			fmt.Fprintf(w, "  %-16s n=%-6d macro-F1 %.4f\n", p.Extractor, p.Size, p.MacroF1)
		}
		points[i] = pts
	}
	return Decide(points[0], points[1], cfg.Modality.Margin)
}

// WriteDecision writes d as a YAML record at path.
func WriteDecision(path string, d Decision) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating decision directory: %w", err)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding decision: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing decision: %w", err)
	}
	return nil
}
