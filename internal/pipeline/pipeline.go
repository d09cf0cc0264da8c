// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the batch stages in order: label the corpus, train
// the model on the labeled rows, and persist the results.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/quality-engine/internal/catalog"
	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/store"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Labeled is the output of the labeling stage.
type Labeled struct {
	Snapshot     *label.Snapshot
	Rows         []types.LabeledItem
	Distribution label.Distribution
}

// Label freezes the corpus statistics of items and labels every item.
func Label(ctx context.Context, items []types.CatalogItem, cfg types.PipelineConfig, w io.Writer) (*Labeled, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	snap, err := label.Fit(ctx, items, cfg.Label)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "fit snapshot %s on %d items (cut-points %.4f / %.4f)\n",
		snap.ID, snap.Size, snap.Cutpoints.Low, snap.Cutpoints.High)

	rows, err := label.Apply(ctx, snap, items, cfg.Label.Workers)
	if err != nil {
		return nil, err
	}
	dist := label.Summarize(rows)
	fmt.Fprintf(w, "labeled %d items: %d low, %d medium, %d high\n",
		len(rows), dist.Counts[types.QualityLow], dist.Counts[types.QualityMedium], dist.Counts[types.QualityHigh])

	return &Labeled{Snapshot: snap, Rows: rows, Distribution: dist}, nil
}

// Result is the output of a full run.
type Result struct {
	*Labeled
	Bundle *model.Bundle
}

// Run labels items and trains a model bundle on the labeled rows.
func Run(ctx context.Context, items []types.CatalogItem, cfg types.PipelineConfig, w io.Writer) (*Result, error) {
	lab, err := Label(ctx, items, cfg, w)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := model.Train(lab.Snapshot, lab.Rows, cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "fit vocabulary: %d terms\n", len(b.Features.Terms()))
	fmt.Fprintf(w, "trained model %s on %d items (%s after %d iterations)\n",
		b.Version, b.TrainSize, b.Classifier.Summary.Status, b.Classifier.Summary.Iterations)
	if b.Classifier.Summary.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", b.Classifier.Summary.Warning)
	}
	if b.ValidSize > 0 {
		fmt.Fprintf(w, "validated on %d items: accuracy %.4f, macro-F1 %.4f\n",
			b.ValidSize, b.Report.Accuracy, b.Report.MacroF1)
	}

	return &Result{Labeled: lab, Bundle: b}, nil
}

// Artifacts are the paths written by Persist.
type Artifacts struct {
	LabeledCSV string
	Model      string
}

// WriteLabeled writes the labeled dataset CSV into dir.
func WriteLabeled(dir string, rows []types.LabeledItem) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifacts directory: %w", err)
	}
	path := filepath.Join(dir, catalog.LabeledFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := catalog.WriteLabeledCSV(f, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// Persist stores the labeled snapshot in st when st is non-nil, then writes
// the labeled CSV and, when res carries a bundle, the model bundle into the
// artifacts directory.
func Persist(ctx context.Context, res *Result, st *store.Store, artifactsDir string, w io.Writer) (Artifacts, error) {
	var a Artifacts
	if st != nil {
		if err := st.SaveSnapshot(ctx, res.Snapshot, res.Rows); err != nil {
			return a, fmt.Errorf("storing snapshot: %w", err)
		}
		fmt.Fprintf(w, "stored snapshot %s (%d items)\n", res.Snapshot.ID, len(res.Rows))
	}

	path, err := WriteLabeled(artifactsDir, res.Rows)
	if err != nil {
		return a, err
	}
	a.LabeledCSV = path
	fmt.Fprintf(w, "wrote %s\n", path)

	if res.Bundle != nil {
		a.Model = filepath.Join(artifactsDir, model.FileName)
		if err := model.Save(res.Bundle, a.Model); err != nil {
			return a, err
		}
		fmt.Fprintf(w, "wrote %s\n", a.Model)
	}
	return a, nil
}
