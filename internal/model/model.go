// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model bundles the label snapshot, fitted feature pipeline and
// classifier into one versioned artifact, persists it atomically, and serves
// predictions from whichever bundle is currently installed.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/quality-engine/internal/classifier"
	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/features"
	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// FileName is the bundle's name inside the artifacts directory.
const FileName = "model.json"

// ErrNoModel is returned by a Predictor whose holder is empty.
var ErrNoModel = errors.New("no trained model loaded")

// Bundle is one trained model: everything needed to go from a raw catalog
// item to a prediction, frozen together.
type Bundle struct {
	Version      string             `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	Snapshot     *label.Snapshot    `json:"snapshot"`
	Features     *features.Pipeline `json:"features"`
	Classifier   *classifier.Model  `json:"classifier"`
	Report       classifier.Report  `json:"report"`
	Distribution label.Distribution `json:"distribution"`
	TrainSize    int                `json:"train_size"`
	ValidSize    int                `json:"validation_size"`
}

// Train splits labeled rows, fits the feature pipeline and classifier on the
// training partition, and evaluates on the validation partition.
func Train(snapshot *label.Snapshot, rows []types.LabeledItem, cfg types.PipelineConfig) (*Bundle, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("training model: missing label snapshot")
	}
	train, val, err := dataset.Split(rows, cfg.Split)
	if err != nil {
		return nil, fmt.Errorf("training model: %w", err)
	}

	pipe, err := features.Fit(train, cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("training model: %w", err)
	}
	clf, err := classifier.Fit(train, pipe, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("training model: %w", err)
	}

	b := &Bundle{
		Version:      uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Snapshot:     snapshot,
		Features:     pipe,
		Classifier:   clf,
		Distribution: label.Summarize(rows),
		TrainSize:    train.Len(),
		ValidSize:    val.Len(),
	}
	if val.Len() > 0 {
		b.Report, err = clf.Evaluate(val, pipe)
		if err != nil {
			return nil, fmt.Errorf("evaluating model: %w", err)
		}
	}
	return b, nil
}

// Prediction is the inference contract returned for one item.
type Prediction struct {
	QualityLabel  types.QualityLabel        `json:"quality_label"`
	Quality       string                    `json:"quality"`
	Probabilities [types.NumClasses]float64 `json:"probabilities"`
	Signals       types.SignalBundle        `json:"signals"`
	WeakLabel     types.WeakLabel           `json:"weak_label"`
	ModelVersion  string                    `json:"model_version"`
}

// Predict scores item with the bundle's frozen state.
func (b *Bundle) Predict(item types.CatalogItem) Prediction {
	lbl, proba := b.Classifier.PredictItem(b.Features, item)
	sig := b.Snapshot.Signals(item)
	return Prediction{
		QualityLabel:  lbl,
		Quality:       lbl.String(),
		Probabilities: proba,
		Signals:       sig,
		WeakLabel:     b.Snapshot.WeakLabel(sig),
		ModelVersion:  b.Version,
	}
}

// Save writes the bundle to path through a temp file and rename, so readers
// never observe a partial bundle.
func Save(b *Bundle, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifacts directory: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding model bundle: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing model bundle: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Load reads a bundle written by Save.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing model bundle %s: %w", path, err)
	}
	if b.Snapshot == nil || b.Features == nil || b.Classifier == nil {
		return nil, fmt.Errorf("model bundle %s is incomplete", path)
	}
	if b.Classifier.Dim != b.Features.Dim() {
		return nil, fmt.Errorf("model bundle %s: classifier expects %d columns, features produce %d",
			path, b.Classifier.Dim, b.Features.Dim())
	}
	return &b, nil
}

// Holder publishes the current bundle. Readers always see a complete bundle;
// a retrain installs its replacement with a single Store.
type Holder struct {
	current atomic.Pointer[Bundle]
}

// NewHolder returns a holder containing b, which may be nil.
func NewHolder(b *Bundle) *Holder {
	h := &Holder{}
	if b != nil {
		h.current.Store(b)
	}
	return h
}

// Current returns the installed bundle or nil.
func (h *Holder) Current() *Bundle { return h.current.Load() }

// Store installs b and returns the bundle it replaced.
func (h *Holder) Store(b *Bundle) *Bundle { return h.current.Swap(b) }

// Predictor is the inference entry point used by the serving layer.
type Predictor struct {
	holder *Holder
}

// NewPredictor returns a predictor reading from h.
func NewPredictor(h *Holder) *Predictor {
	return &Predictor{holder: h}
}

// Predict classifies a single description and price. A nil price is a
// missing price signal, never an error.
func (p *Predictor) Predict(description string, price *float64) (Prediction, error) {
	return p.PredictItem(types.CatalogItem{Description: description, Price: price})
}

// PredictItem classifies a full catalog item.
func (p *Predictor) PredictItem(item types.CatalogItem) (Prediction, error) {
	b := p.holder.Current()
	if b == nil {
		return Prediction{}, ErrNoModel
	}
	return b.Predict(item), nil
}
