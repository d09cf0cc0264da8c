// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
)

// SignalWeights are the fixed, documented coefficients of the composite score.
// They must be non-negative and sum to 1.
type SignalWeights struct {
	Text        float64 `json:"text" yaml:"text"`
	PriceSanity float64 `json:"price_sanity" yaml:"price_sanity"`
	Consistency float64 `json:"consistency" yaml:"consistency"`
}

// ThresholdMode selects how the two label cut-points are obtained.
type ThresholdMode string

const (
	// ThresholdPercentile fits cut-points as quantiles of the training
	// composite score distribution.
	ThresholdPercentile ThresholdMode = "percentile"

	// ThresholdFixed uses the configured absolute cut-points.
	ThresholdFixed ThresholdMode = "fixed"
)

// ThresholdConfig controls discretization of the composite score.
type ThresholdConfig struct {
	Mode ThresholdMode `json:"mode" yaml:"mode"`

	// LowPercentile and HighPercentile are the quantiles used in percentile
	// mode (default 0.57 / 0.78, targeting a 57/21/22 distribution).
	LowPercentile  float64 `json:"low_percentile" yaml:"low_percentile"`
	HighPercentile float64 `json:"high_percentile" yaml:"high_percentile"`

	// Low and High are the absolute cut-points used in fixed mode.
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// LabelConfig holds settings for weak label synthesis.
type LabelConfig struct {
	Weights    SignalWeights   `json:"weights" yaml:"weights"`
	Thresholds ThresholdConfig `json:"thresholds" yaml:"thresholds"`

	// Workers bounds concurrent per-item scoring (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// FeatureConfig holds the TF-IDF vectorizer settings.
type FeatureConfig struct {
	// MinDF drops terms present in fewer documents than this count.
	MinDF int `json:"min_df" yaml:"min_df"`

	// MaxDF drops terms present in more than this fraction of documents.
	MaxDF float64 `json:"max_df" yaml:"max_df"`

	// MaxFeatures caps the vocabulary to the most frequent terms. Zero keeps all.
	MaxFeatures int `json:"max_features" yaml:"max_features"`

	// NGramMax is the largest n-gram length (1 = unigrams, 2 = unigrams + bigrams).
	NGramMax int `json:"ngram_max" yaml:"ngram_max"`

	// StopWords enables removal of English stop words.
	StopWords bool `json:"stop_words" yaml:"stop_words"`
}

// ClassifierConfig holds logistic regression settings.
type ClassifierConfig struct {
	// C is the inverse L2 regularization strength.
	C float64 `json:"c" yaml:"c"`

	// MaxIterations bounds L-BFGS major iterations.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// GradientTolerance stops optimization once the gradient norm falls below it.
	GradientTolerance float64 `json:"gradient_tolerance" yaml:"gradient_tolerance"`
}

// SplitConfig controls the stratified train/validation split.
type SplitConfig struct {
	ValidationFraction float64 `json:"validation_fraction" yaml:"validation_fraction"`
	Seed               int64   `json:"seed" yaml:"seed"`
}

// ModalityConfig holds settings for the modality comparison harness.
type ModalityConfig struct {
	// EmbeddingsPath points to precomputed image embeddings (NDJSON or CSV).
	EmbeddingsPath string `json:"embeddings_path" yaml:"embeddings_path"`

	// SampleSizes are the item counts evaluated, ascending.
	SampleSizes []int `json:"sample_sizes" yaml:"sample_sizes"`

	// Margin is how far below the baseline macro-F1 a candidate may fall at
	// the largest sample size before it is rejected.
	Margin float64 `json:"margin" yaml:"margin"`

	// DecisionPath is where the YAML decision record is written.
	DecisionPath string `json:"decision_path" yaml:"decision_path"`
}

// StoreConfig holds settings for the SQLite snapshot store.
type StoreConfig struct {
	// DataDir contains quality.db.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ServerConfig holds HTTP query layer settings.
type ServerConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	DefaultLimit int    `json:"default_limit" yaml:"default_limit"`
	MaxLimit     int    `json:"max_limit" yaml:"max_limit"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	// Input is the corpus path or URL (CSV or NDJSON).
	Input string `json:"input" yaml:"input"`

	Label        LabelConfig      `json:"label" yaml:"label"`
	Features     FeatureConfig    `json:"features" yaml:"features"`
	Classifier   ClassifierConfig `json:"classifier" yaml:"classifier"`
	Split        SplitConfig      `json:"split" yaml:"split"`
	Modality     ModalityConfig   `json:"modality" yaml:"modality"`
	Store        StoreConfig      `json:"store" yaml:"store"`
	Server       ServerConfig     `json:"server" yaml:"server"`
	ArtifactsDir string           `json:"artifacts_dir" yaml:"artifacts_dir"`
	LogLevel     string           `json:"log_level" yaml:"log_level"`
}

// DefaultPipelineConfig returns the calibrated defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Input: "data/train.csv",
		Label: LabelConfig{
			Weights: SignalWeights{Text: 0.5, PriceSanity: 0.2, Consistency: 0.3},
			Thresholds: ThresholdConfig{
				Mode:           ThresholdPercentile,
				LowPercentile:  0.57,
				HighPercentile: 0.78,
				Low:            0.4,
				High:           0.8,
			},
			Workers: 4,
		},
		Features: FeatureConfig{
			MinDF:       5,
			MaxDF:       0.9,
			MaxFeatures: 40000,
			NGramMax:    2,
			StopWords:   true,
		},
		Classifier: ClassifierConfig{
			C:                 1.0,
			MaxIterations:     1000,
			GradientTolerance: 1e-6,
		},
		Split: SplitConfig{
			ValidationFraction: 0.2,
			Seed:               42,
		},
		Modality: ModalityConfig{
			SampleSizes:  []int{1000, 5000, 10000},
			Margin:       0.05,
			DecisionPath: "artifacts/modality-decision.yaml",
		},
		Store:        StoreConfig{DataDir: "data"},
		Server:       ServerConfig{Addr: ":8000", DefaultLimit: 500, MaxLimit: 1000},
		ArtifactsDir: "artifacts",
		LogLevel:     "info",
	}
}

// Validate reports the first configuration error.
func (c PipelineConfig) Validate() error {
	w := c.Label.Weights
	if w.Text < 0 || w.PriceSanity < 0 || w.Consistency < 0 {
		return fmt.Errorf("label weights must be non-negative: %+v", w)
	}
	if sum := w.Text + w.PriceSanity + w.Consistency; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("label weights must sum to 1, got %.6f", sum)
	}

	t := c.Label.Thresholds
	switch t.Mode {
	case ThresholdPercentile:
		if t.LowPercentile < 0 || t.HighPercentile > 1 || t.LowPercentile > t.HighPercentile {
			return fmt.Errorf("threshold percentiles must satisfy 0 <= low <= high <= 1, got %.3f/%.3f",
				t.LowPercentile, t.HighPercentile)
		}
	case ThresholdFixed:
		if t.Low > t.High {
			return fmt.Errorf("fixed thresholds must satisfy low <= high, got %.3f/%.3f", t.Low, t.High)
		}
	default:
		return fmt.Errorf("unsupported threshold mode %q: use percentile or fixed", t.Mode)
	}

	if c.Features.MinDF < 1 {
		return fmt.Errorf("features.min_df must be >= 1, got %d", c.Features.MinDF)
	}
	if c.Features.MaxDF <= 0 || c.Features.MaxDF > 1 {
		return fmt.Errorf("features.max_df must be in (0,1], got %.3f", c.Features.MaxDF)
	}
	if c.Features.NGramMax < 1 {
		return fmt.Errorf("features.ngram_max must be >= 1, got %d", c.Features.NGramMax)
	}
	if c.Classifier.C <= 0 {
		return fmt.Errorf("classifier.c must be positive, got %.3f", c.Classifier.C)
	}
	if c.Split.ValidationFraction < 0 || c.Split.ValidationFraction >= 1 {
		return fmt.Errorf("split.validation_fraction must be in [0,1), got %.3f", c.Split.ValidationFraction)
	}
	return nil
}
