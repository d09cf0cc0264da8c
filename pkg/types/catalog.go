// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "math"

// QualityLabel is the ordered 3-class proxy quality of a catalog entry.
type QualityLabel int

const (
	QualityLow    QualityLabel = 0
	QualityMedium QualityLabel = 1
	QualityHigh   QualityLabel = 2
)

// NumClasses is the number of ordered quality classes.
const NumClasses = 3

// Labels lists every quality label in ascending order.
var Labels = [NumClasses]QualityLabel{QualityLow, QualityMedium, QualityHigh}

// String returns the display name of the label.
func (l QualityLabel) String() string {
	switch l {
	case QualityLow:
		return "Low"
	case QualityMedium:
		return "Medium"
	case QualityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether l is one of the three defined classes.
func (l QualityLabel) Valid() bool {
	return l >= QualityLow && l <= QualityHigh
}

// Weight maps a label onto the 0.3 / 0.6 / 1.0 quality_score scale used in
// distribution statistics.
func (l QualityLabel) Weight() float64 {
	switch l {
	case QualityLow:
		return 0.3
	case QualityMedium:
		return 0.6
	case QualityHigh:
		return 1.0
	default:
		return 0
	}
}

// CatalogItem is one raw catalog row. It is never mutated after ingest.
type CatalogItem struct {
	// ID is the unique catalog identifier (sample_id in the raw corpus).
	ID string `json:"id" yaml:"id"`

	// Description is the free-text catalog content. May be empty or malformed.
	Description string `json:"description" yaml:"description"`

	// Price is nil when the corpus has no price for the item.
	Price *float64 `json:"price" yaml:"price"`

	// ImageURL is the optional product image link.
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// ValidPrice returns the price and true when it is present, finite and
// strictly positive. Every other case is a missing price signal.
func (c CatalogItem) ValidPrice() (float64, bool) {
	if c.Price == nil {
		return 0, false
	}
	p := *c.Price
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, false
	}
	return p, true
}

// Price returns a pointer to v for building CatalogItems inline.
func Price(v float64) *float64 {
	return &v
}

// SignalBundle holds the per-item signals derived from frozen corpus statistics.
// Every score is bounded to [0,1].
type SignalBundle struct {
	WordCount        int     `json:"word_count" yaml:"word_count"`
	TextScore        float64 `json:"text_score" yaml:"text_score"`
	PriceIsOutlier   bool    `json:"price_is_outlier" yaml:"price_is_outlier"`
	PriceSanityScore float64 `json:"price_sanity_score" yaml:"price_sanity_score"`
	PriceRank        float64 `json:"price_rank" yaml:"price_rank"`
	ConsistencyScore float64 `json:"consistency_score" yaml:"consistency_score"`
}

// WeakLabel is the synthesized ground truth for one item.
type WeakLabel struct {
	CompositeScore float64      `json:"composite_score" yaml:"composite_score"`
	QualityLabel   QualityLabel `json:"quality_label" yaml:"quality_label"`
}

// LabeledItem is one row of the labeled dataset.
type LabeledItem struct {
	CatalogItem `yaml:",inline"`
	Signals     SignalBundle `json:"signals" yaml:"signals"`
	Label       WeakLabel    `json:"label" yaml:"label"`
}
