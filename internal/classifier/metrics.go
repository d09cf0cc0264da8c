// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classifier

import (
	"fmt"

	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/features"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// ClassMetrics are the per-label scores of a Report.
type ClassMetrics struct {
	Label     types.QualityLabel `json:"label" yaml:"label"`
	Precision float64            `json:"precision" yaml:"precision"`
	Recall    float64            `json:"recall" yaml:"recall"`
	F1        float64            `json:"f1" yaml:"f1"`
	Support   int                `json:"support" yaml:"support"`
}

// Report is a classification report over one evaluation split. Averages
// cover the labels that occur in either the truth or the predictions.
type Report struct {
	Classes           [types.NumClasses]ClassMetrics          `json:"classes" yaml:"classes"`
	Confusion         [types.NumClasses][types.NumClasses]int `json:"confusion" yaml:"confusion"`
	Accuracy          float64                                 `json:"accuracy" yaml:"accuracy"`
	MacroPrecision    float64                                 `json:"macro_precision" yaml:"macro_precision"`
	MacroRecall       float64                                 `json:"macro_recall" yaml:"macro_recall"`
	MacroF1           float64                                 `json:"macro_f1" yaml:"macro_f1"`
	WeightedPrecision float64                                 `json:"weighted_precision" yaml:"weighted_precision"`
	WeightedRecall    float64                                 `json:"weighted_recall" yaml:"weighted_recall"`
	WeightedF1        float64                                 `json:"weighted_f1" yaml:"weighted_f1"`
	Support           int                                     `json:"support" yaml:"support"`
}

// NewReport scores predictions against truth. Confusion[t][p] counts items
// of true label t predicted as p. Undefined ratios are 0.
func NewReport(truth, pred []types.QualityLabel) (Report, error) {
	if len(truth) != len(pred) {
		return Report{}, fmt.Errorf("report: %d labels but %d predictions", len(truth), len(pred))
	}

	var r Report
	correct := 0
	for i, t := range truth {
		p := pred[i]
		if !t.Valid() || !p.Valid() {
			return Report{}, fmt.Errorf("report: row %d has invalid label pair %d/%d", i, t, p)
		}
		r.Confusion[t][p]++
		if t == p {
			correct++
		}
	}
	r.Support = len(truth)
	if r.Support > 0 {
		r.Accuracy = float64(correct) / float64(r.Support)
	}

	present := 0
	for k := range types.NumClasses {
		tp := r.Confusion[k][k]
		var predicted, support int
		for j := range types.NumClasses {
			support += r.Confusion[k][j]
			predicted += r.Confusion[j][k]
		}
		c := ClassMetrics{Label: types.QualityLabel(k), Support: support}
		c.Precision = ratio(tp, predicted)
		c.Recall = ratio(tp, support)
		if c.Precision+c.Recall > 0 {
			c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		r.Classes[k] = c

		if support == 0 && predicted == 0 {
			continue
		}
		present++
		r.MacroPrecision += c.Precision
		r.MacroRecall += c.Recall
		r.MacroF1 += c.F1
		if r.Support > 0 {
			w := float64(support) / float64(r.Support)
			r.WeightedPrecision += w * c.Precision
			r.WeightedRecall += w * c.Recall
			r.WeightedF1 += w * c.F1
		}
	}
	if present > 0 {
		r.MacroPrecision /= float64(present)
		r.MacroRecall /= float64(present)
		r.MacroF1 /= float64(present)
	}
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Evaluate predicts every validation row and reports against its weak label.
func (m *Model) Evaluate(val dataset.Validation, tr features.Transformer) (Report, error) {
	items := val.Items()
	pred := make([]types.QualityLabel, len(items))
	for i, it := range items {
		pred[i] = m.Predict(tr.Transform(it.CatalogItem))
	}
	return NewReport(val.Labels(), pred)
}
