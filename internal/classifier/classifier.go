// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classifier fits a class-balanced multinomial logistic regression
// over sparse feature vectors and evaluates it on a held-out split.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/pdiddy/quality-engine/internal/dataset"
	"github.com/pdiddy/quality-engine/internal/features"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Model holds fitted softmax weights. Weights[k] is the coefficient row of
// class k over the transformer's columns; Bias[k] is its unpenalized
// intercept.
type Model struct {
	Dim          int                       `json:"dim"`
	Weights      [][]float64               `json:"weights"`
	Bias         [types.NumClasses]float64 `json:"bias"`
	ClassWeights [types.NumClasses]float64 `json:"class_weights"`
	Summary      FitSummary                `json:"summary"`
}

// FitSummary records how the optimizer finished.
type FitSummary struct {
	Iterations int     `json:"iterations"`
	Loss       float64 `json:"loss"`
	Status     string  `json:"status"`

	// Warning is set when the optimizer stopped early with an error but
	// left a usable finite solution.
	Warning string `json:"warning,omitempty"`
}

// Fit trains the model on the training split. Each class is weighted by
// n/(3·count) so that minority labels are not drowned out.
func Fit(train dataset.Train, tr features.Transformer, cfg types.ClassifierConfig) (*Model, error) {
	items := train.Items()
	if len(items) == 0 {
		return nil, fmt.Errorf("fitting classifier: empty training split: %w", types.ErrCorpusStatisticUndefined)
	}
	if cfg.C <= 0 {
		return nil, fmt.Errorf("fitting classifier: C must be positive, got %v", cfg.C)
	}

	obj := &objective{
		dim:    tr.Dim(),
		xs:     make([]features.Vector, len(items)),
		ys:     make([]types.QualityLabel, len(items)),
		sample: make([]float64, len(items)),
	}
	var counts [types.NumClasses]int
	for i, it := range items {
		obj.xs[i] = tr.Transform(it.CatalogItem)
		obj.ys[i] = it.Label.QualityLabel
		if !obj.ys[i].Valid() {
			return nil, fmt.Errorf("fitting classifier: item %s has invalid label %d", it.ID, obj.ys[i])
		}
		counts[obj.ys[i]]++
	}
	classWeights := balancedWeights(counts)
	for i, y := range obj.ys {
		obj.sample[i] = classWeights[y]
		obj.total += classWeights[y]
	}
	obj.lambda = 1 / (cfg.C * obj.total)

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return obj.eval(x, nil) },
		Grad: func(grad, x []float64) { obj.eval(x, grad) },
	}
	settings := &optimize.Settings{
		MajorIterations:   cfg.MaxIterations,
		GradientThreshold: cfg.GradientTolerance,
	}
	x0 := make([]float64, types.NumClasses*(obj.dim+1))
	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil || !allFinite(res.X) {
		if err == nil {
			err = errors.New("non-finite solution")
		}
		return nil, fmt.Errorf("fitting classifier: optimizer failed: %w", err)
	}

	m := &Model{
		Dim:          obj.dim,
		Weights:      make([][]float64, types.NumClasses),
		ClassWeights: classWeights,
		Summary: FitSummary{
			Iterations: res.Stats.MajorIterations,
			Loss:       res.F,
			Status:     res.Status.String(),
		},
	}
	if err != nil {
		m.Summary.Warning = err.Error()
	}
	stride := obj.dim + 1
	for k := range types.NumClasses {
		m.Weights[k] = append([]float64(nil), res.X[k*stride:k*stride+obj.dim]...)
		m.Bias[k] = res.X[k*stride+obj.dim]
	}
	return m, nil
}

func balancedWeights(counts [types.NumClasses]int) [types.NumClasses]float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	var w [types.NumClasses]float64
	for k, c := range counts {
		if c > 0 {
			w[k] = float64(n) / float64(types.NumClasses*c)
		}
	}
	return w
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return len(x) > 0
}

// objective is the sample-weighted mean cross-entropy plus an L2 penalty on
// the coefficient rows. Parameters are laid out class by class as
// [w_k0 .. w_k(d-1), b_k].
type objective struct {
	dim    int
	xs     []features.Vector
	ys     []types.QualityLabel
	sample []float64
	total  float64
	lambda float64
}

func (o *objective) eval(x, grad []float64) float64 {
	stride := o.dim + 1
	if grad != nil {
		for i := range grad {
			grad[i] = 0
		}
	}

	var loss float64
	var z, p [types.NumClasses]float64
	for i, v := range o.xs {
		for k := range types.NumClasses {
			z[k] = v.Dot(x[k*stride:k*stride+o.dim]) + x[k*stride+o.dim]
		}
		lse := floats.LogSumExp(z[:])
		y := o.ys[i]
		loss += o.sample[i] * (lse - z[y])
		if grad == nil {
			continue
		}
		for k := range types.NumClasses {
			p[k] = math.Exp(z[k] - lse)
			r := p[k]
			if types.QualityLabel(k) == y {
				r--
			}
			r *= o.sample[i]
			v.AddTo(grad[k*stride:k*stride+o.dim], r)
			grad[k*stride+o.dim] += r
		}
	}
	loss /= o.total

	var penalty float64
	for k := range types.NumClasses {
		w := x[k*stride : k*stride+o.dim]
		penalty += floats.Dot(w, w)
	}
	loss += 0.5 * o.lambda * penalty

	if grad != nil {
		floats.Scale(1/o.total, grad)
		for k := range types.NumClasses {
			floats.AddScaled(grad[k*stride:k*stride+o.dim], o.lambda, x[k*stride:k*stride+o.dim])
		}
	}
	return loss
}

// PredictProba returns the class probabilities of v. They sum to 1.
func (m *Model) PredictProba(v features.Vector) [types.NumClasses]float64 {
	var z [types.NumClasses]float64
	for k := range types.NumClasses {
		z[k] = v.Dot(m.Weights[k]) + m.Bias[k]
	}
	lse := floats.LogSumExp(z[:])
	var p [types.NumClasses]float64
	for k := range p {
		p[k] = math.Exp(z[k] - lse)
	}
	return p
}

// Predict returns the most probable class. Ties go to the lower label.
func (m *Model) Predict(v features.Vector) types.QualityLabel {
	p := m.PredictProba(v)
	return types.QualityLabel(floats.MaxIdx(p[:]))
}

// PredictItem transforms and classifies one item.
func (m *Model) PredictItem(tr features.Transformer, item types.CatalogItem) (types.QualityLabel, [types.NumClasses]float64) {
	p := m.PredictProba(tr.Transform(item))
	return types.QualityLabel(floats.MaxIdx(p[:])), p
}
