// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package features

import "github.com/pdiddy/quality-engine/pkg/types"

// Vector is a sparse feature row. Indices are strictly increasing and every
// index is below the producing transformer's Dim().
type Vector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Dot returns the inner product of v with a dense weight row.
func (v Vector) Dot(w []float64) float64 {
	var sum float64
	for k, i := range v.Indices {
		sum += v.Values[k] * w[i]
	}
	return sum
}

// AddTo adds scale·v into the dense slice dst.
func (v Vector) AddTo(dst []float64, scale float64) {
	for k, i := range v.Indices {
		dst[i] += scale * v.Values[k]
	}
}

// Dense expands v into a dense slice of length dim.
func (v Vector) Dense(dim int) []float64 {
	out := make([]float64, dim)
	v.AddTo(out, 1)
	return out
}

// Len returns the number of stored entries.
func (v Vector) Len() int { return len(v.Indices) }

// Transformer maps a catalog item to a fixed-width feature vector using only
// state frozen at fit time. Implementations are safe for concurrent use.
type Transformer interface {
	Dim() int
	Transform(item types.CatalogItem) Vector
}
