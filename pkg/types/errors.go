// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// ErrCorpusStatisticUndefined is returned when frozen corpus statistics cannot
// be computed: the training corpus or split is empty, or a required input
// column is absent. It aborts a run before any item is scored.
var ErrCorpusStatisticUndefined = errors.New("corpus statistic undefined")
