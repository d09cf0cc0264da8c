// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pdiddy/quality-engine/pkg/types"
)

// LabeledFileName is the default name of the labeled dataset export.
const LabeledFileName = "train_with_quality_label.csv"

// LabeledHeader is the column order of WriteLabeledCSV.
var LabeledHeader = []string{
	"sample_id", "catalog_content", "price", "image_link",
	"word_count", "text_score", "price_is_outlier", "price_sanity_score",
	"price_rank", "consistency_score", "composite_score", "quality_label",
}

// WriteLabeledCSV writes the labeled dataset with its signal columns.
// Missing prices are written as empty fields.
func WriteLabeledCSV(w io.Writer, rows []types.LabeledItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LabeledHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		price := ""
		if r.Price != nil {
			price = formatFloat(*r.Price)
		}
		rec := []string{
			r.ID,
			r.Description,
			price,
			r.ImageURL,
			strconv.Itoa(r.Signals.WordCount),
			formatFloat(r.Signals.TextScore),
			strconv.FormatBool(r.Signals.PriceIsOutlier),
			formatFloat(r.Signals.PriceSanityScore),
			formatFloat(r.Signals.PriceRank),
			formatFloat(r.Signals.ConsistencyScore),
			formatFloat(r.Label.CompositeScore),
			strconv.Itoa(int(r.Label.QualityLabel)),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
