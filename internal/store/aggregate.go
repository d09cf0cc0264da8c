// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/quality-engine/internal/stats"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// GroupBy selects the grouping of an aggregate query.
type GroupBy string

const (
	GroupByQuality  GroupBy = "quality"
	GroupByPriceBin GroupBy = "price_bin"
)

// Metric selects the per-group value of an aggregate query.
type Metric string

const (
	MetricCount    Metric = "count"
	MetricAvgPrice Metric = "avg_price"
	MetricAvgScore Metric = "avg_score"
)

// PriceFilter keeps items on one side of the snapshot's median price.
type PriceFilter string

const (
	PriceAny  PriceFilter = ""
	PriceLow  PriceFilter = "low"
	PriceHigh PriceFilter = "high"
)

// PriceBins is the number of equal-frequency price bins.
const PriceBins = 5

// Aggregation is a grouped query over one snapshot. PriceLow keeps items
// strictly below the median valid price, PriceHigh keeps the rest; either
// drops items without a price.
type Aggregation struct {
	GroupBy GroupBy
	Metric  Metric
	Price   PriceFilter
	Quality *types.QualityLabel
}

// Validate rejects unknown groupings, metrics and filters.
func (a Aggregation) Validate() error {
	switch a.GroupBy {
	case GroupByQuality, GroupByPriceBin:
	default:
		return fmt.Errorf("group_by must be %q or %q, got %q", GroupByQuality, GroupByPriceBin, a.GroupBy)
	}
	switch a.Metric {
	case MetricCount, MetricAvgPrice, MetricAvgScore:
	default:
		return fmt.Errorf("metric must be %q, %q or %q, got %q", MetricCount, MetricAvgPrice, MetricAvgScore, a.Metric)
	}
	switch a.Price {
	case PriceAny, PriceLow, PriceHigh:
	default:
		return fmt.Errorf("price must be %q or %q, got %q", PriceLow, PriceHigh, a.Price)
	}
	if a.Quality != nil && !a.Quality.Valid() {
		return fmt.Errorf("quality must be 0, 1 or 2, got %d", *a.Quality)
	}
	return nil
}

// Group is one row of an aggregate result. Value is the count for
// MetricCount; averages skip items without a price.
type Group struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

type aggRow struct {
	price    float64
	hasPrice bool
	label    types.QualityLabel
}

// Aggregate groups the items of a snapshot. Only non-empty groups are
// returned, in label order or ascending price order. Price bins are
// equal-frequency over every valid price of the snapshot; bins whose edges
// coincide are merged.
func (s *Store) Aggregate(ctx context.Context, snapshotID string, a Aggregation) ([]Group, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	rows, err := sq.Select("price", "quality_label").
		From("items").
		Where(sq.Eq{"snapshot_id": snapshotID}).
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aggregate rows: %w", err)
	}
	defer rows.Close()

	var all []aggRow
	var prices []float64
	for rows.Next() {
		var price sql.NullFloat64
		var lbl int
		if err := rows.Scan(&price, &lbl); err != nil {
			return nil, fmt.Errorf("scanning aggregate row: %w", err)
		}
		r := aggRow{price: price.Float64, hasPrice: price.Valid, label: types.QualityLabel(lbl)}
		if r.hasPrice {
			prices = append(prices, r.price)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Float64s(prices)
	median := stats.Median(prices)
	edges := binEdges(prices, PriceBins)

	type acc struct {
		order    float64
		count    int
		priced   int
		priceSum float64
		scoreSum float64
	}
	groups := map[string]*acc{}
	for _, r := range all {
		if a.Quality != nil && r.label != *a.Quality {
			continue
		}
		switch a.Price {
		case PriceLow:
			if !r.hasPrice || !(r.price < median) {
				continue
			}
		case PriceHigh:
			if !r.hasPrice || !(r.price >= median) {
				continue
			}
		}

		var key string
		var order float64
		switch a.GroupBy {
		case GroupByQuality:
			key, order = r.label.String(), float64(r.label)
		case GroupByPriceBin:
			if !r.hasPrice {
				continue
			}
			i := binIndex(edges, r.price)
			key, order = binLabel(edges, i), float64(i)
		}

		g := groups[key]
		if g == nil {
			g = &acc{order: order}
			groups[key] = g
		}
		g.count++
		g.scoreSum += r.label.Weight()
		if r.hasPrice {
			g.priced++
			g.priceSum += r.price
		}
	}

	out := make([]Group, 0, len(groups))
	for key, g := range groups {
		grp := Group{Key: key, Count: g.count}
		switch a.Metric {
		case MetricCount:
			grp.Value = float64(g.count)
		case MetricAvgPrice:
			if g.priced > 0 {
				grp.Value = g.priceSum / float64(g.priced)
			}
		case MetricAvgScore:
			grp.Value = g.scoreSum / float64(g.count)
		}
		out = append(out, grp)
	}
	sort.Slice(out, func(i, j int) bool {
		return groups[out[i].Key].order < groups[out[j].Key].order
	})
	return out, nil
}

// binEdges returns the distinct quantile edges splitting sorted into n
// equal-frequency bins.
func binEdges(sorted []float64, n int) []float64 {
	if len(sorted) == 0 {
		return nil
	}
	var edges []float64
	for i := 0; i <= n; i++ {
		e := stats.Quantile(sorted, float64(i)/float64(n))
		if len(edges) == 0 || e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	return edges
}

// binIndex returns the bin of p: bins are right-closed and the first bin
// also holds the lowest edge.
func binIndex(edges []float64, p float64) int {
	if len(edges) < 2 {
		return 0
	}
	i := sort.SearchFloat64s(edges[1:], p)
	if i > len(edges)-2 {
		i = len(edges) - 2
	}
	return i
}

func binLabel(edges []float64, i int) string {
	if len(edges) < 2 {
		return fmt.Sprintf("[%.2f, %.2f]", edges[0], edges[0])
	}
	if i == 0 {
		return fmt.Sprintf("[%.2f, %.2f]", edges[0], edges[1])
	}
	return fmt.Sprintf("(%.2f, %.2f]", edges[i], edges[i+1])
}
