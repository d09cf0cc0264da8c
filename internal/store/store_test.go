// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshot(id string) *label.Snapshot {
	return &label.Snapshot{
		ID:        id,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Size:      4,
		Cutpoints: label.Cutpoints{Low: 0.4, High: 0.7},
	}
}

func row(id string, price *float64, l types.QualityLabel) types.LabeledItem {
	return types.LabeledItem{
		CatalogItem: types.CatalogItem{ID: id, Description: "desc " + id, Price: price},
		Signals:     types.SignalBundle{WordCount: 2, TextScore: 0.5, PriceIsOutlier: price == nil, PriceRank: 0.25},
		Label:       types.WeakLabel{CompositeScore: 0.1 * float64(l+1), QualityLabel: l},
	}
}

func fixture() []types.LabeledItem {
	return []types.LabeledItem{
		row("1001", types.Price(10), types.QualityLow),
		row("1002", types.Price(30), types.QualityHigh),
		row("2001", nil, types.QualityLow),
		row("2002", types.Price(20), types.QualityMedium),
	}
}

func TestSaveAndReadBack(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()))

	items, err := s.Items(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, fixture(), items)

	n, err := s.Count(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	info, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", info.ID)
	assert.Equal(t, label.Cutpoints{Low: 0.4, High: 0.7}, info.Cutpoints)
	assert.True(t, info.CreatedAt.Equal(snapshot("").CreatedAt))
}

func TestSaveSnapshotReplacesRows(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()[:1]))

	n, err := s.Count(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSnapshot(ctx, snapshot("old"), fixture()))
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("new"), fixture()[:2]))
	info, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", info.ID)
}

func TestListItems(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()))
	low := types.QualityLow

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"1001", "1002", "2001", "2002"}},
		{"search", Query{Search: "100"}, []string{"1001", "1002"}},
		{"quality", Query{Quality: &low}, []string{"1001", "2001"}},
		{"search and quality", Query{Search: "2", Quality: &low}, []string{"2001"}},
		{"limit", Query{Limit: 3}, []string{"1001", "1002", "2001"}},
		{"wildcards are literal noise", Query{Search: "%_"}, []string{"1001", "1002", "2001", "2002"}},
		{"no match", Query{Search: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := s.ListItems(ctx, "snap-1", tt.q)
			require.NoError(t, err)
			var ids []string
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetItem(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()))

	it, err := s.GetItem(ctx, "snap-1", "2001")
	require.NoError(t, err)
	assert.Nil(t, it.Price)
	assert.True(t, it.Signals.PriceIsOutlier)

	_, err = s.GetItem(ctx, "snap-1", "9999")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetItem(ctx, "other", "1001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, snapshot("snap-1"), fixture()))

	st, err := s.Stats(ctx, "snap-1")
	require.NoError(t, err)

	assert.Equal(t, 2, st[types.QualityLow].Count)
	assert.InDelta(t, 10.0, st[types.QualityLow].AveragePrice, 1e-12, "missing prices are excluded from the average")
	assert.Equal(t, 1, st[types.QualityMedium].Count)
	assert.InDelta(t, 20.0, st[types.QualityMedium].AveragePrice, 1e-12)
	assert.Equal(t, "High", st[types.QualityHigh].Name)
	assert.Equal(t, 1.0, st[types.QualityHigh].QualityScore)

	empty, err := s.Stats(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, empty[types.QualityLow].Count)
	assert.Equal(t, 0.3, empty[types.QualityLow].QualityScore)
}
