// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists labeled snapshots in SQLite and answers the
// product queries of the serving layer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/quality-engine/internal/label"
	"github.com/pdiddy/quality-engine/pkg/types"
)

const dbFile = "quality.db"

// ErrNotFound is returned when a snapshot or item does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the quality SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates dataDir/quality.db and its schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			size INTEGER NOT NULL,
			cut_low REAL NOT NULL,
			cut_high REAL NOT NULL,
			stored_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			description TEXT NOT NULL,
			price REAL,
			image_url TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			text_score REAL NOT NULL,
			price_is_outlier INTEGER NOT NULL,
			price_sanity_score REAL NOT NULL,
			price_rank REAL NOT NULL,
			consistency_score REAL NOT NULL,
			composite_score REAL NOT NULL,
			quality_label INTEGER NOT NULL,
			PRIMARY KEY (snapshot_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_snapshot_id ON items(snapshot_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_label ON items(snapshot_id, quality_label)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

var itemColumns = []string{
	"id", "description", "price", "image_url",
	"word_count", "text_score", "price_is_outlier", "price_sanity_score",
	"price_rank", "consistency_score", "composite_score", "quality_label",
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Size      int             `json:"size"`
	Cutpoints label.Cutpoints `json:"cutpoints"`
	StoredAt  time.Time       `json:"stored_at"`
}

// SaveSnapshot stores snap and its labeled rows in one transaction. Saving
// the same snapshot ID again replaces its rows.
func (s *Store) SaveSnapshot(ctx context.Context, snap *label.Snapshot, rows []types.LabeledItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := sq.Delete("snapshots").Where(sq.Eq{"id": snap.ID}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("clearing snapshot %s: %w", snap.ID, err)
	}
	_, err = sq.Insert("snapshots").
		Columns("id", "created_at", "size", "cut_low", "cut_high", "stored_at").
		Values(snap.ID, snap.CreatedAt.Format(time.RFC3339Nano), snap.Size,
			snap.Cutpoints.Low, snap.Cutpoints.High, time.Now().UTC().Format(time.RFC3339Nano)).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", snap.ID, err)
	}

	placeholders := make([]any, len(itemColumns)+2)
	insertSQL, _, err := sq.Insert("items").
		Columns(append([]string{"snapshot_id", "seq"}, itemColumns...)...).
		Values(placeholders...).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		var price any
		if r.Price != nil {
			price = *r.Price
		}
		_, err := stmt.ExecContext(ctx,
			snap.ID, i, r.ID, r.Description, price, r.ImageURL,
			r.Signals.WordCount, r.Signals.TextScore, r.Signals.PriceIsOutlier, r.Signals.PriceSanityScore,
			r.Signals.PriceRank, r.Signals.ConsistencyScore, r.Label.CompositeScore, int(r.Label.QualityLabel),
		)
		if err != nil {
			return fmt.Errorf("inserting item %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// LatestSnapshot returns the most recently stored snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	row := sq.Select("id", "created_at", "size", "cut_low", "cut_high", "stored_at").
		From("snapshots").
		OrderBy("rowid DESC").
		Limit(1).
		RunWith(s.db).QueryRowContext(ctx)

	var info SnapshotInfo
	var created, stored string
	err := row.Scan(&info.ID, &created, &info.Size, &info.Cutpoints.Low, &info.Cutpoints.High, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, fmt.Errorf("latest snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("latest snapshot: %w", err)
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	info.StoredAt, _ = time.Parse(time.RFC3339Nano, stored)
	return info, nil
}

// Query filters a product listing.
type Query struct {
	// Search matches a case-insensitive substring of the item ID.
	Search string

	// Quality restricts results to one label when non-nil.
	Quality *types.QualityLabel

	// Limit caps the number of rows; zero or less means no cap.
	Limit int
}

// ListItems returns the items of a snapshot matching q, in corpus order.
func (s *Store) ListItems(ctx context.Context, snapshotID string, q Query) ([]types.LabeledItem, error) {
	b := sq.Select(itemColumns...).From("items").Where(sq.Eq{"snapshot_id": snapshotID}).OrderBy("seq")
	if q.Search != "" {
		b = b.Where(sq.Like{"id": "%" + stripWildcards(q.Search) + "%"})
	}
	if q.Quality != nil {
		b = b.Where(sq.Eq{"quality_label": int(*q.Quality)})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	rows, err := b.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []types.LabeledItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// stripWildcards removes LIKE wildcards from user input.
func stripWildcards(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Items returns every item of a snapshot in corpus order.
func (s *Store) Items(ctx context.Context, snapshotID string) ([]types.LabeledItem, error) {
	return s.ListItems(ctx, snapshotID, Query{})
}

// GetItem returns one item of a snapshot by ID.
func (s *Store) GetItem(ctx context.Context, snapshotID, id string) (types.LabeledItem, error) {
	row := sq.Select(itemColumns...).From("items").
		Where(sq.Eq{"snapshot_id": snapshotID, "id": id}).
		OrderBy("seq").Limit(1).
		RunWith(s.db).QueryRowContext(ctx)

	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LabeledItem{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.LabeledItem{}, fmt.Errorf("item %s: %w", id, err)
	}
	return it, nil
}

// Count returns the number of items in a snapshot.
func (s *Store) Count(ctx context.Context, snapshotID string) (int, error) {
	var n int
	err := sq.Select("count(*)").From("items").Where(sq.Eq{"snapshot_id": snapshotID}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// LabelStats summarizes one quality level of a snapshot.
type LabelStats struct {
	Label        types.QualityLabel `json:"quality"`
	Name         string             `json:"name"`
	Count        int                `json:"count"`
	AveragePrice float64            `json:"average_price"`
	QualityScore float64            `json:"quality_score"`
}

// Stats returns count and average valid price per quality level. Every
// level is present, with zero values when it has no items.
func (s *Store) Stats(ctx context.Context, snapshotID string) ([types.NumClasses]LabelStats, error) {
	var out [types.NumClasses]LabelStats
	for _, l := range types.Labels {
		out[l] = LabelStats{Label: l, Name: l.String(), QualityScore: l.Weight()}
	}

	rows, err := sq.Select("quality_label", "count(*)", "coalesce(avg(price), 0)").
		From("items").
		Where(sq.Eq{"snapshot_id": snapshotID}).
		GroupBy("quality_label").
		RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return out, fmt.Errorf("computing label stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l, n int
		var avg float64
		if err := rows.Scan(&l, &n, &avg); err != nil {
			return out, fmt.Errorf("scanning label stats: %w", err)
		}
		if q := types.QualityLabel(l); q.Valid() {
			out[q].Count = n
			out[q].AveragePrice = avg
		}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (types.LabeledItem, error) {
	var it types.LabeledItem
	var price sql.NullFloat64
	var outlier bool
	var lbl int
	err := sc.Scan(
		&it.ID, &it.Description, &price, &it.ImageURL,
		&it.Signals.WordCount, &it.Signals.TextScore, &outlier, &it.Signals.PriceSanityScore,
		&it.Signals.PriceRank, &it.Signals.ConsistencyScore, &it.Label.CompositeScore, &lbl,
	)
	if err != nil {
		return types.LabeledItem{}, err
	}
	if price.Valid {
		it.Price = types.Price(price.Float64)
	}
	it.Signals.PriceIsOutlier = outlier
	it.Label.QualityLabel = types.QualityLabel(lbl)
	return it, nil
}
