// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads raw catalog corpora and writes labeled datasets.
// Corpora are CSV with a header row or NDJSON, one item per line.
package catalog

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/quality-engine/internal/fetch"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// Format is a corpus encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

// FormatOf infers the format from the source's extension. Anything that is
// not .ndjson, .jsonl or .json is read as CSV.
func FormatOf(src string) Format {
	if i := strings.IndexAny(src, "?#"); i >= 0 && fetch.IsRemote(src) {
		src = src[:i]
	}
	switch strings.ToLower(filepath.Ext(src)) {
	case ".ndjson", ".jsonl", ".json":
		return FormatNDJSON
	default:
		return FormatCSV
	}
}

// columnAliases maps each field to the header names that may carry it.
var columnAliases = map[string][]string{
	"id":          {"id", "sample_id"},
	"description": {"description", "catalog_content"},
	"price":       {"price"},
	"image_url":   {"image_url", "image_link"},
}

var requiredColumns = []string{"id", "description", "price"}

// Load reads the corpus at src, a local path or an http(s) URL.
func Load(ctx context.Context, src string, opts fetch.Options) ([]types.CatalogItem, error) {
	rc, err := fetch.Open(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	items, err := Read(rc, FormatOf(src))
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", src, err)
	}
	return items, nil
}

// Read decodes a corpus. A missing id, description or price column is
// types.ErrCorpusStatisticUndefined. Unparseable prices become missing
// prices; rows are never dropped for having empty fields.
func Read(r io.Reader, format Format) ([]types.CatalogItem, error) {
	switch format {
	case FormatNDJSON:
		return readNDJSON(r)
	case FormatCSV, "":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", format)
	}
}

func readCSV(r io.Reader) ([]types.CatalogItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("corpus has no header row: %w", types.ErrCorpusStatisticUndefined)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var items []types.CatalogItem
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		items = append(items, types.CatalogItem{
			ID:          strings.TrimSpace(field("id")),
			Description: field("description"),
			Price:       ParsePrice(field("price")),
			ImageURL:    strings.TrimSpace(field("image_url")),
		})
	}
	return items, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	cols := make(map[string]int)
	for field, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[field] = i
				break
			}
		}
	}
	for _, field := range requiredColumns {
		if _, ok := cols[field]; !ok {
			return nil, fmt.Errorf("corpus is missing the %s column (accepted: %s): %w",
				field, strings.Join(columnAliases[field], ", "), types.ErrCorpusStatisticUndefined)
		}
	}
	return cols, nil
}

func readNDJSON(r io.Reader) ([]types.CatalogItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var items []types.CatalogItem
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(items) == 0 {
			for _, field := range requiredColumns {
				if lookup(raw, field) == nil {
					return nil, fmt.Errorf("corpus record is missing the %s field (accepted: %s): %w",
						field, strings.Join(columnAliases[field], ", "), types.ErrCorpusStatisticUndefined)
				}
			}
		}
		items = append(items, types.CatalogItem{
			ID:          strings.TrimSpace(rawString(lookup(raw, "id"))),
			Description: rawString(lookup(raw, "description")),
			Price:       ParsePrice(rawString(lookup(raw, "price"))),
			ImageURL:    strings.TrimSpace(rawString(lookup(raw, "image_url"))),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return items, nil
}

func lookup(raw map[string]json.RawMessage, field string) json.RawMessage {
	for _, a := range columnAliases[field] {
		if v, ok := raw[a]; ok {
			return v
		}
	}
	return nil
}

// rawString renders a JSON scalar as text: strings are unquoted, numbers
// keep their literal form and null becomes "".
func rawString(v json.RawMessage) string {
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// ParsePrice parses a price field. Blank or unparseable text, and values
// that are not finite and positive, are missing prices.
func ParsePrice(s string) *float64 {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	item := types.CatalogItem{Price: &v}
	if _, ok := item.ValidPrice(); !ok {
		return nil
	}
	return &v
}
