// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package modality

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Embeddings maps item IDs to fixed-width vectors.
type Embeddings struct {
	Dim     int
	Vectors map[string][]float64
}

func (e *Embeddings) add(id string, vec []float64) error {
	if id == "" {
		return fmt.Errorf("embedding without id")
	}
	if len(vec) == 0 {
		return fmt.Errorf("embedding %s is empty", id)
	}
	if e.Dim == 0 {
		e.Dim = len(vec)
	}
	if len(vec) != e.Dim {
		return fmt.Errorf("embedding %s has %d dimensions, want %d", id, len(vec), e.Dim)
	}
	e.Vectors[id] = vec
	return nil
}

// LoadEmbeddings reads embeddings from path. Files ending in .csv are read
// as `id,e0,e1,...` with a header row; anything else as NDJSON records of
// the form {"id": "...", "embedding": [...]}.
func LoadEmbeddings(path string) (*Embeddings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening embeddings: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadEmbeddingsCSV(f)
	}
	return ReadEmbeddingsNDJSON(f)
}

// ReadEmbeddingsNDJSON parses one JSON record per line. Blank lines are
// skipped.
func ReadEmbeddingsNDJSON(r io.Reader) (*Embeddings, error) {
	e := &Embeddings{Vectors: make(map[string][]float64)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec struct {
			ID        string    `json:"id"`
			Embedding []float64 `json:"embedding"`
		}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("embeddings line %d: %w", line, err)
		}
		if err := e.add(rec.ID, rec.Embedding); err != nil {
			return nil, fmt.Errorf("embeddings line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading embeddings: %w", err)
	}
	return e, nil
}

// ReadEmbeddingsCSV parses a header row followed by `id,e0,e1,...` rows.
func ReadEmbeddingsCSV(r io.Reader) (*Embeddings, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("reading embeddings header: %w", err)
	}

	e := &Embeddings{Vectors: make(map[string][]float64)}
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("embeddings row %d: %w", row, err)
		}
		vec := make([]float64, len(rec)-1)
		for j, field := range rec[1:] {
			vec[j], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("embeddings row %d column %d: %w", row, j+1, err)
			}
		}
		if err := e.add(strings.TrimSpace(rec[0]), vec); err != nil {
			return nil, fmt.Errorf("embeddings row %d: %w", row, err)
		}
	}
	return e, nil
}
