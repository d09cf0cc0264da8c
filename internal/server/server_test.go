// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/quality-engine/internal/catalog/catalogtest"
	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/pipeline"
	"github.com/pdiddy/quality-engine/internal/store"
	"github.com/pdiddy/quality-engine/pkg/types"
)

var (
	fixtureOnce sync.Once
	fixture     *pipeline.Result
)

// trained labels and trains on a small corpus once per test binary.
func trained(t *testing.T) *pipeline.Result {
	t.Helper()
	fixtureOnce.Do(func() {
		res, err := pipeline.Run(context.Background(), catalogtest.Corpus(300, 4), types.DefaultPipelineConfig(), io.Discard)
		if err != nil {
			panic(err)
		}
		fixture = res
	})
	return fixture
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, withData bool, retrain Retrainer) (*Server, *model.Holder) {
	t.Helper()
	st, err := store.Open(types.StoreConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := model.NewHolder(nil)
	if withData {
		res := trained(t)
		require.NoError(t, st.SaveSnapshot(context.Background(), res.Snapshot, res.Rows))
		h.Store(res.Bundle)
	}
	cfg := types.DefaultPipelineConfig().Server
	return New(cfg, st, h, retrain, quietLogger()), h
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestStatus(t *testing.T) {
	empty, _ := newServer(t, false, nil)
	code, out := do(t, empty, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, 0.0, out["products"])
	assert.NotContains(t, out, "model_version")

	s, _ := newServer(t, true, nil)
	code, out = do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 300.0, out["products"])
	assert.Equal(t, trained(t).Bundle.Version, out["model_version"])

	code, _ = do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestProducts(t *testing.T) {
	s, _ := newServer(t, true, nil)

	tests := []struct {
		name   string
		target string
		status int
		count  int
	}{
		{"default limit", "/api/products", http.StatusOK, 300},
		{"limit", "/api/products?limit=5", http.StatusOK, 5},
		{"search", "/api/products?search=item-0001", http.StatusOK, 10},
		{"search with prefix", "/api/products?search=PROD-item-0001", http.StatusOK, 10},
		{"no match", "/api/products?search=zzz", http.StatusOK, 0},
		{"bad quality", "/api/products?quality=7", http.StatusBadRequest, -1},
		{"quality not a number", "/api/products?quality=high", http.StatusBadRequest, -1},
		{"limit zero", "/api/products?limit=0", http.StatusBadRequest, -1},
		{"limit over max", "/api/products?limit=1001", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, s, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, code)
			if tt.count < 0 {
				assert.NotEmpty(t, out["error"])
				return
			}
			assert.Equal(t, float64(tt.count), out["count"])
		})
	}
}

func TestProductsQualityFilter(t *testing.T) {
	s, _ := newServer(t, true, nil)
	code, out := do(t, s, http.MethodGet, "/api/products?quality=2&limit=1000", "")
	require.Equal(t, http.StatusOK, code)

	products := out["products"].([]any)
	want := trained(t).Distribution.Counts[types.QualityHigh]
	assert.Len(t, products, want)
	for _, p := range products {
		prod := p.(map[string]any)
		assert.Equal(t, 2.0, prod["quality_label"])
		assert.Equal(t, "High", prod["quality"])
		assert.True(t, strings.HasPrefix(prod["id"].(string), ProductPrefix))
	}
}

func TestProductDetail(t *testing.T) {
	s, _ := newServer(t, true, nil)

	code, out := do(t, s, http.MethodGet, "/api/products/PROD-item-00003", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PROD-item-00003", out["id"])
	assert.Contains(t, out, "metrics")
	assert.Contains(t, out["prediction"], "probabilities")

	code, out = do(t, s, http.MethodGet, "/api/products/item-00003", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PROD-item-00003", out["id"])

	code, out = do(t, s, http.MethodGet, "/api/products/PROD-missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, out["error"], "PROD-missing")
}

func TestNoSnapshot(t *testing.T) {
	s, _ := newServer(t, false, nil)
	for _, target := range []string{"/api/products", "/api/products/PROD-1", "/api/stats"} {
		code, out := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, code, target)
		assert.Contains(t, out["error"], "no labeled snapshot")
	}
}

func TestStats(t *testing.T) {
	s, _ := newServer(t, true, nil)
	code, out := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 300.0, out["total"])

	labels := out["labels"].([]any)
	require.Len(t, labels, types.NumClasses)
	high := labels[2].(map[string]any)
	assert.Equal(t, "High", high["name"])
	assert.Equal(t, 1.0, high["quality_score"])
	assert.Greater(t, high["average_price"], 0.0)
}

func TestStatsAggregation(t *testing.T) {
	s, _ := newServer(t, true, nil)

	code, out := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, out, "groups")

	code, out = do(t, s, http.MethodGet, "/api/stats?metric=avg_score", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "quality", out["group_by"])
	weights := map[string]float64{"Low": 0.3, "Medium": 0.6, "High": 1.0}
	for _, g := range out["groups"].([]any) {
		grp := g.(map[string]any)
		assert.InDelta(t, weights[grp["key"].(string)], grp["value"], 1e-9)
	}

	sum := func(groups []any) float64 {
		n := 0.0
		for _, g := range groups {
			n += g.(map[string]any)["count"].(float64)
		}
		return n
	}
	code, out = do(t, s, http.MethodGet, "/api/stats?group_by=price_bin", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "count", out["metric"])
	bins := out["groups"].([]any)
	assert.NotEmpty(t, bins)
	assert.LessOrEqual(t, len(bins), 5)
	assert.LessOrEqual(t, sum(bins), out["total"])

	_, low := do(t, s, http.MethodGet, "/api/stats?price=low", "")
	_, high := do(t, s, http.MethodGet, "/api/stats?price=high", "")
	assert.Greater(t, sum(low["groups"].([]any)), 0.0)
	assert.Greater(t, sum(high["groups"].([]any)), 0.0)
	assert.LessOrEqual(t, sum(low["groups"].([]any))+sum(high["groups"].([]any)), out["total"])

	for _, target := range []string{
		"/api/stats?group_by=category",
		"/api/stats?metric=sum",
		"/api/stats?price=mid",
		"/api/stats?quality=5",
	} {
		code, out = do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.Contains(t, out, "error", target)
	}
}

func TestPredict(t *testing.T) {
	s, _ := newServer(t, true, nil)

	code, out := do(t, s, http.MethodPost, "/api/predict", `{"description": "plain mug", "price": 9.99}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, []any{"Low", "Medium", "High"}, out["quality"])
	assert.Equal(t, trained(t).Bundle.Version, out["model_version"])

	code, out = do(t, s, http.MethodPost, "/api/predict", `{"description": "plain mug"}`)
	require.Equal(t, http.StatusOK, code)
	signals := out["signals"].(map[string]any)
	assert.Equal(t, true, signals["price_is_outlier"])
	assert.Equal(t, 0.0, signals["consistency_score"])

	code, _ = do(t, s, http.MethodPost, "/api/predict", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodGet, "/api/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)

	empty, _ := newServer(t, false, nil)
	code, out = do(t, empty, http.MethodPost, "/api/predict", `{"description": "x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, out["error"], "no trained model")
}

func TestRun(t *testing.T) {
	next := trained(t).Bundle
	s, h := newServer(t, false, func(ctx context.Context) (*model.Bundle, error) {
		return next, nil
	})

	code, out := do(t, s, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, next.Version, out["model_version"])
	assert.Same(t, next, h.Current())
}

func TestRunUnavailableAndFailing(t *testing.T) {
	s, _ := newServer(t, false, nil)
	code, _ := do(t, s, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	failing, h := newServer(t, false, func(ctx context.Context) (*model.Bundle, error) {
		return nil, types.ErrCorpusStatisticUndefined
	})
	code, out := do(t, failing, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, out["error"], "corpus statistic undefined")
	assert.Nil(t, h.Current())
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	next := trained(t).Bundle
	s, _ := newServer(t, false, func(ctx context.Context) (*model.Bundle, error) {
		close(started)
		<-release
		return next, nil
	})
	handler := s.Handler()

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	}()
	<-started

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusConflict, second.Code)

	close(release)
	<-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestRunOutlivesClientDisconnect(t *testing.T) {
	next := trained(t).Bundle
	var retrainErr error
	s, h := newServer(t, false, func(ctx context.Context) (*model.Bundle, error) {
		retrainErr = ctx.Err()
		return next, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/run", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, retrainErr)
	assert.Same(t, next, h.Current())
}
