// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the labeled catalog and the current model over a
// JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/quality-engine/internal/catalog"
	"github.com/pdiddy/quality-engine/internal/model"
	"github.com/pdiddy/quality-engine/internal/store"
	"github.com/pdiddy/quality-engine/pkg/types"
)

// ProductPrefix is prepended to catalog IDs in API responses.
const ProductPrefix = "PROD-"

// Catalog is the read side of the snapshot store.
type Catalog interface {
	LatestSnapshot(ctx context.Context) (store.SnapshotInfo, error)
	ListItems(ctx context.Context, snapshotID string, q store.Query) ([]types.LabeledItem, error)
	GetItem(ctx context.Context, snapshotID, id string) (types.LabeledItem, error)
	Count(ctx context.Context, snapshotID string) (int, error)
	Stats(ctx context.Context, snapshotID string) ([types.NumClasses]store.LabelStats, error)
	Aggregate(ctx context.Context, snapshotID string, a store.Aggregation) ([]store.Group, error)
}

// Retrainer runs the batch pipeline and returns the new bundle. It is
// responsible for persisting whatever the run produces.
type Retrainer func(ctx context.Context) (*model.Bundle, error)

// Server serves the catalog API.
type Server struct {
	cfg       types.ServerConfig
	catalog   Catalog
	holder    *model.Holder
	predictor *model.Predictor
	retrain   Retrainer
	logger    *slog.Logger

	// running is held for the duration of a retrain.
	running sync.Mutex
}

// New returns a Server. retrain may be nil, in which case POST /api/run
// is unavailable.
func New(cfg types.ServerConfig, c Catalog, h *model.Holder, retrain Retrainer, logger *slog.Logger) *Server {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 500
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		catalog:   c,
		holder:    h,
		predictor: model.NewPredictor(h),
		retrain:   retrain,
		logger:    logger,
	}
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleProduct)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/run", s.handleRun)
	return s.logRequests(mux)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// --- responses ---

// Product is one catalog entry as returned by the API.
type Product struct {
	ID             string   `json:"id"`
	ProductName    string   `json:"product_name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Price          *float64 `json:"price"`
	ImageURL       string   `json:"image_url,omitempty"`
	QualityLabel   int      `json:"quality_label"`
	Quality        string   `json:"quality"`
	CompositeScore float64  `json:"composite_score"`
}

// ProductDetail adds the signal breakdown and, when a model is loaded, the
// model's prediction.
type ProductDetail struct {
	Product
	Metrics    types.SignalBundle `json:"metrics"`
	Prediction *model.Prediction  `json:"prediction,omitempty"`
}

func toProduct(it types.LabeledItem) Product {
	return Product{
		ID:             ProductPrefix + it.ID,
		ProductName:    catalog.ProductName(it.Description),
		Category:       catalog.Category(it.Description),
		Description:    it.Description,
		Price:          it.Price,
		ImageURL:       it.ImageURL,
		QualityLabel:   int(it.Label.QualityLabel),
		Quality:        it.Label.QualityLabel.String(),
		CompositeScore: it.Label.CompositeScore,
	}
}

type predictRequest struct {
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
}

// --- handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "products": 0}
	if info, err := s.catalog.LatestSnapshot(r.Context()); err == nil {
		n, err := s.catalog.Count(r.Context(), info.ID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		resp["products"] = n
		resp["snapshot"] = info.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, err)
		return
	}
	if b := s.holder.Current(); b != nil {
		resp["model_version"] = b.Version
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := store.Query{Search: strings.TrimSpace(r.URL.Query().Get("search")), Limit: s.cfg.DefaultLimit}
	q.Search = strings.TrimPrefix(q.Search, ProductPrefix)

	if v := r.URL.Query().Get("quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !types.QualityLabel(n).Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("quality must be 0, 1 or 2, got %q", v))
			return
		}
		l := types.QualityLabel(n)
		q.Quality = &l
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.MaxLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d, got %q", s.cfg.MaxLimit, v))
			return
		}
		q.Limit = n
	}

	info, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	items, err := s.catalog.ListItems(r.Context(), info.ID, q)
	if err != nil {
		s.internalError(w, err)
		return
	}
	products := make([]Product, len(items))
	for i, it := range items {
		products[i] = toProduct(it)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": info.ID,
		"count":    len(products),
		"products": products,
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.PathValue("id"), ProductPrefix)
	info, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	it, err := s.catalog.GetItem(r.Context(), info.ID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("product %s not found", ProductPrefix+id))
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	detail := ProductDetail{Product: toProduct(it), Metrics: it.Signals}
	if p, err := s.predictor.PredictItem(it.CatalogItem); err == nil {
		detail.Prediction = &p
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	agg, grouped, err := parseAggregation(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	st, err := s.catalog.Stats(r.Context(), info.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	total := 0
	for _, l := range st {
		total += l.Count
	}
	resp := map[string]any{
		"snapshot": info.ID,
		"total":    total,
		"labels":   st,
	}
	if grouped {
		groups, err := s.catalog.Aggregate(r.Context(), info.ID, agg)
		if err != nil {
			s.internalError(w, err)
			return
		}
		resp["group_by"] = agg.GroupBy
		resp["metric"] = agg.Metric
		resp["groups"] = groups
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseAggregation reads group_by, metric, price and quality. It reports
// false when none is present.
func parseAggregation(v url.Values) (store.Aggregation, bool, error) {
	agg := store.Aggregation{
		GroupBy: store.GroupBy(v.Get("group_by")),
		Metric:  store.Metric(v.Get("metric")),
		Price:   store.PriceFilter(v.Get("price")),
	}
	grouped := v.Has("group_by") || v.Has("metric") || v.Has("price") || v.Has("quality")
	if !grouped {
		return agg, false, nil
	}
	if agg.GroupBy == "" {
		agg.GroupBy = store.GroupByQuality
	}
	if agg.Metric == "" {
		agg.Metric = store.MetricCount
	}
	if q := v.Get("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || !types.QualityLabel(n).Valid() {
			return agg, true, fmt.Errorf("quality must be 0, 1 or 2, got %q", q)
		}
		l := types.QualityLabel(n)
		agg.Quality = &l
	}
	return agg, true, agg.Validate()
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	p, err := s.predictor.Predict(req.Description, req.Price)
	if errors.Is(err, model.ErrNoModel) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.retrain == nil {
		writeError(w, http.StatusServiceUnavailable, "retraining is not configured")
		return
	}
	if !s.running.TryLock() {
		writeError(w, http.StatusConflict, "a pipeline run is already in progress")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	b, err := s.retrain(context.WithoutCancel(r.Context()))
	if err != nil {
		s.internalError(w, fmt.Errorf("pipeline run: %w", err))
		return
	}
	s.holder.Store(b)
	s.logger.Info("installed model", "version", b.Version, "macro_f1", b.Report.MacroF1)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "completed",
		"model_version": b.Version,
		"snapshot":      b.Snapshot.ID,
		"items":         b.Distribution.Total,
		"accuracy":      b.Report.Accuracy,
		"macro_f1":      b.Report.MacroF1,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
}

// --- helpers ---

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (store.SnapshotInfo, bool) {
	info, err := s.catalog.LatestSnapshot(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no labeled snapshot; run the pipeline first")
		return info, false
	}
	if err != nil {
		s.internalError(w, err)
		return info, false
	}
	return info, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
