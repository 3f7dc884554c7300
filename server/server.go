package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rental-pricer/models"
	"rental-pricer/services"
	"rental-pricer/storage"
	"rental-pricer/utils"
)

// Options tune the API server.
type Options struct {
	MaxUploadBytes   int64
	CacheEvaluations bool
	// Registry receives the API metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the JSON API over loaded datasets.
type Server struct {
	logger    *utils.Logger
	loader    *storage.Loader
	pricer    *services.Pricer
	insights  *services.InsightService
	metrics   *Metrics
	cache     *evaluationCache
	maxUpload int64
}

// New creates a Server. Datasets already in loader's cache are served
// under their hash.
func New(loader *storage.Loader, logger *utils.Logger, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	s := &Server{
		logger:    logger,
		loader:    loader,
		pricer:    services.NewPricer(logger),
		insights:  services.NewInsightService(logger),
		metrics:   NewMetrics(reg),
		maxUpload: opts.MaxUploadBytes,
	}
	if opts.CacheEvaluations {
		s.cache = newEvaluationCache()
	}
	s.metrics.DatasetsLoaded.Set(float64(loader.Cache().Len()))
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", s.instrument("health", s.handleHealth))
	mux.Handle("/datasets", s.instrument("datasets", s.handleDatasetUpload))
	mux.Handle("/datasets/", s.instrument("dataset", s.handleDatasetGet))
	mux.Handle("/recommendations", s.instrument("recommendations", s.handleRecommendation))
	mux.Handle("/positioning", s.instrument("positioning", s.handlePositioning))
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("[server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"datasets": s.loader.Cache().Len(),
	})
}

// DatasetSummary describes a loaded dataset and the values an input form
// pre-fills from it.
type DatasetSummary struct {
	ID               string            `json:"dataset_id"`
	Listings         int               `json:"listings"`
	HasPriceColumn   bool              `json:"has_price_column"`
	Params           models.Params     `json:"params"`
	RawParameters    map[string]string `json:"raw_parameters"`
	DefaultCapacity  *int              `json:"default_capacity,omitempty"`
	DefaultSurfaceM2 *float64          `json:"default_surface_m2,omitempty"`
}

func (s *Server) summarize(ds *models.Dataset) DatasetSummary {
	defaults := services.WithDatasetMedians(models.Target{}, ds)
	return DatasetSummary{
		ID:               ds.Hash,
		Listings:         len(ds.Listings),
		HasPriceColumn:   ds.HasPriceColumn,
		Params:           services.ParseParams(ds.Parameters, s.logger),
		RawParameters:    ds.Parameters,
		DefaultCapacity:  defaults.Capacity,
		DefaultSurfaceM2: defaults.SurfaceM2,
	}
}

// handleDatasetUpload accepts a workbook or CSV body. The format comes from
// the "name" query parameter, or from the Content-Type when absent.
func (s *Server) handleDatasetUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload_too_large"})
		return
	}
	if len(content) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty_upload"})
		return
	}

	ds, err := s.loader.LoadBytes(uploadName(r), content)
	switch {
	case errors.Is(err, storage.ErrUnsupportedFormat):
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported_format"})
		return
	case errors.Is(err, storage.ErrMissingTable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "missing_listings_table"})
		return
	case err != nil:
		s.logger.Warn("[server] Upload rejected: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_dataset", "detail": err.Error()})
		return
	}

	s.metrics.DatasetsLoaded.Set(float64(s.loader.Cache().Len()))
	writeJSON(w, http.StatusCreated, s.summarize(ds))
}

func uploadName(r *http.Request) string {
	if name := r.URL.Query().Get("name"); name != "" {
		return name
	}
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "csv"):
		return "upload.csv"
	case strings.Contains(ct, "spreadsheet"), strings.Contains(ct, "excel"), strings.Contains(ct, "octet-stream"):
		return "upload.xlsx"
	}
	return "upload"
}

func (s *Server) handleDatasetGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/datasets/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_id"})
		return
	}
	ds, ok := s.loader.Cache().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dataset_not_found"})
		return
	}
	writeJSON(w, http.StatusOK, s.summarize(ds))
}

type RecommendationRequest struct {
	DatasetID     string         `json:"dataset_id"`
	Target        map[string]any `json:"target"`
	Params        map[string]any `json:"params,omitempty"`
	ProposedPrice *float64       `json:"proposed_price,omitempty"`
}

type RecommendationResponse struct {
	*services.Evaluation
	Insights *models.InsightReport `json:"insights"`
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ds, ok := s.loader.Cache().Get(req.DatasetID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dataset_not_found"})
		return
	}

	target := services.ParseTarget(req.Target)
	params := services.MergeParams(services.ParseParams(ds.Parameters, s.logger), stringifyParams(req.Params), s.logger)

	ev, err := s.evaluate(ds, target, params, req.ProposedPrice)
	if errors.Is(err, services.ErrEmptyPanel) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "empty_panel",
			"message":    err.Error(),
			"panel_size": len(ev.Panel),
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "evaluation_failed"})
		return
	}

	writeJSON(w, http.StatusOK, RecommendationResponse{
		Evaluation: ev,
		Insights:   s.insights.Generate(ev.Panel),
	})
}

func (s *Server) evaluate(ds *models.Dataset, target models.Target, params models.Params, proposed *float64) (*services.Evaluation, error) {
	var key string
	if s.cache != nil {
		key = evaluationKey(ds.Hash, target, params, proposed)
		if hit, ok := s.cache.get(key); ok {
			s.metrics.CacheHits.Inc()
			return hit.ev, hit.err
		}
	}

	ev, err := s.pricer.Evaluate(ds, target, params, proposed)
	s.metrics.PanelSize.Observe(float64(len(ev.Panel)))
	if errors.Is(err, services.ErrEmptyPanel) {
		s.metrics.EmptyPanels.Inc()
	}

	if s.cache != nil {
		s.cache.put(key, cachedEvaluation{ev: ev, err: err})
	}
	return ev, err
}

type PositioningRequest struct {
	PriceRange    models.PriceRange `json:"price_range"`
	ProposedPrice *float64          `json:"proposed_price"`
}

func (s *Server) handlePositioning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PositioningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ProposedPrice == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_proposed_price"})
		return
	}
	if req.PriceRange.Low > req.PriceRange.High {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_price_range"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposed_price": *req.ProposedPrice,
		"price_range":    req.PriceRange,
		"positioning":    services.Classify(*req.ProposedPrice, req.PriceRange),
	})
}

// stringifyParams renders JSON parameter overrides in the parameters table
// form, so they go through the same parsing and fallbacks.
func stringifyParams(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
			continue
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.Requests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		s.logger.Debug("[server] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
