// Package chi exposes the retrieval engine over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
	"github.com/nemovito/rankd/internal/repository/embcache"
	healthuc "github.com/nemovito/rankd/internal/usecase/health"
	"github.com/nemovito/rankd/internal/usecase/retrieve"
)

// Retriever is the search pipeline consumed by the HTTP layer.
type Retriever interface {
	Search(ctx context.Context, criteria domain.Criteria, topK int) (retrieve.Result, error)
	Recommend(ctx context.Context, topK int) ([]domain.Listing, error)
	Reindex(ctx context.Context) (int, error)
}

// StatsProvider aggregates the catalog for the stats endpoint.
type StatsProvider interface {
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

// CacheInspector exposes embedding cache effectiveness.
type CacheInspector interface {
	Stats() embcache.Stats
}

// Server holds the HTTP handlers.
type Server struct {
	retriever Retriever
	stats     StatsProvider
	cache     CacheInspector
	health    *healthuc.Service
	logger    *zap.Logger
}

// NewServer creates an HTTP API server. cache may be nil.
func NewServer(
	retriever Retriever,
	stats StatsProvider,
	cache CacheInspector,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		retriever: retriever,
		stats:     stats,
		cache:     cache,
		health:    health,
		logger:    logger,
	}
}

// searchRequest is the POST /v1/search body. All fields are optional.
type searchRequest struct {
	Query        string   `json:"query"`
	Category     string   `json:"category"`
	Locations    []string `json:"locations"`
	MinArea      int      `json:"min_area"`
	MaxArea      int      `json:"max_area"`
	MaxPrice     int      `json:"max_price"`
	NotLaterThan string   `json:"not_later_than"` // ISO date
	TopK         int      `json:"top_k"`
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.Category != "" && req.Category != domain.CategoryWarehouse && req.Category != domain.CategoryOffice {
		writeError(w, http.StatusBadRequest, "validation_failed",
			"category must be \"warehouse\" or \"office\"")
		return
	}

	criteria := domain.Criteria{
		Category:  req.Category,
		Locations: req.Locations,
		MinArea:   req.MinArea,
		MaxArea:   req.MaxArea,
		MaxPrice:  req.MaxPrice,
		Query:     req.Query,
	}
	if req.NotLaterThan != "" {
		d, err := time.Parse("2006-01-02", req.NotLaterThan)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed",
				"not_later_than must be an ISO date (YYYY-MM-DD)")
			return
		}
		criteria.NotLaterThan = &d
	}

	result, err := s.retriever.Search(r.Context(), criteria, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Recommend handles GET /v1/recommend.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	listings, err := s.retriever.Recommend(r.Context(), 0)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

// Reindex handles POST /v1/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	count, err := s.retriever.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"indexed": count})
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	market, err := s.stats.MarketStats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := map[string]any{"market": market}
	if s.cache != nil {
		resp["embedding_cache"] = s.cache.Stats()
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrInvalidListing):
		writeError(w, http.StatusBadRequest, "validation_failed", domain.ErrInvalidListing.Error())
	case errors.Is(err, domain.ErrEmbeddingProvider):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", domain.ErrEmbeddingProvider.Error())
	case errors.Is(err, domain.ErrCompletionProvider):
		writeError(w, http.StatusBadGateway, "completion_provider_error", domain.ErrCompletionProvider.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
