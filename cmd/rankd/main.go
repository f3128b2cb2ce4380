package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/config"
	"github.com/nemovito/rankd/internal/db"
	"github.com/nemovito/rankd/internal/domain"
	logpkg "github.com/nemovito/rankd/internal/logger"
	"github.com/nemovito/rankd/internal/metrics"
	catalogrepo "github.com/nemovito/rankd/internal/repository/catalog"
	"github.com/nemovito/rankd/internal/repository/embcache"
	"github.com/nemovito/rankd/internal/repository/vecstore"
	"github.com/nemovito/rankd/internal/seed"
	chiTransport "github.com/nemovito/rankd/internal/transport/chi"
	openaiProv "github.com/nemovito/rankd/internal/transport/openai"
	embeddinguc "github.com/nemovito/rankd/internal/usecase/embedding"
	"github.com/nemovito/rankd/internal/usecase/expand"
	healthuc "github.com/nemovito/rankd/internal/usecase/health"
	"github.com/nemovito/rankd/internal/usecase/keyword"
	"github.com/nemovito/rankd/internal/usecase/rerank"
	"github.com/nemovito/rankd/internal/usecase/retrieve"
	"github.com/nemovito/rankd/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting rankd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
	)

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = database.Close() }()
	logger.Info("Database ready")

	// Register engine metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	catalog := catalogrepo.New(database)

	// Seed the catalog on first startup
	count, err := catalog.Count(ctx)
	if err != nil {
		logger.Fatal("Failed to count catalog", zap.Error(err))
	}
	if count == 0 {
		listings, err := seed.Listings()
		if err != nil {
			logger.Fatal("Failed to load embedded catalog", zap.Error(err))
		}
		if err := catalog.ReplaceAll(ctx, listings); err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Info("Seeded catalog", zap.Int("listings", len(listings)))
	}

	// Embedder chain — composition root.
	// Base provider -> retries -> cache (queries only; indexing bypasses it).
	base := openaiProv.NewEmbedder(&openaiProv.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	retrying := embeddinguc.NewRetrying(
		base,
		cfg.Embedding.MaxRetries,
		time.Duration(cfg.Embedding.RetryDelayMs)*time.Millisecond,
		logger,
	)
	queryEmbedder, err := embcache.New(
		retrying,
		cfg.Retrieval.CacheSize,
		time.Duration(cfg.Retrieval.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create embedding cache", zap.Error(err))
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	completer := openaiProv.NewCompleter(&openaiProv.CompleterConfig{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		Provider:    cfg.Completion.Provider,
		Logger:      logger,
	})

	semantic := vecstore.New(database, retrying, queryEmbedder, logger)
	keywordIdx := keyword.New(ctx, database, logger)

	var escalator rerank.Escalator
	if !cfg.Retrieval.DisableRerank {
		escalator = rerank.NewLLM(completer, logger)
	}
	reranker := rerank.NewHybrid(escalator, cfg.Retrieval.ClosenessThreshold, logger)

	retriever := retrieve.New(
		semantic,
		keywordIdx,
		catalog,
		expand.New(),
		reranker,
		retrieve.Options{
			TopK:           cfg.Retrieval.TopK,
			SemanticWeight: cfg.Retrieval.SemanticWeight,
			KeywordWeight:  cfg.Retrieval.KeywordWeight,
			DisableExpand:  cfg.Retrieval.DisableExpansion,
			DisableHybrid:  cfg.Retrieval.DisableHybrid,
			DisableRerank:  cfg.Retrieval.DisableRerank,
		},
		logger,
	)

	// Index builds call the embedding provider; startup survives its outage
	// and the first successful /v1/reindex recovers.
	if err := retriever.EnsureIndexed(ctx); err != nil {
		logger.Error("Initial indexing failed, serving degraded", zap.Error(err))
	}

	healthSvc := healthuc.New(catalog, newEmbeddingHealthChecker(base), semantic)

	server := chiTransport.NewServer(retriever, catalog, queryEmbedder, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/search", server.Search)
	r.Get("/v1/recommend", server.Recommend)
	r.Post("/v1/reindex", server.Reindex)
	r.Get("/v1/stats", server.Stats)
	r.Get("/health", server.HealthCheck)
	r.Get("/metrics", server.Metrics)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
