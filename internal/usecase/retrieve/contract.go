// Package retrieve orchestrates one search request: query expansion,
// multi-variant semantic search, hybrid fusion with the keyword channel,
// two-tier reranking and the progressive-relaxation fallback ladder.
package retrieve

import (
	"context"

	"github.com/nemovito/rankd/internal/domain"
	"github.com/nemovito/rankd/internal/usecase/expand"
	"github.com/nemovito/rankd/internal/usecase/rerank"
)

// SemanticIndex is the nearest-neighbor channel over listing embeddings.
type SemanticIndex interface {
	Index(ctx context.Context, listings []domain.Listing) (int, error)
	Search(ctx context.Context, query string, filters domain.SearchFilters, topK int) ([]domain.SemanticHit, error)
	IsIndexed(ctx context.Context) (bool, error)
}

// KeywordIndex is the lexical channel. An empty result is a valid answer
// (the channel degrades gracefully when unavailable).
type KeywordIndex interface {
	Reindex(ctx context.Context, listings []domain.Listing) error
	Search(ctx context.Context, query string, topK int) ([]domain.KeywordHit, error)
}

// Catalog is the listing source of truth.
type Catalog interface {
	LoadAll(ctx context.Context) ([]domain.Listing, error)
	GetByID(ctx context.Context, id int64) (domain.Listing, error)
}

// Expander derives query variants and inferred filters from free text.
type Expander interface {
	Expand(query string) expand.Expansion
	Variants(query string, n int) []string
}

// Reranker is the two-tier scorer applied before results leave the engine.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, criteria *domain.Criteria, topK int, force bool) ([]domain.Candidate, rerank.Outcome)
}
