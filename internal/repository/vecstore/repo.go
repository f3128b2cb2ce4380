// Package vecstore is the persisted semantic index: one embedding vector plus
// filterable metadata per listing, stored in SQLite. Nearest-neighbor search
// pre-filters on metadata in SQL and ranks by cosine similarity in Go.
package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
)

// Blended ranking weights: semantic closeness is primary, business priority
// perturbs the final order.
const (
	similarityWeight = 0.6
	priorityWeight   = 0.4
)

// Repo is the semantic index over listing descriptions.
type Repo struct {
	db          *sql.DB
	docEmbedder domain.Embedder // bulk indexing path, uncached
	queryEmbed  domain.Embedder // query path, wrapped by the embedding cache
	logger      *zap.Logger

	mu sync.RWMutex // serializes reindexing against concurrent searches
}

// New creates the semantic index. docEmbedder is used for bulk indexing
// (batch when supported), queryEmbedder for search queries.
func New(db *sql.DB, docEmbedder, queryEmbedder domain.Embedder, logger *zap.Logger) *Repo {
	return &Repo{db: db, docEmbedder: docEmbedder, queryEmbed: queryEmbedder, logger: logger}
}

// Index replaces the whole index with vectors for the given listings.
// Calling it repeatedly with the same catalog is idempotent.
func (r *Repo) Index(ctx context.Context, listings []domain.Listing) (int, error) {
	texts := make([]string, len(listings))
	for i, l := range listings {
		texts[i] = l.EmbeddingText()
	}

	batch, err := r.embedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed listings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listing_vectors"); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	const insert = `INSERT INTO listing_vectors
		(listing_id, vector, category, location, region, country, area_sqm,
		 price_per_sqm, monthly_rent, available_now, priority_score, hot, featured)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, l := range listings {
		availableNow := 0
		if l.AvailableNow() {
			availableNow = 1
		}
		hot, featured := 0, 0
		if l.Hot {
			hot = 1
		}
		if l.Featured {
			featured = 1
		}
		if _, err := tx.ExecContext(ctx, insert,
			l.ID, serializeVector(batch.Embeddings[i]),
			l.Category, l.Location, l.Region, l.Country,
			l.AreaSqm, l.PricePerSqm, l.TotalMonthlyRent(),
			availableNow, l.PriorityScore, hot, featured,
		); err != nil {
			return 0, fmt.Errorf("insert vector for listing %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("Semantic index rebuilt",
		zap.Int("listings", len(listings)),
		zap.Int("tokens", batch.TotalTokens),
	)
	return len(listings), nil
}

// Search embeds the query, applies the conjunctive metadata filter in SQL,
// computes cosine similarity in Go, and returns at most topK hits ranked by
// the blended score (0.6 similarity + 0.4 priority/100).
func (r *Repo) Search(ctx context.Context, query string, f domain.SearchFilters, topK int) ([]domain.SemanticHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	embedded, err := r.queryEmbed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	where, args := buildFilterClause(f)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		"SELECT listing_id, vector, priority_score FROM listing_vectors"+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []domain.SemanticHit
	for rows.Next() {
		var id int64
		var blob []byte
		var priority int
		if err := rows.Scan(&id, &blob, &priority); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}

		vec, err := deserializeVector(blob)
		if err != nil {
			r.logger.Warn("Skipping corrupt vector", zap.Int64("listing_id", id), zap.Error(err))
			continue
		}

		similarity := cosineSimilarity(embedded.Embedding, vec)
		hits = append(hits, domain.SemanticHit{
			ListingID:  id,
			Similarity: similarity,
			Blended:    similarity*similarityWeight + float64(priority)/100*priorityWeight,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vectors: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Blended != hits[j].Blended {
			return hits[i].Blended > hits[j].Blended
		}
		return hits[i].ListingID < hits[j].ListingID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// IsIndexed reports whether the index holds at least one entry.
func (r *Repo) IsIndexed(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listing_vectors").Scan(&n); err != nil {
		return false, fmt.Errorf("count vectors: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := r.docEmbedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, r.docEmbedder, texts)
}

// buildFilterClause turns the present filter fields into a conjunctive WHERE clause.
func buildFilterClause(f domain.SearchFilters) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if f.Category != "" {
		where += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Region != "" {
		where += " AND region = ?"
		args = append(args, f.Region)
	}
	if f.MinArea > 0 {
		where += " AND area_sqm >= ?"
		args = append(args, f.MinArea)
	}
	if f.MaxArea > 0 {
		where += " AND area_sqm <= ?"
		args = append(args, f.MaxArea)
	}
	if f.MaxPrice > 0 {
		where += " AND price_per_sqm <= ?"
		args = append(args, f.MaxPrice)
	}
	if f.AvailableNow {
		where += " AND available_now = 1"
	}
	return where, args
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func serializeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
