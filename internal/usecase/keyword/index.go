// Package keyword implements the lexical search channel over SQLite FTS5.
// It complements the semantic index in hybrid fusion and degrades to an
// empty result set when FTS5 is unavailable, so callers must tolerate an
// empty keyword channel.
package keyword

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/db"
	"github.com/nemovito/rankd/internal/domain"
)

// Index ranks listings by term-frequency relevance (bm25) over a
// pre-tokenized document per listing.
type Index struct {
	db        *sql.DB
	logger    *zap.Logger
	available bool

	mu sync.RWMutex // serializes reindex against concurrent searches
}

// New creates the keyword index, probing the SQLite build for FTS5 support.
func New(ctx context.Context, database *sql.DB, logger *zap.Logger) *Index {
	available := db.HasFTS5(ctx, database)
	if !available {
		logger.Warn("FTS5 unavailable, keyword search disabled")
	}
	return &Index{db: database, logger: logger, available: available}
}

// Available reports whether lexical search is operational.
func (i *Index) Available() bool {
	return i.available
}

// Reindex drops and rebuilds the lexical documents for the given listings.
func (i *Index) Reindex(ctx context.Context, listings []domain.Listing) error {
	if !i.available {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin keyword reindex: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS listings_fts`); err != nil {
		return fmt.Errorf("drop keyword table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`CREATE VIRTUAL TABLE listings_fts USING fts5(listing_id UNINDEXED, body)`); err != nil {
		return fmt.Errorf("create keyword table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO listings_fts (listing_id, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare keyword insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, l := range listings {
		body := strings.Join(Tokenize(l.SearchText()), " ")
		if _, err := stmt.ExecContext(ctx, l.ID, body); err != nil {
			return fmt.Errorf("index listing %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit keyword reindex: %w", err)
	}

	i.logger.Info("Keyword index rebuilt", zap.Int("listings", len(listings)))
	return nil
}

// Search returns up to topK lexical matches with positive scores. A missing
// FTS5 module, an empty query after tokenization, or an absent index all
// yield an empty result, never an error.
func (i *Index) Search(ctx context.Context, query string, topK int) ([]domain.KeywordHit, error) {
	if !i.available {
		return nil, nil
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Each token is quoted so FTS5 treats it as a literal term.
	for idx, t := range tokens {
		tokens[idx] = `"` + t + `"`
	}
	match := strings.Join(tokens, " OR ")

	i.mu.RLock()
	defer i.mu.RUnlock()

	// bm25() returns lower-is-better negative values; negate for a
	// higher-is-better score.
	rows, err := i.db.QueryContext(ctx,
		`SELECT listing_id, -bm25(listings_fts) AS score
		 FROM listings_fts
		 WHERE listings_fts MATCH ?
		 ORDER BY score DESC
		 LIMIT ?`,
		match, topK)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []domain.KeywordHit
	for rows.Next() {
		var h domain.KeywordHit
		if err := rows.Scan(&h.ListingID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		if h.Score > 0 {
			hits = append(hits, h)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword hits: %w", err)
	}

	return hits, nil
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Tokenize lowercases text, strips punctuation while retaining
// language-specific letters and digits, and drops single-rune tokens.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
