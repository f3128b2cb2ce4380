package retrieve

import (
	"testing"

	"github.com/nemovito/rankd/internal/domain"
)

func TestFuse_WeightedSum(t *testing.T) {
	semantic := []domain.SemanticHit{{ListingID: 1, Similarity: 0.8}}
	keyword := []domain.KeywordHit{{ListingID: 1, Score: 4.0}}

	got := fuse(semantic, keyword, 0.7, 0.3, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(got))
	}
	// 0.8*0.7 + 1.0*0.3 (single keyword hit normalizes to 1).
	if want := 0.8*0.7 + 0.3; got[0].Combined != want {
		t.Errorf("combined = %v, want %v", got[0].Combined, want)
	}
}

func TestFuse_UnionOfChannels(t *testing.T) {
	semantic := []domain.SemanticHit{{ListingID: 1, Similarity: 1.0}}
	keyword := []domain.KeywordHit{{ListingID: 2, Score: 3.0}}

	got := fuse(semantic, keyword, 0.7, 0.3, 10)
	if len(got) != 2 {
		t.Fatalf("expected union of both channels, got %+v", got)
	}

	// Semantic-only scores 0.7, keyword-only 0.3.
	if got[0].ListingID != 1 || got[0].Combined != 0.7 {
		t.Errorf("expected semantic-only hit at 0.7, got %+v", got[0])
	}
	if got[1].ListingID != 2 || got[1].Combined != 0.3 {
		t.Errorf("expected keyword-only hit at 0.3, got %+v", got[1])
	}
}

func TestFuse_KeywordMaxNormalization(t *testing.T) {
	keyword := []domain.KeywordHit{
		{ListingID: 1, Score: 8.0},
		{ListingID: 2, Score: 4.0},
	}

	got := fuse(nil, keyword, 0.7, 0.3, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got[0].Keyword != 1.0 {
		t.Errorf("max keyword score must normalize to 1, got %v", got[0].Keyword)
	}
	if got[1].Keyword != 0.5 {
		t.Errorf("expected 0.5 normalized, got %v", got[1].Keyword)
	}
}

func TestFuse_TieBreaksByID(t *testing.T) {
	semantic := []domain.SemanticHit{
		{ListingID: 9, Similarity: 0.5},
		{ListingID: 2, Similarity: 0.5},
	}

	got := fuse(semantic, nil, 0.7, 0.3, 10)
	if got[0].ListingID != 2 || got[1].ListingID != 9 {
		t.Errorf("equal scores must order by id, got %+v", got)
	}
}

func TestFuse_DuplicateSemanticKeepsMax(t *testing.T) {
	// The same listing surfacing from two query variants keeps its best
	// similarity.
	semantic := []domain.SemanticHit{
		{ListingID: 1, Similarity: 0.4},
		{ListingID: 1, Similarity: 0.9},
	}

	got := fuse(semantic, nil, 0.7, 0.3, 10)
	if len(got) != 1 {
		t.Fatalf("expected deduplicated hit, got %+v", got)
	}
	if got[0].Similarity != 0.9 {
		t.Errorf("expected max similarity kept, got %v", got[0].Similarity)
	}
}

func TestFuse_Truncates(t *testing.T) {
	semantic := []domain.SemanticHit{
		{ListingID: 1, Similarity: 0.9},
		{ListingID: 2, Similarity: 0.8},
		{ListingID: 3, Similarity: 0.7},
	}

	got := fuse(semantic, nil, 0.7, 0.3, 2)
	if len(got) != 2 || got[0].ListingID != 1 || got[1].ListingID != 2 {
		t.Errorf("expected top 2 by score, got %+v", got)
	}
}

func TestFuse_Empty(t *testing.T) {
	if got := fuse(nil, nil, 0.7, 0.3, 10); len(got) != 0 {
		t.Errorf("expected no hits, got %+v", got)
	}
}
