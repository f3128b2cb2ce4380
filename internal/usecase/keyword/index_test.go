package keyword

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/db"
	"github.com/nemovito/rankd/internal/domain"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	database, err := db.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	idx := New(context.Background(), database, zap.NewNop())
	if !idx.Available() {
		t.Skip("FTS5 not available in this SQLite build")
	}
	return idx
}

func testListings() []domain.Listing {
	return []domain.Listing{
		{
			ID: 1, Category: domain.CategoryWarehouse, Location: "Praha-východ",
			Region: "Čechy", Country: "CZ", AreaSqm: 650, PricePerSqm: 110,
			Availability: "ihned", Amenities: []string{"rampa", "vysoké stropy"},
		},
		{
			ID: 2, Category: domain.CategoryOffice, Location: "Brno – centrum",
			Region: "Morava", Country: "CZ", AreaSqm: 150, PricePerSqm: 220,
			Availability: "2026-03-01", Amenities: []string{"klimatizace"},
		},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"punctuation split", "sklad, Praha-východ!", []string{"sklad", "praha", "východ"}},
		{"single runes dropped", "a v sklad", []string{"sklad"}},
		{"digits kept", "650 m2 sklad", []string{"650", "m2", "sklad"}},
		{"diacritics kept", "kancelář s klimatizací", []string{"kancelář", "klimatizací"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
				}
			}
		})
	}
}

func TestReindexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Reindex(ctx, testListings()); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	hits, err := idx.Search(ctx, "sklad rampa", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ListingID != 1 {
		t.Fatalf("expected only the warehouse to match, got %+v", hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("expected positive score, got %v", hits[0].Score)
	}
}

func TestSearch_MoreTermsRankHigher(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Reindex(ctx, testListings()); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	// Both listings mention their location; only the office mentions Brno
	// and klimatizace. OR semantics match both, extra terms rank higher.
	hits, err := idx.Search(ctx, "brno klimatizace praha", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected both listings to match, got %+v", hits)
	}
	if hits[0].ListingID != 2 {
		t.Errorf("expected office first, got %+v", hits)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("expected descending scores, got %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Reindex(ctx, testListings()); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	hits, err := idx.Search(ctx, "neexistující výraz", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.Search(context.Background(), " , ! a ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits for a query with no usable tokens, got %+v", hits)
	}
}

func TestSearch_BeforeReindex(t *testing.T) {
	idx := newTestIndex(t)

	// The FTS table does not exist yet; searching must degrade, not fail.
	hits, err := idx.Search(context.Background(), "sklad", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits before first reindex, got %+v", hits)
	}
}

func TestReindex_Replaces(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Reindex(ctx, testListings()); err != nil {
		t.Fatalf("first reindex: %v", err)
	}
	if err := idx.Reindex(ctx, testListings()[1:]); err != nil {
		t.Fatalf("second reindex: %v", err)
	}

	hits, err := idx.Search(ctx, "sklad", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("removed listing still matches: %+v", hits)
	}
}
