package domain

// SearchFilters is the conjunctive metadata filter applied by the semantic index.
// Zero values mean the corresponding condition is absent.
type SearchFilters struct {
	Category     string
	Region       string
	MinArea      int
	MaxArea      int
	MaxPrice     int
	AvailableNow bool
}

// SemanticHit is one nearest-neighbor result from the semantic index.
type SemanticHit struct {
	ListingID  int64
	Similarity float64 // raw cosine similarity, 0..1
	Blended    float64 // similarity blended with business priority
}

// KeywordHit is one lexical result from the keyword index, carrying the raw score.
type KeywordHit struct {
	ListingID int64
	Score     float64
}

// Candidate is a listing under consideration during one request, carrying
// full score provenance. Candidates are transient and never persisted.
type Candidate struct {
	Listing Listing `json:"listing"`

	// Retrieval provenance.
	Similarity  float64 `json:"similarity"`    // semantic, 0..1
	KeywordNorm float64 `json:"keyword_score"` // max-normalized, 0..1
	FusedScore  float64 `json:"fused_score"`

	// Two-tier reranking provenance.
	LocalScore float64  `json:"local_score"` // 0..100
	Reasons    []string `json:"reasons,omitempty"`

	Escalated      bool    `json:"escalated,omitempty"`
	EscalatedScore float64 `json:"escalated_score,omitempty"` // 0..1
	Reasoning      string  `json:"reasoning,omitempty"`
}

// CategoryStats aggregates one category of the catalog.
type CategoryStats struct {
	Count    int `json:"count"`
	AvgPrice int `json:"avg_price"`
	MinPrice int `json:"min_price"`
	MaxPrice int `json:"max_price"`
	AvgArea  int `json:"avg_area"`
}

// MarketStats summarizes the catalog for caller-facing context.
type MarketStats struct {
	Warehouse CategoryStats `json:"warehouse"`
	Office    CategoryStats `json:"office"`
	Total     int           `json:"total"`
}
