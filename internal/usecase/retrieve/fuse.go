package retrieve

import (
	"sort"

	"github.com/nemovito/rankd/internal/domain"
)

// Fusion weights: semantic similarity is the primary signal, keyword
// relevance the complement.
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// fusedHit carries the combined score plus both input signals.
type fusedHit struct {
	ListingID  int64
	Combined   float64
	Similarity float64 // semantic, 0-1
	Keyword    float64 // max-normalized, 0-1
}

// fuse combines the semantic and keyword channels by weighted sum over the
// union of listing ids. Keyword scores are max-normalized to 0-1 first; a
// missing signal counts as 0. Deterministic: ties break by listing id.
func fuse(semantic []domain.SemanticHit, keyword []domain.KeywordHit, semanticWeight, keywordWeight float64, topK int) []fusedHit {
	simByID := make(map[int64]float64, len(semantic))
	for _, h := range semantic {
		if h.Similarity > simByID[h.ListingID] {
			simByID[h.ListingID] = h.Similarity
		}
	}

	var maxKeyword float64
	for _, h := range keyword {
		if h.Score > maxKeyword {
			maxKeyword = h.Score
		}
	}
	kwByID := make(map[int64]float64, len(keyword))
	if maxKeyword > 0 {
		for _, h := range keyword {
			norm := h.Score / maxKeyword
			if norm > kwByID[h.ListingID] {
				kwByID[h.ListingID] = norm
			}
		}
	}

	ids := make(map[int64]struct{}, len(simByID)+len(kwByID))
	for id := range simByID {
		ids[id] = struct{}{}
	}
	for id := range kwByID {
		ids[id] = struct{}{}
	}

	fused := make([]fusedHit, 0, len(ids))
	for id := range ids {
		sim, kw := simByID[id], kwByID[id]
		fused = append(fused, fusedHit{
			ListingID:  id,
			Combined:   sim*semanticWeight + kw*keywordWeight,
			Similarity: sim,
			Keyword:    kw,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Combined != fused[j].Combined {
			return fused[i].Combined > fused[j].Combined
		}
		return fused[i].ListingID < fused[j].ListingID
	})

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
