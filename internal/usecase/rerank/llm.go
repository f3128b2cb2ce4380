// Package rerank implements the two-tier reranker: a deterministic local
// scorer over all candidates, with escalation to a language model only when
// the local scores are too close to call.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
)

// LLM reranks candidates by asking the language-model provider for a
// relevance score per candidate. Failures never propagate: callers fall
// back to the local ordering.
type LLM struct {
	completer domain.Completer
	logger    *zap.Logger
}

// NewLLM creates a language-model reranker.
func NewLLM(completer domain.Completer, logger *zap.Logger) *LLM {
	return &LLM{completer: completer, logger: logger}
}

type ranking struct {
	Index  int     `json:"index"` // 1-based candidate index
	Score  float64 `json:"score"` // 1-10
	Reason string  `json:"reason"`
}

// Rerank scores the candidates with the provider and returns up to topK of
// them ordered by the normalized (0-1) escalated score.
func (r *LLM) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.Candidate,
	criteria *domain.Criteria,
	topK int,
) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > topK*2 {
		candidates = candidates[:topK*2]
	}

	prompt := buildPrompt(query, candidates, criteria)

	raw, err := r.completer.Complete(ctx, prompt, true)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	rankings, err := parseRankings(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rankings: %w", err)
	}

	var scored []domain.Candidate
	for _, rk := range rankings {
		if rk.Index < 1 || rk.Index > len(candidates) {
			continue // out-of-range indices are ignored
		}
		c := candidates[rk.Index-1]
		c.Escalated = true
		c.EscalatedScore = clamp01(rk.Score / 10)
		c.Reasoning = rk.Reason
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].EscalatedScore > scored[j].EscalatedScore
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// buildPrompt serializes the candidates and explicit criteria into a Czech
// prompt asking for a JSON rankings object.
func buildPrompt(query string, candidates []domain.Candidate, criteria *domain.Criteria) string {
	var descs []string
	for i, c := range candidates {
		l := c.Listing

		badges := ""
		if l.Hot {
			badges += " [HOT]"
		}
		if l.Featured {
			badges += " [Doporučeno]"
		}

		availability := "Ihned"
		if !l.AvailableNow() {
			availability = "Od " + l.Availability
		}
		amenities := l.AmenitiesCz()
		if amenities == "" {
			amenities = "Základní"
		}

		descs = append(descs, fmt.Sprintf(`[%d] %s - %s%s
- Typ: %s
- Lokalita: %s (%s)
- Plocha: %d m²
- Cena: %d Kč/m²/měsíc (%d Kč celkem)
- Dostupnost: %s
- Vybavení: %s`,
			i+1, strings.ToUpper(l.CategoryCz()), l.Location, badges,
			l.CategoryCz(),
			l.Location, l.RegionOrCountry(),
			l.AreaSqm,
			l.PricePerSqm, l.TotalMonthlyRent(),
			availability,
			amenities))
	}

	requirements := ""
	if criteria != nil {
		var parts []string
		if criteria.Category != "" {
			cz := "kancelář"
			if criteria.Category == domain.CategoryWarehouse {
				cz = "sklad"
			}
			parts = append(parts, "Typ: "+cz)
		}
		if criteria.MinArea > 0 {
			parts = append(parts, fmt.Sprintf("Min. plocha: %d m²", criteria.MinArea))
		}
		if criteria.MaxArea > 0 {
			parts = append(parts, fmt.Sprintf("Max. plocha: %d m²", criteria.MaxArea))
		}
		if criteria.MaxPrice > 0 {
			parts = append(parts, fmt.Sprintf("Max. cena: %d Kč/m²", criteria.MaxPrice))
		}
		if len(criteria.Locations) > 0 {
			parts = append(parts, "Lokality: "+strings.Join(criteria.Locations, ", "))
		}
		if len(parts) > 0 {
			requirements = "\n\nExplicitní požadavky klienta:\n" + strings.Join(parts, "\n")
		}
	}

	return fmt.Sprintf(`Jsi expert na komerční nemovitosti. Ohodnoť následující nemovitosti podle relevance pro klienta.

DOTAZ KLIENTA: "%s"%s

KANDIDÁTNÍ NEMOVITOSTI:
%s

Pro každou nemovitost urči skóre relevance (1-10) a stručné zdůvodnění.

FAKTORY (váhy):
- Shoda typu nemovitosti: 25%%
- Vhodnost lokality: 25%%
- Adekvátnost velikosti: 20%%
- Cenová dostupnost: 20%%
- Aktuální dostupnost: 10%%

BONUS faktory:
- HOT/Doporučeno: +0.5 bodu
- Přesná shoda všech kritérií: +1 bod

Odpověz POUZE jako JSON objekt s polem "rankings":
{"rankings": [{"index": 1, "score": 8.5, "reason": "Přesná shoda lokality a ceny"}]}`,
		query, requirements, strings.Join(descs, "\n\n"))
}

// parseRankings tolerates minor shape variance in the provider output: a
// bare array, or an object keyed "rankings", "results" or "properties".
func parseRankings(raw string) ([]ranking, error) {
	raw = strings.TrimSpace(raw)

	var direct []ranking
	if err := json.Unmarshal([]byte(raw), &direct); err == nil {
		return direct, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	for _, key := range []string{"rankings", "results", "properties"} {
		payload, ok := wrapped[key]
		if !ok {
			continue
		}
		var rankings []ranking
		if err := json.Unmarshal(payload, &rankings); err != nil {
			return nil, fmt.Errorf("unmarshal %q field: %w", key, err)
		}
		return rankings, nil
	}

	return nil, fmt.Errorf("no rankings field in response")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
