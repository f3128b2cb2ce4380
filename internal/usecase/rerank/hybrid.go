package rerank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
	"github.com/nemovito/rankd/internal/usecase/score"
)

// Escalation defaults: the language model is consulted only when at least
// MinCandidates compete and the local-score spread across the contested
// window is below Closeness (on the 0-1 normalized scale).
const (
	DefaultCloseness     = 0.15
	DefaultMinCandidates = 3
)

// Outcome names which tier produced the final ordering.
type Outcome string

const (
	OutcomeLocal              Outcome = "local"
	OutcomeEscalated          Outcome = "escalated"
	OutcomeEscalationFallback Outcome = "escalation_fallback"
)

// Escalator is the second-tier reranker contract. Implemented by LLM and by
// test stubs asserting call counts.
type Escalator interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, criteria *domain.Criteria, topK int) ([]domain.Candidate, error)
}

// Hybrid combines the local scorer with conditional escalation. Escalation
// failures degrade to the local ordering and never surface as errors.
type Hybrid struct {
	local         *score.Local
	escalator     Escalator
	closeness     float64
	minCandidates int
	logger        *zap.Logger
}

// NewHybrid creates the two-tier reranker. escalator may be nil, which
// disables escalation entirely.
func NewHybrid(escalator Escalator, closeness float64, logger *zap.Logger) *Hybrid {
	if closeness <= 0 {
		closeness = DefaultCloseness
	}
	return &Hybrid{
		local:         score.NewLocal(),
		escalator:     escalator,
		closeness:     closeness,
		minCandidates: DefaultMinCandidates,
		logger:        logger,
	}
}

// Rerank orders candidates by local score, escalating to the language model
// when the top of the field is too close to call (or when forced). The
// returned outcome distinguishes "used fallback" from a clean run.
func (h *Hybrid) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.Candidate,
	criteria *domain.Criteria,
	topK int,
	force bool,
) ([]domain.Candidate, Outcome) {
	if len(candidates) == 0 {
		return nil, OutcomeLocal
	}

	for i := range candidates {
		s, reasons := h.local.Score(candidates[i].Listing, criteria)
		candidates[i].LocalScore = s
		candidates[i].Reasons = reasons
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].LocalScore != candidates[j].LocalScore {
			return candidates[i].LocalScore > candidates[j].LocalScore
		}
		return candidates[i].Listing.ID < candidates[j].Listing.ID
	})

	useLLM := force
	if !useLLM && h.escalator != nil && len(candidates) >= h.minCandidates {
		// Spread between the best and the last contested position,
		// on the normalized 0-1 scale.
		window := topK + 2
		if window > len(candidates) {
			window = len(candidates)
		}
		spread := (candidates[0].LocalScore - candidates[window-1].LocalScore) / 100
		if spread < h.closeness {
			useLLM = true
			h.logger.Debug("Local scores too close, escalating",
				zap.Float64("spread", spread),
				zap.Float64("threshold", h.closeness))
		}
	}

	if useLLM && h.escalator != nil {
		pool := candidates
		if len(pool) > topK*2 {
			pool = pool[:topK*2]
		}

		escalated, err := h.escalator.Rerank(ctx, query, pool, criteria, topK)
		if err != nil {
			h.logger.Warn("Escalation failed, falling back to local ordering", zap.Error(err))
			return truncate(candidates, topK), OutcomeEscalationFallback
		}
		if len(escalated) > 0 {
			return escalated, OutcomeEscalated
		}
	}

	return truncate(candidates, topK), OutcomeLocal
}

func truncate(candidates []domain.Candidate, topK int) []domain.Candidate {
	if len(candidates) > topK {
		return candidates[:topK]
	}
	return candidates
}
