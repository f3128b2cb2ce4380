package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nemovito/rankd/internal/domain"
)

type stubCompleter struct {
	response string
	err      error
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, _ bool) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubEscalator struct {
	calls  int
	result []domain.Candidate
	err    error
}

func (s *stubEscalator) Rerank(_ context.Context, _ string, candidates []domain.Candidate, _ *domain.Criteria, topK int) ([]domain.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	// Reverse the local ordering so escalation is observable.
	out := make([]domain.Candidate, 0, topK)
	for i := len(candidates) - 1; i >= 0 && len(out) < topK; i-- {
		c := candidates[i]
		c.Escalated = true
		out = append(out, c)
	}
	return out, nil
}

func candidate(id int64, price int) domain.Candidate {
	return domain.Candidate{
		Listing: domain.Listing{
			ID: id, Category: domain.CategoryWarehouse, Location: "Praha",
			Country: "CZ", AreaSqm: 500, PricePerSqm: price,
			Availability: "2026-06-01",
		},
	}
}

func TestHybrid_ClearSpreadStaysLocal(t *testing.T) {
	esc := &stubEscalator{}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse, MaxPrice: 100}

	// Prices straddle the budget, so local scores diverge far beyond the
	// closeness threshold.
	candidates := []domain.Candidate{
		candidate(1, 90),
		candidate(2, 200),
		candidate(3, 300),
	}

	got, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeLocal {
		t.Fatalf("expected local outcome, got %q", outcome)
	}
	if esc.calls != 0 {
		t.Errorf("escalator must not be called on a clear spread, got %d calls", esc.calls)
	}
	if len(got) != 2 || got[0].Listing.ID != 1 {
		t.Errorf("expected in-budget listing first, got %+v", got)
	}
	if got[0].LocalScore <= got[1].LocalScore {
		t.Errorf("expected descending local scores, got %v then %v", got[0].LocalScore, got[1].LocalScore)
	}
}

func TestHybrid_CloseScoresEscalate(t *testing.T) {
	esc := &stubEscalator{}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse}

	// Identical listings: zero spread.
	candidates := []domain.Candidate{candidate(1, 100), candidate(2, 100), candidate(3, 100)}

	got, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeEscalated {
		t.Fatalf("expected escalated outcome, got %q", outcome)
	}
	if esc.calls != 1 {
		t.Fatalf("expected 1 escalator call, got %d", esc.calls)
	}
	if len(got) != 2 || !got[0].Escalated {
		t.Errorf("expected escalated candidates, got %+v", got)
	}
}

func TestHybrid_TooFewCandidatesSkipEscalation(t *testing.T) {
	esc := &stubEscalator{}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse}

	candidates := []domain.Candidate{candidate(1, 100), candidate(2, 100)}

	_, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeLocal {
		t.Fatalf("expected local outcome below the candidate minimum, got %q", outcome)
	}
	if esc.calls != 0 {
		t.Errorf("expected no escalation for 2 candidates, got %d calls", esc.calls)
	}
}

func TestHybrid_ForceEscalates(t *testing.T) {
	esc := &stubEscalator{}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse, MaxPrice: 100}

	candidates := []domain.Candidate{candidate(1, 90), candidate(2, 300)}

	_, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, true)
	if outcome != OutcomeEscalated {
		t.Fatalf("expected forced escalation, got %q", outcome)
	}
	if esc.calls != 1 {
		t.Errorf("expected 1 escalator call when forced, got %d", esc.calls)
	}
}

func TestHybrid_EscalationErrorFallsBackToLocal(t *testing.T) {
	esc := &stubEscalator{err: errors.New("provider down")}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse}

	candidates := []domain.Candidate{candidate(3, 100), candidate(1, 100), candidate(2, 100)}

	got, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeEscalationFallback {
		t.Fatalf("expected fallback outcome, got %q", outcome)
	}
	// Local ordering survives: equal scores break ties by ID.
	if len(got) != 2 || got[0].Listing.ID != 1 || got[1].Listing.ID != 2 {
		t.Errorf("expected local order by id, got %+v", got)
	}
}

func TestHybrid_EmptyEscalationFallsBackToLocal(t *testing.T) {
	esc := &stubEscalator{result: []domain.Candidate{}}
	h := NewHybrid(esc, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse}

	candidates := []domain.Candidate{candidate(1, 100), candidate(2, 100), candidate(3, 100)}

	got, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeLocal {
		t.Fatalf("expected local outcome on empty escalation, got %q", outcome)
	}
	if len(got) != 2 {
		t.Errorf("expected truncated local order, got %+v", got)
	}
}

func TestHybrid_NilEscalatorNeverEscalates(t *testing.T) {
	h := NewHybrid(nil, DefaultCloseness, zap.NewNop())
	c := &domain.Criteria{Category: domain.CategoryWarehouse}

	candidates := []domain.Candidate{candidate(1, 100), candidate(2, 100), candidate(3, 100)}

	_, outcome := h.Rerank(context.Background(), "sklad", candidates, c, 2, false)
	if outcome != OutcomeLocal {
		t.Fatalf("expected local outcome with nil escalator, got %q", outcome)
	}
}

func TestHybrid_EmptyCandidates(t *testing.T) {
	h := NewHybrid(nil, DefaultCloseness, zap.NewNop())

	got, outcome := h.Rerank(context.Background(), "sklad", nil, nil, 5, false)
	if got != nil || outcome != OutcomeLocal {
		t.Errorf("expected nil/local for empty input, got %v %q", got, outcome)
	}
}

func TestLLM_Rerank(t *testing.T) {
	completer := &stubCompleter{
		response: `{"rankings": [
			{"index": 2, "score": 9.0, "reason": "Nejlepší lokalita"},
			{"index": 1, "score": 6.5, "reason": "Dražší"}
		]}`,
	}
	llm := NewLLM(completer, zap.NewNop())

	candidates := []domain.Candidate{candidate(1, 120), candidate(2, 90)}
	got, err := llm.Rerank(context.Background(), "sklad praha", candidates, nil, 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Listing.ID != 2 {
		t.Errorf("expected provider ordering, got %+v", got)
	}
	if got[0].EscalatedScore != 0.9 {
		t.Errorf("expected score normalized to 0.9, got %v", got[0].EscalatedScore)
	}
	if !got[0].Escalated || got[0].Reasoning != "Nejlepší lokalita" {
		t.Errorf("expected escalation provenance, got %+v", got[0])
	}
}

func TestLLM_PromptContainsCandidatesAndCriteria(t *testing.T) {
	completer := &stubCompleter{response: `{"rankings": []}`}
	llm := NewLLM(completer, zap.NewNop())

	criteria := &domain.Criteria{
		Category: domain.CategoryWarehouse,
		MaxPrice: 120,
	}
	_, err := llm.Rerank(context.Background(), "velký sklad", []domain.Candidate{candidate(1, 90)}, criteria, 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}

	if len(completer.prompts) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(completer.prompts))
	}
	prompt := completer.prompts[0]
	for _, want := range []string{
		`"velký sklad"`,
		"[1] SKLAD - Praha",
		"Typ: sklad",
		"Max. cena: 120 Kč/m²",
		`"rankings"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLLM_TruncatesCandidatePool(t *testing.T) {
	completer := &stubCompleter{response: `{"rankings": []}`}
	llm := NewLLM(completer, zap.NewNop())

	var candidates []domain.Candidate
	for i := int64(1); i <= 10; i++ {
		candidates = append(candidates, candidate(i, 100))
	}

	if _, err := llm.Rerank(context.Background(), "sklad", candidates, nil, 2); err != nil {
		t.Fatalf("rerank: %v", err)
	}
	// topK*2 = 4 candidates maximum in the prompt.
	if strings.Contains(completer.prompts[0], "[5]") {
		t.Error("prompt must not include candidates beyond the pool limit")
	}
}

func TestLLM_OutOfRangeIndicesIgnored(t *testing.T) {
	completer := &stubCompleter{
		response: `{"rankings": [
			{"index": 0, "score": 9, "reason": "x"},
			{"index": 7, "score": 9, "reason": "x"},
			{"index": 1, "score": 5, "reason": "ok"}
		]}`,
	}
	llm := NewLLM(completer, zap.NewNop())

	got, err := llm.Rerank(context.Background(), "sklad", []domain.Candidate{candidate(1, 100)}, nil, 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(got) != 1 || got[0].Listing.ID != 1 {
		t.Errorf("expected only the in-range ranking, got %+v", got)
	}
}

func TestLLM_ScoreClamped(t *testing.T) {
	completer := &stubCompleter{
		response: `{"rankings": [{"index": 1, "score": 15, "reason": "x"}]}`,
	}
	llm := NewLLM(completer, zap.NewNop())

	got, err := llm.Rerank(context.Background(), "sklad", []domain.Candidate{candidate(1, 100)}, nil, 5)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if got[0].EscalatedScore != 1 {
		t.Errorf("expected score clamped to 1, got %v", got[0].EscalatedScore)
	}
}

func TestLLM_CompletionErrorPropagates(t *testing.T) {
	wantErr := errors.New("quota")
	llm := NewLLM(&stubCompleter{err: wantErr}, zap.NewNop())

	_, err := llm.Rerank(context.Background(), "sklad", []domain.Candidate{candidate(1, 100)}, nil, 5)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped completion error, got %v", err)
	}
}

func TestParseRankings_ToleratesShapeVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		n    int
	}{
		{"bare array", `[{"index": 1, "score": 8, "reason": "a"}]`, 1},
		{"rankings key", `{"rankings": [{"index": 1, "score": 8, "reason": "a"}]}`, 1},
		{"results key", `{"results": [{"index": 1, "score": 8, "reason": "a"}]}`, 1},
		{"properties key", `{"properties": [{"index": 1, "score": 8, "reason": "a"}]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRankings(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) != tt.n {
				t.Errorf("expected %d rankings, got %+v", tt.n, got)
			}
		})
	}
}

func TestParseRankings_Errors(t *testing.T) {
	if _, err := parseRankings(`{"unexpected": []}`); err == nil {
		t.Error("expected error for a response without a rankings field")
	}
	if _, err := parseRankings(`not json`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
