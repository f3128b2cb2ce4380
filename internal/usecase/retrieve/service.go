package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nemovito/rankd/internal/domain"
	"github.com/nemovito/rankd/internal/metrics"
	"github.com/nemovito/rankd/internal/usecase/rerank"
)

// Orchestrator defaults.
const (
	DefaultTopK     = 5
	maxVariants     = 3
	defaultQuery    = "komerční nemovitost"
	availableNowCut = 14 * 24 * time.Hour
)

// Options tune one Service instance. Zero values enable everything with
// the default weights.
type Options struct {
	TopK            int
	SemanticWeight  float64
	KeywordWeight   float64
	DisableExpand   bool
	DisableHybrid   bool
	DisableRerank   bool
	ForceEscalation bool
}

// Result is the produced interface of one search: ordered listings, score
// provenance per candidate, and relaxation bookkeeping for caller-facing
// messaging. Relaxed is empty when an exact match was found.
type Result struct {
	Listings   []domain.Listing   `json:"listings"`
	Candidates []domain.Candidate `json:"candidates"`
	Relaxed    []string           `json:"relaxed,omitempty"` // step tags, ladder order
	Degraded   bool               `json:"degraded,omitempty"`
	Note       string             `json:"note,omitempty"` // Czech, names relaxed criteria
}

// Service is the retrieval orchestrator. One instance serves concurrent
// requests; all per-request state lives on the stack.
type Service struct {
	semantic SemanticIndex
	keyword  KeywordIndex
	catalog  Catalog
	expander Expander
	reranker Reranker
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// New creates the orchestrator.
func New(
	semantic SemanticIndex,
	keyword KeywordIndex,
	catalog Catalog,
	expander Expander,
	reranker Reranker,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.SemanticWeight <= 0 {
		opts.SemanticWeight = DefaultSemanticWeight
	}
	if opts.KeywordWeight <= 0 {
		opts.KeywordWeight = DefaultKeywordWeight
	}
	return &Service{
		semantic: semantic,
		keyword:  keyword,
		catalog:  catalog,
		expander: expander,
		reranker: reranker,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Tests use this to pin the
// available-now inference.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search runs the full pipeline for one request. Empty results are never an
// error: the fallback ladder relaxes criteria until something matches, down
// to the catalog's top listings. Only an empty catalog yields an empty result.
func (s *Service) Search(ctx context.Context, criteria domain.Criteria, topK int) (Result, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}

	effective := criteria.Clone()
	region := ""

	// Expansion-inferred filters fill gaps only: explicit values win.
	if !s.opts.DisableExpand && effective.Query != "" {
		exp := s.expander.Expand(effective.Query)
		region = exp.Region
		if effective.Category == "" {
			effective.Category = exp.Inferred.Category
		}
		if len(effective.Locations) == 0 {
			effective.Locations = exp.Locations
		}
		if effective.MinArea == 0 {
			effective.MinArea = exp.Inferred.MinArea
		}
		if effective.MaxArea == 0 {
			effective.MaxArea = exp.Inferred.MaxArea
		}
		if effective.MaxPrice == 0 {
			effective.MaxPrice = exp.Inferred.MaxPrice
		}
	}

	if effective.Query == "" {
		effective.Query = synthesizeQuery(effective)
	}

	candidates, err := s.runSearch(ctx, effective, region, topK)
	if err != nil {
		return Result{}, err
	}

	result := Result{}

	// Fallback ladder: each rung relaxes exactly one criterion of the
	// ORIGINAL effective criteria and stops at the first non-empty rung.
	if len(candidates) == 0 && effective.HasConstraints() {
		for _, step := range ladder {
			if !step.applies(effective) {
				continue
			}
			relaxed := step.relax(effective)
			rungRegion := region
			if step.tag == RelaxLocation || step.tag == RelaxCategoryOnly {
				rungRegion = ""
			}

			candidates, err = s.runSearch(ctx, relaxed, rungRegion, topK)
			if err != nil {
				return Result{}, err
			}
			if len(candidates) > 0 {
				result.Relaxed = append(result.Relaxed, step.tag)
				s.logger.Info("Relaxed search criteria",
					zap.String("step", step.tag),
					zap.Int("results", len(candidates)))
				break
			}
		}
	}

	// Absolute fallback: the catalog's top listings by priority.
	if len(candidates) == 0 {
		candidates, err = s.globalTop(ctx, topK)
		if err != nil {
			return Result{}, err
		}
		if len(candidates) > 0 {
			result.Relaxed = append(result.Relaxed, RelaxGlobalTop)
		}
	}

	if len(candidates) > 1 && !s.opts.DisableRerank && s.reranker != nil {
		var outcome rerank.Outcome
		candidates, outcome = s.reranker.Rerank(ctx, effective.Query, candidates, &criteria, topK, s.opts.ForceEscalation)
		if outcome == rerank.OutcomeEscalationFallback {
			result.Degraded = true
		}
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	result.Candidates = candidates
	result.Listings = make([]domain.Listing, len(candidates))
	for i, c := range candidates {
		result.Listings[i] = c.Listing
	}
	if len(result.Relaxed) > 0 {
		result.Degraded = true
		result.Note = relaxNote(result.Relaxed)
	}

	metrics.SearchRequestsTotal.WithLabelValues(searchOutcome(result)).Inc()
	return result, nil
}

// Recommend returns the catalog's most promoted listings: hot first, then
// featured, then by priority score.
func (s *Service) Recommend(ctx context.Context, topK int) ([]domain.Listing, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}

	listings, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		if a.Hot != b.Hot {
			return a.Hot
		}
		if a.Featured != b.Featured {
			return a.Featured
		}
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		return a.ID < b.ID
	})

	if len(listings) > topK {
		listings = listings[:topK]
	}
	return listings, nil
}

// Reindex rebuilds both indexes from the catalog. Idempotent: repeated calls
// with the same catalog yield identical search results.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	listings, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}

	count, err := s.semantic.Index(ctx, listings)
	if err != nil {
		return 0, fmt.Errorf("semantic index: %w", err)
	}

	if err := s.keyword.Reindex(ctx, listings); err != nil {
		// Lexical channel is a complement; its loss degrades, not fails.
		s.logger.Warn("Keyword reindex failed, lexical channel degraded", zap.Error(err))
	}

	s.logger.Info("Reindex complete", zap.Int("listings", count))
	return count, nil
}

// EnsureIndexed builds the indexes when empty, e.g. on first startup.
func (s *Service) EnsureIndexed(ctx context.Context) error {
	indexed, err := s.semantic.IsIndexed(ctx)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if indexed {
		return nil
	}
	if _, err := s.Reindex(ctx); err != nil {
		return err
	}
	return nil
}

// runSearch executes one criteria set: multi-variant semantic search, hybrid
// fusion, id resolution and post-filters. Returns candidates in fused order.
func (s *Service) runSearch(ctx context.Context, c domain.Criteria, region string, topK int) ([]domain.Candidate, error) {
	filters := s.buildFilters(c, region)

	variants := []string{c.Query}
	if !s.opts.DisableExpand {
		variants = s.expander.Variants(c.Query, maxVariants)
	}

	semantic, err := s.searchVariants(ctx, variants, filters, topK*2)
	if err != nil {
		return nil, err
	}

	var keyword []domain.KeywordHit
	if !s.opts.DisableHybrid {
		// Lexical channel uses the original query, not the variants.
		keyword, err = s.keyword.Search(ctx, c.Query, topK*2)
		if err != nil {
			s.logger.Warn("Keyword search failed, semantic only", zap.Error(err))
			keyword = nil
		}
	}

	fused := fuse(semantic, keyword, s.opts.SemanticWeight, s.opts.KeywordWeight, topK*2)

	candidates := make([]domain.Candidate, 0, len(fused))
	for _, h := range fused {
		listing, err := s.catalog.GetByID(ctx, h.ListingID)
		if err != nil {
			s.logger.Warn("Indexed listing missing from catalog",
				zap.Int64("listing_id", h.ListingID), zap.Error(err))
			continue
		}

		if !matchesLocations(listing, c.Locations) {
			continue
		}
		if !availableBy(listing, c.NotLaterThan) {
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Listing:     listing,
			Similarity:  h.Similarity,
			KeywordNorm: h.Keyword,
			FusedScore:  h.Combined,
		})
	}

	return candidates, nil
}

// searchVariants runs up to maxVariants query strings through the semantic
// index in parallel and unions the hits, keeping the highest similarity per
// listing id.
func (s *Service) searchVariants(ctx context.Context, variants []string, filters domain.SearchFilters, topK int) ([]domain.SemanticHit, error) {
	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}

	var mu sync.Mutex
	best := make(map[int64]domain.SemanticHit)

	g, gctx := errgroup.WithContext(ctx)
	for _, variant := range variants {
		variant := variant
		g.Go(func() error {
			hits, err := s.semantic.Search(gctx, variant, filters, topK)
			if err != nil {
				return fmt.Errorf("semantic search %q: %w", variant, err)
			}

			mu.Lock()
			for _, h := range hits {
				if prev, ok := best[h.ListingID]; !ok || h.Similarity > prev.Similarity {
					best[h.ListingID] = h
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per variant above
	}

	hits := make([]domain.SemanticHit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Blended != hits[j].Blended {
			return hits[i].Blended > hits[j].Blended
		}
		return hits[i].ListingID < hits[j].ListingID
	})
	return hits, nil
}

// globalTop resolves the absolute fallback: catalog listings by priority.
func (s *Service) globalTop(ctx context.Context, topK int) ([]domain.Candidate, error) {
	listings, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		if listings[i].PriorityScore != listings[j].PriorityScore {
			return listings[i].PriorityScore > listings[j].PriorityScore
		}
		return listings[i].ID < listings[j].ID
	})

	if len(listings) > topK {
		listings = listings[:topK]
	}

	candidates := make([]domain.Candidate, len(listings))
	for i, l := range listings {
		candidates[i] = domain.Candidate{Listing: l}
	}
	return candidates, nil
}

// buildFilters maps criteria onto the semantic index's conjunctive metadata
// filter. Locations are NOT part of it (free-text place names do not filter
// reliably); they are applied as a post-filter after id resolution.
func (s *Service) buildFilters(c domain.Criteria, region string) domain.SearchFilters {
	f := domain.SearchFilters{
		Category: c.Category,
		Region:   region,
		MinArea:  c.MinArea,
		MaxArea:  c.MaxArea,
		MaxPrice: c.MaxPrice,
	}
	// A deadline within two weeks effectively means "available now".
	if c.NotLaterThan != nil && c.NotLaterThan.Before(s.now().Add(availableNowCut)) {
		f.AvailableNow = true
	}
	return f
}

// matchesLocations applies the location post-filter: any requested place
// name matching the listing location or region as a case-insensitive
// substring passes. No requested locations means no filter.
func matchesLocations(l domain.Listing, locations []string) bool {
	if len(locations) == 0 {
		return true
	}
	loc := strings.ToLower(l.Location)
	reg := strings.ToLower(l.Region)
	for _, want := range locations {
		needle := strings.ToLower(want)
		if strings.Contains(loc, needle) || strings.Contains(reg, needle) {
			return true
		}
	}
	return false
}

// availableBy drops listings whose availability date falls after the
// caller's deadline. Immediate availability always passes; unparseable
// dates are treated as unavailable.
func availableBy(l domain.Listing, deadline *time.Time) bool {
	if deadline == nil || l.AvailableNow() {
		return true
	}
	d, ok := l.AvailabilityDate()
	if !ok {
		return false
	}
	return !d.After(*deadline)
}

// synthesizeQuery builds an embedding query from structured criteria when
// the caller gave no free text.
func synthesizeQuery(c domain.Criteria) string {
	var parts []string
	if c.Category == domain.CategoryWarehouse {
		parts = append(parts, "sklad skladové prostory")
	} else if c.Category == domain.CategoryOffice {
		parts = append(parts, "kancelář kancelářské prostory")
	}
	parts = append(parts, c.Locations...)
	if c.MinArea > 0 {
		parts = append(parts, fmt.Sprintf("%d m²", c.MinArea))
	}
	if len(parts) == 0 {
		return defaultQuery
	}
	return strings.Join(parts, " ")
}

func relaxNote(tags []string) string {
	labels := make([]string, len(tags))
	for i, t := range tags {
		labels[i] = relaxLabels[t]
	}
	return "Uvolněná kritéria: " + strings.Join(labels, ", ")
}

func searchOutcome(r Result) string {
	switch {
	case len(r.Listings) == 0:
		return "empty"
	case len(r.Relaxed) > 0:
		return "relaxed:" + r.Relaxed[0]
	default:
		return "exact"
	}
}
