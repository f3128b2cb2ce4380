package retrieve

import "github.com/nemovito/rankd/internal/domain"

// Relaxation step tags, in ladder order. GlobalTop is the absolute fallback
// handled by the orchestrator after the ladder is exhausted.
const (
	RelaxPrice        = "price"
	RelaxLocation     = "location"
	RelaxArea         = "area"
	RelaxCategoryOnly = "category_only"
	RelaxGlobalTop    = "global_top"
)

// relaxStep is one rung of the fallback ladder: a pure transformation of
// the original criteria, applied independently of the previous rungs.
type relaxStep struct {
	tag     string
	label   string // Czech, caller-facing
	applies func(domain.Criteria) bool
	relax   func(domain.Criteria) domain.Criteria
}

// ladder is the ordered relaxation sequence: price first, then location,
// then area, then category-only. Each rung starts from the ORIGINAL
// criteria so the caller-facing note names exactly one relaxed criterion.
var ladder = []relaxStep{
	{
		tag:     RelaxPrice,
		label:   "rozpočet",
		applies: func(c domain.Criteria) bool { return c.MaxPrice > 0 },
		relax: func(c domain.Criteria) domain.Criteria {
			out := c.Clone()
			out.MaxPrice = 0
			return out
		},
	},
	{
		tag:     RelaxLocation,
		label:   "lokalita",
		applies: func(c domain.Criteria) bool { return len(c.Locations) > 0 },
		relax: func(c domain.Criteria) domain.Criteria {
			out := c.Clone()
			out.Locations = nil
			return out
		},
	},
	{
		tag:     RelaxArea,
		label:   "plocha",
		applies: func(c domain.Criteria) bool { return c.MinArea > 0 || c.MaxArea > 0 },
		relax: func(c domain.Criteria) domain.Criteria {
			out := c.Clone()
			out.MinArea = 0
			out.MaxArea = 0
			return out
		},
	},
	{
		tag:     RelaxCategoryOnly,
		label:   "jen kategorie",
		applies: func(c domain.Criteria) bool { return c.Category != "" },
		relax: func(c domain.Criteria) domain.Criteria {
			return domain.Criteria{Category: c.Category, Query: c.Query}
		},
	},
}

// relaxLabels maps step tags to Czech labels for the caller-facing note.
var relaxLabels = map[string]string{
	RelaxPrice:        "rozpočet",
	RelaxLocation:     "lokalita",
	RelaxArea:         "plocha",
	RelaxCategoryOnly: "jen kategorie",
	RelaxGlobalTop:    "nejlepší nabídky",
}
