// Package expand turns a free-text query into search variants and inferred
// structured filters. Expansion is a pure rule table: spelling variants for
// locations, cross-language synonyms for categories, and a fixed vocabulary
// of qualitative size/price descriptors.
package expand

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nemovito/rankd/internal/domain"
)

// InferredFilters are numeric and categorical constraints derived from the
// query text. Zero values mean "not inferred".
type InferredFilters struct {
	Category string
	MinArea  int
	MaxArea  int
	MinPrice int
	MaxPrice int
}

// Expansion is the result of expanding one query.
type Expansion struct {
	Queries    []string // variants, original first, deduplicated
	Locations  []string // expanded place-name spellings
	Categories []string // category synonyms, canonical first
	Region     string   // normalized region name, "" when none detected
	Inferred   InferredFilters
}

// Expander expands queries by closed rule tables. Stateless and safe for
// concurrent use.
type Expander struct{}

// New creates a query expander.
func New() *Expander {
	return &Expander{}
}

// locationExpansions maps a detected place token to its spelling variants.
// Only spelling/transliteration variants of the same place, never nearby
// places.
var locationExpansions = []struct {
	token    string
	variants []string
}{
	{"praha", []string{"praha", "prague"}},
	{"prague", []string{"praha", "prague"}},
	{"brno", []string{"brno"}},
	{"ostrava", []string{"ostrava"}},
	{"plzeň", []string{"plzeň", "plzen", "pilsen"}},
	{"plzen", []string{"plzeň", "plzen"}},
	{"olomouc", []string{"olomouc"}},
	{"liberec", []string{"liberec"}},
	{"hradec králové", []string{"hradec králové", "hradec kralove"}},
	{"kladno", []string{"kladno"}},
}

// categoryExpansions maps a detected category token to its synonyms. The
// canonical category is derived from the token itself.
var categoryExpansions = []struct {
	token    string
	category string
	variants []string
}{
	{"sklad", domain.CategoryWarehouse, []string{"sklad", "skladové prostory", "skladový prostor", "warehouse", "logistický areál", "hala"}},
	{"warehouse", domain.CategoryWarehouse, []string{"warehouse", "sklad", "skladové prostory"}},
	{"kancelář", domain.CategoryOffice, []string{"kancelář", "kancelářské prostory", "kancelářský prostor", "office", "administrativní budova"}},
	{"office", domain.CategoryOffice, []string{"office", "kancelář", "kancelářské prostory"}},
}

// sizeKeywords maps qualitative size descriptors to area bands (m²).
// First match wins; multi-word entries come before their prefixes.
var sizeKeywords = []struct {
	token   string
	minArea int
	maxArea int
}{
	{"velmi velký", 2000, 0},
	{"malý", 0, 200},
	{"střední", 200, 500},
	{"velký", 500, 2000},
	{"obrovský", 5000, 0},
	{"logistický", 2000, 0}, // logistics usually needs larger space
}

// priceKeywords maps qualitative price descriptors to Kč/m²/month bounds.
var priceKeywords = []struct {
	token    string
	minPrice int
	maxPrice int
}{
	{"cenově dostupný", 0, 100},
	{"levný", 0, 80},
	{"prémiový", 150, 0},
	{"luxusní", 200, 0},
}

var (
	areaPattern  = regexp.MustCompile(`(\d+)\s*m[²2]?`)
	pricePattern = regexp.MustCompile(`(\d+)\s*(kč|czk|korun)`)
)

// Expand derives query variants, location spellings, category synonyms, a
// region filter and inferred numeric filters from the query text.
func (e *Expander) Expand(query string) Expansion {
	lower := strings.ToLower(query)

	out := Expansion{
		Queries: []string{query}, // original always first
	}

	// Region detection sets a filter; it never synthesizes city lists.
	out.Region = domain.NormalizeRegion(lower)

	for _, le := range locationExpansions {
		if !strings.Contains(lower, le.token) {
			continue
		}
		out.Locations = append(out.Locations, le.variants...)
		for _, v := range le.variants {
			if v != le.token {
				out.Queries = append(out.Queries, strings.ReplaceAll(lower, le.token, v))
			}
		}
	}

	for _, ce := range categoryExpansions {
		if !strings.Contains(lower, ce.token) {
			continue
		}
		if out.Inferred.Category == "" {
			out.Inferred.Category = ce.category
		}
		out.Categories = append(out.Categories, ce.variants...)
		limit := 2 // keep the variant fan-out bounded
		for _, v := range ce.variants[:min(limit, len(ce.variants))] {
			if v != ce.token {
				out.Queries = append(out.Queries, strings.ReplaceAll(lower, ce.token, v))
			}
		}
	}

	// Qualitative descriptors: first match per axis only.
	for _, sk := range sizeKeywords {
		if strings.Contains(lower, sk.token) {
			out.Inferred.MinArea = sk.minArea
			out.Inferred.MaxArea = sk.maxArea
			break
		}
	}
	for _, pk := range priceKeywords {
		if strings.Contains(lower, pk.token) {
			out.Inferred.MinPrice = pk.minPrice
			out.Inferred.MaxPrice = pk.maxPrice
			break
		}
	}

	// Explicit area: values below 100 are likely street numbers, ignore.
	if m := areaPattern.FindStringSubmatch(lower); m != nil {
		if area, err := strconv.Atoi(m[1]); err == nil && area >= 100 {
			out.Inferred.MinArea = area
		}
	}

	// Explicit price in Kč is always a budget ceiling.
	if m := pricePattern.FindStringSubmatch(lower); m != nil {
		if price, err := strconv.Atoi(m[1]); err == nil {
			out.Inferred.MaxPrice = price
		}
	}

	out.Queries = dedupe(out.Queries)
	out.Locations = dedupe(out.Locations)
	out.Categories = dedupe(out.Categories)

	return out
}

// Variants returns up to n query strings for the multi-variant semantic
// search, padding with simplified forms of the original when the rule
// tables produced too few.
func (e *Expander) Variants(query string, n int) []string {
	queries := e.Expand(query).Queries
	if len(queries) > n {
		return queries[:n]
	}

	if len(queries) < n {
		words := strings.Fields(strings.ToLower(query))
		if len(words) > 2 {
			queries = append(queries, strings.Join(words[1:], " "))
		}
		if len(words) > 3 {
			var key []string
			for _, w := range words {
				if len([]rune(w)) > 3 {
					key = append(key, w)
				}
			}
			if len(key) > 0 {
				if len(key) > 3 {
					key = key[:3]
				}
				queries = append(queries, strings.Join(key, " "))
			}
		}
		queries = dedupe(queries)
	}

	if len(queries) > n {
		queries = queries[:n]
	}
	return queries
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
