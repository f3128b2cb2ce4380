package domain

import "strings"

// KnownRegions is the closed set of region values a listing may carry.
var KnownRegions = []string{"Čechy", "Morava", "Slezsko", "Slovensko"}

// regionAliases maps user-facing region spellings (including inflected and
// foreign-language forms) to canonical region names. Region detection never
// expands a region into member cities; it only drives the region filter.
var regionAliases = map[string]string{
	"morava":        "Morava",
	"moravě":        "Morava",
	"moravia":       "Morava",
	"jižní morava":  "Morava",
	"severní morava": "Morava",
	"čechy":         "Čechy",
	"čechách":       "Čechy",
	"cechy":         "Čechy",
	"bohemia":       "Čechy",
	"slezsko":       "Slezsko",
	"silesia":       "Slezsko",
	"slovensko":     "Slovensko",
	"slovakia":      "Slovensko",
}

// countryAliases maps country spellings to ISO codes.
var countryAliases = map[string]string{
	"česko":           "CZ",
	"česká republika": "CZ",
	"czech":           "CZ",
	"czechia":         "CZ",
	"slovensko":       "SK",
	"slovakia":        "SK",
}

// NormalizeRegion detects a canonical region name anywhere in the text.
// Returns "" when no known region alias occurs.
func NormalizeRegion(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	if region, ok := regionAliases[lower]; ok {
		return region
	}
	for alias, region := range regionAliases {
		if strings.Contains(lower, alias) {
			return region
		}
	}
	return ""
}

// NormalizeCountry detects a country code anywhere in the text.
// Returns "" when no known country alias occurs.
func NormalizeCountry(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	for alias, code := range countryAliases {
		if strings.Contains(lower, alias) {
			return code
		}
	}
	return ""
}
