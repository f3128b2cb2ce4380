// Package score implements the deterministic local relevance scorer: exact
// point rules over criteria, no provider calls. It is the first tier of the
// two-tier reranker and the fallback order when escalation fails.
package score

import (
	"fmt"
	"strings"

	"github.com/nemovito/rankd/internal/domain"
)

// Local scores a listing against caller criteria on a 0-100 scale with
// human-readable match reasons. Stateless and safe for concurrent use.
type Local struct{}

// NewLocal creates a local scorer.
func NewLocal() *Local {
	return &Local{}
}

// Score returns a relevance score in [0,100] and the reasons behind it.
// A nil criteria falls back to attribute-based scoring from a 50-point base.
func (s *Local) Score(l domain.Listing, c *domain.Criteria) (float64, []string) {
	if c == nil || !c.HasConstraints() {
		score := 50.0
		if l.Hot {
			score += 20
		}
		if l.Featured {
			score += 15
		}
		if l.AvailableNow() {
			score += 10
		}
		score += min(float64(l.PriorityScore)/10, 5)
		return clamp(score), []string{"Doporucena nabidka"}
	}

	var score float64
	var reasons []string

	// Category: 25 points, with a penalty for an outright mismatch.
	if c.Category != "" {
		if l.Category == c.Category {
			score += 25
			reasons = append(reasons, "Spravny typ nemovitosti")
		} else {
			score -= 10
		}
	}

	// Location: 25 for a direct match against location or region text,
	// 15 partial credit when only the region matches.
	if len(c.Locations) > 0 {
		locLower := strings.ToLower(l.Location)
		regLower := strings.ToLower(l.Region)

		matched := false
		for _, loc := range c.Locations {
			if strings.Contains(locLower, strings.ToLower(loc)) {
				score += 25
				reasons = append(reasons, fmt.Sprintf("Lokalita: %s", l.Location))
				matched = true
				break
			}
		}
		if !matched {
			for _, loc := range c.Locations {
				if strings.Contains(regLower, strings.ToLower(loc)) {
					score += 15
					reasons = append(reasons, fmt.Sprintf("Region: %s", l.Region))
					break
				}
			}
		}
	}

	// Area: 20 for a full fit, 10 for a graceful near-miss, -5 otherwise.
	if c.MinArea > 0 || c.MaxArea > 0 {
		switch {
		case c.MinArea > 0 && l.AreaSqm < c.MinArea:
			if float64(l.AreaSqm)/float64(c.MinArea) >= 0.8 {
				score += 10
				reasons = append(reasons, fmt.Sprintf("Plocha blizko pozadavku (%dm²)", l.AreaSqm))
			} else {
				score -= 5
			}
		case c.MaxArea > 0 && l.AreaSqm > c.MaxArea:
			if float64(c.MaxArea)/float64(l.AreaSqm) >= 0.7 {
				score += 10
				reasons = append(reasons, fmt.Sprintf("Plocha mirne vetsi (%dm²)", l.AreaSqm))
			} else {
				score -= 5
			}
		default:
			score += 20
			reasons = append(reasons, fmt.Sprintf("Plocha vyhovuje (%dm²)", l.AreaSqm))
		}
	}

	// Price: 20 at or under budget, 10 within 20% over, -10 beyond.
	if c.MaxPrice > 0 {
		switch {
		case l.PricePerSqm <= c.MaxPrice:
			score += 20
			reasons = append(reasons, fmt.Sprintf("Cena v rozpočtu (%d Kč/m²)", l.PricePerSqm))
		case float64(l.PricePerSqm) <= float64(c.MaxPrice)*1.2:
			score += 10
			reasons = append(reasons, fmt.Sprintf("Cena mírně nad rozpočet (%d Kč/m²)", l.PricePerSqm))
		default:
			score -= 10
			reasons = append(reasons, fmt.Sprintf("Nad rozpočet (%d Kč/m²)", l.PricePerSqm))
		}
	}

	if l.AvailableNow() {
		score += 10
		reasons = append(reasons, "Ihned k dispozici")
	}

	// Business flags are mutually exclusive: hot wins over featured.
	if l.Hot {
		score += 5
		reasons = append(reasons, "HOT nabidka")
	} else if l.Featured {
		score += 3
		reasons = append(reasons, "Doporuceno")
	}

	score += min(float64(l.PriorityScore)/20, 5)

	return clamp(score), reasons
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
