package domain

import "time"

// Criteria is the structured constraint set a caller supplies for one search.
// All fields are optional; zero values mean "not constrained". Instances are
// per-request value objects and never share mutable state.
type Criteria struct {
	Category     string     // warehouse | office, empty = any
	Locations    []string   // requested place names, matched as substrings
	MinArea      int        // m², 0 = unset
	MaxArea      int        // m², 0 = unset
	MaxPrice     int        // Kč/m²/month, 0 = unset
	NotLaterThan *time.Time // latest acceptable availability date
	Query        string     // free-text requirement
}

// HasConstraints reports whether any structured constraint is set
// (the free-text query alone does not count).
func (c Criteria) HasConstraints() bool {
	return c.Category != "" || len(c.Locations) > 0 ||
		c.MinArea > 0 || c.MaxArea > 0 || c.MaxPrice > 0 || c.NotLaterThan != nil
}

// Clone returns a deep copy; relaxation steps mutate copies only.
func (c Criteria) Clone() Criteria {
	out := c
	if c.Locations != nil {
		out.Locations = append([]string(nil), c.Locations...)
	}
	if c.NotLaterThan != nil {
		t := *c.NotLaterThan
		out.NotLaterThan = &t
	}
	return out
}
