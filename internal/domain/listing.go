package domain

import (
	"fmt"
	"strings"
	"time"
)

// Listing categories. The catalog holds exactly two kinds of commercial space.
const (
	CategoryWarehouse = "warehouse"
	CategoryOffice    = "office"
)

// AvailabilityNow marks a listing that can be leased immediately.
const AvailabilityNow = "ihned"

const availabilityDateLayout = "2006-01-02"

// Listing is one catalog entry: a commercial property available for lease.
// A listing is immutable per catalog version; reindexing replaces the set wholesale.
type Listing struct {
	ID             int64    `json:"id"`
	Category       string   `json:"category"` // warehouse | office
	Location       string   `json:"location"`
	Region         string   `json:"region,omitempty"` // Čechy, Morava, Slezsko, Slovensko
	Country        string   `json:"country"`
	AreaSqm        int      `json:"area_sqm"`
	PricePerSqm    int      `json:"price_czk_sqm"` // Kč/m²/month
	Availability   string   `json:"availability"`  // "ihned" or ISO date
	ParkingSpaces  int      `json:"parking_spaces,omitempty"`
	Amenities      []string `json:"amenities,omitempty"`
	Hot            bool     `json:"is_hot"`
	Featured       bool     `json:"is_featured"`
	PriorityScore  int      `json:"priority_score"` // 0..100
	CommissionRate float64  `json:"commission_rate,omitempty"`
	Description    string   `json:"description,omitempty"`
	HighwayAccess  string   `json:"highway_access,omitempty"`
	TransportNotes string   `json:"transport_notes,omitempty"`
}

// Validate checks catalog invariants: positive area and price,
// availability either "ihned" or a parseable ISO date.
func (l Listing) Validate() error {
	if l.AreaSqm <= 0 {
		return fmt.Errorf("%w: listing %d: area must be positive, got %d", ErrInvalidListing, l.ID, l.AreaSqm)
	}
	if l.PricePerSqm <= 0 {
		return fmt.Errorf("%w: listing %d: price must be positive, got %d", ErrInvalidListing, l.ID, l.PricePerSqm)
	}
	if l.Category != CategoryWarehouse && l.Category != CategoryOffice {
		return fmt.Errorf("%w: listing %d: unknown category %q", ErrInvalidListing, l.ID, l.Category)
	}
	if !l.AvailableNow() {
		if _, err := time.Parse(availabilityDateLayout, l.Availability); err != nil {
			return fmt.Errorf("%w: listing %d: availability %q is neither %q nor a date", ErrInvalidListing, l.ID, l.Availability, AvailabilityNow)
		}
	}
	return nil
}

// AvailableNow reports whether the listing can be leased immediately.
func (l Listing) AvailableNow() bool {
	return strings.EqualFold(strings.TrimSpace(l.Availability), AvailabilityNow)
}

// AvailabilityDate parses the availability field. Immediate availability
// and malformed values return ok=false.
func (l Listing) AvailabilityDate() (time.Time, bool) {
	if l.AvailableNow() {
		return time.Time{}, false
	}
	d, err := time.Parse(availabilityDateLayout, strings.TrimSpace(l.Availability))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// TotalMonthlyRent is the full monthly price for the listing.
func (l Listing) TotalMonthlyRent() int {
	return l.AreaSqm * l.PricePerSqm
}

// CategoryCz is the Czech name of the listing category.
func (l Listing) CategoryCz() string {
	if l.Category == CategoryWarehouse {
		return "sklad"
	}
	return "kancelář"
}

// RegionOrCountry returns the region, falling back to the country name
// when the region is not set.
func (l Listing) RegionOrCountry() string {
	if l.Region != "" {
		return l.Region
	}
	switch l.Country {
	case "CZ":
		return "Česko"
	case "SK":
		return "Slovensko"
	default:
		return l.Country
	}
}

// amenityLabels maps amenity tags to Czech display phrases.
var amenityLabels = map[string]string{
	"rampa":                  "nakládací rampa",
	"vytapeni":               "vytápění",
	"vyska_6m":               "výška 6m",
	"vysoke_stropy_10m":      "vysoké stropy 10m",
	"vysoke_stropy_9m":       "vysoké stropy 9m",
	"prizemni":               "přízemní",
	"kancelare_v_cene_50m2":  "kanceláře v ceně (50m²)",
	"klimatizovany":          "klimatizovaný",
	"moderni":                "moderní",
	"klimatizace":            "klimatizace",
	"meeting_room":           "zasedací místnost",
	"open_space":             "open space",
	"bez_parkovani":          "bez parkování",
	"reprezentativni":        "reprezentativní",
	"recepce":                "recepce",
	"moderni_budova":         "moderní budova",
	"terasa":                 "terasa",
	"zakladni_standard":      "základní standard",
	"po_rekonstrukci":        "po rekonstrukci",
	"standard":               "standard",
	"bez_rampy":              "bez rampy",
}

// AmenitiesCz renders the amenity tags as a readable Czech list.
func (l Listing) AmenitiesCz() string {
	if len(l.Amenities) == 0 {
		return ""
	}
	labels := make([]string, len(l.Amenities))
	for i, a := range l.Amenities {
		if label, ok := amenityLabels[a]; ok {
			labels[i] = label
		} else {
			labels[i] = a
		}
	}
	return strings.Join(labels, ", ")
}

// Market average prices (Kč/m²/month) used by ValueScore.
var marketAvgPrice = map[string]int{
	CategoryWarehouse: 90,
	CategoryOffice:    280,
}

// ValueScore rates price attractiveness against the market average (0..100,
// higher is better value), with bonuses for immediate availability and,
// for warehouses, highway access and logistics-grade size.
func (l Listing) ValueScore() int {
	avg := marketAvgPrice[l.Category]
	if avg == 0 {
		avg = 100
	}
	ratio := float64(l.PricePerSqm) / float64(avg)

	var score int
	switch {
	case ratio <= 0.7:
		score = 90
	case ratio <= 0.85:
		score = 75
	case ratio <= 1.0:
		score = 60
	case ratio <= 1.2:
		score = 45
	default:
		score = 30
	}

	if l.AvailableNow() {
		score += 5
	}
	if l.Category == CategoryWarehouse && l.HighwayAccess != "" {
		score += 5
	}
	if l.Category == CategoryWarehouse && l.AreaSqm >= 1000 {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}

// EmbeddingText is the canonical description embedded into the semantic index.
func (l Listing) EmbeddingText() string {
	availability := "ihned k dispozici"
	if !l.AvailableNow() {
		availability = "od " + l.Availability
	}
	parking := "bez parkování"
	if l.ParkingSpaces > 0 {
		parking = fmt.Sprintf("%d parkovacích míst", l.ParkingSpaces)
	}
	amenities := l.AmenitiesCz()
	if amenities == "" {
		amenities = "základní"
	}

	return fmt.Sprintf(`Typ: %s
Lokalita: %s
Region: %s
Plocha: %d m²
Cena: %d Kč/m²/měsíc
Celkový nájem: %d Kč/měsíc
Dostupnost: %s
Parkování: %s
Vybavení: %s`,
		l.CategoryCz(), l.Location, l.RegionOrCountry(),
		l.AreaSqm, l.PricePerSqm, l.TotalMonthlyRent(),
		availability, parking, amenities)
}

// SearchText is the lexical document indexed by the keyword channel:
// category names in both languages, location, region, numeric phrases,
// amenities and the availability phrase.
func (l Listing) SearchText() string {
	parts := []string{
		l.Category,
		l.CategoryCz(),
		l.Location,
		l.RegionOrCountry(),
		l.Description,
		fmt.Sprintf("%d m² metrů čtverečních", l.AreaSqm),
		fmt.Sprintf("%d korun kč cena", l.PricePerSqm),
	}
	parts = append(parts, l.Amenities...)
	if l.AvailableNow() {
		parts = append(parts, "ihned dostupné volné")
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.ToLower(strings.Join(nonEmpty, " "))
}
