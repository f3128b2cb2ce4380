// Package seed embeds the starter catalog used to populate an empty database
// on first startup.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/nemovito/rankd/internal/domain"
)

//go:embed listings.json
var listingsJSON []byte

// Listings returns the embedded starter catalog, validated.
func Listings() ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := json.Unmarshal(listingsJSON, &listings); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("embedded catalog: %w", err)
		}
	}
	return listings, nil
}
