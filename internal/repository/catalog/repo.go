// Package catalog is the listing source of truth, backed by SQLite.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nemovito/rankd/internal/domain"
)

// Repo persists and serves listings.
type Repo struct {
	db *sql.DB
}

// New creates a catalog repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const listingColumns = `id, category, location, region, country, area_sqm, price_per_sqm,
	availability, parking_spaces, amenities, hot, featured, priority_score,
	commission_rate, description, highway_access, transport_notes`

// ReplaceAll swaps the whole catalog for the given listings in one transaction.
// Every listing is validated before any row is written.
func (r *Repo) ReplaceAll(ctx context.Context, listings []domain.Listing) error {
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return fmt.Errorf("clear listings: %w", err)
	}

	const insert = `INSERT INTO listings (` + listingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, l := range listings {
		amenities, err := json.Marshal(l.Amenities)
		if err != nil {
			return fmt.Errorf("marshal amenities for listing %d: %w", l.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			l.ID, l.Category, l.Location, l.Region, l.Country,
			l.AreaSqm, l.PricePerSqm, l.Availability, l.ParkingSpaces,
			string(amenities), boolToInt(l.Hot), boolToInt(l.Featured),
			l.PriorityScore, l.CommissionRate, l.Description,
			l.HighwayAccess, l.TransportNotes,
		); err != nil {
			return fmt.Errorf("insert listing %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadAll returns every listing, ordered by id.
func (r *Repo) LoadAll(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+listingColumns+" FROM listings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// GetByID resolves a single listing. Returns domain.ErrNotFound when absent.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

// Count returns the number of listings in the catalog.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

// MarketStats aggregates per-category price and area statistics.
func (r *Repo) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	var stats domain.MarketStats

	for _, category := range []string{domain.CategoryWarehouse, domain.CategoryOffice} {
		row := r.db.QueryRowContext(ctx, `
			SELECT COUNT(*),
				COALESCE(CAST(AVG(price_per_sqm) AS INTEGER), 0),
				COALESCE(MIN(price_per_sqm), 0),
				COALESCE(MAX(price_per_sqm), 0),
				COALESCE(CAST(AVG(area_sqm) AS INTEGER), 0)
			FROM listings WHERE category = ?`, category)

		var cs domain.CategoryStats
		if err := row.Scan(&cs.Count, &cs.AvgPrice, &cs.MinPrice, &cs.MaxPrice, &cs.AvgArea); err != nil {
			return domain.MarketStats{}, fmt.Errorf("aggregate %s stats: %w", category, err)
		}

		if category == domain.CategoryWarehouse {
			stats.Warehouse = cs
		} else {
			stats.Office = cs
		}
	}

	stats.Total = stats.Warehouse.Count + stats.Office.Count
	return stats, nil
}

// Ping verifies database availability for health checks.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var l domain.Listing
	var amenities string
	var hot, featured int

	err := row.Scan(
		&l.ID, &l.Category, &l.Location, &l.Region, &l.Country,
		&l.AreaSqm, &l.PricePerSqm, &l.Availability, &l.ParkingSpaces,
		&amenities, &hot, &featured, &l.PriorityScore,
		&l.CommissionRate, &l.Description, &l.HighwayAccess, &l.TransportNotes,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	if amenities != "" && amenities != "[]" {
		if err := json.Unmarshal([]byte(amenities), &l.Amenities); err != nil {
			return domain.Listing{}, fmt.Errorf("unmarshal amenities for listing %d: %w", l.ID, err)
		}
	}
	l.Hot = hot != 0
	l.Featured = featured != 0
	return l, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
