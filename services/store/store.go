package store

import (
	"context"

	"sjsage522/placeworker/internal/scraper"
)

// PlaceStore persists scraped place records
type PlaceStore interface {
	// Count returns the number of stored places
	Count(ctx context.Context) (int64, error)

	// Save upserts the records and returns how many were newly inserted
	Save(ctx context.Context, records []scraper.PlaceRecord) (int, error)

	// Close releases the underlying connections
	Close() error
}
