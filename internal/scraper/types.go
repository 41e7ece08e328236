package scraper

import (
	"context"
	"unicode/utf8"
)

// GeoPoint is a WGS84 coordinate pair. Both fields are always set together;
// a record without coordinates carries a nil *GeoPoint instead.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PlaceRecord represents a scraped place
type PlaceRecord struct {
	PlaceID     string    `json:"place_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address,omitempty"`
	Coordinate  *GeoPoint `json:"coordinate,omitempty"`
	SourceURL   string    `json:"source_url"`
}

// HasValidName reports whether the record carries a name
func (p PlaceRecord) HasValidName() bool {
	return p.Name != ""
}

// HasValidPlaceID reports whether the record carries an identifier
func (p PlaceRecord) HasValidPlaceID() bool {
	return p.PlaceID != ""
}

// HasValidCoordinates reports whether both latitude and longitude are present
func (p PlaceRecord) HasValidCoordinates() bool {
	return p.Coordinate != nil
}

// HasValidDescription reports whether the description is usable (at least 20 characters)
func (p PlaceRecord) HasValidDescription() bool {
	return utf8.RuneCountInString(p.Description) >= 20
}

// IsComplete reports whether every field passed its validity check
func (p PlaceRecord) IsComplete() bool {
	return p.HasValidName() && p.HasValidPlaceID() && p.HasValidCoordinates() && p.HasValidDescription()
}

// Session is one live browser context, scoped to a single scrape attempt.
type Session interface {
	// HTML navigates to the URL and returns the rendered page markup
	HTML(ctx context.Context, url string) (string, error)

	// Release closes the browser context and process. Close failures are
	// logged, never propagated.
	Release()
}

// SessionFactory produces isolated browser sessions
type SessionFactory interface {
	Acquire(ctx context.Context) (Session, error)
}

// Strategy walks the site and produces place records from a live session
type Strategy interface {
	Execute(ctx context.Context, s Session) ([]PlaceRecord, error)
}
