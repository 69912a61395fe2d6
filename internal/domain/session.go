package domain

import (
	"time"
)

// Session availability values.
const (
	AvailabilityOpen     = "open"
	AvailabilityWaitlist = "waitlist"
	AvailabilityFull     = "full"
	AvailabilityUnknown  = "unknown"
)

// Organization is the camp provider behind one or more sources.
type Organization struct {
	ID        string    `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Website   string    `db:"website"    json:"website"`
	Domain    string    `db:"domain"     json:"domain"`
	Market    string    `db:"market"     json:"market"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Camp is a named program offered by an organization; sessions hang off it.
type Camp struct {
	ID             string      `db:"id"              json:"id"`
	OrganizationID string      `db:"organization_id" json:"organization_id"`
	Name           string      `db:"name"            json:"name"`
	NormalizedName string      `db:"normalized_name" json:"normalized_name"`
	ImageURLs      StringSlice `db:"image_urls"      json:"image_urls,omitempty"`
	SessionCount   int         `db:"session_count"   json:"session_count"`
	CreatedAt      time.Time   `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"      json:"updated_at"`
}

// Session is one bookable camp session extracted from a source.
type Session struct {
	ID             string  `db:"id"              json:"id"`
	CampID         *string `db:"camp_id"         json:"camp_id,omitempty"`
	OrganizationID string  `db:"organization_id" json:"organization_id"`
	SourceID       string  `db:"source_id"       json:"source_id"`

	Name      string     `db:"name"       json:"name"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date"   json:"end_date,omitempty"`

	PriceCents   *int    `db:"price_cents"  json:"price_cents,omitempty"`
	MinAge       *int    `db:"min_age"      json:"min_age,omitempty"`
	MaxAge       *int    `db:"max_age"      json:"max_age,omitempty"`
	Location     string  `db:"location"     json:"location,omitempty"`
	Availability string  `db:"availability" json:"availability"`

	IsActive   bool      `db:"is_active"    json:"is_active"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt  time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"   json:"updated_at"`
}

// ExtractedSession is a raw session record as returned by an extraction
// worker, before dedup and persistence.
type ExtractedSession struct {
	Name         string     `json:"name"`
	StartDateRaw string     `json:"start_date_raw,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	PriceCents   *int       `json:"price_cents,omitempty"`
	MinAge       *int       `json:"min_age,omitempty"`
	MaxAge       *int       `json:"max_age,omitempty"`
	Location     string     `json:"location,omitempty"`
	Availability string     `json:"availability,omitempty"`

	// ExpectedEmpty is set by the generation service on sample data when
	// an empty catalog is a legitimate seasonal outcome.
	ExpectedEmpty bool `json:"expected_empty,omitempty"`
}
