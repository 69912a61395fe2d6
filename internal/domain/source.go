// Package domain provides domain models used across the application.
package domain

import (
	"errors"
	"time"
)

// Source represents one external website that publishes camp program
// listings, together with the extraction logic that scrapes it and the
// rolling health counters derived from job outcomes.
type Source struct {
	ID             string      `db:"id"              json:"id"`
	OrganizationID *string     `db:"organization_id" json:"organization_id,omitempty"`
	Name           string      `db:"name"            json:"name"`
	URL            string      `db:"url"             json:"url"`
	ExtraURLs      StringSlice `db:"extra_urls"      json:"extra_urls,omitempty"`
	Market         string      `db:"market"          json:"market"`

	// Scheduling
	ScrapeIntervalMinutes int        `db:"scrape_interval_minutes" json:"scrape_interval_minutes"`
	IsActive              bool       `db:"is_active"               json:"is_active"`
	LastScrapedAt         *time.Time `db:"last_scraped_at"         json:"last_scraped_at,omitempty"`

	// Extraction logic: exactly one of ModuleName (built-in) or ScriptCode
	// (generated, stored) drives execution.
	ModuleName   *string `db:"module_name"   json:"module_name,omitempty"`
	ScriptCode   *string `db:"script_code"   json:"script_code,omitempty"`
	ParsingNotes string  `db:"parsing_notes" json:"parsing_notes,omitempty"`

	// Health counters, mutated only by job outcome handling.
	ConsecutiveFailures    int     `db:"consecutive_failures"     json:"consecutive_failures"`
	ConsecutiveZeroResults int     `db:"consecutive_zero_results" json:"consecutive_zero_results"`
	TotalRuns              int     `db:"total_runs"               json:"total_runs"`
	SuccessfulRuns         int     `db:"successful_runs"          json:"successful_runs"`
	SuccessRate            float64 `db:"success_rate"             json:"success_rate"`
	NeedsRegeneration      bool    `db:"needs_regeneration"       json:"needs_regeneration"`
	LastError              *string `db:"last_error"               json:"last_error,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ErrAmbiguousLogic is returned when a source carries both a built-in
// module reference and stored script code.
var ErrAmbiguousLogic = errors.New("source has both module_name and script_code set")

// LogicName returns the name identifying the source's extraction logic:
// the built-in module name, or "script" when stored code drives it.
func (s *Source) LogicName() (string, error) {
	switch {
	case s.ModuleName != nil && s.ScriptCode != nil:
		return "", ErrAmbiguousLogic
	case s.ModuleName != nil:
		return *s.ModuleName, nil
	case s.ScriptCode != nil:
		return ScriptLogicName, nil
	default:
		return "", errors.New("source has no extraction logic deployed")
	}
}

// HasLogic reports whether any extraction logic is deployed.
func (s *Source) HasLogic() bool {
	return s.ModuleName != nil || s.ScriptCode != nil
}

// ScriptLogicName is the registry name for the stored-code extraction strategy.
const ScriptLogicName = "script"

// IsDue reports whether the source's scrape interval has elapsed since
// its last scrape. Sources that have never been scraped are always due.
func (s *Source) IsDue(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.LastScrapedAt == nil {
		return true
	}
	interval := time.Duration(s.ScrapeIntervalMinutes) * time.Minute
	return now.Sub(*s.LastScrapedAt) >= interval
}
