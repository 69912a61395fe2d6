package domain

import (
	"time"
)

// Alert types form a closed enumeration; dashboards key off these values.
const (
	AlertScraperDisabled          = "scraper_disabled"
	AlertScraperDegraded          = "scraper_degraded"
	AlertHighChangeVolume         = "high_change_volume"
	AlertScraperNeedsRegeneration = "scraper_needs_regeneration"
	AlertNewSourcesPending        = "new_sources_pending"
	AlertZeroResults              = "zero_results"
	AlertRateLimited              = "rate_limited"
	AlertSourceRecovered          = "source_recovered"
	AlertCrossSourceDuplicates    = "cross_source_duplicates"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is an operational notification raised by health transitions and
// batch dedup scans. Alerts are never auto-resolved, only acknowledged.
type Alert struct {
	ID       string  `db:"id"        json:"id"`
	SourceID *string `db:"source_id" json:"source_id,omitempty"`
	Type     string  `db:"type"      json:"type"`
	Severity string  `db:"severity"  json:"severity"`
	Message  string  `db:"message"   json:"message"`

	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
}

// ValidAlertType reports whether t belongs to the closed enumeration.
func ValidAlertType(t string) bool {
	switch t {
	case AlertScraperDisabled, AlertScraperDegraded, AlertHighChangeVolume,
		AlertScraperNeedsRegeneration, AlertNewSourcesPending, AlertZeroResults,
		AlertRateLimited, AlertSourceRecovered, AlertCrossSourceDuplicates:
		return true
	}
	return false
}
