package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/campscout/internal/domain"
)

// Exploration is the persisted summary of a site's navigation walk.
// It is stored on the request so repeated attempts skip re-exploration.
type Exploration struct {
	Title string `json:"title,omitempty"`

	// IsDirectory marks the site as a listing page linking out to other
	// organizations rather than a camp provider itself.
	IsDirectory bool `json:"is_directory"`

	// ExternalLinks are outbound links to other domains, already
	// filtered of known non-camp destinations.
	ExternalLinks []string `json:"external_links,omitempty"`

	// InternalLinks are same-host detail pages discovered during the walk.
	InternalLinks []string `json:"internal_links,omitempty"`

	// NavLinks are the texts of top navigation entries, used as
	// location and category hints by the generation service.
	NavLinks []string `json:"nav_links,omitempty"`

	// RegistrationSystem is the fingerprinted third-party registration
	// platform, if any (e.g. "ultracamp").
	RegistrationSystem string `json:"registration_system,omitempty"`
}

// ToMap converts the exploration for JSONB storage.
func (e *Exploration) ToMap() (domain.JSONBMap, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal exploration: %w", err)
	}
	var m domain.JSONBMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal exploration map: %w", err)
	}
	return m, nil
}

// ExplorationFromMap restores an exploration from its JSONB form.
func ExplorationFromMap(m domain.JSONBMap) (*Exploration, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal exploration map: %w", err)
	}
	var e Exploration
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unmarshal exploration: %w", err)
	}
	return &e, nil
}
