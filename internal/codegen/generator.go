// Package codegen talks to the external code-generation service that
// writes extraction scripts for sources the built-in modules cannot
// handle.
package codegen

import (
	"context"

	"github.com/jonesrussell/campscout/internal/domain"
)

// Request carries everything the generation service needs to produce
// or revise an extraction script for one source.
type Request struct {
	SourceURL    string                 `json:"source_url"`
	SourceName   string                 `json:"source_name"`
	ParsingNotes string                 `json:"parsing_notes,omitempty"`
	Exploration  map[string]any         `json:"exploration,omitempty"`
	PriorCode    string                 `json:"prior_code,omitempty"`
	CodeVersion  int                    `json:"code_version"`
	Feedback     []domain.FeedbackEntry `json:"feedback,omitempty"`
}

// Result is the generation service's answer. An empty Code means the
// service declined to produce anything; callers route such requests to
// human review.
type Result struct {
	Code  string `json:"code"`
	Notes string `json:"notes,omitempty"`
}

// HasCode reports whether the service actually produced a script.
func (r *Result) HasCode() bool {
	return r != nil && r.Code != ""
}

// Generator produces extraction scripts.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
