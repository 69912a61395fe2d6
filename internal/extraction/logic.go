// Package extraction defines the contracts between the orchestrator and
// the code that turns a live page into structured session records. The
// orchestrator only ever depends on the Worker contract; how a given
// implementation parses HTML or drives a browser is opaque to it.
package extraction

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonesrussell/campscout/internal/domain"
)

// Hints carry per-source extraction guidance.
type Hints struct {
	// ParsingNotes is free-text guidance recorded on the source.
	ParsingNotes string `json:"parsing_notes,omitempty"`

	// ExtraURLs are additional listing pages beyond the canonical URL.
	ExtraURLs []string `json:"extra_urls,omitempty"`

	// Browser requests a rendered (headless-browser) fetch. Browser
	// extraction runs under a longer timeout than direct fetches.
	Browser bool `json:"browser,omitempty"`
}

// Result is the outcome of one extraction run.
type Result struct {
	Sessions         []domain.ExtractedSession `json:"sessions"`
	OrganizationName string                    `json:"organization,omitempty"`

	// ExpectedEmpty marks a zero-session result the logic annotated as
	// legitimate, e.g. a seasonal catalog not yet published.
	ExpectedEmpty bool `json:"expected_empty,omitempty"`
}

// Spec identifies which extraction logic to run: a built-in module name
// XOR stored generated code.
type Spec struct {
	ModuleName string `json:"module_name,omitempty"`
	ScriptCode string `json:"script_code,omitempty"`
}

// SpecForSource derives the extraction spec from a source's deployed logic.
func SpecForSource(s *domain.Source) (Spec, error) {
	name, err := s.LogicName()
	if err != nil {
		return Spec{}, err
	}
	if name == domain.ScriptLogicName {
		return Spec{ScriptCode: *s.ScriptCode}, nil
	}
	return Spec{ModuleName: name}, nil
}

// Worker fetches and parses a site. Implementations must honor the
// context deadline; the orchestrator treats anything past it as failure.
type Worker interface {
	Extract(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error)
}

// Logic is one in-process extraction strategy, registered by name.
type Logic interface {
	Name() string
	Extract(ctx context.Context, url string, hints Hints) (*Result, error)
}

// Registry holds the built-in extraction modules.
type Registry struct {
	mu     sync.RWMutex
	logics map[string]Logic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{logics: make(map[string]Logic)}
}

// Register adds a logic implementation. Re-registering a name replaces
// the previous implementation.
func (r *Registry) Register(l Logic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logics[l.Name()] = l
}

// Get returns the logic registered under name.
func (r *Registry) Get(name string) (Logic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.logics[name]
	if !ok {
		return nil, fmt.Errorf("no extraction module registered as %q", name)
	}
	return l, nil
}

// Names lists the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.logics))
	for n := range r.logics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
