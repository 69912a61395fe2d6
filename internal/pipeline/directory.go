package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/urlnorm"
)

// expandDirectory turns a directory-classified request into child
// requests: one per distinct external organization link and one per
// distinct internal detail page, both capped. The parent completes
// without generating any extraction logic.
func (s *Service) expandDirectory(ctx context.Context, req *domain.DevelopmentRequest, exp *Exploration) error {
	maxExternal := s.deps.Config.MaxExternalChildren
	if maxExternal <= 0 {
		maxExternal = 30
	}
	maxInternal := s.deps.Config.MaxInternalChildren
	if maxInternal <= 0 {
		maxInternal = 50
	}

	candidates := make([]string, 0, maxExternal+maxInternal)
	candidates = append(candidates, capLinks(filterLinks(exp.ExternalLinks), maxExternal)...)
	candidates = append(candidates, capLinks(filterLinks(exp.InternalLinks), maxInternal)...)

	created := 0
	for _, link := range candidates {
		exists, err := s.deps.Requests.ExistsForURL(ctx, link)
		if err != nil {
			return fmt.Errorf("check existing request for %s: %w", link, err)
		}
		if exists {
			continue
		}

		child := &domain.DevelopmentRequest{
			ID:             uuid.NewString(),
			ParentID:       &req.ID,
			SourceURL:      link,
			SourceName:     nameFromURL(link),
			Market:         req.Market,
			Status:         domain.RequestStatusPending,
			MaxTestRetries: domain.DefaultMaxTestRetries,
		}
		if err := s.deps.Requests.Create(ctx, child); err != nil {
			return fmt.Errorf("create child request for %s: %w", link, err)
		}
		created++
	}

	if err := s.transition(req, domain.RequestStatusCompleted); err != nil {
		return err
	}
	req.Notes = fmt.Sprintf("directory expanded: %d child requests created", created)
	s.clearClaim(req)

	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("complete directory request: %w", err)
	}

	if created > 0 {
		s.deps.Alerts.RaiseSystem(ctx, domain.AlertNewSourcesPending, domain.SeverityInfo,
			fmt.Sprintf("directory %s queued %d new source requests", req.SourceURL, created))
	}

	s.log.Info("directory expanded",
		logger.String("request_id", req.ID),
		logger.String("url", req.SourceURL),
		logger.Int("children_created", created),
	)
	return nil
}

// filterLinks drops links to known non-camp domains and anything
// unparseable, canonicalizing the rest so equivalent URLs dedupe to
// one child request. Order is preserved.
func filterLinks(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if IsFilteredDomain(u.Hostname()) {
			continue
		}
		canonical, err := urlnorm.Canonicalize(link)
		if err != nil {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

func capLinks(links []string, limit int) []string {
	if len(links) > limit {
		return links[:limit]
	}
	return links
}

// nameFromURL derives a provisional source name from a URL's host,
// e.g. "https://www.cedarridgecamps.com/x" -> "cedarridgecamps.com".
func nameFromURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return link
	}
	return canonicalHost(u.Hostname())
}

// domainFromURL extracts the canonical host for organization lookup.
func domainFromURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := canonicalHost(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", link)
	}
	return host, nil
}

// titleFromHost turns "cedar-ridge-camps.com" into "Cedar Ridge Camps".
func titleFromHost(host string) string {
	base := host
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return host
	}
	return strings.Join(words, " ")
}
