package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/campscout/internal/logger"
)

const (
	// DefaultExplorationDepth bounds the navigation walk.
	DefaultExplorationDepth = 2

	explorationRequestTimeout = 20 * time.Second

	// directoryExternalMin is the distinct-external-organization count at
	// which a site is classified as a directory.
	directoryExternalMin = 5

	maxStoredInternalLinks = 100
	maxStoredNavLinks      = 40
)

// filteredDomains are known non-camp destinations: social networks, job
// boards, review and map sites. Links to them are dropped during
// exploration and directory expansion.
var filteredDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "linkedin.com",
	"youtube.com", "tiktok.com", "pinterest.com", "snapchat.com",
	"indeed.com", "glassdoor.com", "ziprecruiter.com",
	"yelp.com", "tripadvisor.com", "nextdoor.com",
	"google.com", "goo.gl", "maps.apple.com", "bit.ly",
}

// registrationSystems fingerprints third-party registration platforms
// by link host.
var registrationSystems = map[string]string{
	"ultracamp.com":            "ultracamp",
	"campbrain.com":            "campbrain",
	"campbrainregistration.com": "campbrain",
	"campminder.com":           "campminder",
	"active.com":               "active",
	"activecommunities.com":    "active",
	"amilia.com":               "amilia",
	"hisawyer.com":             "sawyer",
	"campdoc.com":              "campdoc",
	"jackrabbitclass.com":      "jackrabbit",
	"daysmartrecreation.com":   "daysmart",
}

// IsFilteredDomain reports whether the host belongs to a known
// non-camp destination.
func IsFilteredDomain(host string) bool {
	host = strings.ToLower(host)
	for _, d := range filteredDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func registrationSystemFor(host string) (string, bool) {
	host = strings.ToLower(host)
	for d, name := range registrationSystems {
		if host == d || strings.HasSuffix(host, "."+d) {
			return name, true
		}
	}
	return "", false
}

// SiteExplorer walks a site's navigation and summarizes it.
type SiteExplorer interface {
	Explore(ctx context.Context, rawURL string) (*Exploration, error)
}

// Explorer is the colly-backed SiteExplorer.
type Explorer struct {
	depth int
	log   logger.Logger
}

// NewExplorer creates an explorer walking at most depth levels deep.
func NewExplorer(depth int, log logger.Logger) *Explorer {
	if depth < 1 {
		depth = DefaultExplorationDepth
	}
	return &Explorer{depth: depth, log: log}
}

// Explore performs a shallow same-host walk starting at rawURL,
// collecting navigation hints, internal detail pages, and outbound
// organization links, then classifies the site.
func (e *Explorer) Explore(ctx context.Context, rawURL string) (*Exploration, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	baseHost := canonicalHost(base.Hostname())

	exp := &Exploration{}
	seenExternal := make(map[string]struct{})
	seenInternal := make(map[string]struct{})
	seenNav := make(map[string]struct{})

	c := colly.NewCollector(
		colly.MaxDepth(e.depth),
		colly.UserAgent("campscout/1.0"),
	)
	c.SetRequestTimeout(explorationRequestTimeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("title", func(el *colly.HTMLElement) {
		if exp.Title == "" {
			exp.Title = strings.TrimSpace(el.Text)
		}
	})

	c.OnHTML("nav a, header a", func(el *colly.HTMLElement) {
		text := strings.TrimSpace(el.Text)
		if text == "" || len(exp.NavLinks) >= maxStoredNavLinks {
			return
		}
		key := strings.ToLower(text)
		if _, ok := seenNav[key]; ok {
			return
		}
		seenNav[key] = struct{}{}
		exp.NavLinks = append(exp.NavLinks, text)
	})

	c.OnHTML("a[href]", func(el *colly.HTMLElement) {
		link := el.Request.AbsoluteURL(el.Attr("href"))
		lu, parseErr := url.Parse(link)
		if parseErr != nil || (lu.Scheme != "http" && lu.Scheme != "https") {
			return
		}
		host := canonicalHost(lu.Hostname())

		if host == baseHost {
			clean := lu.Scheme + "://" + lu.Host + lu.Path
			if _, ok := seenInternal[clean]; ok {
				return
			}
			seenInternal[clean] = struct{}{}
			if len(exp.InternalLinks) < maxStoredInternalLinks {
				exp.InternalLinks = append(exp.InternalLinks, clean)
				_ = el.Request.Visit(link)
			}
			return
		}

		if sys, ok := registrationSystemFor(host); ok {
			if exp.RegistrationSystem == "" {
				exp.RegistrationSystem = sys
			}
			return
		}
		if IsFilteredDomain(host) {
			return
		}

		// One external link per organization domain.
		if _, ok := seenExternal[host]; ok {
			return
		}
		seenExternal[host] = struct{}{}
		exp.ExternalLinks = append(exp.ExternalLinks, link)
	})

	if visitErr := c.Visit(rawURL); visitErr != nil {
		return nil, fmt.Errorf("explore %s: %w", rawURL, visitErr)
	}
	c.Wait()

	// A page linking out to many distinct organizations with no
	// registration system of its own is a directory, not a provider.
	exp.IsDirectory = exp.RegistrationSystem == "" && len(exp.ExternalLinks) >= directoryExternalMin

	e.log.Debug("exploration finished",
		logger.String("url", rawURL),
		logger.Bool("is_directory", exp.IsDirectory),
		logger.Int("external_links", len(exp.ExternalLinks)),
		logger.Int("internal_links", len(exp.InternalLinks)),
		logger.String("registration_system", exp.RegistrationSystem),
	)

	return exp, nil
}

func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
