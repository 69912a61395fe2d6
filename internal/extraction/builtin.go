package extraction

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/campscout/internal/domain"
)

// HTMLListingName is the registry name of the generic static-HTML module.
const HTMLListingName = "html_listing"

// dateLayouts are tried in order when parsing listing dates.
var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

// HTMLListingLogic is the generic built-in extractor for static listing
// pages that annotate sessions with data attributes. Sites that need
// anything cleverer get generated script code instead.
type HTMLListingLogic struct {
	client *http.Client
}

// NewHTMLListingLogic creates the built-in static-HTML extractor.
func NewHTMLListingLogic(client *http.Client) *HTMLListingLogic {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLListingLogic{client: client}
}

// Name implements Logic.
func (l *HTMLListingLogic) Name() string {
	return HTMLListingName
}

// Extract fetches each listing page and pulls sessions out of elements
// carrying data-session attributes.
func (l *HTMLListingLogic) Extract(ctx context.Context, url string, hints Hints) (*Result, error) {
	urls := append([]string{url}, hints.ExtraURLs...)

	result := &Result{}
	for _, u := range urls {
		sessions, org, err := l.extractPage(ctx, u)
		if err != nil {
			return nil, err
		}
		result.Sessions = append(result.Sessions, sessions...)
		if result.OrganizationName == "" {
			result.OrganizationName = org
		}
	}

	return result, nil
}

func (l *HTMLListingLogic) extractPage(ctx context.Context, url string) ([]domain.ExtractedSession, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("build listing request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("listing page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("parse listing page: %w", err)
	}

	org := strings.TrimSpace(doc.Find(`[data-organization]`).First().AttrOr("data-organization", ""))

	var sessions []domain.ExtractedSession
	doc.Find(`[data-session]`).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("data-name", sel.Find(".session-name").Text()))
		rawDate := strings.TrimSpace(sel.AttrOr("data-start-date", sel.Find(".session-date").Text()))
		if name == "" || rawDate == "" {
			return
		}

		start, ok := parseDate(rawDate)
		if !ok {
			return
		}

		s := domain.ExtractedSession{
			Name:         name,
			StartDateRaw: rawDate,
			StartDate:    start,
			Location:     strings.TrimSpace(sel.AttrOr("data-location", "")),
			Availability: normalizeAvailability(sel.AttrOr("data-availability", "")),
		}

		if end, endOK := parseDate(sel.AttrOr("data-end-date", "")); endOK {
			s.EndDate = &end
		}
		if cents, priceOK := parsePriceCents(sel.AttrOr("data-price", "")); priceOK {
			s.PriceCents = &cents
		}

		sessions = append(sessions, s)
	})

	return sessions, org, nil
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parsePriceCents(raw string) (int, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int(f * 100), true
}

func normalizeAvailability(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "available":
		return domain.AvailabilityOpen
	case "waitlist", "wait list":
		return domain.AvailabilityWaitlist
	case "full", "sold out", "closed":
		return domain.AvailabilityFull
	default:
		return domain.AvailabilityUnknown
	}
}

// Ensure HTMLListingLogic implements Logic.
var _ Logic = (*HTMLListingLogic)(nil)
