// Package urlnorm canonicalizes candidate-site URLs so the same page
// expressed differently dedupes to one development request and one
// source row.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are advertising and analytics query parameters that
// never affect page content. Directory pages love to decorate their
// outbound links with these.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

var errNoHost = errors.New("url has no scheme or host")

// Canonicalize rewrites a URL into its canonical form: https scheme,
// lowercased host without default ports, no fragment, tracking
// parameters stripped, remaining query keys sorted, and a cleaned path
// without a trailing slash.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errNoHost
	}

	u.Scheme = "https"
	u.Host = stripDefaultPort(u)
	u.Fragment = ""
	u.RawQuery = cleanQuery(u.Query())
	u.Path = cleanPath(u.Path)

	return u.String(), nil
}

// Host returns the lowercased hostname without port or leading www.
func Host(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errNoHost
	}
	return strings.TrimPrefix(host, "www."), nil
}

func stripDefaultPort(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" || port == "80" || port == "443" {
		return host
	}
	return host + ":" + port
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracking := trackingParams[key]; !tracking {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// cleanPath resolves dot-segments and trims trailing slashes, keeping
// the bare root empty so "https://example.com/" and
// "https://example.com" collapse to the same string.
func cleanPath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	return strings.TrimRight(path.Clean(p), "/")
}
