// Package source implements the per-source scrapers. Each source fetches
// one public listing (developer page, government registry, or news feed)
// and emits standard project rows. Sources are independent: a failure in
// one never affects another.
package source

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/gridscope/besstrack/internal/record"
)

// Source is one scrape target.
type Source interface {
	// Name is the stable config key, e.g. "uk_repd".
	Name() string
	// Label is the human-readable source label that ends up in rows.
	Label() string
	// Scrape fetches and parses the source into standard rows.
	Scrape(ctx context.Context) ([]record.Project, error)
}

var (
	capacityMW  = regexp.MustCompile(`(?i)([\d.]+)\s*MW`)
	capacityAny = regexp.MustCompile(`(?i)([\d.]+)\s*(GW|MW|GWh|MWh)`)
)

// absURL resolves href against the page URL; relative links in project
// cards are common across the developer sites.
func absURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return pageURL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// siteRoot reduces a page URL to scheme://host.
func siteRoot(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return pageURL
	}
	return u.Scheme + "://" + u.Host
}

// truncate caps s at n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// mapValue returns the first non-empty string value for any of the keys.
func mapValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// mapColumn returns the first key of m containing every keyword,
// case-insensitive. Mirrors the column discovery used for CSV downloads.
func mapColumn(m map[string]any, keywords ...string) string {
	for k := range m {
		lower := strings.ToLower(k)
		all := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				all = false
				break
			}
		}
		if all {
			return k
		}
	}
	return ""
}
