package record

import (
	"math"
	"strings"
)

// genericSiteNames are link texts that are not real site names. Rows
// carrying one of these must not merge with each other on name alone, so
// the URL joins the key.
var genericSiteNames = map[string]struct{}{
	"view project":                     {},
	"our expertise":                    {},
	"why battery storage matters":      {},
	"our expertise in battery storage": {},
	"article":                          {},
	"news":                             {},
	"read more":                        {},
	"home":                             {},
	"about":                            {},
}

// dedupKey identifies one physical project across sources. Comparable so it
// can key a map directly.
type dedupKey struct {
	site      string
	capacity  float64
	capOK     bool
	region    string
	urlSuffix string
}

// keyFor builds the fuzzy match key: normalized site name plus capacity
// rounded to 0.1 MW plus normalized region. Empty or generic site names get
// the normalized URL mixed in so unrelated rows stay distinct.
func keyFor(p Project) dedupKey {
	site := normalizeKey(p.SiteName, 200)
	key := dedupKey{
		site:   site,
		region: normalizeKey(p.Region, 100),
	}
	if p.CapacityMWNumeric != nil {
		key.capacity = math.Round(*p.CapacityMWNumeric*10) / 10
		key.capOK = true
	}
	_, generic := genericSiteNames[site]
	if site == "" || generic || len([]rune(site)) < 3 {
		if site == "" {
			key.site = "_"
		}
		key.urlSuffix = normalizeURL(p.URL)
	}
	return key
}

func normalizeURL(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if u == "" {
		return ""
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if len(u) > 120 {
		u = u[len(u)-120:]
	}
	return u
}

// Deduplicate collapses rows describing the same physical project into one
// row with the source labels combined ("REPD; EDF"). The first row seen for
// a key is canonical, except that a non-News row replaces the field values
// of a News row it collides with. The result never has more rows than the
// input. Near-duplicates that miss the fuzzy key are an accepted limitation.
func Deduplicate(rows []Project) []Project {
	if len(rows) == 0 {
		return nil
	}
	order := make([]dedupKey, 0, len(rows))
	seen := make(map[dedupKey]*Project, len(rows))
	for i := range rows {
		r := rows[i]
		key := keyFor(r)
		existing, ok := seen[key]
		if !ok {
			cp := r
			order = append(order, key)
			seen[key] = &cp
			continue
		}
		if r.Status != StatusNews && existing.Status == StatusNews {
			src := existing.Source
			overlayRow(existing, r)
			existing.Source = combineSources(r.Source, src)
		} else {
			existing.Source = combineSources(existing.Source, r.Source)
		}
	}
	out := make([]Project, 0, len(order))
	for _, key := range order {
		out = append(out, *seen[key])
	}
	return out
}

// overlayRow copies every non-empty field of src over dst, preferring the
// registry/developer row's data over a news headline.
func overlayRow(dst *Project, src Project) {
	if !src.ScrapedAt.IsZero() {
		dst.ScrapedAt = src.ScrapedAt
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.Region != "" {
		dst.Region = src.Region
	}
	if src.SiteName != "" {
		dst.SiteName = src.SiteName
	}
	if src.CapacityMW != "" {
		dst.CapacityMW = src.CapacityMW
	}
	if src.CapacityMWNumeric != nil {
		dst.CapacityMWNumeric = src.CapacityMWNumeric
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.InvestmentOpportunity != "" {
		dst.InvestmentOpportunity = src.InvestmentOpportunity
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
}

// combineSources joins two "; "-separated source label lists without
// repeating labels already present.
func combineSources(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	for _, label := range strings.Split(b, "; ") {
		label = strings.TrimSpace(label)
		if label == "" || strings.Contains(a, label) {
			continue
		}
		a += "; " + label
	}
	return a
}
