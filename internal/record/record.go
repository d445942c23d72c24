// Package record defines the project row shared across sources, the
// cross-source deduplication step, and the investment scope summary.
package record

import (
	"strconv"
	"time"
)

// Status is the normalized lifecycle state of a project.
type Status string

// Standard statuses. News and Reference mark rows that carry signal but are
// not project lifecycle states (headlines, document inventories).
const (
	StatusPlanned        Status = "Planned"
	StatusConsented      Status = "Consented"
	StatusInConstruction Status = "In-construction"
	StatusOperational    Status = "Operational"
	StatusNews           Status = "News"
	StatusReference      Status = "Reference"
)

// Project is one scraped row. Records are ephemeral: the dataset is rebuilt
// in full on every run.
type Project struct {
	ScrapedAt             time.Time `json:"scraped_at"`
	Country               string    `json:"country"`
	Region                string    `json:"region"`
	SiteName              string    `json:"site_name"`
	CapacityMW            string    `json:"capacity_mw"`
	CapacityMWNumeric     *float64  `json:"capacity_mw_numeric"`
	Status                Status    `json:"status"`
	InvestmentOpportunity string    `json:"investment_opportunity"`
	Source                string    `json:"source"`
	URL                   string    `json:"url"`
}

// Fields carries the optional parts of a row passed to New.
type Fields struct {
	Country           string
	Region            string
	CapacityMW        string
	CapacityMWNumeric *float64
	Status            string
}

// New builds a standard row. The numeric capacity is parsed from the raw
// capacity text when not supplied, and the status is normalized with its
// investment opportunity derived. Bare-numeric capacity cells get an
// explicit "<n> MW" display form.
func New(siteName, sourceLabel, rawURL string, f Fields) Project {
	capText := trim(f.CapacityMW)
	num := f.CapacityMWNumeric
	if num == nil && capText != "" {
		if v, ok := ParseCapacityMW(capText); ok {
			num = &v
		}
	}
	if num != nil && capText != "" {
		if _, err := strconv.ParseFloat(capText, 64); err == nil {
			capText = strconv.FormatFloat(*num, 'f', -1, 64) + " MW"
		}
	}
	status, opportunity := NormalizeStatus(f.Status)
	country := f.Country
	if country == "" {
		country = "UK"
	}
	return Project{
		ScrapedAt:             time.Now().UTC(),
		Country:               country,
		Region:                f.Region,
		SiteName:              trim(siteName),
		CapacityMW:            capText,
		CapacityMWNumeric:     num,
		Status:                status,
		InvestmentOpportunity: opportunity,
		Source:                sourceLabel,
		URL:                   trim(rawURL),
	}
}

// CapacityString formats the numeric capacity for display, empty when nil.
func (p Project) CapacityString() string {
	if p.CapacityMWNumeric == nil {
		return ""
	}
	return strconv.FormatFloat(*p.CapacityMWNumeric, 'f', -1, 64)
}

// Float returns a pointer to v. Convenience for building rows.
func Float(v float64) *float64 {
	return &v
}
