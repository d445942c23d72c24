package record

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	circaPrefix = regexp.MustCompile(`(?i)^c\.?\s*`)
	gwPattern   = regexp.MustCompile(`(?i)([\d.]+)\s*GW`)
	mwPattern   = regexp.MustCompile(`(?i)([\d.]+)\s*MW`)

	whitespaceRun = regexp.MustCompile(`\s+`)
	trailingPunct = regexp.MustCompile(`[.,;:\-]+$`)
)

// statusTable maps lowercase status phrases from the various sources onto
// the standard statuses. Checked in order so more specific phrases win.
var statusTable = []struct {
	phrase string
	status Status
}{
	{"pre-construction", StatusPlanned},
	{"planning-preparation", StatusPlanned},
	{"planning-submitted", StatusPlanned},
	{"planning", StatusPlanned},
	{"planned", StatusPlanned},
	{"advanced-development", StatusConsented},
	{"awaiting-construction", StatusConsented},
	{"consented", StatusConsented},
	{"development", StatusPlanned},
	{"in-construction", StatusInConstruction},
	{"under-construction", StatusInConstruction},
	{"operational", StatusOperational},
	{"energised", StatusOperational},
	{"in-operation", StatusOperational},
}

// opportunityByStatus maps a standard status onto the investment
// opportunity class used in the summary.
var opportunityByStatus = map[Status]string{
	StatusPlanned:        "Early-stage development",
	StatusConsented:      "Early-stage development",
	StatusInConstruction: "Construction / finance",
	StatusOperational:    "M&A / offtake / operations",
}

// ParseCapacityMW parses capacity text such as "350", "50MW", "c.25MW",
// "1.45GW" or "150MW / 300MWh" into megawatts. Bare numbers, the usual
// registry cell shape, are taken as MW. GW figures scale by 1000; in mixed
// MW/MWh text the first MW figure wins.
func ParseCapacityMW(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}
	s = circaPrefix.ReplaceAllString(s, "")
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if m := gwPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 1000, true
		}
	}
	if m := mwPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// NormalizeStatus maps a raw status phrase onto the standard status and its
// investment opportunity. Unrecognized values pass through unchanged with an
// empty opportunity, so source-specific markers like "News" survive.
func NormalizeStatus(raw string) (Status, string) {
	key := strings.TrimSpace(strings.ToLower(raw))
	key = strings.NewReplacer(" ", "-", "_", "-").Replace(key)
	if key == "" {
		return "", ""
	}
	for _, entry := range statusTable {
		if strings.Contains(key, entry.phrase) || strings.Contains(entry.phrase, key) {
			return entry.status, opportunityByStatus[entry.status]
		}
	}
	switch {
	case strings.Contains(key, "operation") || strings.Contains(key, "energised"):
		return StatusOperational, opportunityByStatus[StatusOperational]
	case strings.Contains(key, "consent"):
		return StatusConsented, opportunityByStatus[StatusConsented]
	case strings.Contains(key, "construct"):
		return StatusInConstruction, opportunityByStatus[StatusInConstruction]
	}
	return Status(strings.TrimSpace(raw)), ""
}

// IsPipeline reports whether the status belongs to the investment pipeline
// (everything that is a project status except Operational).
func (s Status) IsPipeline() bool {
	switch s {
	case StatusPlanned, StatusConsented, StatusInConstruction:
		return true
	}
	return false
}

// normalizeKey lowercases, collapses whitespace, and strips trailing
// punctuation, capping the result at maxLen runes.
func normalizeKey(text string, maxLen int) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = trailingPunct.ReplaceAllString(s, "")
	if maxLen > 0 {
		r := []rune(s)
		if len(r) > maxLen {
			s = string(r[:maxLen])
		}
	}
	return s
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
