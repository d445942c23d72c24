package record

import (
	"math"
	"strings"
	"time"
)

// Summary is one investment scope reading for a run. Fixed columns so the
// weekly CSV stays comparable week over week.
type Summary struct {
	RunDate                    string  `json:"run_date"`
	RunAt                      string  `json:"run_at"`
	TotalProjects              int     `json:"total_projects"`
	TotalMW                    float64 `json:"total_mw"`
	CountPlanned               int     `json:"count_planned"`
	CountConsented             int     `json:"count_consented"`
	CountInConstruction        int     `json:"count_in_construction"`
	CountOperational           int     `json:"count_operational"`
	CountEarlyStageDevelopment int     `json:"count_early_stage_development"`
	CountConstructionFinance   int     `json:"count_construction_finance"`
	CountMAOfftake             int     `json:"count_ma_offtake"`
}

// BuildSummary tallies statuses, opportunity classes, and total MW over the
// merged rows. runAt is one reading per run.
func BuildSummary(rows []Project, runAt time.Time) Summary {
	s := Summary{
		RunDate:       runAt.UTC().Format("2006-01-02"),
		RunAt:         runAt.UTC().Format(time.RFC3339),
		TotalProjects: len(rows),
	}
	for _, r := range rows {
		switch r.Status {
		case StatusPlanned:
			s.CountPlanned++
		case StatusConsented:
			s.CountConsented++
		case StatusInConstruction:
			s.CountInConstruction++
		case StatusOperational:
			s.CountOperational++
		}

		switch {
		case strings.Contains(r.InvestmentOpportunity, "Early-stage"):
			s.CountEarlyStageDevelopment++
		case strings.Contains(r.InvestmentOpportunity, "Construction"),
			strings.Contains(r.InvestmentOpportunity, "finance"):
			s.CountConstructionFinance++
		case strings.Contains(r.InvestmentOpportunity, "M&A"),
			strings.Contains(r.InvestmentOpportunity, "offtake"):
			s.CountMAOfftake++
		}

		if r.CapacityMWNumeric != nil {
			s.TotalMW += *r.CapacityMWNumeric
		}
	}
	s.TotalMW = math.Round(s.TotalMW*10) / 10
	return s
}
