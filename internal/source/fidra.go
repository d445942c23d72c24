package source

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// Fidra scrapes the Fidra Energy projects page. Each project is a
// heading followed by free-form detail lines ("Size: 1.45GW",
// "Location: West Yorkshire").
type Fidra struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewFidra(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *Fidra {
	return &Fidra{client: client, cfg: cfg, logger: logger}
}

func (s *Fidra) Name() string  { return "fidra_energy" }
func (s *Fidra) Label() string { return s.cfg.Name }

func (s *Fidra) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("h1, h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
		name := strings.TrimSpace(h.Text())
		if name == "" || len([]rune(name)) > 120 {
			return
		}
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "battery") && !strings.Contains(lower, "bess") &&
			!strings.Contains(lower, "energy park") && !strings.Contains(lower, "storage") {
			return
		}

		var capacity, region string
		h.NextUntil("h1, h2, h3, h4").Each(func(_ int, sib *goquery.Selection) {
			t := sib.Text()
			if capacity == "" {
				if m := capacityAny.FindString(t); m != "" {
					capacity = strings.TrimSpace(m)
				}
			}
			if region == "" {
				if i := strings.Index(t, "Location:"); i >= 0 {
					rest := t[i+len("Location:"):]
					if j := strings.IndexByte(rest, '\n'); j >= 0 {
						rest = rest[:j]
					}
					region = truncate(strings.TrimSpace(rest), 100)
				}
			}
		})

		key := truncate(name, 60)
		if seen[key] {
			return
		}
		seen[key] = true
		rows = append(rows, record.New(name, s.Label(), s.cfg.URL, record.Fields{
			Region:     region,
			CapacityMW: capacity,
			Status:     string(record.StatusPlanned),
		}))
	})
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}
