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

// BritishRenewables scrapes the British Renewables portfolio page. The
// page lists projects as headings with the capacity mentioned in the
// prose below each heading.
type BritishRenewables struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewBritishRenewables(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *BritishRenewables {
	return &BritishRenewables{client: client, cfg: cfg, logger: logger}
}

func (s *BritishRenewables) Name() string  { return "british_renewables" }
func (s *BritishRenewables) Label() string { return s.cfg.Name }

func (s *BritishRenewables) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		text := strings.TrimSpace(h.Text())
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "battery") && !strings.Contains(lower, "bess") {
			return
		}
		name := text
		region := ""
		if i := strings.Index(name, ","); i >= 0 {
			region = strings.TrimSpace(name[i+1:])
			name = strings.TrimSpace(name[:i])
		}

		capacity := ""
		h.NextUntil("h2, h3").EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			if m := capacityMW.FindString(sib.Text()); m != "" {
				capacity = strings.TrimSpace(m)
				return false
			}
			return true
		})

		key := name + "|" + capacity
		if name == "" || seen[key] {
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
