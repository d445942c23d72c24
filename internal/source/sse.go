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

// SSE scrapes the SSE Renewables battery storage section. Project links
// are harvested and enriched from the surrounding card markup.
type SSE struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewSSE(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *SSE {
	return &SSE{client: client, cfg: cfg, logger: logger}
}

func (s *SSE) Name() string  { return "sse_renewables" }
func (s *SSE) Label() string { return s.cfg.Name }

func (s *SSE) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	rows := s.collect(doc, func(href, text string) bool {
		lower := strings.ToLower(text)
		return strings.Contains(lower, "bess") || strings.Contains(lower, "battery") ||
			strings.Contains(lower, "storage")
	})
	if len(rows) == 0 {
		rows = s.collect(doc, func(href, text string) bool {
			return strings.Contains(href, "/our-sites/") || strings.Contains(href, "/sites/")
		})
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *SSE) collect(doc *goquery.Document, match func(href, text string) bool) []record.Project {
	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name := strings.TrimSpace(a.Text())
		if name == "" || len([]rune(name)) > 150 || seen[name] || !match(href, name) {
			return
		}

		var capacity, status string
		parent := a.Parent()
		for depth := 0; depth < 6 && parent.Length() > 0; depth++ {
			t := parent.Text()
			if capacity == "" {
				if m := capacityMW.FindString(t); m != "" {
					capacity = strings.TrimSpace(m)
				}
			}
			if status == "" {
				lower := strings.ToLower(t)
				switch {
				case strings.Contains(lower, "under construction"):
					status = string(record.StatusInConstruction)
				case strings.Contains(lower, "operational"):
					status = string(record.StatusOperational)
				case strings.Contains(lower, "consented"):
					status = string(record.StatusConsented)
				}
			}
			if capacity != "" && status != "" {
				break
			}
			parent = parent.Parent()
		}
		if status == "" {
			status = string(record.StatusPlanned)
		}

		seen[name] = true
		rows = append(rows, record.New(name, s.Label(), absURL(s.cfg.URL, href), record.Fields{
			CapacityMW: capacity,
			Status:     status,
		}))
	})
	return rows
}
