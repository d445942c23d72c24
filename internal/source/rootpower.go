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

// RootPower scrapes the Root-Power project index. Projects appear as
// cards linking to per-project pages; capacity and status live in the
// card text around the link.
type RootPower struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewRootPower(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *RootPower {
	return &RootPower{client: client, cfg: cfg, logger: logger}
}

func (s *RootPower) Name() string  { return "root_power" }
func (s *RootPower) Label() string { return s.cfg.Name }

func (s *RootPower) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "/projects/") && !strings.Contains(href, "/our-projects/") {
			return
		}
		text := strings.TrimSpace(a.Text())
		lowerAll := strings.ToLower(href + " " + text)
		if !strings.Contains(lowerAll, "bess") && !strings.Contains(lowerAll, "battery") &&
			!strings.Contains(strings.ToLower(text), "mw") {
			return
		}

		capacity := strings.TrimSpace(capacityMW.FindString(text))
		name := text
		// Card titles often tack the capacity on the end.
		if capacity != "" {
			if i := strings.Index(name, capacity); i > 0 {
				name = strings.TrimSpace(strings.TrimRight(name[:i], " -–|"))
			}
		}
		if name == "" || seen[name] {
			return
		}

		status := ""
		card := a.Closest("article, li, div")
		if card.Length() > 0 {
			card.Find("p, span, div").EachWithBreak(func(_ int, el *goquery.Selection) bool {
				t := strings.TrimSpace(el.Text())
				lower := strings.ToLower(t)
				if capacity == "" {
					if m := capacityMW.FindString(t); m != "" {
						capacity = strings.TrimSpace(m)
					}
				}
				for _, kw := range []string{"construction", "consented", "advanced", "planning", "energised", "operational"} {
					if strings.Contains(lower, kw) {
						status = truncate(t, 80)
						return false
					}
				}
				return true
			})
		}

		seen[name] = true
		rows = append(rows, record.New(name, s.Label(), absURL(s.cfg.URL, href), record.Fields{
			CapacityMW: capacity,
			Status:     status,
		}))
	})
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}
