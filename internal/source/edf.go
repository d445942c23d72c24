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

// EDF scrapes the EDF Renewables UK battery storage sites listing. The
// page carries a sortable table of sites; when that is absent it falls
// back to harvesting the per-site links.
type EDF struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewEDF(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *EDF {
	return &EDF{client: client, cfg: cfg, logger: logger}
}

func (s *EDF) Name() string  { return "edf_re_uk" }
func (s *EDF) Label() string { return s.cfg.Name }

func (s *EDF) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	rows := s.fromTable(doc)
	if len(rows) == 0 {
		rows = s.fromLinks(doc)
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *EDF) fromTable(doc *goquery.Document) []record.Project {
	var rows []record.Project
	doc.Find("table").First().Find("tbody tr, tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		if name == "" {
			return
		}
		link := s.cfg.URL
		if href, ok := cells.Eq(0).Find("a").Attr("href"); ok {
			link = absURL(s.cfg.URL, href)
		}
		var status, region, capacity string
		if cells.Length() > 1 {
			status = strings.TrimSpace(cells.Eq(1).Text())
		}
		if cells.Length() > 3 {
			region = strings.TrimSpace(cells.Eq(3).Text())
		}
		if cells.Length() > 4 {
			capacity = strings.TrimSpace(cells.Eq(4).Text())
		}
		rows = append(rows, record.New(name, s.Label(), link, record.Fields{
			Region:     region,
			CapacityMW: capacity,
			Status:     status,
		}))
	})
	return rows
}

func (s *EDF) fromLinks(doc *goquery.Document) []record.Project {
	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("a[href*='/our-sites/']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		// Per-site links carry a slug after /our-sites/; the bare listing
		// link (with or without query) is navigation. Works for relative
		// and absolute hrefs alike.
		rest := href[strings.Index(href, "/our-sites/")+len("/our-sites/"):]
		rest, _, _ = strings.Cut(rest, "?")
		if strings.Trim(rest, "/") == "" {
			return
		}
		name := strings.TrimSpace(a.Text())
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		rows = append(rows, record.New(name, s.Label(), absURL(s.cfg.URL, href), record.Fields{
			Status: string(record.StatusPlanned),
		}))
	})
	return rows
}
