package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// PINS scrapes the Planning Inspectorate national infrastructure
// register for energy storage applications. The bulk download endpoint
// is tried first, then the search page markup.
type PINS struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewPINS(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *PINS {
	return &PINS{client: client, cfg: cfg, logger: logger}
}

func (s *PINS) Name() string  { return "pins_nsip" }
func (s *PINS) Label() string { return s.cfg.Name }

func (s *PINS) Scrape(ctx context.Context) ([]record.Project, error) {
	if rows, err := s.fromDownload(ctx); err == nil && len(rows) > 0 {
		return rows, nil
	} else if err != nil {
		s.logger.Debug("download endpoint unavailable, scraping search page",
			zap.String("source", s.Name()), zap.Error(err))
	}
	return s.fromPage(ctx)
}

func (s *PINS) fromDownload(ctx context.Context) ([]record.Project, error) {
	downloadURL := siteRoot(s.cfg.URL) + "/api/applications-download"
	resp, err := s.client.Get(ctx, downloadURL)
	if err != nil {
		return nil, err
	}

	apps, err := decodeApplications(resp)
	if err != nil {
		return nil, err
	}

	var rows []record.Project
	for _, app := range apps {
		name := mapValue(app, "Project Name", "project_name", "ProjectName", "Name", "name")
		if name == "" || !storageRelated(name) {
			continue
		}
		stage := mapValue(app, "Stage", "stage", "Development Status", "Status", "status")
		link := mapValue(app, "URL", "url", "Link", "link")
		if link == "" {
			link = s.cfg.URL
		}
		rows = append(rows, record.New(name, s.Label(), link, record.Fields{
			Region:     mapValue(app, "Region", "region", "Location", "location"),
			CapacityMW: capacityMW.FindString(name),
			Status:     stage,
		}))
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

// decodeApplications handles both payload shapes the endpoint has
// served: a bare JSON array, a wrapped object, or a CSV body.
func decodeApplications(resp fetch.Response) ([]map[string]any, error) {
	body := strings.TrimSpace(string(resp.Body))
	if strings.HasPrefix(body, "[") {
		var apps []map[string]any
		return apps, json.Unmarshal(resp.Body, &apps)
	}
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Applications []map[string]any `json:"applications"`
			Data         []map[string]any `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &wrapped); err != nil {
			return nil, err
		}
		if len(wrapped.Applications) > 0 {
			return wrapped.Applications, nil
		}
		return wrapped.Data, nil
	}

	table, err := fetch.DecodeTable(resp.Body)
	if err != nil {
		return nil, err
	}
	apps := make([]map[string]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		m := make(map[string]any, len(table.Header))
		for i, h := range table.Header {
			m[h] = table.Cell(row, i)
		}
		apps = append(apps, m)
	}
	return apps, nil
}

func (s *PINS) fromPage(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("article, li, .project-card, tbody tr").Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("h2, h3, .project-name, a").First().Text())
		if name == "" || seen[name] || !storageRelated(name) {
			return
		}
		seen[name] = true
		link := s.cfg.URL
		if href, ok := card.Find("a[href]").Attr("href"); ok {
			link = absURL(s.cfg.URL, href)
		}
		stage := strings.TrimSpace(card.Find(".stage, .status").First().Text())
		rows = append(rows, record.New(name, s.Label(), link, record.Fields{
			CapacityMW: capacityMW.FindString(name),
			Status:     stage,
		}))
	})
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func storageRelated(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "battery") || strings.Contains(lower, "bess") ||
		strings.Contains(lower, "energy storage")
}
