package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// TEC scrapes the Transmission Entry Capacity register from the NESO
// data portal. The portal is CKAN, so the current CSV resource is
// resolved through package_show before falling back to link scraping.
type TEC struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewTEC(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *TEC {
	return &TEC{client: client, cfg: cfg, logger: logger}
}

func (s *TEC) Name() string  { return "tec_register" }
func (s *TEC) Label() string { return s.cfg.Name }

type ckanPackage struct {
	Success bool `json:"success"`
	Result  struct {
		Resources []struct {
			URL     string `json:"url"`
			Format  string `json:"format"`
			Created string `json:"created"`
		} `json:"resources"`
	} `json:"result"`
}

func (s *TEC) Scrape(ctx context.Context) ([]record.Project, error) {
	csvURL := s.resourceFromAPI(ctx)
	if csvURL == "" {
		csvURL = s.resourceFromPage(ctx)
	}
	if csvURL == "" {
		return nil, fmt.Errorf("no register csv found")
	}

	resp, err := s.client.Get(ctx, csvURL)
	if err != nil {
		return nil, err
	}
	table, err := fetch.DecodeTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode register: %w", err)
	}

	nameCol := firstColumn(table, []string{"project", "name"}, []string{"generator"}, []string{"name"})
	capCol := firstColumn(table, []string{"mw", "connected"}, []string{"mw", "total"}, []string{"capacity"}, []string{"mw"})
	regionCol := firstColumn(table, []string{"node"}, []string{"substation"}, []string{"region"})
	statusCol := firstColumn(table, []string{"project", "status"}, []string{"status"})
	plantCol := firstColumn(table, []string{"plant", "type"}, []string{"technology"})

	var rows []record.Project
	for _, row := range table.Rows {
		if plantCol >= 0 {
			plant := strings.ToLower(table.Cell(row, plantCol))
			if !strings.Contains(plant, "storage") && !strings.Contains(plant, "battery") {
				continue
			}
		}
		name := table.Cell(row, nameCol)
		if name == "" {
			continue
		}
		status := table.Cell(row, statusCol)
		if status == "" {
			status = string(record.StatusConsented)
		}
		rows = append(rows, record.New(name, s.Label(), csvURL, record.Fields{
			Region:     table.Cell(row, regionCol),
			CapacityMW: table.Cell(row, capCol),
			Status:     status,
		}))
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

// resourceFromAPI asks CKAN package_show for the newest CSV resource of
// the dataset named by the last path segment of the portal URL.
func (s *TEC) resourceFromAPI(ctx context.Context) string {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	slug := parts[len(parts)-1]
	if slug == "" {
		return ""
	}
	apiURL := siteRoot(s.cfg.URL) + "/api/3/action/package_show?id=" + url.QueryEscape(slug)

	resp, err := s.client.Get(ctx, apiURL)
	if err != nil {
		s.logger.Debug("ckan api unavailable", zap.String("source", s.Name()), zap.Error(err))
		return ""
	}
	var pkg ckanPackage
	if err := json.Unmarshal(resp.Body, &pkg); err != nil || !pkg.Success {
		return ""
	}
	res := pkg.Result.Resources
	sort.SliceStable(res, func(i, j int) bool { return res[i].Created > res[j].Created })
	for _, r := range res {
		if strings.EqualFold(r.Format, "csv") && r.URL != "" {
			return r.URL
		}
	}
	return ""
}

// resourceFromPage falls back to scraping the portal page for a download
// link when the API shape changes.
func (s *TEC) resourceFromPage(ctx context.Context) string {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return ""
	}
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if strings.Contains(lower, ".csv") || strings.Contains(lower, "download") {
			link = absURL(s.cfg.URL, href)
			return false
		}
		return true
	})
	return link
}
