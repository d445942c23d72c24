package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// REPD scrapes the Renewable Energy Planning Database quarterly extract.
// The gov.uk publication page links the current CSV; battery rows are
// filtered out of it by technology type.
type REPD struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewREPD(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *REPD {
	return &REPD{client: client, cfg: cfg, logger: logger}
}

func (s *REPD) Name() string  { return "uk_repd" }
func (s *REPD) Label() string { return s.cfg.Name }

func (s *REPD) Scrape(ctx context.Context) ([]record.Project, error) {
	csvURL, err := s.findCSV(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Get(ctx, csvURL)
	if err != nil {
		return nil, err
	}
	table, err := fetch.DecodeTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode extract: %w", err)
	}

	techCol := table.Column("technology")
	if techCol < 0 {
		techCol = table.Column("type")
	}
	if techCol < 0 {
		return nil, fmt.Errorf("no technology column in extract")
	}
	siteCol := firstColumn(table,
		[]string{"site", "name"}, []string{"project", "name"}, []string{"name"}, []string{"ref"})
	capCol := firstColumn(table,
		[]string{"installed", "capacity"}, []string{"capacity", "mwelec"}, []string{"capacity"})
	statusCol := firstColumn(table,
		[]string{"development", "status", "short"}, []string{"development", "status"}, []string{"status"})
	regionCol := firstColumn(table, []string{"region"}, []string{"county"})

	var rows []record.Project
	for _, row := range table.Rows {
		tech := strings.ToLower(table.Cell(row, techCol))
		if !strings.Contains(tech, "storage") && !strings.Contains(tech, "battery") {
			continue
		}
		name := table.Cell(row, siteCol)
		if name == "" {
			continue
		}
		rows = append(rows, record.New(name, s.Label(), csvURL, record.Fields{
			Region:     table.Cell(row, regionCol),
			CapacityMW: table.Cell(row, capCol),
			Status:     table.Cell(row, statusCol),
		}))
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

// findCSV locates the extract download on the publication page.
func (s *REPD) findCSV(ctx context.Context) (string, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return "", err
	}
	var preferred, fallback string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if !strings.Contains(lower, ".csv") {
			return
		}
		if fallback == "" {
			fallback = href
		}
		if preferred == "" && (strings.Contains(lower, "repd") ||
			strings.Contains(lower, "renewable") || strings.Contains(lower, "planning")) {
			preferred = href
		}
	})
	link := preferred
	if link == "" {
		link = fallback
	}
	if link == "" {
		return "", fmt.Errorf("no csv link on publication page")
	}
	return absURL(s.cfg.URL, link), nil
}

// firstColumn tries each keyword set in order and returns the first hit.
func firstColumn(t *fetch.Table, candidates ...[]string) int {
	for _, kws := range candidates {
		if i := t.Column(kws...); i >= 0 {
			return i
		}
	}
	return -1
}
