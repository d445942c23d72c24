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

// maxEirGridRows bounds the document harvest; the page links dozens of
// historical PDFs and only the newest few are useful.
const maxEirGridRows = 20

// EirGrid scrapes the EirGrid customer and industry page for connection
// and contracted-generator documents. Rows are reference pointers, not
// projects, and keep Country Ireland.
type EirGrid struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewEirGrid(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *EirGrid {
	return &EirGrid{client: client, cfg: cfg, logger: logger}
}

func (s *EirGrid) Name() string  { return "eirgrid" }
func (s *EirGrid) Label() string { return s.cfg.Name }

func (s *EirGrid) Scrape(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	country := s.cfg.Country
	if country == "" {
		country = "Ireland"
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		lower := strings.ToLower(href + " " + text)
		if !strings.Contains(lower, ".pdf") && !strings.Contains(lower, "contract") &&
			!strings.Contains(lower, "connect") && !strings.Contains(lower, "generator") {
			return true
		}
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		rows = append(rows, record.New(truncate(text, 150), s.Label(), absURL(s.cfg.URL, href), record.Fields{
			Country: country,
			Region:  country,
			Status:  string(record.StatusReference),
		}))
		return len(rows) < maxEirGridRows
	})
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}
