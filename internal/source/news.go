package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// News scrapes an industry news site. The RSS feed is the primary
// channel; when it fails the article links on the landing page are
// harvested instead. Rows carry Status News so downstream consumers can
// tell headlines from project records.
type News struct {
	client   *fetch.Client
	key      string
	cfg      config.SourceConfig
	logger   *zap.Logger
	maxItems int

	// keep filters headlines; nil keeps everything.
	keep func(title string) bool
}

func NewEnergyStorageNews(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *News {
	return &News{client: client, key: "energy_storage_news", cfg: cfg, logger: logger, maxItems: 30}
}

func NewSolarPowerPortal(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *News {
	return &News{
		client: client, key: "solar_power_portal", cfg: cfg, logger: logger, maxItems: 25,
		keep: func(title string) bool {
			lower := strings.ToLower(title)
			return strings.Contains(lower, "battery") || strings.Contains(lower, "storage") ||
				strings.Contains(lower, "bess")
		},
	}
}

func (s *News) Name() string  { return s.key }
func (s *News) Label() string { return s.cfg.Name }

func (s *News) Scrape(ctx context.Context) ([]record.Project, error) {
	if s.cfg.FeedURL != "" {
		rows, err := s.fromFeed(ctx)
		if err == nil && len(rows) > 0 {
			return rows, nil
		}
		if err != nil {
			s.logger.Warn("feed unavailable, scraping landing page",
				zap.String("source", s.Name()), zap.Error(err))
		}
	}
	return s.fromPage(ctx)
}

func (s *News) fromFeed(ctx context.Context) ([]record.Project, error) {
	feed, err := s.client.Feed(ctx, s.cfg.FeedURL)
	if err != nil {
		return nil, err
	}
	var rows []record.Project
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" || (s.keep != nil && !s.keep(title)) {
			continue
		}
		link := item.Link
		if link == "" {
			link = s.cfg.URL
		}
		rows = append(rows, s.headline(title, link))
		if len(rows) >= s.maxItems {
			break
		}
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *News) fromPage(ctx context.Context) ([]record.Project, error) {
	doc, err := s.client.Document(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	host := ""
	if u, err := url.Parse(s.cfg.URL); err == nil {
		host = u.Host
	}

	var rows []record.Project
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if host != "" && !strings.Contains(href, host) && strings.HasPrefix(href, "http") {
			return true
		}
		if isNavLink(href) {
			return true
		}
		title := strings.TrimSpace(a.Text())
		n := len([]rune(title))
		if n < 25 || n > 200 || seen[title] {
			return true
		}
		if s.keep != nil && !s.keep(title) {
			return true
		}
		seen[title] = true
		rows = append(rows, s.headline(title, absURL(s.cfg.URL, href)))
		return len(rows) < s.maxItems
	})
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *News) headline(title, link string) record.Project {
	return record.New(title, s.Label(), link, record.Fields{
		CapacityMW: strings.TrimSpace(capacityAny.FindString(title)),
		Status:     string(record.StatusNews),
	})
}

func isNavLink(href string) bool {
	for _, part := range []string{"/category/", "/tag/", "/author/", "/page/", "/newsletter", "/premium", "/about", "/contact"} {
		if strings.Contains(href, part) {
			return true
		}
	}
	return false
}
