package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
	"github.com/gridscope/besstrack/internal/record"
)

// ECR scrapes the UKPN Embedded Capacity Register from the OpenDataSoft
// portal. The CSV export is tried first, then the records API.
type ECR struct {
	client *fetch.Client
	cfg    config.SourceConfig
	logger *zap.Logger
}

func NewECR(client *fetch.Client, cfg config.SourceConfig, logger *zap.Logger) *ECR {
	return &ECR{client: client, cfg: cfg, logger: logger}
}

func (s *ECR) Name() string  { return "ecr_ukpn" }
func (s *ECR) Label() string { return s.cfg.Name }

func (s *ECR) Scrape(ctx context.Context) ([]record.Project, error) {
	slug := s.datasetSlug()
	if slug == "" {
		return nil, fmt.Errorf("no dataset slug in %q", s.cfg.URL)
	}
	root := siteRoot(s.cfg.URL)

	rows, err := s.fromCSV(ctx, root, slug)
	if err == nil {
		return rows, nil
	}
	s.logger.Debug("csv export unavailable, trying records api",
		zap.String("source", s.Name()), zap.Error(err))
	return s.fromRecords(ctx, root, slug)
}

func (s *ECR) datasetSlug() string {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}

func (s *ECR) fromCSV(ctx context.Context, root, slug string) ([]record.Project, error) {
	exportURL := root + "/api/explore/v2.1/catalog/datasets/" + slug + "/exports/csv?limit=-1"
	resp, err := s.client.Get(ctx, exportURL)
	if err != nil {
		return nil, err
	}
	table, err := fetch.DecodeTable(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	techCol := firstColumn(table, []string{"energy", "source"}, []string{"technology"}, []string{"type"})
	nameCol := firstColumn(table, []string{"customer", "name"}, []string{"site", "name"}, []string{"name"})
	capCol := firstColumn(table, []string{"connected", "capacity"}, []string{"accepted", "capacity"}, []string{"capacity"})
	regionCol := firstColumn(table, []string{"county"}, []string{"town"}, []string{"postcode"})
	statusCol := firstColumn(table, []string{"connection", "status"}, []string{"status"})

	var rows []record.Project
	seen := map[string]bool{}
	for _, row := range table.Rows {
		if techCol >= 0 && !isStorage(table.Cell(row, techCol)) {
			continue
		}
		name := table.Cell(row, nameCol)
		if name == "" {
			continue
		}
		capacity := table.Cell(row, capCol)
		if seen[name+"|"+capacity] {
			continue
		}
		seen[name+"|"+capacity] = true
		status := table.Cell(row, statusCol)
		if status == "" {
			status = string(record.StatusConsented)
		}
		rows = append(rows, record.New(name, s.Label(), exportURL, record.Fields{
			Region:     table.Cell(row, regionCol),
			CapacityMW: capacity,
			Status:     status,
		}))
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func (s *ECR) fromRecords(ctx context.Context, root, slug string) ([]record.Project, error) {
	apiURL := root + "/api/explore/v2.1/catalog/datasets/" + slug + "/records?limit=100"
	resp, err := s.client.Get(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	var rows []record.Project
	seen := map[string]bool{}
	for _, rec := range payload.Results {
		if techKey := mapColumn(rec, "energy", "source"); techKey != "" {
			if !isStorage(mapValue(rec, techKey)) {
				continue
			}
		}
		name := mapValue(rec, mapColumn(rec, "customer", "name"), mapColumn(rec, "site", "name"), mapColumn(rec, "name"))
		if name == "" {
			continue
		}
		fields := record.Fields{
			Region: mapValue(rec, mapColumn(rec, "county"), mapColumn(rec, "town")),
			Status: mapValue(rec, mapColumn(rec, "status")),
		}
		if fields.Status == "" {
			fields.Status = string(record.StatusConsented)
		}
		fields.CapacityMW = mapValue(rec, mapColumn(rec, "capacity"))
		if fields.CapacityMW == "" {
			if k := mapColumn(rec, "capacity"); k != "" {
				if v, ok := rec[k].(float64); ok {
					fields.CapacityMWNumeric = record.Float(v)
				}
			}
		}
		if seen[name+"|"+fields.CapacityMW] {
			continue
		}
		seen[name+"|"+fields.CapacityMW] = true
		rows = append(rows, record.New(name, s.Label(), apiURL, fields))
	}
	s.logger.Debug("source parsed", zap.String("source", s.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

func isStorage(v string) bool {
	lower := strings.ToLower(v)
	return strings.Contains(lower, "storage") || strings.Contains(lower, "battery")
}
