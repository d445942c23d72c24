package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/record"
)

// utf8BOM keeps Excel happy with non-ASCII site names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"scraped_at", "country", "region", "site_name", "capacity_mw",
	"capacity_mw_numeric", "status", "investment_opportunity", "source", "url",
}

// WriteCSV writes the merged dataset as CSV and returns the path.
func (w *Writer) WriteCSV(rows []record.Project, weekly bool, now time.Time) (string, error) {
	path := w.datasetPath("csv", weekly, now)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("output: write bom: %w", err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("output: write header: %w", err)
	}
	for _, p := range rows {
		rec := []string{
			p.ScrapedAt.UTC().Format(time.RFC3339),
			p.Country,
			p.Region,
			p.SiteName,
			p.CapacityMW,
			p.CapacityString(),
			string(p.Status),
			p.InvestmentOpportunity,
			p.Source,
			p.URL,
		}
		if err := cw.Write(rec); err != nil {
			return "", fmt.Errorf("output: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("output: flush %s: %w", path, err)
	}
	w.logger.Info("Wrote dataset CSV", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}
