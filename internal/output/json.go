package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/record"
)

// WriteJSON writes the merged dataset as an indented JSON array and
// returns the path.
func (w *Writer) WriteJSON(rows []record.Project, weekly bool, now time.Time) (string, error) {
	path := w.datasetPath("json", weekly, now)
	if rows == nil {
		rows = []record.Project{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("output: marshal dataset: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	w.logger.Info("Wrote dataset JSON", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}
