package fetch

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a decoded tabular download.
type Table struct {
	Header []string
	Rows   [][]string
}

// DecodeTable parses raw CSV bytes. Government registry extracts are
// sometimes Windows-1252 encoded, so invalid UTF-8 falls back to a charmap
// decode rather than failing.
func DecodeTable(raw []byte) (*Table, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Table{Header: header, Rows: records[1:]}, nil
}

// Column returns the index of the first header containing every keyword
// (case-insensitive), or -1.
func (t *Table) Column(keywords ...string) int {
	for i, h := range t.Header {
		lower := strings.ToLower(h)
		all := true
		for _, kw := range keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				all = false
				break
			}
		}
		if all {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at idx, empty when the index is out of
// range for the row or unset.
func (t *Table) Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
