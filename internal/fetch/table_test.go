package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTable(t *testing.T) {
	raw := []byte("Site Name,Installed Capacity (MWelec),Development Status (short)\nAlpha,49.9,Consented\nBeta,12,\"Under Construction\"\n")
	table, err := DecodeTable(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"Site Name", "Installed Capacity (MWelec)", "Development Status (short)"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Alpha", table.Cell(table.Rows[0], 0))
}

func TestDecodeTableStripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)
	table, err := DecodeTable(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Header)
}

func TestDecodeTableWindows1252Fallback(t *testing.T) {
	// 0xA3 is the pound sign in Windows-1252 and invalid as UTF-8.
	raw := []byte("name,cost\nAlpha,\xA350m\n")
	table, err := DecodeTable(raw)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "£50m", table.Cell(table.Rows[0], 1))
}

func TestDecodeTableEmpty(t *testing.T) {
	_, err := DecodeTable(nil)
	assert.Error(t, err)
}

func TestTableColumn(t *testing.T) {
	table := &Table{Header: []string{"Project Name", "Technology Type", "Cumulative Total Capacity (MW)"}}

	assert.Equal(t, 0, table.Column("project", "name"))
	assert.Equal(t, 1, table.Column("technology"))
	assert.Equal(t, 2, table.Column("capacity"))
	assert.Equal(t, -1, table.Column("region"))
	assert.Equal(t, -1, table.Column("project", "capacity"))
}

func TestTableCellOutOfRange(t *testing.T) {
	table := &Table{}
	assert.Empty(t, table.Cell([]string{"x"}, 5))
	assert.Empty(t, table.Cell([]string{"x"}, -1))
}
