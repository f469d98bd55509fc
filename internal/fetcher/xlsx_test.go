package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func readXLSX(path string, opts XLSXOptions) ([]Row, error) {
	return Collect(StreamXLSX(context.Background(), path, opts))
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestStreamXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"County", "County ANSI", "Value"},
			{"ADAMS", "1", "180"},
			{"BOONE", "7", "175"},
		},
	})

	rows, err := readXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"County", "County ANSI", "Value"}, rows[0].Fields)
	assert.Equal(t, []string{"ADAMS", "1", "180"}, rows[1].Fields)
	assert.Equal(t, 3, rows[2].Line)
}

func TestStreamXLSX_HasHeader(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"Header1", "Header2"},
			{"a", "b"},
			{"c", "d"},
		},
	})

	rows, err := readXLSX(path, XLSXOptions{HasHeader: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0].Fields)
	assert.Equal(t, 2, rows[0].Line)
}

func TestStreamXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a", "b"}},
		"Second": {{"x", "y"}, {"1", "2"}},
	})

	rows, err := readXLSX(path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x", "y"}, rows[0].Fields)
}

func TestStreamXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := readXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStreamXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := readXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestStreamXLSX_MissingFile(t *testing.T) {
	_, err := readXLSX(filepath.Join(t.TempDir(), "missing.xlsx"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open")
}

func TestStreamXLSX_ContextCancelled(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}, {"b"}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(StreamXLSX(ctx, path, XLSXOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
