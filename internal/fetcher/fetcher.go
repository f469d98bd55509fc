// Package fetcher streams rows out of delimited text and XLSX tables and
// downloads and unpacks remote archives.
package fetcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one record of a table. Line is the 1-based position of the record
// in the source, counting any header row.
type Row struct {
	Line   int
	Fields []string
}

// TableOptions configures StreamTable.
type TableOptions struct {
	Delimiter rune   // CSV only; default ','
	HasHeader bool   // skip the first record
	Sheet     string // XLSX only; default first sheet
}

// StreamTable opens path and streams its rows, choosing the parser from the
// file extension (.xlsx, otherwise delimited text).
func StreamTable(ctx context.Context, path string, opts TableOptions) (<-chan Row, <-chan error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return StreamXLSX(ctx, path, XLSXOptions{SheetName: opts.Sheet, HasHeader: opts.HasHeader})
	case ".xls":
		return failed(eris.Errorf("fetcher: legacy .xls is not supported: %s", path))
	default:
		return StreamCSVFile(ctx, path, CSVOptions{
			Delimiter:  opts.Delimiter,
			HasHeader:  opts.HasHeader,
			LazyQuotes: true,
			TrimSpace:  true,
		})
	}
}

// failed returns closed channels carrying a single error.
func failed(err error) (<-chan Row, <-chan error) {
	rowCh := make(chan Row)
	errCh := make(chan error, 1)
	errCh <- err
	close(rowCh)
	close(errCh)
	return rowCh, errCh
}

// Collect drains a row stream. The first error wins.
func Collect(rowCh <-chan Row, errCh <-chan error) ([]Row, error) {
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}
