package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	HasHeader  bool // if true, first row is skipped
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSVFile opens a file and streams it with StreamCSV. The file is
// closed once the stream ends.
func StreamCSVFile(ctx context.Context, path string, opts CSVOptions) (<-chan Row, <-chan error) {
	f, err := os.Open(path)
	if err != nil {
		return failed(eris.Wrapf(err, "csv: open %s", path))
	}
	rowCh, errCh := StreamCSV(ctx, f, opts)

	outRows := make(chan Row, 64)
	outErr := make(chan error, 1)
	go func() {
		defer close(outRows)
		defer close(outErr)
		defer f.Close() //nolint:errcheck
		for row := range rowCh {
			outRows <- row
		}
		for err := range errCh {
			if err != nil {
				outErr <- err
				return
			}
		}
	}()
	return outRows, outErr
}

// StreamCSV reads CSV records and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		line := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: read row %d", line+1)
				return
			}
			line++

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if line == 1 && opts.HasHeader {
				continue
			}

			select {
			case rowCh <- Row{Line: line, Fields: record}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
