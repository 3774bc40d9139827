// Package table reads and writes the tabular artifacts of the pipeline: the
// raw observation table, the per-location summary, location sheets and the
// XLSX workbook export.
package table

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads CSV rows from r and sends them to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
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

		first := true
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
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadAllCSV drains StreamCSV into memory, returning the header separately.
func ReadAllCSV(ctx context.Context, r io.Reader) (header []string, rows [][]string, err error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{HasHeader: true, HeaderCh: headerCh, TrimSpace: true})

	for row := range rowCh {
		rows = append(rows, row)
	}
	for e := range errCh {
		if e != nil {
			return nil, nil, e
		}
	}

	select {
	case header = <-headerCh:
	default:
		return nil, nil, eris.New("csv: missing header row")
	}
	return header, rows, nil
}

// ColumnIndex maps lower-cased header names to their positions.
func ColumnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

// RequireColumns returns the positions of the named columns or an error
// naming the first one missing.
func RequireColumns(idx map[string]int, names ...string) ([]int, error) {
	pos := make([]int, len(names))
	for i, n := range names {
		p, ok := idx[strings.ToLower(n)]
		if !ok {
			return nil, eris.Errorf("table: missing column %q", n)
		}
		pos[i] = p
	}
	return pos, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
