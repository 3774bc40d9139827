package table

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/streetcover/internal/model"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadXLSX reads an XLSX sheet and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// Workbook sheet names.
const (
	SheetRaw     = "raw"
	SheetMeans   = "means"
	SheetSkipped = "skipped"
)

// WriteWorkbook saves observations, summary rows and skips as a three-sheet
// XLSX workbook at path.
func WriteWorkbook(path string, obs []model.Observation, rows []model.SummaryRow, skips []model.Skip) error {
	f := xlsx.NewFile()

	raw, err := f.AddSheet(SheetRaw)
	if err != nil {
		return eris.Wrap(err, "xlsx: add raw sheet")
	}
	addStringRow(raw, ObservationHeader...)
	for _, o := range obs {
		r := raw.AddRow()
		r.AddCell().SetString(o.SID)
		r.AddCell().SetString(o.Heading)
		r.AddCell().SetString(o.Pitch)
		r.AddCell().SetFloat(o.PerGreen)
		r.AddCell().SetFloat(o.PerSky)
	}

	means, err := f.AddSheet(SheetMeans)
	if err != nil {
		return eris.Wrap(err, "xlsx: add means sheet")
	}
	addStringRow(means, SummaryHeader...)
	for _, s := range rows {
		r := means.AddRow()
		r.AddCell().SetString(s.SID)
		r.AddCell().SetString(s.Pitch)
		r.AddCell().SetFloat(s.PerGreen)
		r.AddCell().SetFloat(s.PerSky)
	}

	skipped, err := f.AddSheet(SheetSkipped)
	if err != nil {
		return eris.Wrap(err, "xlsx: add skipped sheet")
	}
	addStringRow(skipped, "path", "kind", "reason")
	for _, s := range skips {
		addStringRow(skipped, s.Path, string(s.Kind), s.Reason)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values ...string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}
