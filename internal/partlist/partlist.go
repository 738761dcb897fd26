// Package partlist loads uploaded parts lists from CSV and XLSX files into
// the row collection consumed by batch validation.
package partlist

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/xref-cli/internal/model"
)

// fileRecord maps the expected column headers of an uploaded list. Header
// matching is case-insensitive; extra columns are ignored.
type fileRecord struct {
	MPN          string `csv:"mpn"`
	Manufacturer string `csv:"manufacturer,omitempty"`
	Description  string `csv:"description,omitempty"`
}

// Load reads a parts list, dispatching on file extension. Supported:
// .csv, .xlsx.
func Load(path string) ([]model.PartsListRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "partlist: open %s", path)
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, eris.Errorf("partlist: unsupported file type %s", filepath.Ext(path))
	}
}

// LoadCSV reads a header-mapped CSV parts list. Rows with an empty MPN are
// skipped; row indexes are assigned in file order starting at 0.
func LoadCSV(r io.Reader) ([]model.PartsListRow, error) {
	dec, err := newDecoder(r)
	if err != nil {
		return nil, eris.Wrap(err, "partlist: read csv header")
	}

	var rows []model.PartsListRow
	for {
		var rec fileRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "partlist: decode csv row")
		}
		if strings.TrimSpace(rec.MPN) == "" {
			continue
		}
		rows = append(rows, newRow(len(rows), rec))
	}

	if len(rows) == 0 {
		return nil, eris.New("partlist: no rows with an MPN found")
	}
	return rows, nil
}

// LoadXLSX reads the first sheet of an XLSX parts list. The first row is
// the header; matching is the same as for CSV.
func LoadXLSX(path string) ([]model.PartsListRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "partlist: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("partlist: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.Errorf("partlist: %s has no data rows", path)
	}

	cols := headerColumns(rowToStrings(sheet.Rows[0]))
	if cols.mpn < 0 {
		return nil, eris.New("partlist: no mpn column in header")
	}

	var rows []model.PartsListRow
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		rec := fileRecord{
			MPN:          cols.cell(cells, cols.mpn),
			Manufacturer: cols.cell(cells, cols.manufacturer),
			Description:  cols.cell(cells, cols.description),
		}
		if strings.TrimSpace(rec.MPN) == "" {
			continue
		}
		rows = append(rows, newRow(len(rows), rec))
	}

	if len(rows) == 0 {
		return nil, eris.New("partlist: no rows with an MPN found")
	}
	return rows, nil
}

func newRow(index int, rec fileRecord) model.PartsListRow {
	return model.PartsListRow{
		RowIndex:        index,
		RawMPN:          strings.TrimSpace(rec.MPN),
		RawManufacturer: strings.TrimSpace(rec.Manufacturer),
		RawDescription:  strings.TrimSpace(rec.Description),
		Status:          model.RowPending,
	}
}

// newDecoder builds a csvutil decoder with a normalized header so column
// matching is case-insensitive and common synonyms resolve.
func newDecoder(r io.Reader) (*csvutil.Decoder, error) {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = canonicalHeader(header[i])
	}
	return csvutil.NewDecoder(csvr, header...)
}

func canonicalHeader(h string) string {
	switch strings.ToLower(strings.TrimSpace(h)) {
	case "mpn", "part number", "part_number":
		return "mpn"
	case "manufacturer", "mfr":
		return "manufacturer"
	case "description", "desc":
		return "description"
	default:
		return strings.ToLower(strings.TrimSpace(h))
	}
}

type headerIndex struct {
	mpn, manufacturer, description int
}

func headerColumns(header []string) headerIndex {
	idx := headerIndex{mpn: -1, manufacturer: -1, description: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "mpn", "part number", "part_number":
			idx.mpn = i
		case "manufacturer", "mfr":
			idx.manufacturer = i
		case "description", "desc":
			idx.description = i
		}
	}
	return idx
}

func (headerIndex) cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}
