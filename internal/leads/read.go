package leads

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ReadFile loads leads from a .csv or .xlsx file. The first row is the header.
func ReadFile(path string) ([]model.Lead, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "leads: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("leads: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV parses a CSV document. A UTF-8 BOM is stripped; input that is not
// valid UTF-8 is decoded as Windows-1252.
func ReadCSV(r io.Reader) ([]model.Lead, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "leads: read csv")
	}

	var src io.Reader = bytes.NewReader(raw)
	if utf8.Valid(raw) {
		src = transform.NewReader(src, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	} else {
		src = charmap.Windows1252.NewDecoder().Reader(src)
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "leads: parse csv")
	}
	return fromRows(records)
}

// ReadXLSX parses the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leads: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("leads: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]model.Lead, error) {
	if len(rows) == 0 {
		return nil, eris.New("leads: file is empty")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([]model.Lead, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		out = append(out, model.NewLead(header, cells))
	}
	return out, nil
}

// blankRow reports whether every cell is empty or a placeholder literal.
func blankRow(cells []string) bool {
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c != "" && !placeholder(c) {
			return false
		}
	}
	return true
}
