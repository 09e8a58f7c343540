// Package template reads the ICPW chemistry input template.
//
// The Data sheet has a title row, then two header rows (parameter, unit) and
// one line per station and sampling date. The first three columns are Code,
// Name and Date; every following column is a measured parameter.
package template

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/models"
)

const (
	SheetName = "Data"
	// DateLayout is the text format of the Date column. Month and day may
	// be written with or without a leading zero.
	DateLayout = "2006.1.2"
	// UnitlessMarker fills the unit row for columns without a unit.
	UnitlessMarker = "-"

	headerRows = 3
)

// IdentifierColumns are the leading non-parameter columns, in order.
var IdentifierColumns = []string{"Code", "Name", "Date"}

// ReadFile parses the template at path.
func ReadFile(path string) (models.WideTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.WideTable{}, &errs.ParseError{Msg: "open workbook", Err: err}
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(f)
}

// Read parses a template from r.
func Read(r io.Reader) (models.WideTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.WideTable{}, &errs.ParseError{Msg: "open workbook", Err: err}
	}
	defer func() { _ = f.Close() }()
	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (models.WideTable, error) {
	idx, err := f.GetSheetIndex(SheetName)
	if err != nil || idx < 0 {
		return models.WideTable{}, &errs.ParseError{Msg: fmt.Sprintf("sheet %q not found", SheetName), Err: err}
	}
	// Stored values, not the displayed ones: a "0.00" number format would
	// otherwise round chemistry values before they are parsed.
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return models.WideTable{}, &errs.ParseError{Msg: "read rows", Err: err}
	}
	if len(rows) < headerRows {
		return models.WideTable{}, &errs.ParseError{Msg: "expected a title row followed by parameter and unit header rows"}
	}

	headers, err := MergeHeaders(rows[1], rows[2])
	if err != nil {
		return models.WideTable{}, err
	}
	if len(headers) <= len(IdentifierColumns) {
		return models.WideTable{}, &errs.ParseError{Line: 2, Msg: "template has no parameter columns"}
	}
	for i, want := range IdentifierColumns {
		if headers[i] != want {
			return models.WideTable{}, &errs.ParseError{
				Line:   2,
				Column: columnName(i),
				Msg:    fmt.Sprintf("expected header %q, got %q", want, headers[i]),
			}
		}
	}

	table := models.WideTable{Parameters: headers[len(IdentifierColumns):]}
	for i, row := range rows[headerRows:] {
		line := i + headerRows + 1
		if blank(row) {
			continue
		}
		wide, err := parseRow(line, row, len(headers))
		if err != nil {
			return models.WideTable{}, err
		}
		table.Rows = append(table.Rows, wide)
	}
	return table, nil
}

// MergeHeaders flattens the parameter and unit header rows into one name per
// column, "<parameter>_<unit>". The "_-" suffix of unitless columns is
// dropped. An empty parameter cell continues the parameter to its left, as a
// horizontally merged cell reads.
func MergeHeaders(params, units []string) ([]string, error) {
	width := max(len(params), len(units))
	headers := make([]string, width)
	seen := make(map[string]int, width)
	last := ""
	for i := 0; i < width; i++ {
		param := strings.TrimSpace(cell(params, i))
		unit := strings.TrimSpace(cell(units, i))
		if param == "" {
			if last == "" || unit == "" {
				return nil, &errs.ParseError{Line: 2, Column: columnName(i), Msg: "blank parameter header"}
			}
			param = last
		}
		last = param
		if unit == "" {
			return nil, &errs.ParseError{Line: 3, Column: columnName(i), Msg: fmt.Sprintf("missing unit for %q (use %q for unitless columns)", param, UnitlessMarker)}
		}
		name := strings.TrimSuffix(param+"_"+unit, "_"+UnitlessMarker)
		if prev, ok := seen[name]; ok {
			return nil, &errs.ParseError{Line: 2, Column: columnName(i), Msg: fmt.Sprintf("header %q repeats column %s", name, columnName(prev))}
		}
		seen[name] = i
		headers[i] = name
	}
	return headers, nil
}

func parseRow(line int, row []string, width int) (models.WideRow, error) {
	code := strings.TrimSpace(cell(row, 0))
	if code == "" {
		return models.WideRow{}, &errs.ParseError{Line: line, Column: columnName(0), Msg: "missing station code"}
	}
	date, err := parseDateCell(cell(row, 2))
	if err != nil {
		return models.WideRow{}, &errs.ParseError{Line: line, Column: columnName(2), Msg: "invalid date", Err: err}
	}
	for i := width; i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return models.WideRow{}, &errs.ParseError{Line: line, Column: columnName(i), Msg: "value outside the header range"}
		}
	}
	cells := make([]string, width-len(IdentifierColumns))
	for i := range cells {
		cells[i] = cell(row, i+len(IdentifierColumns))
	}
	return models.WideRow{
		Line:  line,
		Code:  code,
		Name:  strings.TrimSpace(cell(row, 1)),
		Date:  date,
		Cells: cells,
	}, nil
}

// ParseDate reads a YYYY.MM.DD date cell (2020.01.05 or 2020.1.5).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return models.DateOnly(t), nil
}

// parseDateCell accepts the text form and, for cells typed as dates in
// Excel, the raw serial number.
func parseDateCell(s string) (time.Time, error) {
	d, err := ParseDate(s)
	if err == nil {
		return d, nil
	}
	serial, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if perr != nil || serial <= 0 {
		return time.Time{}, err
	}
	t, terr := excelize.ExcelDateToTime(serial, false)
	if terr != nil {
		return time.Time{}, terr
	}
	return models.DateOnly(t), nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func columnName(i int) string {
	name, err := excelize.ColumnNumberToName(i + 1)
	if err != nil {
		return fmt.Sprintf("#%d", i+1)
	}
	return name
}
