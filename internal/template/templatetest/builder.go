// Package templatetest builds ICPW input workbooks for tests.
package templatetest

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Builder accumulates the header and data rows of a Data sheet.
type Builder struct {
	Title  string
	Params []string
	Units  []string
	Rows   [][]any
}

// New starts a template with the identifier columns and the given
// (parameter, unit) pairs.
func New(pairs ...[2]string) *Builder {
	b := &Builder{
		Title:  "ICPW chemistry template",
		Params: []string{"Code", "Name", "Date"},
		Units:  []string{"-", "-", "-"},
	}
	for _, p := range pairs {
		b.Params = append(b.Params, p[0])
		b.Units = append(b.Units, p[1])
	}
	return b
}

// Row appends a data line. Values follow the column order of the header.
func (b *Builder) Row(values ...any) *Builder {
	b.Rows = append(b.Rows, values)
	return b
}

// Workbook renders the template as an excelize file with a Data sheet.
func (b *Builder) Workbook(t testing.TB) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	if _, err := f.NewSheet("Data"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("delete default sheet: %v", err)
	}
	rows := [][]any{{b.Title}, toAny(b.Params), toAny(b.Units)}
	rows = append(rows, b.Rows...)
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow("Data", ref, &r); err != nil {
			t.Fatalf("write row %d: %v", i+1, err)
		}
	}
	return f
}

// Bytes renders the workbook to memory.
func (b *Builder) Bytes(t testing.TB) []byte {
	t.Helper()
	f := b.Workbook(t)
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.Clone(buf.Bytes())
}

// Save writes the workbook into a temporary directory and returns its path.
func (b *Builder) Save(t testing.TB) string {
	t.Helper()
	f := b.Workbook(t)
	defer func() { _ = f.Close() }()
	path := filepath.Join(t.TempDir(), "icpw_template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
