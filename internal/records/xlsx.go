package records

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of the persisted blob.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Sheet1"

// DecodeXLSX reads the first sheet of a workbook. The first row is the header; empty
// cells are missing. Blank headers become "Unnamed: N" and repeated headers get a ".N"
// suffix so every column stays addressable.
func DecodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return NewTable(), nil
	}

	header := headerNames(rows[0])
	t := NewTable(header...)
	for _, r := range rows[1:] {
		if blankRow(r) {
			continue
		}
		row := make(map[string]Cell, len(header))
		for i, name := range header {
			if i < len(r) && r[i] != "" {
				row[name] = Val(r[i])
			}
		}
		t.AppendRow(row)
	}
	return t, nil
}

// EncodeXLSX writes the table as a single-sheet workbook. Parseable Date cells are stored
// as real spreadsheet dates so the file stays sortable when opened by hand.
func EncodeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	layout := "yyyy-mm-dd hh:mm:ss"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &layout})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}

	cols := t.Columns()
	head := make([]interface{}, len(cols))
	for i, c := range cols {
		head[i] = excelize.Cell{StyleID: headStyle, Value: c}
	}
	if err := sw.SetRow("A1", head); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			cell := t.Get(i, c)
			if !cell.Present {
				continue
			}
			if c == ColDate {
				if ts, ok := ParseDate(cell.Value); ok {
					row[j] = excelize.Cell{StyleID: dateStyle, Value: ts}
					continue
				}
			}
			row[j] = cell.Value
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(ref, row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := map[string]int{}
	for i, h := range raw {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

func blankRow(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
