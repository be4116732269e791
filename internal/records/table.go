package records

import "sort"

// Canonical column names. Every normalized table starts with these four, in this order.
const (
	ColDate       = "Date"
	ColFileName   = "File Name"
	ColTranscript = "Transcript"
	ColAnalysis   = "Analysis"
)

// CanonicalColumns is the fixed, ordered record schema.
var CanonicalColumns = []string{ColDate, ColFileName, ColTranscript, ColAnalysis}

// Cell is one spreadsheet value. A zero Cell is missing.
type Cell struct {
	Value   string
	Present bool
}

// Val returns a present cell holding s.
func Val(s string) Cell { return Cell{Value: s, Present: true} }

// Missing is the null marker.
var Missing = Cell{}

// String renders missing cells as the empty string.
func (c Cell) String() string {
	if !c.Present {
		return ""
	}
	return c.Value
}

// CallRecord is one persisted call.
type CallRecord struct {
	Date       string `json:"date"`
	FileName   string `json:"file_name"`
	Transcript string `json:"transcript"`
	Analysis   string `json:"analysis"`
}

// Table is a column-oriented record set. Row order is insertion order.
type Table struct {
	columns []string
	cells   map[string][]Cell
	rows    int
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	t := &Table{cells: map[string][]Cell{}}
	for _, c := range columns {
		t.ensureColumn(c)
	}
	return t
}

// Empty returns a zero-row table with only the canonical columns.
func Empty() *Table { return NewTable(CanonicalColumns...) }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Has reports whether the table has a column named exactly name.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.cells[name]
	return ok
}

// Column returns a copy of the named column, or nil when absent.
func (t *Table) Column(name string) []Cell {
	if !t.Has(name) {
		return nil
	}
	src := t.cells[name]
	out := make([]Cell, len(src))
	copy(out, src)
	return out
}

// Get returns the cell at row i of column name; missing when the column is absent.
func (t *Table) Get(i int, name string) Cell {
	if !t.Has(name) || i < 0 || i >= t.rows {
		return Missing
	}
	return t.cells[name][i]
}

// AppendRow adds one row. Columns absent from row become missing; unknown columns are added.
func (t *Table) AppendRow(row map[string]Cell) {
	for _, name := range sortedKeys(row) {
		if !t.Has(name) {
			t.ensureColumn(name)
		}
	}
	for _, name := range t.columns {
		t.cells[name] = append(t.cells[name], row[name])
	}
	t.rows++
}

// AppendRecord appends a canonical record.
func (t *Table) AppendRecord(r CallRecord) {
	t.AppendRow(map[string]Cell{
		ColDate:       Val(r.Date),
		ColFileName:   Val(r.FileName),
		ColTranscript: Val(r.Transcript),
		ColAnalysis:   Val(r.Analysis),
	})
}

// Record returns row i as a CallRecord. Missing cells are empty strings.
func (t *Table) Record(i int) CallRecord {
	return CallRecord{
		Date:       t.Get(i, ColDate).String(),
		FileName:   t.Get(i, ColFileName).String(),
		Transcript: t.Get(i, ColTranscript).String(),
		Analysis:   t.Get(i, ColAnalysis).String(),
	}
}

// Records returns every row as a CallRecord, oldest first.
func (t *Table) Records() []CallRecord {
	out := make([]CallRecord, t.Len())
	for i := range out {
		out[i] = t.Record(i)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return NewTable()
	}
	out := NewTable(t.columns...)
	out.rows = t.rows
	for _, name := range t.columns {
		out.cells[name] = t.Column(name)
	}
	return out
}

// Tail returns the last n rows. n <= 0 or n >= Len returns a copy of the whole table.
func (t *Table) Tail(n int) *Table {
	if t == nil || n <= 0 || n >= t.rows {
		return t.Clone()
	}
	out := NewTable(t.columns...)
	start := t.rows - n
	for _, name := range t.columns {
		col := make([]Cell, n)
		copy(col, t.cells[name][start:])
		out.cells[name] = col
	}
	out.rows = n
	return out
}

// Concat stacks b below a. The result has a's columns followed by any new columns of b.
func Concat(a, b *Table) *Table {
	out := a.Clone()
	if b == nil {
		return out
	}
	for _, name := range b.columns {
		if !out.Has(name) {
			out.ensureColumn(name)
			out.cells[name] = make([]Cell, out.rows)
		}
	}
	for _, name := range out.columns {
		if b.Has(name) {
			out.cells[name] = append(out.cells[name], b.cells[name]...)
		} else {
			out.cells[name] = append(out.cells[name], make([]Cell, b.rows)...)
		}
	}
	out.rows += b.rows
	return out
}

func (t *Table) ensureColumn(name string) {
	if t.cells == nil {
		t.cells = map[string][]Cell{}
	}
	if _, ok := t.cells[name]; ok {
		return
	}
	t.columns = append(t.columns, name)
	t.cells[name] = make([]Cell, t.rows)
}

// sortedKeys keeps canonical columns in canonical order, then the rest alphabetically,
// so AppendRow adds new columns deterministically.
func sortedKeys(row map[string]Cell) []string {
	var keys []string
	for _, c := range CanonicalColumns {
		if _, ok := row[c]; ok {
			keys = append(keys, c)
		}
	}
	var rest []string
	for k := range row {
		if !isCanonical(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func isCanonical(name string) bool {
	for _, c := range CanonicalColumns {
		if c == name {
			return true
		}
	}
	return false
}
