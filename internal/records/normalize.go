package records

import "strings"

// fieldAliases lists, per canonical column, the legacy header names accepted for it.
// Lookup is on the lower-cased, trimmed header; earlier aliases win.
var fieldAliases = []struct {
	target  string
	aliases []string
}{
	{ColDate, []string{"date", "datetime", "timestamp", "time", "created at", "created_at"}},
	{ColFileName, []string{"file name", "filename", "file_name", "file", "audio", "audio file", "audio_file"}},
	{ColTranscript, []string{"transcript", "transcription", "text"}},
	{ColAnalysis, []string{"analysis", "ai analysis", "llm analysis", "insights"}},
}

// Normalize maps an arbitrary table onto the canonical schema.
//
// The result always starts with Date, File Name, Transcript, Analysis, followed by the
// input's other columns in their original order. A canonical column is taken from the
// exact-name column when present, otherwise from the first alias column, and any gaps are
// then filled from the remaining alias columns left to right. The input is never modified.
// Nil or zero-row input yields Empty().
func Normalize(in *Table) *Table {
	if in.Len() == 0 {
		return Empty()
	}

	lookup := map[string]string{}
	for _, c := range in.columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, seen := lookup[key]; !seen {
			lookup[key] = c
		}
	}

	resolved := map[string][]Cell{}
	for _, f := range fieldAliases {
		var sources []string
		if in.Has(f.target) {
			sources = append(sources, f.target)
		}
		for _, a := range f.aliases {
			src, ok := lookup[a]
			if !ok || src == f.target || contains(sources, src) {
				continue
			}
			sources = append(sources, src)
		}
		resolved[f.target] = coalesce(in, sources)
	}

	out := NewTable(CanonicalColumns...)
	out.rows = in.rows
	for _, c := range CanonicalColumns {
		out.cells[c] = resolved[c]
	}
	for _, c := range in.columns {
		if isCanonical(c) {
			continue
		}
		out.ensureColumn(c)
		out.cells[c] = in.Column(c)
	}
	return out
}

// coalesce returns, per row, the first present value among sources.
func coalesce(in *Table, sources []string) []Cell {
	col := make([]Cell, in.rows)
	for _, src := range sources {
		values := in.cells[src]
		for i := range col {
			if !col[i].Present && values[i].Present {
				col[i] = values[i]
			}
		}
	}
	return col
}

// FillMissing sets every missing cell of column name to value.
func (t *Table) FillMissing(name, value string) {
	if !t.Has(name) {
		return
	}
	for i, c := range t.cells[name] {
		if !c.Present {
			t.cells[name][i] = Val(value)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
