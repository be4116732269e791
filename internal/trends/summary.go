// Package trends turns the stored call records into the plain-text digest handed to the
// trend analyzer. Everything here is deterministic and performs no I/O.
package trends

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"call-intelligence-go/internal/records"
)

const (
	NoDataMessage       = "No data available"
	NoValidDatesMessage = "No valid dates found in the database."

	// Unknown stands in for a value the analysis text did not provide.
	Unknown = "Unknown"

	Instruction = "Instruction: Base insights strictly on the counts/table above. Do not invent totals. " +
		"If a field is Unknown, treat it as missing data."

	recentLimit       = 10
	topCategoryLimit  = 8
	highRiskThreshold = 70
	recentDateLayout  = "2006-01-02 15:04"
)

// RequiredColumns must all be present for a digest to be produced.
var RequiredColumns = []string{records.ColDate, records.ColFileName, records.ColAnalysis}

type row struct {
	date     time.Time
	fileName string
	fields   Fields
}

// Count is one histogram bucket.
type Count struct {
	Value string
	N     int
}

// Summarize builds the digest for t. Data problems never fail: they come back as an
// explanatory message instead of a digest.
func Summarize(t *records.Table) string {
	if t.Len() == 0 {
		return NoDataMessage
	}
	if missing := missingColumns(t); len(missing) > 0 {
		return fmt.Sprintf("The database is missing required columns: %s. Expected columns: %s.",
			strings.Join(missing, ", "), strings.Join(RequiredColumns, ", "))
	}

	rows := datedRows(t)
	if len(rows) == 0 {
		return NoValidDatesMessage
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	sentiments := make([]string, len(rows))
	categories := make([]string, len(rows))
	var risks []int
	for i, r := range rows {
		sentiments[i] = r.fields.Sentiment
		categories[i] = r.fields.Category
		if r.fields.HasRisk {
			risks = append(risks, r.fields.Risk)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total Calls: %d\n", len(rows))
	fmt.Fprintf(&b, "Date Range: %s to %s\n",
		rows[0].date.Format("2006-01-02"), rows[len(rows)-1].date.Format("2006-01-02"))
	b.WriteString("\nSentiment (all calls):\n")
	for _, c := range Histogram(sentiments) {
		fmt.Fprintf(&b, "- %s: %d\n", c.Value, c.N)
	}
	b.WriteString("\nTop Categories (all calls):\n")
	cats := Histogram(categories)
	if len(cats) > topCategoryLimit {
		cats = cats[:topCategoryLimit]
	}
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %d\n", c.Value, c.N)
	}
	b.WriteString("\n")
	b.WriteString(riskLine(risks))
	b.WriteString("\n\nMost Recent 10 Calls:\n")
	recent := rows
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}
	b.WriteString(recentTable(recent))
	b.WriteString("\n")
	b.WriteString(Instruction)
	return b.String()
}

// missingColumns lists absent required columns in alphabetical order.
func missingColumns(t *records.Table) []string {
	var missing []string
	for _, c := range RequiredColumns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

// datedRows keeps only rows whose date parses.
func datedRows(t *records.Table) []row {
	rows := make([]row, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		date, ok := records.ParseDate(t.Get(i, records.ColDate).Value)
		if !ok {
			continue
		}
		name := strings.TrimSpace(t.Get(i, records.ColFileName).Value)
		if name == "" {
			name = Unknown
		}
		rows = append(rows, row{
			date:     date,
			fileName: name,
			fields:   Extract(t.Get(i, records.ColAnalysis).Value),
		})
	}
	return rows
}

// Histogram counts values case-insensitively after trimming, labelling each bucket with
// the first spelling seen. Blank values count as Unknown. Buckets are ordered by count,
// ties by first appearance.
func Histogram(values []string) []Count {
	index := map[string]int{}
	var out []Count
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			v = Unknown
		}
		key := strings.ToLower(v)
		if i, ok := index[key]; ok {
			out[i].N++
			continue
		}
		index[key] = len(out)
		out = append(out, Count{Value: v, N: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].N > out[j].N })
	return out
}

func riskLine(risks []int) string {
	if len(risks) == 0 {
		return "Escalation Risk (%): Not available (could not parse from Analysis)"
	}
	sum, high := 0, 0
	for _, r := range risks {
		sum += r
		if r >= highRiskThreshold {
			high++
		}
	}
	avg := float64(sum) / float64(len(risks))
	return fmt.Sprintf("Escalation Risk (%%): avg=%.1f, median=%.1f, high(>=%d)=%d",
		avg, median(risks), highRiskThreshold, high)
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func recentTable(rows []row) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tFile Name\tSentiment\tEscalation Risk (%)\tCategory")
	for _, r := range rows {
		risk := Unknown
		if r.fields.HasRisk {
			risk = strconv.Itoa(r.fields.Risk)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.date.Format(recentDateLayout), cellText(r.fileName), orUnknown(r.fields.Sentiment),
			risk, orUnknown(r.fields.Category))
	}
	w.Flush()
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return cellText(s)
}

// cellText keeps tab and newline characters from breaking the table layout.
func cellText(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
