package trends

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intelligence-go/internal/records"
)

func analysisText(sentiment string, risk int, category string) string {
	return fmt.Sprintf("**Summary:** caller asked about a bill\n**Sentiment:** %s\n**Escalation Risk:** %d%%\n"+
		"**Why:** \"I was charged twice\"\n**Category:** %s\n**Action:** call back", sentiment, risk, category)
}

func tableOf(rows ...records.CallRecord) *records.Table {
	t := records.Empty()
	for _, r := range rows {
		t.AppendRecord(r)
	}
	return t
}

func TestExtract_MarkdownLabels(t *testing.T) {
	f := Extract("**Summary:** refund\n**Sentiment:** Negative\n**Escalation Risk:** 85%\n**Category:** Billing")

	assert.Equal(t, "Negative", f.Sentiment)
	assert.Equal(t, "Billing", f.Category)
	assert.True(t, f.HasRisk)
	assert.Equal(t, 85, f.Risk)
}

func TestExtract_TolerantMatching(t *testing.T) {
	f := Extract("notes first\nsentiment: positive  \n**Escalation  Risk**: about 40 percent (low)")

	assert.Equal(t, "positive", f.Sentiment)
	assert.Equal(t, 40, f.Risk)
	assert.True(t, f.HasRisk)
	assert.Empty(t, f.Category)
}

func TestExtract_MissingAndBlankLabels(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"no labels":    "The customer was happy.",
		"blank values": "**Sentiment:**\n**Category:**   \n**Escalation Risk:** n/a",
		"out of range": "**Escalation Risk:** 450%",
	}
	for name, text := range cases {
		f := Extract(text)
		assert.Empty(t, f.Sentiment, name)
		assert.Empty(t, f.Category, name)
		assert.False(t, f.HasRisk, name)
	}
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, NoDataMessage, Summarize(records.Empty()))
	assert.Equal(t, NoDataMessage, Summarize(nil))
}

func TestSummarize_MissingColumns(t *testing.T) {
	tbl := records.NewTable(records.ColDate, records.ColTranscript)
	tbl.AppendRow(map[string]records.Cell{records.ColDate: records.Val("2025-01-01 10:00:00")})

	got := Summarize(tbl)

	assert.Equal(t, "The database is missing required columns: Analysis, File Name. "+
		"Expected columns: Date, File Name, Analysis.", got)
}

func TestSummarize_NoValidDates(t *testing.T) {
	tbl := tableOf(
		records.CallRecord{Date: "not a date", FileName: "a.mp3", Analysis: "x"},
		records.CallRecord{Date: "", FileName: "b.mp3", Analysis: "y"},
	)
	assert.Equal(t, NoValidDatesMessage, Summarize(tbl))
}

func TestSummarize_RiskAggregates(t *testing.T) {
	tbl := tableOf(
		records.CallRecord{Date: "2025-03-01 09:00:00", FileName: "a.mp3", Analysis: analysisText("Negative", 90, "Billing")},
		records.CallRecord{Date: "2025-03-02 09:00:00", FileName: "b.mp3", Analysis: analysisText("Neutral", 10, "Billing")},
		records.CallRecord{Date: "2025-03-03 09:00:00", FileName: "c.mp3", Analysis: analysisText("negative", 70, "Outage")},
	)

	got := Summarize(tbl)

	assert.Contains(t, got, "Total Calls: 3\n")
	assert.Contains(t, got, "Date Range: 2025-03-01 to 2025-03-03\n")
	assert.Contains(t, got, "Escalation Risk (%): avg=56.7, median=70.0, high(>=70)=2")
	assert.Contains(t, got, "Sentiment (all calls):\n- Negative: 2\n- Neutral: 1\n")
	assert.Contains(t, got, "Top Categories (all calls):\n- Billing: 2\n- Outage: 1\n")
	assert.True(t, strings.HasSuffix(got, Instruction))
}

func TestSummarize_RiskNotAvailable(t *testing.T) {
	tbl := tableOf(records.CallRecord{Date: "2025-03-01 09:00:00", FileName: "a.mp3", Analysis: "**Sentiment:** Positive"})

	got := Summarize(tbl)

	assert.Contains(t, got, "Escalation Risk (%): Not available (could not parse from Analysis)")
	assert.Contains(t, got, "Top Categories (all calls):\n- Unknown: 1\n")
}

func TestSummarize_SkipsUnparseableDatesAndSorts(t *testing.T) {
	tbl := tableOf(
		records.CallRecord{Date: "2025-05-02 08:00:00", FileName: "late.mp3", Analysis: analysisText("Positive", 5, "Sales")},
		records.CallRecord{Date: "garbage", FileName: "bad.mp3", Analysis: analysisText("Negative", 99, "Sales")},
		records.CallRecord{Date: "2025-05-01 08:00:00", FileName: "early.mp3", Analysis: analysisText("Positive", 5, "Sales")},
	)

	got := Summarize(tbl)

	assert.Contains(t, got, "Total Calls: 2\n")
	assert.Contains(t, got, "Date Range: 2025-05-01 to 2025-05-02\n")
	assert.NotContains(t, got, "bad.mp3")
	assert.Less(t, strings.Index(got, "early.mp3"), strings.Index(got, "late.mp3"))
}

func TestSummarize_RecentTableCappedToLatest(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := records.Empty()
	for i := 0; i < 1000; i++ {
		tbl.AppendRecord(records.CallRecord{
			Date:     start.Add(time.Duration(i) * time.Hour).Format(records.DateLayout),
			FileName: fmt.Sprintf("call-%04d.mp3", i),
			Analysis: analysisText("Neutral", i%101, "General"),
		})
	}

	got := Summarize(tbl)

	idx := strings.Index(got, "Most Recent 10 Calls:\n")
	require.GreaterOrEqual(t, idx, 0)
	section := got[idx:strings.Index(got, Instruction)]
	lines := strings.Split(strings.TrimSpace(section), "\n")
	require.Len(t, lines, 12, "title, header and ten rows")
	assert.True(t, strings.HasPrefix(lines[1], "Date"))
	for i, line := range lines[2:] {
		assert.Contains(t, line, fmt.Sprintf("call-%04d.mp3", 990+i))
	}
	assert.NotContains(t, section, "call-0989.mp3")
	assert.Contains(t, got, "Total Calls: 1000\n")
}

func TestSummarize_RecentTableFormatsMissingAsUnknown(t *testing.T) {
	tbl := tableOf(records.CallRecord{Date: "2025-07-04 16:45:59", FileName: "x.wav", Analysis: "nothing useful"})

	got := Summarize(tbl)

	assert.Regexp(t, `2025-07-04 16:45\s+x\.wav\s+Unknown\s+Unknown\s+Unknown`, got)
}

func TestSummarize_Deterministic(t *testing.T) {
	tbl := tableOf(
		records.CallRecord{Date: "2025-03-01 09:00:00", FileName: "a.mp3", Analysis: analysisText("Negative", 90, "Billing")},
		records.CallRecord{Date: "2025-03-01 09:00:00", FileName: "b.mp3", Analysis: analysisText("Positive", 20, "Outage")},
	)
	assert.Equal(t, Summarize(tbl), Summarize(tbl.Clone()))
}

func TestHistogram(t *testing.T) {
	got := Histogram([]string{"Billing", " billing ", "", "Outage", "Outage", "BILLING", "Sales"})

	assert.Equal(t, []Count{
		{Value: "Billing", N: 3},
		{Value: "Outage", N: 2},
		{Value: "Unknown", N: 1},
		{Value: "Sales", N: 1},
	}, got)
}

func TestExtract_LabelsMustStartTheLine(t *testing.T) {
	f := Extract("**Summary:** Customer sentiment: furious about fees; category: unclear\n" +
		"**Subcategory:** Refunds\n**Sentiment:** Negative\n**Category:** Billing\n" +
		"Their escalation risk: 99 by their own account\n**Escalation Risk:** 30%")

	assert.Equal(t, "Negative", f.Sentiment)
	assert.Equal(t, "Billing", f.Category)
	assert.Equal(t, 30, f.Risk)

	f = Extract("  - **Sentiment:** Positive\n1. Category: Sales\n### Escalation Risk: 12%")
	assert.Equal(t, "Positive", f.Sentiment)
	assert.Equal(t, "Sales", f.Category)
	assert.Equal(t, 12, f.Risk)

	assert.Empty(t, Extract("**Subcategory:** Refunds").Category)
}

func TestSummarize_TopEightCategories(t *testing.T) {
	// C02, C05, C08, C11 appear three times; C01, C04, C07, C10, C12 twice; the rest once.
	counts := map[int]int{2: 3, 5: 3, 8: 3, 11: 3, 1: 2, 4: 2, 7: 2, 10: 2, 12: 2, 3: 1, 6: 1, 9: 1}
	tbl := records.Empty()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	for round := 0; round < 3; round++ {
		for i := 1; i <= 12; i++ {
			if counts[i] <= round {
				continue
			}
			tbl.AppendRecord(records.CallRecord{
				Date:     start.Add(time.Duration(n) * time.Hour).Format(records.DateLayout),
				FileName: fmt.Sprintf("call%02d.mp3", n),
				Analysis: analysisText("Neutral", 10, fmt.Sprintf("C%02d", i)),
			})
			n++
		}
	}

	got := Summarize(tbl)

	const header = "Top Categories (all calls):\n"
	at := strings.Index(got, header)
	require.GreaterOrEqual(t, at, 0)
	section := got[at+len(header):]
	section = section[:strings.Index(section, "\n\n")]
	assert.Equal(t, []string{
		"- C02: 3", "- C05: 3", "- C08: 3", "- C11: 3",
		"- C01: 2", "- C04: 2", "- C07: 2", "- C10: 2",
	}, strings.Split(section, "\n"), "C12 ties at the cut-off and is dropped by encounter order")
}
