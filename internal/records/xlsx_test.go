package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tbl := Empty()
	tbl.AppendRecord(CallRecord{
		Date:       "2024-03-01 09:30:00",
		FileName:   "call.mp3",
		Transcript: "hi there",
		Analysis:   "**Sentiment:** Neutral\n**Category:** Billing",
	})
	tbl.AppendRow(map[string]Cell{ColFileName: Val("no-date.mp3")})

	data, err := EncodeXLSX(tbl)
	require.NoError(t, err)

	got, err := DecodeXLSX(data)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, CanonicalColumns, got.Columns())

	ts, ok := ParseDate(got.Get(0, ColDate).Value)
	require.True(t, ok, "date cell %q", got.Get(0, ColDate).Value)
	assert.WithinDuration(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), ts, time.Second)

	assert.Equal(t, "**Sentiment:** Neutral\n**Category:** Billing", got.Record(0).Analysis)
	assert.Equal(t, Missing, got.Get(1, ColDate))
	assert.Equal(t, Missing, got.Get(1, ColTranscript))
}

func TestDecodeXLSX_LegacyHeaders(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"filename", "", "notes", "notes"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"a.mp3", "x", "n1", "n2"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"b.mp3"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := DecodeXLSX(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, []string{"filename", "Unnamed: 1", "notes", "notes.1"}, got.Columns())
	assert.Equal(t, 2, got.Len(), "blank rows are skipped")
	assert.Equal(t, Val("n2"), got.Get(0, "notes.1"))
	assert.Equal(t, Missing, got.Get(1, "notes"))
}

func TestDecodeXLSX_Garbage(t *testing.T) {
	_, err := DecodeXLSX([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2024-01-05 13:22:11":  time.Date(2024, 1, 5, 13, 22, 11, 0, time.UTC),
		"2024-01-05":           time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"2024-01-05T13:22:11Z": time.Date(2024, 1, 5, 13, 22, 11, 0, time.UTC),
		"45296.5":              time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%s: got %v want %v", in, got, want)
	}

	for _, bad := range []string{"", "  ", "yesterday", "-3"} {
		_, ok := ParseDate(bad)
		assert.False(t, ok, bad)
	}
}
