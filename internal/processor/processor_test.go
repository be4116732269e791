package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/records"
	"call-intelligence-go/internal/trends"
)

type fakeTranscriber struct {
	fail map[string]error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, filename string) (string, error) {
	if err := f.fail[filename]; err != nil {
		return "", err
	}
	return "transcript of " + filename, nil
}

type fakeAnalyzer struct {
	failOn      string
	trendDigest string
	trendCalls  int
	trendErr    error
}

func (f *fakeAnalyzer) AnalyzeCall(_ context.Context, transcript string) (string, error) {
	if f.failOn != "" && transcript == f.failOn {
		return "", apperrors.NewAnalysis(stderrors.New("model overloaded"))
	}
	return "**Sentiment:** Neutral\n**Escalation Risk:** 20%\n**Category:** General", nil
}

func (f *fakeAnalyzer) AnalyzeTrends(_ context.Context, digest string) (string, error) {
	f.trendCalls++
	f.trendDigest = digest
	return "narrative", f.trendErr
}

type fakeRecords struct {
	table   *records.Table
	saveErr map[string]error
	loadErr error
}

func newFakeRecords() *fakeRecords { return &fakeRecords{table: records.Empty()} }

func (f *fakeRecords) Append(_ context.Context, fileName, transcript, analysis string) error {
	if err := f.saveErr[fileName]; err != nil {
		return err
	}
	f.table.AppendRecord(records.CallRecord{
		Date:       fmt.Sprintf("2025-01-01 10:%02d:00", f.table.Len()),
		FileName:   fileName,
		Transcript: transcript,
		Analysis:   analysis,
	})
	return nil
}

func (f *fakeRecords) LoadAll(context.Context) (*records.Table, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.table.Clone(), nil
}

func upload(name string) Upload { return Upload{FileName: name, Data: []byte("audio")} }

func TestProcessBatch_IsolatesFailures(t *testing.T) {
	recs := newFakeRecords()
	recs.saveErr = map[string]error{"locked.wav": apperrors.NewDestinationBusy("call_records.xlsx", nil)}
	tr := &fakeTranscriber{fail: map[string]error{"broken.mp3": apperrors.NewTranscription(stderrors.New("bad audio"))}}
	an := &fakeAnalyzer{failOn: "transcript of overload.m4a"}
	p := New(tr, an, recs, 0)

	var progress []Progress
	res := p.ProcessBatch(context.Background(), []Upload{
		upload("ok1.mp3"),
		upload("broken.mp3"),
		upload("overload.m4a"),
		upload("locked.wav"),
		upload("notes.txt"),
		upload("ok2.flac"),
	}, func(pr Progress) { progress = append(progress, pr) })

	require.Len(t, res.Items, 6)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 2, res.Saved)

	assert.True(t, res.Items[0].Saved)
	assert.Equal(t, StageDone, res.Items[0].Stage)

	assert.Equal(t, StageTranscribe, res.Items[1].Stage)
	assert.Equal(t, string(apperrors.ErrTranscription), res.Items[1].ErrorCode)
	assert.Contains(t, res.Items[1].Error, "bad audio")

	assert.Equal(t, StageAnalyze, res.Items[2].Stage)
	assert.Equal(t, "transcript of overload.m4a", res.Items[2].Transcript)

	assert.Equal(t, StageSave, res.Items[3].Stage)
	assert.False(t, res.Items[3].Saved)
	assert.Equal(t, string(apperrors.ErrDestinationBusy), res.Items[3].ErrorCode)
	assert.NotEmpty(t, res.Items[3].Analysis, "processed but unsaved items keep their analysis")

	assert.Equal(t, StageValidate, res.Items[4].Stage)
	assert.Equal(t, string(apperrors.ErrInvalidRequest), res.Items[4].ErrorCode)

	assert.True(t, res.Items[5].Saved)

	require.Len(t, progress, 6)
	saved := []int{1, 1, 1, 1, 1, 2}
	for i, pr := range progress {
		assert.Equal(t, i, pr.Index)
		assert.Equal(t, 6, pr.Total)
		assert.Equal(t, saved[i], pr.Saved)
	}

	require.Equal(t, 2, recs.table.Len())
	assert.Equal(t, "ok1.mp3", recs.table.Record(0).FileName)
	assert.Equal(t, "ok2.flac", recs.table.Record(1).FileName)
}

func TestProcessBatch_Validation(t *testing.T) {
	p := New(&fakeTranscriber{}, &fakeAnalyzer{}, newFakeRecords(), 4)

	res := p.ProcessBatch(context.Background(), []Upload{
		{FileName: "big.MP3", Data: []byte("12345")},
		{FileName: "empty.wav"},
		{FileName: "fine.MPGA", Data: []byte("1234")},
	}, nil)

	assert.Contains(t, res.Items[0].Error, "limit is 4")
	assert.Contains(t, res.Items[1].Error, "is empty")
	assert.True(t, res.Items[2].Saved)
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	recs := newFakeRecords()
	p := New(&fakeTranscriber{}, &fakeAnalyzer{}, recs, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.ProcessBatch(ctx, []Upload{upload("a.mp3")}, nil)

	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, StageValidate, res.Items[0].Stage)
	assert.Equal(t, 0, recs.table.Len())
}

func TestTrends_EmptyStoreSkipsAnalyzer(t *testing.T) {
	an := &fakeAnalyzer{}
	p := New(&fakeTranscriber{}, an, newFakeRecords(), 0)

	rep, err := p.Trends(context.Background(), 0, false)

	require.NoError(t, err)
	assert.Equal(t, trends.NoDataMessage, rep.Digest)
	assert.Zero(t, rep.Records)
	assert.Zero(t, an.trendCalls)
}

func TestTrends_LastNScopesDigest(t *testing.T) {
	recs := newFakeRecords()
	an := &fakeAnalyzer{}
	p := New(&fakeTranscriber{}, an, recs, 0)
	for i := 0; i < 5; i++ {
		p.ProcessBatch(context.Background(), []Upload{upload(fmt.Sprintf("c%d.mp3", i))}, nil)
	}

	rep, err := p.Trends(context.Background(), 2, false)

	require.NoError(t, err)
	assert.Equal(t, 2, rep.Records)
	assert.Contains(t, rep.Digest, "Total Calls: 2\n")
	assert.Contains(t, rep.Digest, "c4.mp3")
	assert.NotContains(t, rep.Digest, "c2.mp3")
	assert.Equal(t, "narrative", rep.Analysis)
	assert.Equal(t, rep.Digest, an.trendDigest)
}

func TestTrends_DigestOnly(t *testing.T) {
	recs := newFakeRecords()
	an := &fakeAnalyzer{}
	p := New(&fakeTranscriber{}, an, recs, 0)
	p.ProcessBatch(context.Background(), []Upload{upload("a.mp3")}, nil)

	rep, err := p.Trends(context.Background(), 0, true)

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Records)
	assert.Empty(t, rep.Analysis)
	assert.Zero(t, an.trendCalls)
}

func TestTrends_Errors(t *testing.T) {
	recs := newFakeRecords()
	recs.loadErr = stderrors.New("parse call_records.xlsx: zip: not a valid zip file")
	p := New(&fakeTranscriber{}, &fakeAnalyzer{}, recs, 0)

	_, err := p.Trends(context.Background(), 0, false)
	assert.ErrorContains(t, err, "not a valid zip file")

	recs.loadErr = nil
	an := &fakeAnalyzer{trendErr: apperrors.NewAnalysis(stderrors.New("timeout"))}
	p = New(&fakeTranscriber{}, an, recs, 0)
	p.ProcessBatch(context.Background(), []Upload{upload("a.mp3")}, nil)

	rep, err := p.Trends(context.Background(), 0, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrAnalysis))
	assert.NotEmpty(t, rep.Digest)
}

func TestRecent(t *testing.T) {
	recs := newFakeRecords()
	p := New(&fakeTranscriber{}, &fakeAnalyzer{}, recs, 0)
	for i := 0; i < 4; i++ {
		p.ProcessBatch(context.Background(), []Upload{upload(fmt.Sprintf("c%d.mp3", i))}, nil)
	}

	all, err := p.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	last, err := p.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "c2.mp3", last[0].FileName)
	assert.Equal(t, "c3.mp3", last[1].FileName)
	assert.NotEmpty(t, last[1].Analysis)

	recs.loadErr = stderrors.New("bucket gone")
	_, err = p.Recent(context.Background(), 0)
	assert.ErrorContains(t, err, "bucket gone")
}
