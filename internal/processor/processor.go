package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
	"call-intelligence-go/internal/records"
	"call-intelligence-go/internal/trends"
)

// AllowedExtensions are the audio formats accepted for upload.
var AllowedExtensions = []string{"mp3", "wav", "m4a", "flac", "mpeg", "mpga", "mp4"}

// Stages an item can stop at.
const (
	StageValidate   = "validate"
	StageTranscribe = "transcribe"
	StageAnalyze    = "analyze"
	StageSave       = "save"
	StageDone       = "done"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type Analyzer interface {
	AnalyzeCall(ctx context.Context, transcript string) (string, error)
	AnalyzeTrends(ctx context.Context, digest string) (string, error)
}

// Records is the part of the record store the processor needs.
type Records interface {
	Append(ctx context.Context, fileName, transcript, analysis string) error
	LoadAll(ctx context.Context) (*records.Table, error)
}

// Upload is one audio file submitted for processing.
type Upload struct {
	FileName string
	Data     []byte
}

type ItemResult struct {
	FileName   string `json:"file_name"`
	Transcript string `json:"transcript,omitempty"`
	Analysis   string `json:"analysis,omitempty"`
	Saved      bool   `json:"saved"`
	Stage      string `json:"stage"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type BatchResult struct {
	BatchID    string       `json:"batch_id"`
	Items      []ItemResult `json:"items"`
	Processed  int          `json:"processed"`
	Saved      int          `json:"saved"`
	DurationMs int64        `json:"duration_ms"`
}

// Progress is reported after each item finishes. Saved is the running count for the batch.
type Progress struct {
	Index int
	Total int
	Saved int
	Item  ItemResult
}

// TrendReport is the result of a trend run.
type TrendReport struct {
	Records  int    `json:"records"`
	Digest   string `json:"digest"`
	Analysis string `json:"analysis,omitempty"`
}

type Processor struct {
	transcriber    Transcriber
	analyzer       Analyzer
	records        Records
	maxUploadBytes int64
	log            *logger.Logger
}

// New wires the processor. maxUploadBytes <= 0 disables the size check.
func New(t Transcriber, a Analyzer, r Records, maxUploadBytes int64) *Processor {
	return &Processor{
		transcriber:    t,
		analyzer:       a,
		records:        r,
		maxUploadBytes: maxUploadBytes,
		log:            logger.New().WithComponent("processor"),
	}
}

// ProcessBatch handles uploads one at a time: transcribe, analyze, save. A failure on
// one item is recorded on that item and the batch moves on. onProgress may be nil.
func (p *Processor) ProcessBatch(ctx context.Context, uploads []Upload, onProgress func(Progress)) BatchResult {
	start := time.Now()
	res := BatchResult{
		BatchID: uuid.New().String(),
		Items:   make([]ItemResult, 0, len(uploads)),
	}
	log := p.log.WithField("batch_id", res.BatchID).WithField("files", len(uploads))
	log.Info("batch started")

	for i, up := range uploads {
		item := p.processOne(ctx, up)
		res.Items = append(res.Items, item)
		res.Processed++
		if item.Saved {
			res.Saved++
		}
		if onProgress != nil {
			onProgress(Progress{Index: i, Total: len(uploads), Saved: res.Saved, Item: item})
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.WithField("saved", res.Saved).WithField("duration_ms", res.DurationMs).Info("batch finished")
	return res
}

func (p *Processor) processOne(ctx context.Context, up Upload) ItemResult {
	start := time.Now()
	item := ItemResult{FileName: up.FileName, Stage: StageValidate}
	log := p.log.WithField("file_name", up.FileName)

	fail := func(stage string, err error) ItemResult {
		item.Stage = stage
		item.Error = err.Error()
		item.ErrorCode = string(apperrors.CodeOf(err))
		item.DurationMs = time.Since(start).Milliseconds()
		log.WithField("stage", stage).WithError(err).Warn("item failed")
		return item
	}

	if err := ctx.Err(); err != nil {
		return fail(StageValidate, err)
	}
	if err := p.validate(up); err != nil {
		return fail(StageValidate, err)
	}

	transcript, err := p.transcriber.Transcribe(ctx, up.Data, up.FileName)
	if err != nil {
		return fail(StageTranscribe, err)
	}
	item.Transcript = transcript

	analysis, err := p.analyzer.AnalyzeCall(ctx, transcript)
	if err != nil {
		return fail(StageAnalyze, err)
	}
	item.Analysis = analysis

	if err := p.records.Append(ctx, up.FileName, transcript, analysis); err != nil {
		return fail(StageSave, err)
	}
	item.Saved = true
	item.Stage = StageDone
	item.DurationMs = time.Since(start).Milliseconds()
	log.WithField("duration_ms", item.DurationMs).Info("item saved")
	return item
}

func (p *Processor) validate(up Upload) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(up.FileName)), ".")
	allowed := false
	for _, a := range AllowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.NewInvalidRequest(fmt.Sprintf("unsupported file type %q: allowed %s",
			up.FileName, strings.Join(AllowedExtensions, ", ")))
	}
	if len(up.Data) == 0 {
		return apperrors.NewInvalidRequest(fmt.Sprintf("audio file %q is empty", up.FileName))
	}
	if p.maxUploadBytes > 0 && int64(len(up.Data)) > p.maxUploadBytes {
		return apperrors.NewInvalidRequest(fmt.Sprintf("audio file %q is %d bytes, limit is %d",
			up.FileName, len(up.Data), p.maxUploadBytes))
	}
	return nil
}

// Recent returns the last lastN stored calls, oldest first. lastN <= 0 returns all of them.
func (p *Processor) Recent(ctx context.Context, lastN int) ([]records.CallRecord, error) {
	all, err := p.records.LoadAll(ctx)
	if err != nil {
		p.log.WithError(err).Error("load records for listing failed")
		return nil, fmt.Errorf("load records: %w", err)
	}
	return all.Tail(lastN).Records(), nil
}

// Trends summarizes the stored records, or only the last lastN when lastN > 0, and asks
// the analyzer for a narrative unless digestOnly is set. An empty store yields the
// no-data digest without an analyzer call.
func (p *Processor) Trends(ctx context.Context, lastN int, digestOnly bool) (TrendReport, error) {
	all, err := p.records.LoadAll(ctx)
	if err != nil {
		p.log.WithError(err).Error("load records for trends failed")
		return TrendReport{}, fmt.Errorf("load records: %w", err)
	}
	scope := all.Tail(lastN)
	report := TrendReport{Records: scope.Len(), Digest: trends.Summarize(scope)}
	log := p.log.WithField("records", report.Records).WithField("last_n", lastN)
	if digestOnly || report.Records == 0 {
		log.Info("trend digest built")
		return report, nil
	}

	report.Analysis, err = p.analyzer.AnalyzeTrends(ctx, report.Digest)
	if err != nil {
		log.WithError(err).Warn("trend analysis failed")
		return report, err
	}
	log.Info("trend analysis complete")
	return report, nil
}
