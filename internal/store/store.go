package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
	"call-intelligence-go/internal/records"
)

// UnknownFileName replaces empty or missing file names.
const UnknownFileName = "Unknown"

// ErrBlobNotFound is returned by Blob.Read when nothing is stored at the key.
var ErrBlobNotFound = stderrors.New("blob not found")

// Repository persists the full record set. Implementations are chosen once at startup.
//
// Append is a whole-set read-modify-write for blob backends: two processes appending to
// the same key at the same time can lose one update (last write wins). Callers are
// expected to run a single writer per key.
type Repository interface {
	Exists(ctx context.Context) (bool, error)
	LoadAll(ctx context.Context) (*records.Table, error)
	Append(ctx context.Context, fileName, transcript, analysis string) error
	Count(ctx context.Context) (int, error)
	Location() string
	Close() error
}

// Blob stores one opaque byte object under a fixed key.
type Blob interface {
	Exists(ctx context.Context) (bool, error)
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Location() string
}

// SanitizeFileName keeps only the base name of an upload, trimmed. Both slash styles are
// treated as separators. Empty results become UnknownFileName.
func SanitizeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownFileName
	}
	return name
}

// BlobRepository keeps the record set as a single spreadsheet blob.
type BlobRepository struct {
	blob Blob
	now  func() time.Time
	log  *logger.Logger
}

// NewBlobRepository wraps blob.
func NewBlobRepository(blob Blob) *BlobRepository {
	return &BlobRepository{
		blob: blob,
		now:  time.Now,
		log:  logger.New().WithComponent("store"),
	}
}

func (r *BlobRepository) Location() string { return r.blob.Location() }

func (r *BlobRepository) Close() error { return nil }

func (r *BlobRepository) Exists(ctx context.Context) (bool, error) {
	return r.blob.Exists(ctx)
}

// LoadAll reads and normalizes the stored table. An absent blob is an empty table;
// a blob that cannot be parsed is an error.
func (r *BlobRepository) LoadAll(ctx context.Context) (*records.Table, error) {
	data, err := r.blob.Read(ctx)
	if stderrors.Is(err, ErrBlobNotFound) {
		return records.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.blob.Location(), err)
	}
	raw, err := records.DecodeXLSX(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.blob.Location(), err)
	}
	return records.Normalize(raw), nil
}

func (r *BlobRepository) Count(ctx context.Context) (int, error) {
	t, err := r.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// Append adds one record at the end of the set and rewrites the whole blob.
// Failures are *apperrors.AppError: DESTINATION_BUSY when the blob is locked, STORAGE otherwise.
func (r *BlobRepository) Append(ctx context.Context, fileName, transcript, analysis string) error {
	rec := records.CallRecord{
		Date:       r.now().Format(records.DateLayout),
		FileName:   SanitizeFileName(fileName),
		Transcript: transcript,
		Analysis:   analysis,
	}
	log := r.log.WithField("file_name", rec.FileName).WithField("location", r.blob.Location())

	existing, err := r.LoadAll(ctx)
	if err != nil {
		log.WithError(err).Error("load before append failed")
		return apperrors.NewStorage(err)
	}

	added := records.Empty()
	added.AppendRecord(rec)
	updated := records.Normalize(records.Concat(existing, added))
	updated.FillMissing(records.ColFileName, UnknownFileName)

	data, err := records.EncodeXLSX(updated)
	if err != nil {
		log.WithError(err).Error("encode failed")
		return apperrors.NewStorage(err)
	}
	if err := r.blob.Write(ctx, data); err != nil {
		log.WithError(err).Warn("write failed")
		if apperrors.Is(err, apperrors.ErrDestinationBusy) {
			return err
		}
		return apperrors.NewStorage(err)
	}
	log.WithField("total_calls", updated.Len()).Info("record saved")
	return nil
}
