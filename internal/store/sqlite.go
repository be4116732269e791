package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
	"call-intelligence-go/internal/records"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS call_records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	date        TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	transcript  TEXT,
	analysis    TEXT
);`

// SQLiteRepository is a row-oriented Repository. Appends are single INSERTs, so
// concurrent writers do not lose updates; a writer blocked past busy_timeout gets
// DESTINATION_BUSY.
type SQLiteRepository struct {
	db   *sql.DB
	path string
	now  func() time.Time
	log  *logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteRepository{
		db:   db,
		path: path,
		now:  time.Now,
		log:  logger.New().WithComponent("store.sqlite"),
	}, nil
}

func (r *SQLiteRepository) Location() string { return r.path }

func (r *SQLiteRepository) Close() error { return r.db.Close() }

// Exists reports whether any record has been stored.
func (r *SQLiteRepository) Exists(ctx context.Context) (bool, error) {
	n, err := r.Count(ctx)
	return n > 0, err
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) LoadAll(ctx context.Context) (*records.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, file_name, transcript, analysis FROM call_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	t := records.Empty()
	for rows.Next() {
		var date, fileName string
		var transcript, analysis sql.NullString
		if err := rows.Scan(&date, &fileName, &transcript, &analysis); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		t.AppendRow(map[string]records.Cell{
			records.ColDate:       records.Val(date),
			records.ColFileName:   records.Val(fileName),
			records.ColTranscript: nullCell(transcript),
			records.ColAnalysis:   nullCell(analysis),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Append(ctx context.Context, fileName, transcript, analysis string) error {
	name := SanitizeFileName(fileName)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_records (date, file_name, transcript, analysis) VALUES (?, ?, ?, ?)`,
		r.now().Format(records.DateLayout), name, transcript, analysis)
	if err != nil {
		r.log.WithField("file_name", name).WithError(err).Warn("insert failed")
		if isSQLiteBusy(err) {
			return apperrors.NewDestinationBusy(r.path, err)
		}
		return apperrors.NewStorage(err)
	}
	r.log.WithField("file_name", name).Info("record saved")
	return nil
}

func nullCell(s sql.NullString) records.Cell {
	if !s.Valid {
		return records.Missing
	}
	return records.Val(s.String)
}

func isSQLiteBusy(err error) bool {
	var se *sqlite.Error
	if !stderrors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
