// Package runlog is a diagnostic ledger of extraction runs kept in SQLite.
// It records what happened to each file of a batch (method, pages, failed
// pages, text length, duration); it never stores document content.
//
// Usage:
//
//	log, err := runlog.Open("data/runlog.db")
//	defer log.Close()
//	_ = log.Record(ctx, runlog.Event{RunID: runID, Kind: runlog.FileExtracted, File: "p1.pdf"})
//	events, _ := log.Recent(ctx, runlog.Filter{Limit: 50})
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/examprep/idgen"
)

// Kind of event.
type Kind string

const (
	FileExtracted  Kind = "file_extracted"
	FileFailed     Kind = "file_failed"
	BatchExtracted Kind = "batch_extracted"
	BatchFailed    Kind = "batch_failed"
)

// Event is one ledger row.
type Event struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	RequestID    string    `json:"request_id,omitempty"`
	Time         time.Time `json:"time"`
	Kind         Kind      `json:"kind"`
	File         string    `json:"file,omitempty"`
	MediaType    string    `json:"media_type,omitempty"`
	Method       string    `json:"method,omitempty"`
	Files        int       `json:"files,omitempty"`
	Pages        int       `json:"pages,omitempty"`
	PageFailures int       `json:"page_failures,omitempty"`
	TextLen      int       `json:"text_len"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Filter selects events for Recent.
type Filter struct {
	RunID string
	Kind  Kind
	Since time.Time
	Limit int // default 100, max 1000
}

// Log writes and reads run events.
type Log struct {
	db     *sql.DB
	owned  bool
	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator sets the event ID generator.
func WithIDGenerator(gen idgen.Generator) Option { return func(l *Log) { l.newID = gen } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(l *Log) { l.logger = logger } }

// Open opens (or creates) the ledger database at path with WAL, a busy
// timeout and NORMAL sync, and applies the schema. ":memory:" is accepted
// and pinned to a single connection.
func Open(path string, opts ...Option) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("runlog: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("runlog: %s: %w", p, err)
		}
	}
	l, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// New wraps an open database and applies the schema. Close does not
// close a database passed to New.
func New(db *sql.DB, opts ...Option) (*Log, error) {
	l := &Log{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("runlog: schema: %w", err)
	}
	return l, nil
}

// Close closes the database if Open created it.
func (l *Log) Close() error {
	if l.owned {
		return l.db.Close()
	}
	return nil
}

// Record inserts e, filling ID and Time when empty. A busy database is
// retried a few times before giving up.
func (l *Log) Record(ctx context.Context, e Event) error {
	if e.RunID == "" || e.Kind == "" {
		return errors.New("runlog: event needs run_id and kind")
	}
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	err := execBusy(ctx, l.db, `INSERT INTO run_events
		(event_id, run_id, request_id, ts_ms, kind, file, media_type, method,
		 files, pages, page_failures, text_len, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.RunID, e.RequestID, e.Time.UnixMilli(), string(e.Kind), e.File, e.MediaType, e.Method,
		e.Files, e.Pages, e.PageFailures, e.TextLen, e.DurationMs, e.Error)
	if err != nil {
		return fmt.Errorf("runlog: record %s: %w", e.Kind, err)
	}
	return nil
}

// Recent returns matching events, newest first.
func (l *Log) Recent(ctx context.Context, f Filter) ([]Event, error) {
	q := `SELECT event_id, run_id, request_id, ts_ms, kind, file, media_type, method,
		files, pages, page_failures, text_len, duration_ms, error
		FROM run_events WHERE 1=1`
	var args []any
	if f.RunID != "" {
		q += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	if !f.Since.IsZero() {
		q += " AND ts_ms >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	q += " ORDER BY ts_ms DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts int64
		var kind string
		if err := rows.Scan(&e.ID, &e.RunID, &e.RequestID, &ts, &kind, &e.File, &e.MediaType, &e.Method,
			&e.Files, &e.Pages, &e.PageFailures, &e.TextLen, &e.DurationMs, &e.Error); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Purge deletes events older than retention and returns how many went.
func (l *Log) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := l.now().Add(-retention).UnixMilli()
	res, err := l.db.ExecContext(ctx, "DELETE FROM run_events WHERE ts_ms < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("runlog: purge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		l.logger.InfoContext(ctx, "run ledger purged", "deleted", n, "retention", retention.String())
	}
	return n, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func execBusy(ctx context.Context, db *sql.DB, query string, args ...any) error {
	const attempts = 3
	for i := 0; ; i++ {
		_, err := db.ExecContext(ctx, query, args...)
		if err == nil || !isBusy(err) || i == attempts-1 {
			return err
		}
		t := time.NewTimer(time.Duration(100*(i+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
