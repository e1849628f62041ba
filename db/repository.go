package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by GetAnalysis for an unknown id.
	ErrNotFound = errors.New("analysis not found")

	errClosed = errors.New("database connection is closed")
)

// timeLayout is fixed width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DefaultListLimit is used when ListRecent is called with a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit caps ListRecent.
const MaxListLimit = 500

// HistoryEntry is one row of the analyses table: a single method run
// against a single video.
type HistoryEntry struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Source          string    `json:"source"`
	Method          string    `json:"method"`
	FileName        string    `json:"file_name"`
	Status          string    `json:"status"`
	ErrorKind       string    `json:"error_kind,omitempty"`
	FacesDetected   int       `json:"faces_detected"`
	HeartRate       *float64  `json:"heart_rate,omitempty"`
	RespiratoryRate *float64  `json:"respiratory_rate,omitempty"`
	Summary         string    `json:"summary"`
	ResultPath      string    `json:"result_path,omitempty"`
}

// Repository reads and writes analysis history. When an AsyncWriter is
// attached and running, inserts are queued instead of executed inline.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
	logger      *zap.Logger
	now         func() time.Time
}

// NewRepository creates a Repository. asyncWriter may be nil.
func NewRepository(db *Database, asyncWriter *AsyncWriter, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		db:          db,
		asyncWriter: asyncWriter,
		logger:      logger,
		now:         time.Now,
	}
}

const insertAnalysisQuery = `
	INSERT INTO analyses (
		id, created_at, source, method, file_name, status, error_kind,
		faces_detected, heart_rate, respiratory_rate, summary, result_path
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectAnalysisColumns = `
	SELECT id, created_at, source, method, file_name, status, error_kind,
		   faces_detected, heart_rate, respiratory_rate, summary, result_path
	FROM analyses`

const deleteOlderThanQuery = `DELETE FROM analyses WHERE created_at < ?`

// InsertAnalysis stores entry and returns its id. A missing id or
// timestamp is filled in. With a running async writer the row is queued
// and the id is returned before it is written; a full queue falls back to
// a synchronous insert.
func (r *Repository) InsertAnalysis(ctx context.Context, entry HistoryEntry) (string, error) {
	if r.db == nil {
		return "", fmt.Errorf("database connection is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(entry) {
			return entry.ID, nil
		}
		r.logger.Warn("history queue full, writing synchronously", zap.String("id", entry.ID))
	}

	if err := r.insert(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (r *Repository) insert(ctx context.Context, entry HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, insertAnalysisQuery,
		entry.ID,
		formatTime(entry.CreatedAt),
		entry.Source,
		entry.Method,
		entry.FileName,
		entry.Status,
		entry.ErrorKind,
		entry.FacesDetected,
		nullFloat(entry.HeartRate),
		nullFloat(entry.RespiratoryRate),
		entry.Summary,
		entry.ResultPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", entry.ID, err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx, selectAnalysisColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analyses rows: %w", err)
	}
	return entries, nil
}

// GetAnalysis returns the entry with id or ErrNotFound.
func (r *Repository) GetAnalysis(ctx context.Context, id string) (*HistoryEntry, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	row, err := r.db.QueryRowContext(ctx, selectAnalysisColumns+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteOlderThan removes entries created before cutoff and returns how
// many were deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	res, err := r.db.ExecContext(ctx, deleteOlderThanQuery, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old analyses: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	row, err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses")
	if err != nil {
		return 0, err
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return count, nil
}

// CreateAsyncWriteHandler returns the WriteHandler that drains queued
// inserts. Failures are logged; the caller has already moved on.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		entry, ok := op.Data.(HistoryEntry)
		if !ok {
			return fmt.Errorf("invalid operation type %T: expected HistoryEntry", op.Data)
		}
		if err := r.insert(context.Background(), entry); err != nil {
			r.logger.Error("queued history insert failed",
				zap.String("id", entry.ID),
				zap.Duration("queued_for", time.Since(op.Timestamp)),
				zap.Error(err))
			return err
		}
		return nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (HistoryEntry, error) {
	var (
		entry     HistoryEntry
		createdAt string
		hr, rr    sql.NullFloat64
	)
	err := s.Scan(
		&entry.ID,
		&createdAt,
		&entry.Source,
		&entry.Method,
		&entry.FileName,
		&entry.Status,
		&entry.ErrorKind,
		&entry.FacesDetected,
		&hr,
		&rr,
		&entry.Summary,
		&entry.ResultPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, err
		}
		return entry, fmt.Errorf("failed to scan analysis row: %w", err)
	}

	entry.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if hr.Valid {
		entry.HeartRate = &hr.Float64
	}
	if rr.Valid {
		entry.RespiratoryRate = &rr.Float64
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullFloat maps a nil pointer to SQL NULL.
func nullFloat(v *float64) any {
	if v == nil {
		return sql.NullFloat64{}
	}
	return *v
}
