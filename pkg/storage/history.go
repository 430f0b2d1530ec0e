package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oarkflow/xid"
)

// RunRecord represents one evaluated program.
type RunRecord struct {
	ID        string
	Session   string
	Source    string
	Output    []string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Success reports whether the run finished without an error.
func (r RunRecord) Success() bool {
	return r.Error == ""
}

// RecordRun appends an entry to the run history.
func (s *Store) RecordRun(ctx context.Context, entry RunRecord) (RunRecord, error) {
	if entry.ID == "" {
		entry.ID = xid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO run_history (id, session, source, output, error, duration, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		entry.ID,
		nullString(entry.Session),
		entry.Source,
		nullString(strings.Join(entry.Output, "\n")),
		nullString(entry.Error),
		entry.Duration.Seconds(),
		entry.CreatedAt,
	)
	if err != nil {
		return RunRecord{}, err
	}
	return entry, nil
}

// RecentRuns returns the latest runs, newest first, up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		s.rebind(`SELECT id, session, source, output, error, duration, created_at
		FROM run_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []RunRecord
	for rows.Next() {
		var (
			session sql.NullString
			output  sql.NullString
			errText sql.NullString
			seconds float64
		)
		rec := RunRecord{}
		if err := rows.Scan(&rec.ID, &session, &rec.Source, &output, &errText, &seconds, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if session.Valid {
			rec.Session = session.String
		}
		if output.Valid {
			rec.Output = strings.Split(output.String, "\n")
		}
		if errText.Valid {
			rec.Error = errText.String
		}
		rec.Duration = time.Duration(seconds * float64(time.Second))
		history = append(history, rec)
	}
	return history, rows.Err()
}

// ClearHistory removes all run history entries.
func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_history`)
	return err
}
