package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "remindbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

var _ Store = (*sqliteStore)(nil)

// Open opens (creating if needed) the SQLite database at cfg.Path.
func Open(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Save(ctx context.Context, ownerID int64, text string, at time.Time, jobID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(user_id, text, notification_time, job_id, created_at) VALUES(?,?,?,?,?)`,
		ownerID, text, at.UnixMilli(), jobID, time.Now().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("save %s: %w", jobID, ErrDuplicateJob)
		}
		return 0, fmt.Errorf("save reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save reminder: %w", err)
	}
	return id, nil
}

func (s *sqliteStore) ListActive(ctx context.Context, ownerID int64, now time.Time) ([]Reminder, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, notification_time, job_id, created_at
		 FROM notifications WHERE user_id = ? AND notification_time > ? ORDER BY id`,
		ownerID, now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	return scanReminders(rows)
}

func (s *sqliteStore) ListPending(ctx context.Context) ([]Reminder, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, notification_time, job_id, created_at
		 FROM notifications ORDER BY notification_time, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return scanReminders(rows)
}

func (s *sqliteStore) GetJobID(ctx context.Context, ownerID, id int64) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}
	var jobID string
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id FROM notifications WHERE id = ? AND user_id = ?`, id, ownerID,
	).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get job id: %w", err)
	}
	return jobID, true, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reminder %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) Sweep(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	cutoff := now.Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE notification_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Debug("swept stale reminders", logx.Int64("rows", n), logx.Time("cutoff", time.UnixMilli(cutoff)))
	}
	return n, nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		var (
			r           Reminder
			atMS, crtMS int64
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Text, &atMS, &r.JobID, &crtMS); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.At = time.UnixMilli(atMS)
		r.CreatedAt = time.UnixMilli(crtMS)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}
