package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed       = errors.New("storage closed")
	ErrDuplicateJob = errors.New("job id already stored")
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Reminder is one persisted row. Rows are never updated in place.
type Reminder struct {
	ID        int64
	OwnerID   int64
	Text      string
	At        time.Time
	JobID     string
	CreatedAt time.Time
}

// Store is the persistence API used by the reminder service.
type Store interface {
	// Save inserts a row and returns its id.
	Save(ctx context.Context, ownerID int64, text string, at time.Time, jobID string) (int64, error)
	// ListActive returns the owner's rows with At after now, in insertion order.
	ListActive(ctx context.Context, ownerID int64, now time.Time) ([]Reminder, error)
	// GetJobID resolves a row id owned by ownerID to its job id.
	GetJobID(ctx context.Context, ownerID, id int64) (jobID string, ok bool, err error)
	// Delete removes a row by id; deleting a missing row is not an error.
	Delete(ctx context.Context, id int64) (bool, error)
	// Sweep deletes rows with At before now-retention and returns the count.
	Sweep(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
	// ListPending returns every stored row ordered by At.
	ListPending(ctx context.Context) ([]Reminder, error)
	Close() error
}
