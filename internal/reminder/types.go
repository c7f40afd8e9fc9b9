package reminder

import (
	"context"
	"errors"
	"time"

	"remindbot/internal/notifier"
	"remindbot/internal/task/scheduler"
)

var (
	ErrPastTime = errors.New("reminder: time is not in the future")
	ErrNotFound = errors.New("reminder: not found")
)

type Config struct {
	// Retention is how long past rows survive before Sweep removes them.
	Retention       time.Duration
	DeliveryTimeout time.Duration
	// RestoreGrace bounds how late a missed reminder is still delivered at startup.
	RestoreGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.RestoreGrace < 0 {
		c.RestoreGrace = 0
	}
	return c
}

// Scheduler is the part of scheduler.Service the reminder service drives.
type Scheduler interface {
	Arm(job scheduler.Job) error
	Cancel(jobID string) bool
}

// Pusher delivers one due reminder.
type Pusher interface {
	Send(ctx context.Context, p notifier.Push) error
}

// RestoreResult summarizes one Restore pass.
type RestoreResult struct {
	Armed   int // future rows re-armed
	Late    int // missed rows within the grace window, delivered now
	Expired int // missed rows left for the sweep
}
