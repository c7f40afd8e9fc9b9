package notifier

import (
	"errors"
	"time"
)

var (
	ErrNoSender        = errors.New("notifier: no sender")
	ErrAlreadyNotified = errors.New("notifier: already delivered")
)

type Config struct {
	RatePerSec      int
	SendTimeout     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 20
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = time.Hour
	}
	if c.DedupMaxEntries <= 0 {
		c.DedupMaxEntries = 5000
	}
	return c
}

// Push is one reminder due for delivery.
type Push struct {
	OwnerID int64
	JobID   string
	Text    string
}

type HistoryItem struct {
	At      time.Time
	OwnerID int64
	JobID   string
}
