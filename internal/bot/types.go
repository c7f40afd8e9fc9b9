package bot

import (
	"context"
	"time"

	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Reminders is what the controller needs from the reminder service.
type Reminders interface {
	Create(ctx context.Context, ownerID int64, text string, at time.Time) (storage.Reminder, error)
	List(ctx context.Context, ownerID int64) ([]storage.Reminder, error)
	Cancel(ctx context.Context, ownerID, id int64) error
}

type Config struct {
	// Workers handle updates concurrently; QueueSize bounds the backlog.
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
	// Throttle is the minimum interval between two messages of one user.
	// Zero disables throttling.
	Throttle time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 15 * time.Second
	}
	if c.Throttle < 0 {
		c.Throttle = 0
	}
	return c
}

// Request is one inbound update with its routing context.
type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	FromID int64
	Route  string
	Logger logx.Logger
}

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

const (
	cbScope  = "rem"
	cbDelete = "del"
)

// Commands is the menu published to Telegram.
var Commands = []kit.BotCommand{
	{Command: "start", Description: "Как пользоваться ботом"},
	{Command: "list", Description: "Активные напоминания"},
}
