package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("700ms", "30s", "1h") or whole days ("2d").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`

	// Executor controls the delivery worker pool. Defaults apply when omitted.
	Executor *ExecutorConfig `json:"executor,omitempty"`

	// Observability exposes /metrics and (optionally) pprof on a local listener.
	Observability *ObservabilityConfig `json:"observability,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty when BOT_TOKEN is set in the environment (or .env).
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig points at the SQLite database holding the notifications table.
//
// Example:
//
//	"storage": { "path": "./data/notifications.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RemindersConfig tunes scheduling, delivery and retention.
//
// Defaults (when fields are omitted/zero):
//   - sweep_interval_days: 1
//   - retention_days: 7
//   - sweep_at: "03:00"
//   - delivery_retry_max: 0 (a failed delivery is logged and dropped)
//   - delivery_timeout: "30s"
//   - restore_grace: "1h"
//   - throttle: "700ms"
type RemindersConfig struct {
	SweepIntervalDays int    `json:"sweep_interval_days,omitempty"`
	RetentionDays     int    `json:"retention_days,omitempty"`
	SweepAt           string `json:"sweep_at,omitempty"`
	DeliveryRetryMax  int    `json:"delivery_retry_max,omitempty"`
	DeliveryTimeout   string `json:"delivery_timeout,omitempty"`
	RestoreGrace      string `json:"restore_grace,omitempty"`
	Throttle          string `json:"throttle,omitempty"`
	SendRatePerSec    int    `json:"send_rate_per_sec,omitempty"`
}

// ExecutorConfig controls the worker pool that runs fired reminders.
type ExecutorConfig struct {
	Workers     int `json:"workers,omitempty"`
	QueueSize   int `json:"queue_size,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
}

// ObservabilityConfig controls the optional metrics/pprof HTTP listener.
//
// Prefer binding to localhost (the default "127.0.0.1:9090"). A non-loopback
// Addr requires Token.
type ObservabilityConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
