package app

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/observability"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

const (
	defaultStoragePath  = "./data/notifications.db"
	defaultSweepAt      = "03:00"
	defaultSweepEvery   = 1
	defaultRetention    = 7
	defaultThrottle     = 700 * time.Millisecond
	defaultRestoreGrace = time.Hour
	sweepTimeout        = 2 * time.Minute
)

// settings is the typed view of one config snapshot.
type settings struct {
	logging   logx.Config
	adapter   telegram.Config
	storage   storage.Config
	engine    engine.Config
	sweep     scheduler.SweepSpec
	reminder  reminder.Config
	notifier  notifier.Config
	bot       bot.Config
	observ    observability.Config
	retryMax  int
	sweepDesc string
}

func mapSettings(cfg *config.Config) (settings, error) {
	var s settings
	if cfg == nil {
		return s, fmt.Errorf("config is nil")
	}

	s.logging = logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}

	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return s, err
	}
	s.adapter = telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}

	if s.storage, err = mapStorage(cfg); err != nil {
		return s, err
	}

	r := cfg.Reminders
	deliveryTimeout, err := config.ParseDurationOrDefault("reminders.delivery_timeout", r.DeliveryTimeout, 30*time.Second)
	if err != nil {
		return s, err
	}
	grace, err := config.ParseDurationOrDefault("reminders.restore_grace", r.RestoreGrace, defaultRestoreGrace)
	if err != nil {
		return s, err
	}
	throttle, err := config.ParseDurationOrDefault("reminders.throttle", r.Throttle, defaultThrottle)
	if err != nil {
		return s, err
	}

	retention := r.RetentionDays
	if retention <= 0 {
		retention = defaultRetention
	}
	s.reminder = reminder.Config{
		Retention:       time.Duration(retention) * 24 * time.Hour,
		DeliveryTimeout: deliveryTimeout,
		RestoreGrace:    grace,
	}

	sweepAt := strings.TrimSpace(r.SweepAt)
	if sweepAt == "" {
		sweepAt = defaultSweepAt
	}
	h, m, err := config.ParseHHMM(sweepAt)
	if err != nil {
		return s, fmt.Errorf("reminders.sweep_at: %w", err)
	}
	every := r.SweepIntervalDays
	if every <= 0 {
		every = defaultSweepEvery
	}
	s.sweep = scheduler.SweepSpec{EveryDays: every, Hour: h, Minute: m, Timeout: sweepTimeout}
	s.sweepDesc = fmt.Sprintf("every %dd at %02d:%02d", every, h, m)

	s.retryMax = max(r.DeliveryRetryMax, 0)
	s.engine = engine.Config{RetryMax: s.retryMax, DefaultTimeout: deliveryTimeout}
	if e := cfg.Executor; e != nil {
		s.engine.Workers = e.Workers
		s.engine.QueueSize = e.QueueSize
		s.engine.HistorySize = e.HistorySize
	}

	s.notifier = notifier.Config{RatePerSec: r.SendRatePerSec, SendTimeout: deliveryTimeout}
	s.bot = bot.Config{Throttle: throttle}

	if o := cfg.Observability; o != nil {
		s.observ = observability.Config{Enabled: o.Enabled, Addr: o.Addr, Token: o.Token, Pprof: o.Pprof}
	}
	return s, nil
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = defaultStoragePath
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: path, BusyTimeout: busy}, nil
}
