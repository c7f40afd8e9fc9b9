package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate rejects configs that would break a running bot. It is used both on
// startup and before a hot-reloaded config is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is empty (set it in the config or via %s)", envBotToken)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	r := cfg.Reminders
	if r.SweepIntervalDays < 0 {
		return fmt.Errorf("reminders.sweep_interval_days must be >= 0")
	}
	if r.RetentionDays < 0 {
		return fmt.Errorf("reminders.retention_days must be >= 0")
	}
	if r.DeliveryRetryMax < 0 {
		return fmt.Errorf("reminders.delivery_retry_max must be >= 0")
	}
	if r.SendRatePerSec < 0 {
		return fmt.Errorf("reminders.send_rate_per_sec must be >= 0")
	}
	if s := strings.TrimSpace(r.SweepAt); s != "" {
		if _, _, err := ParseHHMM(s); err != nil {
			return fmt.Errorf("reminders.sweep_at: %w", err)
		}
	}
	for path, raw := range map[string]string{
		"reminders.delivery_timeout": r.DeliveryTimeout,
		"reminders.restore_grace":    r.RestoreGrace,
		"reminders.throttle":         r.Throttle,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if e := cfg.Executor; e != nil {
		if e.Workers < 0 {
			return fmt.Errorf("executor.workers must be >= 0")
		}
		if e.QueueSize < 0 {
			return fmt.Errorf("executor.queue_size must be >= 0")
		}
		if e.HistorySize < 0 {
			return fmt.Errorf("executor.history_size must be >= 0")
		}
	}
	return nil
}

// ParseHHMM parses a wall-clock "HH:MM".
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
