package config

import (
	"strings"

	logx "remindbot/pkg/logx"
)

// SummarizeChange returns the changed top-level sections plus safe log attrs.
// The bot token is never logged.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.path", newCfg.Storage.Path))
	}

	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.Int("reminders.sweep_interval_days", newCfg.Reminders.SweepIntervalDays),
			logx.Int("reminders.retention_days", newCfg.Reminders.RetentionDays),
			logx.String("reminders.sweep_at", newCfg.Reminders.SweepAt),
			logx.Int("reminders.delivery_retry_max", newCfg.Reminders.DeliveryRetryMax),
			logx.String("reminders.throttle", newCfg.Reminders.Throttle),
		)
	}

	if !executorEqual(oldCfg.Executor, newCfg.Executor) {
		changed = append(changed, "executor")
	}
	if !observabilityEqual(oldCfg.Observability, newCfg.Observability) {
		changed = append(changed, "observability")
	}
	return changed, attrs
}

func executorEqual(a, b *ExecutorConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func observabilityEqual(a, b *ObservabilityConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
