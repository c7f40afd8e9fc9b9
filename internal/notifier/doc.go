// Package notifier renders reminder pushes and sends them through the
// transport adapter.
//
// Sends are paced by a token bucket shared by all deliveries so a burst of
// reminders due at the same minute stays under Telegram's global limits.
// Retries are not handled here: a failed Send returns its error to the task
// engine, which owns the retry policy. A job id that was already delivered
// within the dedup window is not sent again.
package notifier
