// Package storage persists reminders in a single SQLite table.
//
// The table is the durable half of a pending reminder; the armed timer in
// internal/task/scheduler is the other half. Rows carry the job id that keys
// the timer so either side can be resolved from the other.
package storage
