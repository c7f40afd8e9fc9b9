// Package scheduler arms one-shot timers keyed by job id and runs the
// recurring stale-row sweep.
//
// The scheduler only decides when something runs. Fired jobs and sweeps are
// handed to the task engine, which owns workers, retries and timeouts.
//
// Arm, Cancel and fire are linearized on a single mutex: when a cancel races a
// fire exactly one of them observes the job in the table.
package scheduler
