// Package reminder keeps stored reminders and armed timers in lockstep.
//
// Every row whose time has not passed has exactly one armed job keyed by its
// job id. Create saves before arming and removes the row again when arming
// fails; Cancel deletes before disarming. A fired job deletes its row once
// the delivery is final, unless the process is shutting down, in which case
// the row stays for Restore on the next start.
package reminder
