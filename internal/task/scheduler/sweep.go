package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// alignedSchedule fires at hour:minute on every n-th calendar day counted
// from anchor's date.
type alignedSchedule struct {
	every        int
	hour, minute int
	anchor       time.Time // midnight, UTC civil date
}

var _ cron.Schedule = (*alignedSchedule)(nil)

func newAlignedSchedule(spec SweepSpec, now time.Time) (*alignedSchedule, error) {
	if spec.EveryDays <= 0 {
		return nil, fmt.Errorf("sweep interval must be > 0 days, got %d", spec.EveryDays)
	}
	if spec.Hour < 0 || spec.Hour > 23 || spec.Minute < 0 || spec.Minute > 59 {
		return nil, fmt.Errorf("invalid sweep time %02d:%02d", spec.Hour, spec.Minute)
	}
	return &alignedSchedule{every: spec.EveryDays, hour: spec.Hour, minute: spec.Minute, anchor: civilDate(now)}, nil
}

func (a *alignedSchedule) Next(t time.Time) time.Time {
	y, m, d := t.Date()
	next := time.Date(y, m, d, a.hour, a.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = time.Date(y, m, d+1, a.hour, a.minute, 0, 0, t.Location())
	}
	if a.every > 1 {
		days := int(civilDate(next).Sub(a.anchor).Hours() / 24)
		if rem := ((days % a.every) + a.every) % a.every; rem != 0 {
			y, m, d = next.Date()
			next = time.Date(y, m, d+a.every-rem, a.hour, a.minute, 0, 0, t.Location())
		}
	}
	return next
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartSweep registers (or replaces) the recurring sweep. The scheduler must
// be started. A sweep still running when the next trigger arrives is skipped.
func (s *Service) StartSweep(spec SweepSpec, fn func(ctx context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("sweep func is nil")
	}
	sched, err := newAlignedSchedule(spec, time.Now())
	if err != nil {
		return err
	}

	s.cmu.Lock()
	defer s.cmu.Unlock()
	if s.c == nil {
		return fmt.Errorf("scheduler not started")
	}
	if s.sweepID != 0 {
		s.c.Remove(s.sweepID)
	}
	s.sweepID = s.c.Schedule(sched, cron.FuncJob(func() { s.triggerSweep(spec.Timeout, fn) }))
	s.log.Info("sweep scheduled",
		logx.Int("every_days", spec.EveryDays),
		logx.String("at", fmt.Sprintf("%02d:%02d", spec.Hour, spec.Minute)),
		logx.Time("next", sched.Next(time.Now())),
	)
	return nil
}

func (s *Service) triggerSweep(timeout time.Duration, fn func(ctx context.Context) error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.log.Debug("sweep trigger skipped: previous sweep still running")
		return
	}
	err := s.submit(engine.Task{
		Name:    "reminders.sweep",
		Timeout: timeout,
		Run:     fn,
		Done:    func(error, int) { s.sweeping.Store(false) },
	})
	if err != nil {
		s.sweeping.Store(false)
		s.reportEnqueueError("reminders.sweep", err)
	}
}
