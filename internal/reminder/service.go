package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	logx "remindbot/pkg/logx"
)

const finalizeTimeout = 5 * time.Second

type Service struct {
	mu  sync.RWMutex
	cfg Config

	log   logx.Logger
	store storage.Store
	sched Scheduler
	push  Pusher
	bus   eventbus.Bus

	now   func() time.Time
	newID func(ownerID int64) string
}

func New(cfg Config, store storage.Store, sched Scheduler, push Pusher, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		log:   log,
		store: store,
		sched: sched,
		push:  push,
		bus:   bus,
		now:   time.Now,
		newID: NewJobID,
	}
}

// NewJobID returns notification_<owner>_<8 hex chars>.
func NewJobID(ownerID int64) string {
	return fmt.Sprintf("notification_%d_%s", ownerID, uuid.NewString()[:8])
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Create stores a reminder and arms its timer. at must be strictly after now.
func (s *Service) Create(ctx context.Context, ownerID int64, text string, at time.Time) (storage.Reminder, error) {
	now := s.now()
	if !at.After(now) {
		return storage.Reminder{}, ErrPastTime
	}
	jobID := s.newID(ownerID)
	id, err := s.store.Save(ctx, ownerID, text, at, jobID)
	if err != nil {
		return storage.Reminder{}, fmt.Errorf("save reminder: %w", err)
	}
	r := storage.Reminder{ID: id, OwnerID: ownerID, Text: text, At: at, JobID: jobID, CreatedAt: now}

	if err := s.arm(r, r.At); err != nil {
		if _, derr := s.store.Delete(context.WithoutCancel(ctx), id); derr != nil {
			s.log.Error("rollback after arm failure failed", logx.Int64("id", id), logx.String("job_id", jobID), logx.Err(derr))
		}
		return storage.Reminder{}, fmt.Errorf("arm reminder: %w", err)
	}

	s.log.Info("reminder created", logx.Int64("owner", ownerID), logx.String("job_id", jobID), logx.Time("at", at))
	s.publish(eventbus.ReminderCreated, eventbus.ReminderData{OwnerID: ownerID, JobID: jobID})
	return r, nil
}

// List returns the owner's reminders that have not fired yet, oldest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]storage.Reminder, error) {
	rows, err := s.store.ListActive(ctx, ownerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return rows, nil
}

// Cancel removes the owner's reminder id and disarms it. ErrNotFound covers
// foreign ids, unknown ids and reminders whose timer already fired: a fired
// delivery is not recalled, so the cancel did not take effect.
func (s *Service) Cancel(ctx context.Context, ownerID, id int64) error {
	jobID, ok, err := s.store.GetJobID(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("resolve reminder: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if !s.sched.Cancel(jobID) {
		s.log.Debug("cancel lost to fire", logx.Int64("owner", ownerID), logx.String("job_id", jobID), logx.Bool("row_deleted", deleted))
		return ErrNotFound
	}
	if !deleted {
		return ErrNotFound
	}
	s.log.Info("reminder cancelled", logx.Int64("owner", ownerID), logx.String("job_id", jobID))
	s.publish(eventbus.ReminderCancelled, eventbus.ReminderData{OwnerID: ownerID, JobID: jobID})
	return nil
}

// Sweep deletes rows older than the retention window.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	cfg := s.config()
	n, err := s.store.Sweep(ctx, s.now(), cfg.Retention)
	if err != nil {
		return 0, fmt.Errorf("sweep reminders: %w", err)
	}
	s.log.Info("reminders swept", logx.Int64("deleted", n), logx.Duration("retention", cfg.Retention))
	s.publish(eventbus.ReminderSwept, eventbus.ReminderData{Count: n})
	return n, nil
}

// Restore re-arms stored rows after a restart. Rows missed by at most
// RestoreGrace fire immediately; older ones are left for the sweep.
func (s *Service) Restore(ctx context.Context) (RestoreResult, error) {
	rows, err := s.store.ListPending(ctx)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("restore reminders: %w", err)
	}
	cfg := s.config()
	now := s.now()

	var res RestoreResult
	for _, r := range rows {
		fireAt := r.At
		switch {
		case r.At.After(now):
		case now.Sub(r.At) <= cfg.RestoreGrace:
			fireAt = now
		default:
			res.Expired++
			continue
		}
		if err := s.arm(r, fireAt); err != nil {
			if errors.Is(err, scheduler.ErrDuplicateJob) {
				continue
			}
			return res, fmt.Errorf("restore %s: %w", r.JobID, err)
		}
		if fireAt.Equal(r.At) {
			res.Armed++
		} else {
			res.Late++
		}
	}

	s.log.Info("reminders restored", logx.Int("armed", res.Armed), logx.Int("late", res.Late), logx.Int("expired", res.Expired))
	s.publish(eventbus.ReminderRestored, eventbus.ReminderData{Count: int64(res.Armed + res.Late)})
	return res, nil
}

func (s *Service) arm(r storage.Reminder, fireAt time.Time) error {
	return s.sched.Arm(scheduler.Job{
		ID:      r.JobID,
		OwnerID: r.OwnerID,
		At:      fireAt,
		Timeout: s.config().DeliveryTimeout,
		Run:     func(ctx context.Context) error { return s.deliver(ctx, r) },
		Done:    func(err error, attempts int) { s.finalize(r, err, attempts) },
	})
}

func (s *Service) deliver(ctx context.Context, r storage.Reminder) error {
	err := s.push.Send(ctx, notifier.Push{OwnerID: r.OwnerID, JobID: r.JobID, Text: r.Text})
	if errors.Is(err, notifier.ErrAlreadyNotified) {
		return nil
	}
	return err
}

// finalize runs once per fired job after the last attempt.
func (s *Service) finalize(r storage.Reminder, err error, attempts int) {
	log := s.log.With(logx.Int64("owner", r.OwnerID), logx.String("job_id", r.JobID))
	if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
		log.Info("delivery interrupted by shutdown; row kept for restore", logx.Err(err))
		return
	}
	if err != nil {
		log.Warn("reminder delivery failed", logx.Int("attempts", attempts), logx.Err(err))
		s.publish(eventbus.ReminderFailed, eventbus.ReminderData{OwnerID: r.OwnerID, JobID: r.JobID, Err: err.Error()})
	} else {
		log.Info("reminder delivered", logx.Int("attempts", attempts))
		s.publish(eventbus.ReminderDelivered, eventbus.ReminderData{OwnerID: r.OwnerID, JobID: r.JobID})
	}

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if _, derr := s.store.Delete(ctx, r.ID); derr != nil {
		log.Error("delete delivered reminder failed", logx.Int64("id", r.ID), logx.Err(derr))
	}
}

func (s *Service) publish(typ string, data eventbus.ReminderData) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
