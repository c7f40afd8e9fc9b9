package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

const stopOnCancelTimeout = 2 * time.Second

func New(eng *engine.Service, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:         log,
		engine:      eng,
		jobs:        map[string]*armed{},
		enqueueWarn: newEnqueueWarn(),
	}
}

// Start starts cron triggering and arms timers for jobs registered while
// stopped. The run ends on Stop or when ctx is done, whichever comes first.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	run := make(chan struct{})
	s.run = run
	for id, a := range s.jobs {
		s.startTimerLocked(id, a)
	}
	// cmu nests inside mu here only; nothing takes mu while holding cmu.
	s.cmu.Lock()
	if s.c == nil {
		s.c = cron.New(cron.WithLocation(time.Local))
		s.c.Start()
	}
	s.cmu.Unlock()
	n := len(s.jobs)
	s.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sctx, cancel := context.WithTimeout(context.Background(), stopOnCancelTimeout)
				defer cancel()
				s.stop(sctx, run)
			case <-run:
			}
		}()
	}
	s.log.Info("scheduler started", logx.Int("armed", n))
}

// Stop stops cron and all runtime timers. Armed jobs stay in the table and
// resume on the next Start.
func (s *Service) Stop(ctx context.Context) { s.stop(ctx, nil) }

// stop ends the run identified by run; nil means the current one.
func (s *Service) stop(ctx context.Context, run chan struct{}) {
	s.mu.Lock()
	if run != nil && s.run != run {
		s.mu.Unlock()
		return
	}
	if s.run != nil {
		close(s.run)
		s.run = nil
	}
	s.started = false
	for _, a := range s.jobs {
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
	}
	n := len(s.jobs)
	s.mu.Unlock()

	s.cmu.Lock()
	c := s.c
	s.c = nil
	s.sweepID = 0
	s.cmu.Unlock()
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("scheduler stopped", logx.Int("armed", n))
}

// Arm registers a one-shot job. A time in the past fires immediately.
func (s *Service) Arm(job Job) error {
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" || job.Run == nil || job.At.IsZero() {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicateJob
	}
	s.seq++
	a := &armed{job: job, ver: s.seq}
	s.jobs[job.ID] = a
	if s.started {
		s.startTimerLocked(job.ID, a)
	}
	s.log.Debug("job armed", logx.String("job", job.ID), logx.Time("at", job.At))
	return nil
}

// Cancel disarms a job. It reports false when the job is unknown or has
// already fired.
func (s *Service) Cancel(jobID string) bool {
	s.mu.Lock()
	a, ok := s.jobs[jobID]
	if ok {
		if a.timer != nil {
			a.timer.Stop()
		}
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()
	if ok {
		s.log.Debug("job cancelled", logx.String("job", jobID))
	}
	return ok
}

// Armed returns the number of jobs waiting to fire.
func (s *Service) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Pending returns the armed jobs ordered by fire time.
func (s *Service) Pending() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, a := range s.jobs {
		out = append(out, a.job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Service) startTimerLocked(id string, a *armed) {
	ver := a.ver
	a.timer = time.AfterFunc(max(time.Until(a.job.At), 0), func() { s.fire(id, ver) })
}

// fire claims the job under the table lock; a concurrent Cancel either
// removed it first (no delivery) or finds it gone (returns false).
func (s *Service) fire(id string, ver uint64) {
	s.mu.Lock()
	a, ok := s.jobs[id]
	if !ok || a.ver != ver {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	job := a.job
	err := s.submit(engine.Task{
		ID:      job.ID,
		Name:    "reminder.deliver",
		Timeout: job.Timeout,
		Run:     job.Run,
		Done:    job.Done,
	})
	if err != nil {
		s.reportEnqueueError(job.ID, err)
		if job.Done != nil {
			job.Done(err, 0)
		}
	}
}

func (s *Service) submit(t engine.Task) error {
	if s.engine == nil {
		return engine.ErrStopped
	}
	return s.engine.Enqueue(t)
}
