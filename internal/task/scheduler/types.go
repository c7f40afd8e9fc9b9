package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

var (
	ErrDuplicateJob = errors.New("job id already armed")
	ErrInvalidJob   = errors.New("invalid job")
)

// Job is a one-shot delivery. Done is forwarded to the engine and also called
// with the enqueue error if the engine refuses the job.
type Job struct {
	ID      string
	OwnerID int64
	At      time.Time
	Timeout time.Duration
	Run     func(ctx context.Context) error
	Done    func(err error, attempts int)
}

// SweepSpec fires every EveryDays days at Hour:Minute local time.
type SweepSpec struct {
	EveryDays int
	Hour      int
	Minute    int
	Timeout   time.Duration
}

type armed struct {
	job   Job
	ver   uint64
	timer *time.Timer // nil while stopped
}

type Service struct {
	log    logx.Logger
	engine *engine.Service

	// mu guards the job table and the started flag.
	mu      sync.Mutex
	jobs    map[string]*armed
	seq     uint64
	started bool
	run     chan struct{} // closed when the current run ends

	cmu      sync.Mutex
	c        *cron.Cron
	sweepID  cron.EntryID
	sweeping atomic.Bool

	enqueueWarn *rate.Sometimes
}

type JobInfo struct {
	ID      string
	OwnerID int64
	At      time.Time
}

type Snapshot struct {
	Running   bool
	Armed     int
	Jobs      []JobInfo
	SweepNext time.Time
	SweepPrev time.Time
	Engine    engine.Snapshot
}
