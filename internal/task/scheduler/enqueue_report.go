package scheduler

import (
	"time"

	"golang.org/x/time/rate"

	logx "remindbot/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

func newEnqueueWarn() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: enqueueWarnThrottle}
}

// reportEnqueueError logs at warn level at most once per throttle window;
// a full queue tends to fail in bursts.
func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	warned := false
	s.enqueueWarn.Do(func() {
		warned = true
		s.log.Warn("scheduler failed to enqueue task", logx.String("task", name), logx.Err(err))
	})
	if !warned {
		s.log.Debug("scheduler failed to enqueue task", logx.String("task", name), logx.Err(err))
	}
}
