package scheduler

import "sort"

// Snapshot is a point-in-time view for diagnostics.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	running := s.started
	jobs := make([]JobInfo, 0, len(s.jobs))
	for id, a := range s.jobs {
		jobs = append(jobs, JobInfo{ID: id, OwnerID: a.job.OwnerID, At: a.job.At})
	}
	s.mu.Unlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].At.Before(jobs[j].At) })

	snap := Snapshot{Running: running, Armed: len(jobs), Jobs: jobs}

	s.cmu.Lock()
	if s.c != nil && s.sweepID != 0 {
		e := s.c.Entry(s.sweepID)
		snap.SweepNext, snap.SweepPrev = e.Next, e.Prev
	}
	s.cmu.Unlock()

	if s.engine != nil {
		snap.Engine = s.engine.Snapshot()
	}
	return snap
}
