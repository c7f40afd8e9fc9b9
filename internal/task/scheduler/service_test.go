package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

func newTestScheduler(t *testing.T) *Service {
	t.Helper()
	eng := engine.New(engine.Config{Workers: 4, QueueSize: 1024}, logx.Nop(), nil)
	eng.Start(context.Background())
	s := New(eng, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		eng.Stop(ctx)
	})
	return s
}

func TestArmFiresOnce(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)

	var runs atomic.Int32
	done := make(chan error, 1)
	err := s.Arm(Job{
		ID:  "notification_1_aaaa",
		At:  time.Now().Add(20 * time.Millisecond),
		Run: func(context.Context) error { runs.Add(1); return nil },
		Done: func(err error, _ int) {
			done <- err
		},
	})
	if err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if s.Armed() != 1 {
		t.Fatalf("armed=%d", s.Armed())
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("delivery err: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
	if runs.Load() != 1 || s.Armed() != 0 {
		t.Fatalf("runs=%d armed=%d", runs.Load(), s.Armed())
	}
	if s.Cancel("notification_1_aaaa") {
		t.Fatal("cancel after fire must report false")
	}
}

func TestCancelBeforeFire(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)

	var runs atomic.Int32
	job := Job{ID: "j1", At: time.Now().Add(50 * time.Millisecond), Run: func(context.Context) error { runs.Add(1); return nil }}
	if err := s.Arm(job); err != nil {
		t.Fatal(err)
	}
	if !s.Cancel("j1") {
		t.Fatal("first cancel should find the job")
	}
	if s.Cancel("j1") {
		t.Fatal("second cancel should report not found")
	}
	time.Sleep(120 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatal("cancelled job ran")
	}
}

func TestArmRejectsDuplicatesAndInvalid(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)
	run := func(context.Context) error { return nil }

	if err := s.Arm(Job{ID: "dup", At: time.Now().Add(time.Hour), Run: run}); err != nil {
		t.Fatal(err)
	}
	if err := s.Arm(Job{ID: "dup", At: time.Now().Add(time.Hour), Run: run}); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("want ErrDuplicateJob, got %v", err)
	}
	for _, j := range []Job{
		{At: time.Now(), Run: run},
		{ID: "x", Run: run},
		{ID: "x", At: time.Now()},
	} {
		if err := s.Arm(j); !errors.Is(err, ErrInvalidJob) {
			t.Fatalf("want ErrInvalidJob for %+v, got %v", j, err)
		}
	}
}

func TestCancelFireRaceExactlyOneWins(t *testing.T) {
	t.Parallel()
	s := newTestScheduler(t)

	const n = 200
	var (
		delivered atomic.Int32
		cancelled atomic.Int32
		wg        sync.WaitGroup
		doneWG    sync.WaitGroup
	)
	at := time.Now().Add(10 * time.Millisecond)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("race-%d", i)
		doneWG.Add(1)
		var once sync.Once
		markDone := func() { once.Do(doneWG.Done) }
		err := s.Arm(Job{
			ID:   id,
			At:   at,
			Run:  func(context.Context) error { delivered.Add(1); return nil },
			Done: func(error, int) { markDone() },
		})
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Until(at))
			if s.Cancel(id) {
				cancelled.Add(1)
				markDone()
			}
		}()
	}
	wg.Wait()

	waitCh := make(chan struct{})
	go func() { doneWG.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(3 * time.Second):
		t.Fatal("not every job settled")
	}
	if got := delivered.Load() + cancelled.Load(); got != n {
		t.Fatalf("delivered=%d cancelled=%d, want sum %d", delivered.Load(), cancelled.Load(), n)
	}
	if s.Armed() != 0 {
		t.Fatalf("armed=%d", s.Armed())
	}
}

func TestStopKeepsJobsAndStartResumes(t *testing.T) {
	t.Parallel()
	eng := engine.New(engine.Config{Workers: 1}, logx.Nop(), nil)
	eng.Start(context.Background())
	defer eng.Stop(context.Background())
	s := New(eng, logx.Nop())

	done := make(chan struct{})
	// Armed before Start: no timer until the scheduler runs.
	if err := s.Arm(Job{ID: "early", At: time.Now(), Run: func(context.Context) error { close(done); return nil }}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
		t.Fatal("fired before Start")
	case <-time.After(30 * time.Millisecond):
	}
	if got := s.Pending(); len(got) != 1 || got[0].ID != "early" {
		t.Fatalf("pending=%+v", got)
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("did not fire after Start")
	}
}

func TestFireWithStoppedEngineReportsDone(t *testing.T) {
	t.Parallel()
	eng := engine.New(engine.Config{}, logx.Nop(), nil) // never started
	s := New(eng, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	done := make(chan error, 1)
	_ = s.Arm(Job{ID: "j", At: time.Now(), Run: func(context.Context) error { return nil }, Done: func(err error, _ int) { done <- err }})
	select {
	case err := <-done:
		if !errors.Is(err, engine.ErrStopped) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Done not called")
	}
}

func TestPendingOrderedByTime(t *testing.T) {
	t.Parallel()
	s := New(nil, logx.Nop())
	now := time.Now()
	run := func(context.Context) error { return nil }
	_ = s.Arm(Job{ID: "b", At: now.Add(2 * time.Hour), Run: run})
	_ = s.Arm(Job{ID: "a", At: now.Add(time.Hour), Run: run})
	got := s.Pending()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("pending=%+v", got)
	}
	if snap := s.Snapshot(); snap.Armed != 2 || snap.Running {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func waitRunning(t *testing.T, s *Service, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Running != want {
		if time.Now().After(deadline) {
			t.Fatalf("running != %v", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartContextEndsRun(t *testing.T) {
	t.Parallel()
	s := New(nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	if err := s.Arm(Job{ID: "notification_3_cccc", At: time.Now().Add(time.Hour), Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	cancel()
	waitRunning(t, s, false)
	if s.Armed() != 1 {
		t.Fatalf("job table lost on stop: armed=%d", s.Armed())
	}
	if err := s.StartSweep(SweepSpec{EveryDays: 1, Hour: 3}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("cron still running after ctx cancel")
	}

	// A second run is not ended by the first run's context.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	s.Start(ctx2)
	defer s.Stop(context.Background())
	cancel()
	time.Sleep(20 * time.Millisecond)
	if !s.Snapshot().Running {
		t.Fatal("stale context stopped the new run")
	}
}
