package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	logx "remindbot/pkg/logx"
)

type fakePusher struct {
	mu     sync.Mutex
	pushes []notifier.Push
	err    error
	got    chan notifier.Push

	// When set, Send signals entered and blocks until release is closed.
	entered chan struct{}
	release chan struct{}
}

func newFakePusher() *fakePusher { return &fakePusher{got: make(chan notifier.Push, 16)} }

func (f *fakePusher) Send(_ context.Context, p notifier.Push) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	err := f.err
	f.pushes = append(f.pushes, p)
	f.mu.Unlock()
	f.got <- p
	return err
}

type harness struct {
	svc   *Service
	store storage.Store
	sched *scheduler.Service
	push  *fakePusher
	bus   eventbus.Bus
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "notifications.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	eng := engine.New(engine.Config{Workers: 2, QueueSize: 64}, logx.Nop(), nil)
	eng.Start(context.Background())
	sched := scheduler.New(eng, logx.Nop())
	sched.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sched.Stop(ctx)
		eng.Stop(ctx)
		_ = st.Close()
	})
	push := newFakePusher()
	bus := eventbus.New()
	return &harness{svc: New(cfg, st, sched, push, bus, logx.Nop()), store: st, sched: sched, push: push, bus: bus}
}

func waitPush(t *testing.T, f *fakePusher) notifier.Push {
	t.Helper()
	select {
	case p := <-f.got:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery")
		return notifier.Push{}
	}
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %s not published", typ)
		}
	}
}

func waitRows(t *testing.T, st storage.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := st.ListPending(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("want %d rows, have %+v", want, rows)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewJobIDFormat(t *testing.T) {
	t.Parallel()
	re := regexp.MustCompile(`^notification_42_[0-9a-f]{8}$`)
	a, b := NewJobID(42), NewJobID(42)
	if !re.MatchString(a) || !re.MatchString(b) {
		t.Fatalf("bad ids %q %q", a, b)
	}
	if a == b {
		t.Fatalf("ids collide: %q", a)
	}
}

func TestCreateRejectsPastAndNow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	h.svc.now = func() time.Time { return now }

	for _, at := range []time.Time{now, now.Add(-time.Minute)} {
		if _, err := h.svc.Create(context.Background(), 1, "x", at); !errors.Is(err, ErrPastTime) {
			t.Fatalf("at=%v err=%v", at, err)
		}
	}
	if h.sched.Armed() != 0 {
		t.Fatalf("armed=%d", h.sched.Armed())
	}
}

func TestCreateDeliversAndDeletesRow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	events, unsub := h.bus.Subscribe(16)
	defer unsub()

	r, err := h.svc.Create(context.Background(), 7, "выпить воды", time.Now().Add(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.sched.Armed() != 1 {
		t.Fatalf("armed=%d", h.sched.Armed())
	}
	list, err := h.svc.List(context.Background(), 7)
	if err != nil || len(list) != 1 || list[0].JobID != r.JobID {
		t.Fatalf("list=%+v err=%v", list, err)
	}

	p := waitPush(t, h.push)
	if p.OwnerID != 7 || p.Text != "выпить воды" || p.JobID != r.JobID {
		t.Fatalf("push=%+v", p)
	}
	waitEvent(t, events, eventbus.ReminderDelivered)
	waitRows(t, h.store, 0)
}

func TestFailedDeliveryStillDeletesRow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.push.err = errors.New("blocked by user")
	events, unsub := h.bus.Subscribe(16)
	defer unsub()

	if _, err := h.svc.Create(context.Background(), 3, "x", time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, events, eventbus.ReminderFailed)
	if d, ok := ev.Data.(eventbus.ReminderData); !ok || d.Err == "" {
		t.Fatalf("data=%#v", ev.Data)
	}
	waitRows(t, h.store, 0)
}

func TestCancelRemovesRowAndTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	ctx := context.Background()
	r, err := h.svc.Create(ctx, 5, "x", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if err := h.svc.Cancel(ctx, 6, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign cancel err=%v", err)
	}
	if err := h.svc.Cancel(ctx, 5, r.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if h.sched.Armed() != 0 {
		t.Fatalf("armed=%d", h.sched.Armed())
	}
	if err := h.svc.Cancel(ctx, 5, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second cancel err=%v", err)
	}
	list, _ := h.svc.List(ctx, 5)
	if len(list) != 0 {
		t.Fatalf("list=%+v", list)
	}
}

func TestCancelAfterFireIsNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	h.push.entered = make(chan struct{}, 1)
	h.push.release = make(chan struct{})
	ctx := context.Background()

	r, err := h.svc.Create(ctx, 8, "x", time.Now().Add(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-h.push.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery did not start")
	}

	// The row is still present while the send is in flight.
	err = h.svc.Cancel(ctx, 8, r.ID)
	close(h.push.release)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel during delivery err=%v, want ErrNotFound", err)
	}
	if p := waitPush(t, h.push); p.JobID != r.JobID {
		t.Fatalf("push=%+v", p)
	}
	waitRows(t, h.store, 0)
}

type failingScheduler struct{}

func (failingScheduler) Arm(scheduler.Job) error { return scheduler.ErrInvalidJob }
func (failingScheduler) Cancel(string) bool      { return false }

func TestArmFailureRollsBackRow(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "n.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	svc := New(Config{}, st, failingScheduler{}, newFakePusher(), nil, logx.Nop())

	if _, err := svc.Create(context.Background(), 1, "x", time.Now().Add(time.Hour)); !errors.Is(err, scheduler.ErrInvalidJob) {
		t.Fatalf("err=%v", err)
	}
	rows, err := st.ListPending(context.Background())
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows=%+v err=%v", rows, err)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{RestoreGrace: time.Hour})
	ctx := context.Background()
	now := time.Now()

	mustSave := func(owner int64, at time.Time, job string) {
		t.Helper()
		if _, err := h.store.Save(ctx, owner, "r "+job, at, job); err != nil {
			t.Fatal(err)
		}
	}
	mustSave(1, now.Add(time.Hour), "notification_1_future00")
	mustSave(1, now.Add(-10*time.Minute), "notification_1_late0000")
	mustSave(1, now.Add(-3*time.Hour), "notification_1_expired0")

	res, err := h.svc.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res != (RestoreResult{Armed: 1, Late: 1, Expired: 1}) {
		t.Fatalf("res=%+v", res)
	}

	p := waitPush(t, h.push)
	if p.JobID != "notification_1_late0000" {
		t.Fatalf("late push=%+v", p)
	}
	pending := h.sched.Pending()
	if len(pending) != 1 || pending[0].ID != "notification_1_future00" {
		t.Fatalf("pending=%+v", pending)
	}

	waitRows(t, h.store, 2)

	// A second pass must not double-arm.
	if _, err := h.svc.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if h.sched.Armed() != 1 {
		t.Fatalf("armed=%d", h.sched.Armed())
	}
}

func TestSweepUsesRetention(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{Retention: 24 * time.Hour})
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.Local)
	h.svc.now = func() time.Time { return now }

	if _, err := h.store.Save(ctx, 1, "old", now.Add(-25*time.Hour), "notification_1_old00000"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.Save(ctx, 1, "recent", now.Add(-23*time.Hour), "notification_1_recent00"); err != nil {
		t.Fatal(err)
	}
	n, err := h.svc.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
