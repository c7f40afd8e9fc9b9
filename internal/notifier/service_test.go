package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, sent{to: to, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeSender) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestRender(t *testing.T) {
	t.Parallel()
	m := Render("Позвонить маме & <папе>")
	want := "🔔 <b>Напоминание!</b>\n\nПозвонить маме &amp; &lt;папе&gt;"
	if m.Text != want {
		t.Fatalf("text=%q want %q", m.Text, want)
	}
	if m.Opt.ParseMode != "HTML" {
		t.Fatalf("parse mode=%q", m.Opt.ParseMode)
	}
}

func TestSendDeliversToOwner(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	s := New(Config{}, f, logx.Nop())
	if err := s.Send(context.Background(), Push{OwnerID: 42, JobID: "notification_42_abcd1234", Text: "чай"}); err != nil {
		t.Fatal(err)
	}
	if f.count() != 1 || f.sent[0].to.ChatID != 42 {
		t.Fatalf("sent=%+v", f.sent)
	}
	if h := s.History(); len(h) != 1 || h[0].JobID != "notification_42_abcd1234" {
		t.Fatalf("history=%+v", h)
	}
}

func TestSendSuppressesRepeatedJob(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	s := New(Config{}, f, logx.Nop())
	p := Push{OwnerID: 1, JobID: "notification_1_00000000", Text: "x"}
	if err := s.Send(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(context.Background(), p); !errors.Is(err, ErrAlreadyNotified) {
		t.Fatalf("err=%v", err)
	}
	if f.count() != 1 {
		t.Fatalf("sent %d times", f.count())
	}
}

func TestSendFailureIsNotRemembered(t *testing.T) {
	t.Parallel()
	f := &fakeSender{err: errors.New("telegram down")}
	s := New(Config{}, f, logx.Nop())
	p := Push{OwnerID: 1, JobID: "notification_1_11111111", Text: "x"}
	if err := s.Send(context.Background(), p); err == nil {
		t.Fatal("expected error")
	}
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	if err := s.Send(context.Background(), p); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestDedupExpiresAndIsCapped(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	s := New(Config{DedupWindow: time.Minute, DedupMaxEntries: 2}, f, logx.Nop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Send(context.Background(), Push{OwnerID: 1, JobID: id, Text: id}); err != nil {
			t.Fatal(err)
		}
	}
	s.dmu.Lock()
	n := len(s.dedup)
	s.dmu.Unlock()
	if n != 2 {
		t.Fatalf("dedup size=%d", n)
	}

	now = now.Add(2 * time.Minute)
	if err := s.Send(context.Background(), Push{OwnerID: 1, JobID: "c", Text: "c"}); err != nil {
		t.Fatalf("expired entry still suppressing: %v", err)
	}
}

func TestSendHonoursContext(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	s := New(Config{RatePerSec: 1}, f, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Push{OwnerID: 1, Text: "x"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNoSender(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	if err := s.Send(context.Background(), Push{OwnerID: 1, Text: "x"}); !errors.Is(err, ErrNoSender) {
		t.Fatalf("err=%v", err)
	}
}
