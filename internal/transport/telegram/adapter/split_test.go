package adapter

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/task/engine"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("🔔 <b>Напоминание!</b>", 4000, "HTML")
	if len(got) != 1 || got[0] != "🔔 <b>Напоминание!</b>" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("я", 30)
	text := strings.Join([]string{line, line, line, line}, "\n")
	got := splitTelegramText(text, 70, "")
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for _, c := range got {
		if utf8.RuneCountInString(c) > 70 {
			t.Fatalf("chunk too long: %d", utf8.RuneCountInString(c))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk has edge newline: %q", c)
		}
	}
	if strings.Join(got, "\n") != text {
		t.Fatalf("content lost")
	}
}

func TestSplitAvoidsCuttingHTMLTag(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 18) + "<b>bold</b>" + strings.Repeat("c", 20)
	got := splitTelegramText(text, 20, "HTML")
	if !strings.HasPrefix(got[1], "<b>") {
		t.Fatalf("second chunk should start at the tag: %q", got)
	}
}

func TestWrapSendErrorFlood(t *testing.T) {
	t.Parallel()
	err := wrapSendError(tele.FloodError{RetryAfter: 3})
	var ra engine.RetryAfterError
	if !errors.As(err, &ra) || ra.RetryAfter() != 3*time.Second {
		t.Fatalf("expected a 3s retry hint, got %#v", err)
	}
	plain := errors.New("boom")
	if wrapSendError(plain) != plain {
		t.Fatal("plain errors must pass through")
	}
}

func TestWrapSendErrorPermanent(t *testing.T) {
	t.Parallel()
	for _, base := range []error{tele.ErrBlockedByUser, tele.ErrChatNotFound, tele.ErrUserIsDeactivated} {
		err := wrapSendError(base)
		if !engine.IsNoRetry(err) {
			t.Fatalf("%v: expected no-retry, got %#v", base, err)
		}
		if !errors.Is(err, base) {
			t.Fatalf("%v: wrapped error lost its cause", base)
		}
	}
	if engine.IsNoRetry(wrapSendError(errors.New("timeout"))) {
		t.Fatal("transient errors must stay retryable")
	}
}
