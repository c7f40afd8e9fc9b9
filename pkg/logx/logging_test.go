package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestWriterLoggerLevelAndFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "reminder"))

	log.Debug("hidden")
	log.Info("reminder created", Int64("owner", 7), String("job_id", "notification_7_abcd1234"))
	log.Warn("delivery failed", Err(errors.New("boom")), Err(nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	first := lines[0]
	if first["message"] != "reminder created" || first["level"] != "info" {
		t.Fatalf("first=%v", first)
	}
	if first["comp"] != "reminder" || first["owner"] != float64(7) || first["job_id"] != "notification_7_abcd1234" {
		t.Fatalf("fields missing: %v", first)
	}
	if c, _ := first["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller=%q", c)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("error not logged: %s", buf.String())
	}
}

func TestWithDoesNotShareFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := NewWriter(&buf, "debug").With(String("comp", "bot"))
	a := base.With(String("route", "/list"))
	b := base.With(String("route", "/start"))

	a.Info("a")
	b.Info("b")
	lines := decodeLines(t, &buf)
	if len(lines) != 2 || lines[0]["route"] != "/list" || lines[1]["route"] != "/start" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	log.Info("dropped", String("k", "v"))
	if Nop().IsZero() {
		t.Fatal("Nop is not the zero value")
	}
}

func TestServiceApplyReachesLoggers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	if log.Enabled(LevelInfo) {
		t.Fatal("info enabled at warn level")
	}
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if !log.Enabled(LevelDebug) {
		t.Fatal("Apply did not reach existing loggers")
	}
}
