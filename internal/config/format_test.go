package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{" 700ms ", 700 * time.Millisecond, false},
		{"1h", time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"-1s", 0, true},
		{"-2d", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, c := range cases {
		got, err := ParseDurationField("reminders.restore_grace", c.raw)
		if (err != nil) != c.wantErr || got != c.want {
			t.Errorf("%q: got %s, %v", c.raw, got, err)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]time.Duration{"": time.Minute, "0s": time.Minute, "2d": 48 * time.Hour} {
		got, err := ParseDurationOrDefault("x", raw, time.Minute)
		if err != nil || got != want {
			t.Errorf("%q: got %s, %v", raw, got, err)
		}
	}
	if _, err := ParseDurationOrDefault("x", "bad", time.Minute); err == nil {
		t.Error("bad value fell back to the default")
	}
}

func TestToJSON(t *testing.T) {
	t.Parallel()

	j, format, err := toJSON("c.json", []byte(`{"a":1}`))
	if err != nil || format != formatJSON || string(j) != `{"a":1}` {
		t.Fatalf("json passthrough: %s %s %v", j, format, err)
	}

	j, format, err = toJSON("c.YML", []byte("telegram:\n  token: x\n1: one\n"))
	if err != nil || format != formatYAML {
		t.Fatalf("yaml: %s %v", format, err)
	}
	if string(j) != `{"1":"one","telegram":{"token":"x"}}` {
		t.Fatalf("yaml json = %s", j)
	}

	if j, _, err = toJSON("c.yaml", nil); err != nil || string(j) != "{}" {
		t.Fatalf("empty yaml: %s %v", j, err)
	}
	if _, _, err = toJSON("c.yaml", []byte("a: 1\n---\nb: 2\n")); err == nil {
		t.Fatal("multi-document yaml accepted")
	}
	if _, _, err = toJSON("c.yaml", []byte("a: [1\n")); err == nil {
		t.Fatal("broken yaml accepted")
	}
}
