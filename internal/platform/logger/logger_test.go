package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]any{"event_hmac_key", "k", "campaign_id", "c1", "dangling"})
	want := []any{"event_hmac_key", "[REDACTED]", "campaign_id", "c1", "dangling"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "keeper").Info("finalized", "campaign_id", "c1", "api_token", "abc")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "keeper" {
		t.Fatalf("component = %v, want keeper", fields["component"])
	}
	if fields["api_token"] != "[REDACTED]" {
		t.Fatalf("api_token = %v, want redacted", fields["api_token"])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("ignored")
	l.Sync()
	if l.With("a", "b") != nil {
		t.Fatal("expected nil child logger")
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.Debug("ok")
	}
}
