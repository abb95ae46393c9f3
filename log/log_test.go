package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestModuleLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo).Module("mem")
	l.Info("page allocated", "index", 7)
	out := buf.String()
	if !strings.Contains(out, "module=mem") || !strings.Contains(out, "index=7") {
		t.Errorf("output = %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)
	l.Info("dropped")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("output = %q", out)
	}
}

func TestHex32(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo)
	l.Info("trap", Hex32("value", 0xDEADBEEF), Hex32("pc", 0x1C))
	out := buf.String()
	if !strings.Contains(out, "value=0xdeadbeef") || !strings.Contains(out, "pc=0x0000001c") {
		t.Errorf("output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
