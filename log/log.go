// Package log is the simulator's host-side diagnostics layer. It is a
// thin skin over log/slog tuned for how the machine packages report:
// subsystems log through per-module child loggers, and the values they
// carry are mostly 32-bit addresses, instruction words and trap causes,
// which the attribute helpers render as fixed-width hex so a trace of
// faulting accesses lines up column for column.
//
// The emulated program's own console output never goes through here;
// that is the ttybox MMIO device's job.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger emits structured records for one simulator subsystem.
type Logger struct {
	sl *slog.Logger
}

var defaultLogger = New(os.Stderr, slog.LevelInfo)

// New returns a Logger writing human-readable text records to w,
// dropping everything below level. Front ends construct one from their
// -log-level flag and install it with SetDefault.
func New(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{sl: slog.New(h)}
}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault installs l as the process-wide logger. A nil l is ignored.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// ParseLevel maps a -log-level flag value ("debug", "info", "warn",
// "error") to a slog.Level. Anything unrecognized is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Module returns a child logger for one subsystem (mem, ttybox,
// riscof-dut, ...); every record it emits carries module=name.
func (l *Logger) Module(name string) *Logger {
	return &Logger{sl: l.sl.With("module", name)}
}

func (l *Logger) Debug(msg string, args ...any) { l.sl.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sl.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sl.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sl.Error(msg, args...) }

// Hex32 renders a 32-bit machine value (address, instruction word,
// trap value) as 0x%08x, the formatting every memory map and trap dump
// in this repo uses.
func Hex32(key string, v uint32) slog.Attr {
	return slog.String(key, hex32(v))
}

func hex32(v uint32) string {
	const digits = "0123456789abcdef"
	var b [10]byte
	b[0], b[1] = '0', 'x'
	for i := 0; i < 8; i++ {
		b[9-i] = digits[v&0xF]
		v >>= 4
	}
	return string(b[:])
}
