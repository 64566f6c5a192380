// Package log provides the internal leveled-logging facade used by the
// rest of fastrace. It exists so that overflow, programmer-error, and
// reporter-failure conditions (which must never panic or propagate to the
// caller, see the core error-handling design) still leave a trail, while
// keeping the hot path free of any logging call by default (level Warn).
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zapcore.Level but keeps the package's public surface
// independent of zap so callers never need to import it directly.
type Level int8

const (
	LevelDebug Level = Level(zapcore.DebugLevel)
	LevelInfo  Level = Level(zapcore.InfoLevel)
	LevelWarn  Level = Level(zapcore.WarnLevel)
	LevelError Level = Level(zapcore.ErrorLevel)
)

// Logger is the minimal interface the core depends on. A *zap.Logger
// satisfies it through the adapter below; tests substitute a
// RecordLogger.
type Logger interface {
	Log(level Level, msg string, kv ...any)
	Flush() error
}

type zapLogger struct {
	l *zap.Logger
}

func (z *zapLogger) Log(level Level, msg string, kv ...any) {
	ce := z.l.Check(zapcore.Level(level), msg)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	ce.Write(fields...)
}

func (z *zapLogger) Flush() error { return z.l.Sync() }

func newDefaultLogger() Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// fall back to a no-op logger rather than ever failing instrumentation
		// setup; this mirrors the "silent drop" policy applied everywhere
		// else in the core.
		return &zapLogger{l: zap.NewNop()}
	}
	return &zapLogger{l: l}
}

var (
	mu      sync.RWMutex
	current = newDefaultLogger()
	level   = LevelWarn
)

// UseLogger installs l as the process-wide logger and returns a function
// that restores the previous one, for test teardown (defer log.UseLogger(x)()).
func UseLogger(l Logger) func() {
	mu.Lock()
	prev := current
	current = l
	mu.Unlock()
	return func() {
		mu.Lock()
		current = prev
		mu.Unlock()
	}
}

// SetLevel changes the minimum level passed on to the installed logger,
// whichever it is; calls below it are dropped before reaching any logger.
// The default zap logger additionally discards anything below Warn, so
// lowering the level below Warn has a visible effect only with a logger
// installed via UseLogger.
func SetLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

// GetLevel returns the level last set via SetLevel.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

func get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Debug(msg string, kv ...any) { log(LevelDebug, msg, kv...) }
func Info(msg string, kv ...any)  { log(LevelInfo, msg, kv...) }
func Warn(msg string, kv ...any)  { log(LevelWarn, msg, kv...) }
func Error(msg string, kv ...any) { log(LevelError, msg, kv...) }

func log(l Level, msg string, kv ...any) {
	if l < GetLevel() {
		return
	}
	get().Log(l, msg, kv...)
}

// Flush flushes the currently installed logger, if it buffers output.
func Flush() error {
	return get().Flush()
}

// RecordLogger is a test double that records every call instead of
// writing anywhere, mirroring the teacher's own use of a RecordLogger in
// slog_test.go.
type RecordLogger struct {
	mu      sync.Mutex
	Records []Record
}

// Record is one captured log call.
type Record struct {
	Level Level
	Msg   string
	KV    []any
}

func (r *RecordLogger) Log(level Level, msg string, kv ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, Record{Level: level, Msg: msg, KV: append([]any(nil), kv...)})
}

func (r *RecordLogger) Flush() error { return nil }

// Snapshot returns a copy of the records captured so far.
func (r *RecordLogger) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.Records))
	copy(out, r.Records)
	return out
}
