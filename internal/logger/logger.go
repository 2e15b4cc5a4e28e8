// Package logger is the process-wide zap logger used by pagewise.
//
// Warnings always reach stderr. Debug and info lines, and section headers,
// appear only once SetVerbose(true) has been called, which the CLI does for
// --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)

	mu    sync.RWMutex
	sink  zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	sugar                     = newSugar(sink)
)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey, cfg.CallerKey, cfg.NameKey = "", "", ""
	cfg.ConsoleSeparator = " "
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + l.CapitalString() + "]")
	}
	return cfg
}

func newSugar(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), ws, level)
	return zap.New(core).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// SetVerbose switches between warn-only and debug output.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.WarnLevel)
}

// IsVerbose reports whether debug output is enabled.
func IsVerbose() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = zapcore.Lock(zapcore.AddSync(w))
	sugar = newSugar(sink)
}

func Debug(format string, args ...any) { current().Debugf(format, args...) }

func Info(format string, args ...any) { current().Infof(format, args...) }

func Warn(format string, args ...any) { current().Warnf(format, args...) }

// Infow logs msg with structured key/value pairs at info level.
func Infow(msg string, keysAndValues ...any) { current().Infow(msg, keysAndValues...) }

// Warnw logs msg with structured key/value pairs at warn level.
func Warnw(msg string, keysAndValues ...any) { current().Warnw(msg, keysAndValues...) }

// Section writes a banner separating the log lines of one unit of work.
func Section(name string) {
	if !IsVerbose() {
		return
	}
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(sink, "\n=== %s ===\n", name)
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}
