package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	once   sync.Once
)

// initLogger builds the default console logger on stderr.
func initLogger() {
	once.Do(func() {
		l, err := build("console")
		if err != nil {
			l = zap.NewNop()
		}
		mu.Lock()
		logger = l.Sugar()
		mu.Unlock()
	})
}

func build(format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	switch strings.ToLower(format) {
	case "json":
		cfg.Encoding = "json"
	default:
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build(zap.AddCallerSkip(1))
}

// Configure replaces the global logger. Unknown formats fall back to console,
// unknown levels to INFO.
func Configure(format string, l Level) error {
	initLogger()
	SetLevel(l)
	zl, err := build(format)
	if err != nil {
		return err
	}
	mu.Lock()
	old := logger
	logger = zl.Sugar()
	mu.Unlock()
	_ = old.Sync()
	return nil
}

func SetLevel(l Level) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(strings.ToLower(string(l)))); err != nil {
		zl = zapcore.InfoLevel
	}
	level.SetLevel(zl)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	current().Errorw(msg, append([]any{"err", err}, kv...)...)
}
