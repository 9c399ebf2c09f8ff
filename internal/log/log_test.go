package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	SetLevel(LevelDebug)
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	SetLevel(LevelError)
	assert.Equal(t, zapcore.ErrorLevel, level.Level())

	SetLevel("verbose")
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}

func TestConfigureJSON(t *testing.T) {
	t.Cleanup(func() { _ = Configure("console", LevelInfo) })

	assert.NoError(t, Configure("json", LevelWarn))
	assert.Equal(t, zapcore.WarnLevel, level.Level())

	// Must not panic with odd key/value lists.
	Info("dropped below level", "k")
	Error("boom", errors.New("x"), "slot_id", 3)
}
