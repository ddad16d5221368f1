package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	SetLevel(LevelDebug)
	assert.Equal(t, zapcore.DebugLevel, atomLevel.Level())

	SetLevel(LevelError)
	assert.Equal(t, zapcore.ErrorLevel, atomLevel.Level())

	// Logging at any level must not panic once configured.
	Debug("debug message", "k", 1)
	Info("info message")
	Error("error message", errors.New("boom"), "k", "v")
}
