package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestGologLogger_LevelControl(t *testing.T) {
	logger := NewGologLogger(golog.New())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	logger.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, logger.GetLevel())

	logger.SetLevel(LogLevelNone)
	assert.Equal(t, LogLevelNone, logger.GetLevel())
}

func TestGologLogger_Filtering(t *testing.T) {
	logger := NewGologLogger(golog.New())
	logger.SetLevel(LogLevelError)

	// Filtered calls must not panic
	logger.Debug("filtered %s", "debug")
	logger.Info("filtered %d", 1)
	logger.Warn("filtered %v", true)
	logger.Error("logged %f", 3.14)
}

func TestDefaultLogger_WriterOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LogLevelInfo)

	logger.Debug("invisible")
	logger.Info("run %s started", "abc")

	out := buf.String()
	assert.NotContains(t, out, "invisible")
	assert.Contains(t, out, "run abc started")
	assert.Contains(t, out, "[agentgraph]")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
	assert.Equal(t, "UNKNOWN(42)", LogLevel(42).String())
}
