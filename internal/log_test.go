package internal

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel(" TRACE "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerLevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelInfo)
	l.SetOutput(log.New(&buf, "", 0))

	l.With("calibration").Info("rest phase %d", 1)
	l.Debug("hidden")

	assert.Equal(t, "[INFO] [calibration] rest phase 1\n", buf.String())
	assert.False(t, l.TraceEnabled())
	assert.Same(t, DefaultLogger, OrDefault(nil))
}
