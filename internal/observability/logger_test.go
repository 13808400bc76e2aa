package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{
		Level:   InfoLevel,
		Output:  &buf,
		Service: "cda-test",
		Version: "1.0.0",
	})

	logger.WithField("run_id", "r-1").InfoWithFields("table written", map[string]interface{}{
		"table": "FCT_COST_EVENTS",
		"rows":  3,
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "table written", entry.Message)
	assert.Equal(t, "cda-test", entry.Service)
	assert.Equal(t, "r-1", entry.Fields["run_id"])
	assert.Equal(t, "FCT_COST_EVENTS", entry.Fields["table"])
	assert.Equal(t, float64(3), entry.Fields["rows"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: WarnLevel, Output: &buf})

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(LoggerConfig{Level: InfoLevel, Output: &buf})
	_ = parent.WithField("client", "acme")

	parent.Info("plain")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.NotContains(t, entry.Fields, "client")
}

func TestConsoleEncoder(t *testing.T) {
	entry := &LogEntry{
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     "WARN",
		Message:   "unresolved rows",
		Fields:    map[string]interface{}{"source": "zendesk", "count": 2},
	}

	data, err := ConsoleEncoder{}.Encode(entry)
	require.NoError(t, err)
	assert.Equal(t, "03:04:05 WARN  unresolved rows count=2 source=zendesk", string(data))
}

func TestLogLevelFromString(t *testing.T) {
	assert.Equal(t, DebugLevel, LogLevelFromString("debug"))
	assert.Equal(t, WarnLevel, LogLevelFromString("WARNING"))
	assert.Equal(t, ErrorLevel, LogLevelFromString("error"))
	assert.Equal(t, InfoLevel, LogLevelFromString("bogus"))
}
