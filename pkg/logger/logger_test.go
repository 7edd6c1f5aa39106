package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_Simple(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatSimple)

	l.Debug("hidden")
	l.With("component", "ledger").Warn("Usage persisted", "tokens", 12)

	assert.Equal(t, "WARN Usage persisted component=ledger tokens=12\n", buf.String())
}

func TestNew_Verbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelDebug, &buf, FormatVerbose)

	l.WithGroup("agent").Debug("Reconnect scheduled", "attempt", 2)

	line := buf.String()
	assert.Contains(t, line, "DEBUG Reconnect scheduled agent.attempt=2")
	// Verbose lines start with a timestamp.
	assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} `, line)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.LevelInfo, &buf, FormatJSON)

	l.Info("Parsed events", "count", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Parsed events", rec["msg"])
	assert.Equal(t, float64(2), rec["count"])
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, err := Setup("loud", "", "")
	assert.Error(t, err)
}

func TestSetup_File(t *testing.T) {
	path := t.TempDir() + "/parentpal.log"
	cleanup, err := Setup("info", path, FormatSimple)
	require.NoError(t, err)
	defer cleanup()

	slog.Info("written to file")
	assert.NotNil(t, GetLogger())
}
