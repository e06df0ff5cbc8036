package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "secret is redacted", input: "my-secret-password", expected: "[REDACTED]"},
		{name: "empty secret is still redacted", input: "", expected: "[REDACTED]"},
		{name: "complex secret is redacted", input: "password123!@#", expected: "[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Secret(tt.input).String())
			assert.Equal(t, tt.expected, Secret(tt.input).GoString())
		})
	}
}

func TestLoggerWritesToWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("retrieved %s", "PRM_APP01")
	logger.Warn("careful")
	logger.Error("failed with status %d", 403)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "✓ retrieved PRM_APP01")
	assert.Contains(t, out, "⚠ careful")
	assert.Contains(t, out, "✗ failed with status 403")
	assert.NotContains(t, out, "hidden")
}

func TestLoggerDebugMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)
	logger.Debug("token %s", Secret("s.abcdef"))

	assert.Contains(t, buf.String(), "[DEBUG] token [REDACTED]")
	assert.True(t, logger.IsDebug())
}

func TestLoggerFileSinkFormat(t *testing.T) {
	t.Parallel()

	var console, file bytes.Buffer
	logger := NewWithWriter(&console, false, true)
	logger.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 5, 0, time.UTC) }
	logger.AttachFile(nopCloser{&file})

	logger.Error("line one\nline two")
	logger.Debug("only in file")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[error] 2024-03-01 09:30:05: line oneline two", lines[0])
	assert.Equal(t, "[debug] 2024-03-01 09:30:05: only in file", lines[1])
	assert.NotContains(t, console.String(), "only in file")
}

func TestLoggerOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Logging", "log.txt")
	logger := Discard()
	require.NoError(t, logger.OpenFile(path))
	logger.Info("hello")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[info] ")
	assert.Contains(t, string(data), ": hello")
}

func TestRedact(t *testing.T) {
	t.Parallel()

	out := Redact("login with secret123 and abc", []string{"secret123", "abc", ""})
	assert.Equal(t, "login with [REDACTED] and abc", out)
}
