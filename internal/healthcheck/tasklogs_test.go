package healthcheck

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content of "+name+"\n"), 0o600))
	}
}

func logNames(logs []TaskLog) []string {
	names := make([]string, 0, len(logs))
	for _, l := range logs {
		names = append(names, l.Name)
	}
	return names
}

func TestLogTime(t *testing.T) {
	t.Parallel()

	got, ok := LogTime("Invalid_objects_20240305_140709.log")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local), got)

	for _, bad := range []string{"notes.log", "x_2024_1.log", "Invalid_objects_20241305_140709.log"} {
		_, ok := LogTime(bad)
		assert.False(t, ok, bad)
	}
}

func TestListTaskLogsNewestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLogs(t, dir,
		"Invalid_objects_20240305_140709.log",
		"Tablespace_usage_20240401_090000.log",
		"Invalid_objects_20231231_235959.log",
		"notes.log",
		"readme.txt",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.log"), 0o700))

	logs, err := ListTaskLogs(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Tablespace_usage_20240401_090000.log",
		"Invalid_objects_20240305_140709.log",
		"Invalid_objects_20231231_235959.log",
		"notes.log",
	}, logNames(logs))
	assert.Equal(t, filepath.Join(dir, "notes.log"), logs[3].Path)
	assert.True(t, logs[3].Started.IsZero())
	assert.Positive(t, logs[0].Size)
}

func TestListTaskLogsFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLogs(t, dir,
		"Invalid_objects_20240305_140709.log",
		"Tablespace_usage_20240401_090000.log",
	)

	tests := []struct {
		filter string
		want   []string
	}{
		{"invalid objects", []string{"Invalid_objects_20240305_140709.log"}},
		{"INVALID_OBJ", []string{"Invalid_objects_20240305_140709.log"}},
		{"20240401", []string{"Tablespace_usage_20240401_090000.log"}},
		{"missing", []string{}},
	}
	for _, tt := range tests {
		logs, err := ListTaskLogs(dir, tt.filter)
		require.NoError(t, err)
		assert.Equal(t, tt.want, logNames(logs), tt.filter)
	}
}

func TestListTaskLogsMissingDirectory(t *testing.T) {
	t.Parallel()

	logs, err := ListTaskLogs(filepath.Join(t.TempDir(), "task_logs"), "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReadTaskLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLogs(t, dir, "Invalid_objects_20240305_140709.log")

	data, err := ReadTaskLog(dir, "Invalid_objects_20240305_140709.log")
	require.NoError(t, err)
	assert.Equal(t, "content of Invalid_objects_20240305_140709.log\n", string(data))

	data, err = ReadTaskLog(dir, "Invalid_objects_20240305_140709")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	for _, bad := range []string{"", "missing.log", "../secret.log", "sub/x.log"} {
		_, err := ReadTaskLog(dir, bad)
		assert.ErrorIs(t, err, ErrLogNotFound, bad)
	}
}
