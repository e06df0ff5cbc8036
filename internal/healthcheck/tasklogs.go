package healthcheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrLogNotFound is returned when a task log does not exist.
var ErrLogNotFound = errors.New("task log not found")

const logExt = ".log"

// TaskLog is one file in the task log directory. Started is zero when the
// file name carries no run timestamp.
type TaskLog struct {
	Name    string
	Path    string
	Started time.Time
	Size    int64
}

// LogTime parses the YYYYMMDD_HHMMSS suffix the runner puts in log names.
func LogTime(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, logExt)
	if len(base) < len(logTimestamp) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(logTimestamp, base[len(base)-len(logTimestamp):], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// matchesFilter compares case-insensitively with underscores read as spaces,
// so "invalid objects" finds Invalid_objects_20240305_140709.log.
func matchesFilter(name, filter string) bool {
	if filter == "" {
		return true
	}
	normalize := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", " "))
	}
	return strings.Contains(normalize(name), normalize(filter))
}

// ListTaskLogs returns the .log files in dir matching filter, newest run
// first. Files without a parsable timestamp sort last. A missing directory
// yields no logs.
func ListTaskLogs(dir, filter string) ([]TaskLog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task log directory: %w", err)
	}

	var logs []TaskLog
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, logExt) || !matchesFilter(name, filter) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		started, _ := LogTime(name)
		logs = append(logs, TaskLog{
			Name:    name,
			Path:    filepath.Join(dir, name),
			Started: started,
			Size:    info.Size(),
		})
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].Started.Equal(logs[j].Started) {
			return logs[i].Started.After(logs[j].Started)
		}
		return logs[i].Name < logs[j].Name
	})
	return logs, nil
}

// ReadTaskLog returns the content of the log called name in dir. The
// extension may be omitted; names with path elements are rejected.
func ReadTaskLog(dir, name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrLogNotFound, name)
	}
	if !strings.HasSuffix(name, logExt) {
		name += logExt
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, name)
		}
		return nil, fmt.Errorf("failed to read task log: %w", err)
	}
	return data, nil
}
