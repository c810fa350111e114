package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcp-ng/xenclean/pkg/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
}

func TestLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)

	l.Info("Removed device", "instance", `PCI\VEN_5853&DEV_0001\3&1`, "reboot", true)

	line := buf.String()
	assert.Contains(t, line, "INFO  Removed device")
	assert.Contains(t, line, `instance=PCI\VEN_5853&DEV_0001\3&1`)
	assert.Contains(t, line, "reboot=true")
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("noise")
	l.Info("noise")
	l.Warn("kept")
	l.Error("kept too", "error", "boom")

	out := buf.String()
	assert.NotContains(t, out, "noise")
	assert.Contains(t, out, "WARN  kept")
	assert.Contains(t, out, "----------------------------------------\n")
	assert.Contains(t, out, "error=boom")
}

func TestLoggerStructuredOutput(t *testing.T) {
	var text, structured bytes.Buffer
	l := New(&text, LevelDebug)
	l.SetStructuredOutput(&structured)

	l.Debug("Captured package", "package", "oem7.inf")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(structured.Bytes()), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "Captured package", entry.Message)
	assert.Equal(t, "oem7.inf", entry.Properties["package"])
}

func TestStructuredOutputKeepsErrorText(t *testing.T) {
	var text, structured bytes.Buffer
	l := New(&text, LevelDebug)
	l.SetStructuredOutput(&structured)

	l.Warn("Cannot remove driver package", "package", "oem5.inf",
		"error", fmt.Errorf("remove: %w", errors.New("access denied")),
		"level", LevelWarn)

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(structured.Bytes()), &entry))
	assert.Equal(t, "remove: access denied", entry.Properties["error"])
	assert.Equal(t, "WARN", entry.Properties["level"])
	assert.Equal(t, "oem5.inf", entry.Properties["package"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("dropped")
		l.SetLevel(LevelDebug)
		assert.NoError(t, l.Close())
		assert.Equal(t, "", l.Dir())
	})
}

func TestRunLoggerCreatesFilesAndPrunesRuns(t *testing.T) {
	base := t.TempDir()
	for _, old := range []string{"2024-01-01-000000", "2024-01-02-000000", "2024-01-03-000000"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, old), 0755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(base, "not-a-run"), 0755))

	cfg := config.GetDefaultConfig()
	cfg.LogDir = base
	cfg.LogRetentionRuns = 2
	cfg.EnableYAMLLog = true

	start := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)
	l, err := newRunLogger(cfg, nil, start)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, filepath.Join(base, "2025-03-04-050607"), l.Dir())
	l.Info("hello", "k", "v")
	require.NoError(t, l.WriteSummary(map[string]int{"devices": 2}))

	data, err := os.ReadFile(filepath.Join(l.Dir(), "xenclean.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello k=v"))

	for _, name := range []string{"events.jsonl", "xenclean.yaml", "summary.json"} {
		assert.FileExists(t, filepath.Join(l.Dir(), name))
	}

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"2025-03-04-050607", "2024-01-03-000000", "not-a-run"}, names)
}
