// pkg/logging/logging.go - timestamped run logging for xenclean.
//
// Every run gets its own directory (YYYY-MM-DD-HHMMss) under the configured
// log directory holding:
// - xenclean.log, human-readable lines mirrored to the console
// - events.jsonl, one JSON LogEntry per line
// - xenclean.yaml, optional YAML mirror of the same entries
//
// Engine packages take a *Logger built over any io.Writer; the package-level
// functions forward to the process-wide instance created by Init.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xcp-ng/xenclean/pkg/config"
	"gopkg.in/yaml.v3"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string to a LogLevel. Unknown values
// fall back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LogEntry is the structured form written to events.jsonl.
type LogEntry struct {
	Time       int64                  `json:"time" yaml:"time"`
	Timestamp  string                 `json:"timestamp" yaml:"timestamp"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Component  string                 `json:"component" yaml:"component"`
	PID        int64                  `json:"pid" yaml:"pid"`
	Hostname   string                 `json:"hostname" yaml:"hostname"`
	SessionID  string                 `json:"session_id" yaml:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Logger writes leveled key/value messages to a text sink and, optionally,
// to structured JSON and YAML sinks. A nil *Logger discards everything.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	jsonOut   io.Writer
	yamlOut   io.Writer
	level     LogLevel
	component string
	sessionID string
	hostname  string
	logDir    string
	files     []*os.File
	now       func() time.Time
}

var (
	instance *Logger
	once     sync.Once
)

// New creates a Logger that writes text lines to w.
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		out:       w,
		level:     level,
		component: "xenclean",
		now:       time.Now,
	}
}

// Discard returns a Logger that drops every message.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}

// Init creates the process-wide Logger from the configuration. Only the
// first call has any effect.
func Init(cfg *config.Configuration) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newRunLogger(cfg, os.Stdout, time.Now())
	})
	return initErr
}

// Default returns the process-wide Logger, or a console Logger when Init
// has not been called.
func Default() *Logger {
	if instance == nil {
		return New(os.Stderr, LevelInfo)
	}
	return instance
}

// generateSessionID creates a unique session identifier.
func generateSessionID(start time.Time) string {
	return fmt.Sprintf("xenclean-%d-%s", start.Unix(), start.Format("2006-01-02-150405"))
}

// createTimestampedLogDir creates the run directory for start.
func createTimestampedLogDir(baseDir string, start time.Time) (string, error) {
	logDir := filepath.Join(baseDir, start.Format("2006-01-02-150405"))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create timestamped log directory %s: %w", logDir, err)
	}
	return logDir, nil
}

// newRunLogger opens the run directory and its files. console, when not
// nil, receives a copy of every text line.
func newRunLogger(cfg *config.Configuration, console io.Writer, start time.Time) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base log directory: %w", err)
	}
	logDir, err := createTimestampedLogDir(cfg.LogDir, start)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	level := ParseLevel(cfg.LogLevel)
	if cfg.Verbose && level < LevelDebug {
		level = LevelDebug
	}

	l := &Logger{
		level:     level,
		component: "xenclean",
		sessionID: generateSessionID(start),
		hostname:  hostname,
		logDir:    logDir,
		now:       time.Now,
	}

	textFile, err := l.openFile("xenclean.log")
	if err != nil {
		return nil, err
	}
	if console != nil {
		l.out = io.MultiWriter(console, textFile)
	} else {
		l.out = textFile
	}

	if l.jsonOut, err = l.openFile("events.jsonl"); err != nil {
		l.Close()
		return nil, err
	}
	if cfg.EnableYAMLLog {
		if l.yamlOut, err = l.openFile("xenclean.yaml"); err != nil {
			l.Close()
			return nil, err
		}
	}

	cleanupRuns(cfg.LogDir, cfg.LogRetentionRuns)
	return l, nil
}

func (l *Logger) openFile(name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	l.files = append(l.files, f)
	return f, nil
}

// cleanupRuns keeps the newest keep run directories under baseDir.
// Failures are ignored.
func cleanupRuns(baseDir string, keep int) {
	if keep <= 0 {
		return
	}
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return
	}

	var runs []string
	for _, entry := range entries {
		// YYYY-MM-DD-HHMMss
		if entry.IsDir() && len(entry.Name()) == 17 && strings.Count(entry.Name(), "-") == 3 {
			runs = append(runs, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	for i := keep; i < len(runs); i++ {
		os.RemoveAll(filepath.Join(baseDir, runs[i]))
	}
}

// Dir returns the run directory, or "" for a Logger without files.
func (l *Logger) Dir() string {
	if l == nil {
		return ""
	}
	return l.logDir
}

// SetLevel changes the most verbose level that is written.
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetStructuredOutput directs JSON entries to w.
func (l *Logger) SetStructuredOutput(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonOut = w
}

// Close closes the files opened for the run.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// CloseLogger closes the process-wide Logger's files.
func CloseLogger() {
	if instance == nil {
		return
	}
	if err := instance.Close(); err != nil {
		fmt.Printf("Failed to close log files: %v\n", err)
	}
}

// WriteSummary stores v as summary.json in the run directory.
func (l *Logger) WriteSummary(v interface{}) error {
	if l == nil || l.logDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	return os.WriteFile(filepath.Join(l.logDir, "summary.json"), data, 0644)
}

// Info logs informational messages.
func (l *Logger) Info(message string, keyValues ...interface{}) {
	l.logMessage(LevelInfo, message, keyValues...)
}

// Warn logs warning messages.
func (l *Logger) Warn(message string, keyValues ...interface{}) {
	l.logMessage(LevelWarn, message, keyValues...)
}

// Error logs error messages.
func (l *Logger) Error(message string, keyValues ...interface{}) {
	l.logMessage(LevelError, message, keyValues...)
}

// Debug logs debug messages.
func (l *Logger) Debug(message string, keyValues ...interface{}) {
	l.logMessage(LevelDebug, message, keyValues...)
}

// logMessage is the core logging method that writes to all configured outputs.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level || l.out == nil {
		return
	}

	properties := make(map[string]interface{})
	for i := 0; i+1 < len(keyValues); i += 2 {
		properties[fmt.Sprintf("%v", keyValues[i])] = propertyValue(keyValues[i+1])
	}

	now := l.now()
	entry := LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		SessionID:  l.sessionID,
		Properties: properties,
	}

	l.writeMainLog(now, entry, keyValues)
	if l.jsonOut != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.jsonOut.Write(append(data, '\n'))
		}
	}
	if l.yamlOut != nil {
		if data, err := yaml.Marshal(entry); err == nil {
			io.WriteString(l.yamlOut, "---\n"+string(data))
		}
	}
}

// propertyValue flattens errors and Stringers, which encode as empty
// objects in JSON and YAML.
func propertyValue(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// writeMainLog writes the human-readable line.
func (l *Logger) writeMainLog(now time.Time, entry LogEntry, keyValues []interface{}) {
	var sb strings.Builder
	if entry.Level == "ERROR" {
		sb.WriteString("----------------------------------------\n")
	}
	fmt.Fprintf(&sb, "[%s] %-5s %s", now.Format("2006-01-02 15:04:05"), entry.Level, entry.Message)
	for i := 0; i+1 < len(keyValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keyValues[i], keyValues[i+1])
	}
	if len(keyValues)%2 == 1 {
		fmt.Fprintf(&sb, " %v", keyValues[len(keyValues)-1])
	}
	sb.WriteByte('\n')
	io.WriteString(l.out, sb.String())
}

// Info logs informational messages through the process-wide Logger.
func Info(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: INFO %s %v\n", message, keyValues)
		return
	}
	instance.Info(message, keyValues...)
}

// Debug logs debug messages through the process-wide Logger.
func Debug(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: DEBUG %s %v\n", message, keyValues)
		return
	}
	instance.Debug(message, keyValues...)
}

// Warn logs warning messages through the process-wide Logger.
func Warn(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: WARN %s %v\n", message, keyValues)
		return
	}
	instance.Warn(message, keyValues...)
}

// Error logs error messages through the process-wide Logger.
func Error(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: ERROR %s %v\n", message, keyValues)
		return
	}
	instance.Error(message, keyValues...)
}
