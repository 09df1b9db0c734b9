// Package logger provides leveled logging for the omero-certificates CLI.
//
// Log lines go to stderr, separate from the user-facing output that goes to
// stdout, so `--json` output stays machine readable while the provisioning
// steps are still reported.
//
// # Log Levels
//
// Four log levels are supported, in order of severity:
//   - Debug: Detailed information for debugging
//   - Info: Each defaulted config key and each generated or reused file
//   - Warn: Ignored legacy settings and other recoverable oddities
//   - Error: Conditions that abort provisioning
//
// # Initialization
//
//	logger.Init(verbose, quiet)
//
// The default level is Info. verbose enables Debug, quiet restricts output
// to Warn and Error. verbose wins when both are set.
//
// # Usage
//
//	logger.Info("Setting %s=%s", key, value)
//	logger.Info("Using existing key: %s", keyPath)
//	logger.DebugFields("Resolved paths", map[string]interface{}{
//	    "key":    keyPath,
//	    "bundle": bundlePath,
//	})
//
// # Output Format
//
//	[LEVEL] YYYY-MM-DD HH:MM:SS message
//	[INFO] 2026-02-03 10:30:45 Setting omero.certificates.commonname=localhost
//
// Level tags are coloured when writing to a terminal on stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents a logging severity level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// Logger handles leveled logging with thread-safe output.
type Logger struct {
	level  Level
	output io.Writer
	mu     sync.Mutex
}

// Global logger instance.
var std = &Logger{
	level:  LevelInfo,
	output: os.Stderr,
}

// Init initializes the global logger with the specified verbosity.
func Init(verbose, quiet bool) {
	std.mu.Lock()
	defer std.mu.Unlock()

	switch {
	case verbose:
		std.level = LevelDebug
	case quiet:
		std.level = LevelWarn
	default:
		std.level = LevelInfo
	}
}

// SetLevel sets the minimum log level for the global logger.
func SetLevel(level Level) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

// SetOutput sets the output destination for the global logger.
// A nil writer restores os.Stderr.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	std.output = w
}

// GetLevel returns the current log level.
func GetLevel() Level {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// tag renders the level prefix. Caller holds l.mu.
func (l *Logger) tag(level Level) string {
	tag := "[" + level.String() + "]"
	if l.output == os.Stderr && !color.NoColor {
		if c, ok := levelColors[level]; ok {
			return c.Sprint(tag)
		}
	}
	return tag
}

// log writes a formatted message at the specified level.
func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(l.output, "%s %s %s\n", l.tag(level), timestamp, msg)
}

// logFields writes a message with structured key-value fields.
func (l *Logger) logFields(level Level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	_, _ = fmt.Fprintf(l.output, "%s %s %s\n", l.tag(level), timestamp, b.String())
}

// Debug logs a debug message.
// Only shown when verbose mode is enabled.
func Debug(format string, args ...interface{}) {
	std.log(LevelDebug, format, args...)
}

// Info logs an informational message.
// Hidden in quiet mode.
func Info(format string, args ...interface{}) {
	std.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	std.log(LevelWarn, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	std.log(LevelError, format, args...)
}

// DebugFields logs a debug message with structured fields.
func DebugFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelDebug, msg, fields)
}

// InfoFields logs an informational message with structured fields.
func InfoFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelInfo, msg, fields)
}

// WarnFields logs a warning message with structured fields.
func WarnFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelWarn, msg, fields)
}

// ErrorFields logs an error message with structured fields.
func ErrorFields(msg string, fields map[string]interface{}) {
	std.logFields(LevelError, msg, fields)
}

// LogError logs an error with additional context message.
func LogError(err error, msg string) {
	if err == nil {
		return
	}
	std.log(LevelError, "%s: %v", msg, err)
}
