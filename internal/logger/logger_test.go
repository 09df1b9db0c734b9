package logger

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

// capture redirects the global logger into a buffer at the given level
// and restores the defaults when the test ends.
func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		want    Level
	}{
		{"default", false, false, LevelInfo},
		{"verbose", true, false, LevelDebug},
		{"quiet", false, true, LevelWarn},
		{"verbose wins over quiet", true, true, LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.verbose, tt.quiet)
			if GetLevel() != tt.want {
				t.Errorf("Init(%v, %v) level = %v, want %v", tt.verbose, tt.quiet, GetLevel(), tt.want)
			}
		})
	}

	Init(false, false)
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.level.String() != tt.expected {
				t.Errorf("Level(%d).String() = %v, want %v", tt.level, tt.level.String(), tt.expected)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelInfo)

	tests := []struct {
		name       string
		level      Level
		logFunc    func(string, ...interface{})
		shouldShow bool
	}{
		{"debug at debug level", LevelDebug, Debug, true},
		{"info at debug level", LevelDebug, Info, true},
		{"debug at info level", LevelInfo, Debug, false},
		{"info at info level", LevelInfo, Info, true},
		{"warn at info level", LevelInfo, Warn, true},
		{"info at warn level", LevelWarn, Info, false},
		{"warn at warn level", LevelWarn, Warn, true},
		{"warn at error level", LevelError, Warn, false},
		{"error at error level", LevelError, Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			SetLevel(tt.level)

			tt.logFunc("test message")

			hasOutput := buf.Len() > 0
			if hasOutput != tt.shouldShow {
				t.Errorf("got output=%v, want output=%v", hasOutput, tt.shouldShow)
			}
		})
	}
}

func TestLogFormatting(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info("Setting %s=%s", "omero.certificates.commonname", "localhost")
	output := buf.String()

	if !strings.HasPrefix(output, "[INFO]") {
		t.Errorf("Missing [INFO] prefix: %s", output)
	}
	if !strings.HasSuffix(strings.TrimSpace(output), "Setting omero.certificates.commonname=localhost") {
		t.Errorf("Message not at end: %s", output)
	}
}

func TestLogFieldsSorted(t *testing.T) {
	buf := capture(t, LevelDebug)

	DebugFields("Resolved paths", map[string]interface{}{
		"key":    "/certs/server.key",
		"bundle": "/certs/server.p12",
		"cert":   "/certs/server.pem",
	})
	output := buf.String()

	bundleIdx := strings.Index(output, "bundle=")
	certIdx := strings.Index(output, "cert=")
	keyIdx := strings.Index(output, "key=")

	if bundleIdx == -1 || certIdx == -1 || keyIdx == -1 {
		t.Fatalf("Missing fields in output: %s", output)
	}
	if !(bundleIdx < certIdx && certIdx < keyIdx) {
		t.Errorf("Fields not sorted alphabetically: %s", output)
	}
}

func TestEmptyFields(t *testing.T) {
	buf := capture(t, LevelDebug)

	DebugFields("no fields", nil)
	trimmed := strings.TrimRight(buf.String(), "\n")

	if !strings.HasSuffix(trimmed, "no fields") {
		t.Errorf("Should end with the message and no separator: %q", trimmed)
	}
}

func TestLogError(t *testing.T) {
	buf := capture(t, LevelError)

	LogError(nil, "should not log")
	if buf.Len() > 0 {
		t.Error("LogError with nil should not produce output")
	}

	LogError(fmt.Errorf("disk full"), "provisioning failed")
	output := buf.String()
	if !strings.Contains(output, "[ERROR]") {
		t.Errorf("LogError should produce ERROR level: %s", output)
	}
	if !strings.Contains(output, "provisioning failed: disk full") {
		t.Errorf("LogError should contain message and error: %s", output)
	}
}

func TestSetOutputNilRestoresStderr(t *testing.T) {
	SetOutput(nil)
	std.mu.Lock()
	out := std.output
	std.mu.Unlock()

	if out != os.Stderr {
		t.Errorf("SetOutput(nil) should restore os.Stderr")
	}
}

func TestBufferOutputIsUncoloured(t *testing.T) {
	buf := capture(t, LevelDebug)

	Warn("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("non-terminal output should not carry escape codes: %q", buf.String())
	}
}

func TestConcurrentLogging(t *testing.T) {
	buf := capture(t, LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Debug("goroutine %d", n)
			InfoFields("fields", map[string]interface{}{"n": n})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 100 {
		t.Errorf("Expected 100 log lines, got %d", len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "[DEBUG]") && !strings.HasPrefix(line, "[INFO]") {
			t.Errorf("Line %d may be corrupted: %s", i, line)
		}
	}
}

func TestAllFieldFunctions(t *testing.T) {
	buf := capture(t, LevelDebug)

	InfoFields("info", map[string]interface{}{"test": 1})
	WarnFields("warn", map[string]interface{}{"test": 2})
	ErrorFields("error", map[string]interface{}{"test": 3})

	output := buf.String()
	for _, want := range []string{"[INFO]", "test=1", "[WARN]", "test=2", "[ERROR]", "test=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}
