// Package executor runs external programs behind an interface so the
// openssl backend can be exercised without the binary installed.
package executor

import (
	"os"
	"os/exec"
)

// CommandExecutor is an interface for executing system commands
type CommandExecutor interface {
	// Execute runs a command with the given name and arguments
	Execute(name string, args ...string) ([]byte, error)

	// ExecuteEnv runs a command with extra KEY=VALUE pairs appended to the
	// current environment. Secrets go here, never on the command line.
	ExecuteEnv(env []string, name string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the directories named by the PATH
	LookPath(file string) (string, error)
}

// SystemExecutor implements CommandExecutor using os/exec
type SystemExecutor struct{}

// NewSystemExecutor creates a new SystemExecutor
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs a command and returns combined output
func (e *SystemExecutor) Execute(name string, args ...string) ([]byte, error) {
	return e.ExecuteEnv(nil, name, args...)
}

// ExecuteEnv runs a command with additional environment and returns
// combined output
func (e *SystemExecutor) ExecuteEnv(env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.CombinedOutput()
}

// LookPath searches for an executable
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// MockExecutor is a mock implementation for testing
type MockExecutor struct {
	ExecuteFunc  func(call CommandCall) ([]byte, error)
	LookPathFunc func(file string) (string, error)
	Calls        []CommandCall
}

// CommandCall records a command execution for verification
type CommandCall struct {
	Name string
	Args []string
	Env  []string
}

// Execute records the call and delegates to ExecuteFunc
func (m *MockExecutor) Execute(name string, args ...string) ([]byte, error) {
	return m.ExecuteEnv(nil, name, args...)
}

// ExecuteEnv records the call and delegates to ExecuteFunc
func (m *MockExecutor) ExecuteEnv(env []string, name string, args ...string) ([]byte, error) {
	call := CommandCall{Name: name, Args: args, Env: env}
	m.Calls = append(m.Calls, call)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(call)
	}
	return []byte(""), nil
}

// LookPath calls the mock function
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

// Arg returns the value following flag in the recorded call, or "" when
// the flag is absent.
func (c CommandCall) Arg(flag string) string {
	for i, a := range c.Args {
		if a == flag && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
	}
	return ""
}

// HasArg reports whether the recorded call carries arg.
func (c CommandCall) HasArg(arg string) bool {
	for _, a := range c.Args {
		if a == arg {
			return true
		}
	}
	return false
}
