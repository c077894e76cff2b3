// Package systemtest provides strict in-memory doubles for the system
// executor and logger.
package systemtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelfreak/netdiag/pkg/types"
)

// MockExecutor answers commands from a table keyed by the full command
// string. In strict mode an unknown command exits 1 and is recorded.
type MockExecutor struct {
	mu         sync.Mutex
	responses  map[string]types.CommandResult
	installed  map[string]bool
	strict     bool
	executed   []string
	unexpected []string
}

// NewStrictMockExecutor creates a mock that fails on unexpected commands
func NewStrictMockExecutor() *MockExecutor {
	return &MockExecutor{
		responses: make(map[string]types.CommandResult),
		installed: make(map[string]bool),
		strict:    true,
	}
}

// NewMockExecutor creates a mock where unknown commands succeed silently
func NewMockExecutor() *MockExecutor {
	m := NewStrictMockExecutor()
	m.strict = false
	return m
}

// On registers a successful response
func (m *MockExecutor) On(cmd, stdout string) *MockExecutor {
	return m.OnExit(cmd, 0, stdout, "")
}

// OnExit registers a response with an explicit exit code
func (m *MockExecutor) OnExit(cmd string, exitCode int, stdout, stderr string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = types.CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	return m
}

// Install marks binaries as present for HasCommand
func (m *MockExecutor) Install(names ...string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		m.installed[n] = true
	}
	return m
}

func (m *MockExecutor) Run(ctx context.Context, cmd string, args ...string) *types.CommandResult {
	return m.RunWithTimeout(ctx, 0, cmd, args...)
}

func (m *MockExecutor) RunWithTimeout(ctx context.Context, timeout time.Duration, cmd string, args ...string) *types.CommandResult {
	argv := append([]string{cmd}, args...)
	full := strings.Join(argv, " ")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, full)

	if err := ctx.Err(); err != nil {
		return &types.CommandResult{Argv: argv, ExitCode: -1, Err: err}
	}
	if resp, ok := m.responses[full]; ok {
		resp.Argv = argv
		return &resp
	}
	if m.strict {
		m.unexpected = append(m.unexpected, full)
		return &types.CommandResult{Argv: argv, ExitCode: 1, Stderr: fmt.Sprintf("unexpected command: %s", full)}
	}
	return &types.CommandResult{Argv: argv}
}

func (m *MockExecutor) HasCommand(cmd string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed[cmd]
}

// Executed returns every command run so far, in order
func (m *MockExecutor) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.executed...)
}

// AssertExecuted verifies a command was run
func (m *MockExecutor) AssertExecuted(t *testing.T, cmd string) {
	t.Helper()
	for _, executed := range m.Executed() {
		if executed == cmd {
			return
		}
	}
	t.Errorf("expected command %q to be executed, but it wasn't. Executed: %v", cmd, m.Executed())
}

// AssertNotExecuted verifies a command was never run
func (m *MockExecutor) AssertNotExecuted(t *testing.T, cmd string) {
	t.Helper()
	for _, executed := range m.Executed() {
		if executed == cmd {
			t.Errorf("command %q should not have been executed", cmd)
			return
		}
	}
}

// AssertNoneMatching verifies no executed command starts with prefix
func (m *MockExecutor) AssertNoneMatching(t *testing.T, prefix string) {
	t.Helper()
	for _, executed := range m.Executed() {
		if strings.HasPrefix(executed, prefix) {
			t.Errorf("unexpected command with prefix %q: %q", prefix, executed)
		}
	}
}

// AssertNoUnexpected fails if a strict mock saw an unregistered command
func (m *MockExecutor) AssertNoUnexpected(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.unexpected) > 0 {
		t.Errorf("unexpected commands executed: %v", m.unexpected)
	}
}

// MockLogger records messages by level
type MockLogger struct {
	mu     sync.Mutex
	Debugs []string
	Infos  []string
	Warns  []string
	Errors []string
}

func (l *MockLogger) Debug(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *MockLogger) Info(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *MockLogger) Warn(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *MockLogger) Error(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}
