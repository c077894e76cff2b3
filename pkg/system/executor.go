package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/angelfreak/netdiag/pkg/types"
)

// Executor runs external commands and captures their output
type Executor struct {
	logger         types.Logger
	defaultTimeout time.Duration
	lookPath       func(string) (string, error)
}

// NewExecutor creates an executor. A zero defaultTimeout means commands are
// bounded only by the caller's context.
func NewExecutor(logger types.Logger, defaultTimeout time.Duration) *Executor {
	return &Executor{
		logger:         logger,
		defaultTimeout: defaultTimeout,
		lookPath:       exec.LookPath,
	}
}

// HasCommand reports whether cmd is on PATH
func (e *Executor) HasCommand(cmd string) bool {
	_, err := e.lookPath(cmd)
	return err == nil
}

// Run executes cmd with the default timeout
func (e *Executor) Run(ctx context.Context, cmd string, args ...string) *types.CommandResult {
	return e.RunWithTimeout(ctx, e.defaultTimeout, cmd, args...)
}

// RunWithTimeout executes cmd, killing it once timeout elapses. Output is
// forced to the C locale so parsers see untranslated text.
func (e *Executor) RunWithTimeout(ctx context.Context, timeout time.Duration, cmd string, args ...string) *types.CommandResult {
	argv := append([]string{cmd}, args...)
	result := &types.CommandResult{Argv: argv}

	if _, err := e.lookPath(cmd); err != nil {
		result.ExitCode = types.ExitNotFound
		result.Err = fmt.Errorf("command not found: %s", cmd)
		result.Stderr = result.Err.Error()
		e.logger.Debug("Command not found", "command", cmd)
		return result
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd, args...)
	c.Env = append(os.Environ(), "LC_ALL=C")
	// Children that inherit the pipes must not hold Wait open past a kill
	c.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.logger.Debug("Executing command", "argv", strings.Join(argv, " "))
	start := time.Now()
	err := c.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result.ExitCode = -1
		result.Err = fmt.Errorf("command interrupted: %w", ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = fmt.Errorf("failed to run %s: %w", cmd, err)
	}

	e.logger.Debug("Command finished",
		"argv", strings.Join(argv, " "),
		"exit", result.ExitCode,
		"duration", result.Duration.String())
	return result
}
