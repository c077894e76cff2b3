package remediation

import (
	"context"
	"strings"
	"time"

	"github.com/angelfreak/netdiag/pkg/types"
)

// FailurePolicy decides what happens after a command fails
type FailurePolicy int

const (
	// ContinueOnFailure runs every command and flags the ones after a
	// failure as unreliable
	ContinueOnFailure FailurePolicy = iota
	// StopOnFailure skips everything after the first failure
	StopOnFailure
)

func (p FailurePolicy) String() string {
	if p == StopOnFailure {
		return "stop"
	}
	return "continue"
}

// ParsePolicy maps a config value to a policy; empty means continue
func ParsePolicy(value string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "continue":
		return ContinueOnFailure, nil
	case "stop":
		return StopOnFailure, nil
	default:
		return ContinueOnFailure, types.NewError(types.ErrInvalidInput, "unknown failure policy %q", value).
			WithHint("use \"continue\" or \"stop\"")
	}
}

// Executor runs remediation plans in order
type Executor struct {
	executor types.SystemExecutor
	logger   types.Logger
	policy   FailurePolicy
	timeout  time.Duration
}

// NewExecutor creates a plan executor
func NewExecutor(executor types.SystemExecutor, logger types.Logger, policy FailurePolicy, timeout time.Duration) *Executor {
	return &Executor{
		executor: executor,
		logger:   logger,
		policy:   policy,
		timeout:  timeout,
	}
}

// Execute runs each command of plan in order and records one step per
// command. A cancelled ctx skips the remaining commands.
func (e *Executor) Execute(ctx context.Context, plan *types.RemediationPlan) *types.ExecutionReport {
	report := &types.ExecutionReport{Plan: *plan}
	failed := false
	stopped := false

	for _, cmd := range plan.Commands {
		step := types.StepResult{Command: cmd.String()}

		if stopped || ctx.Err() != nil || len(cmd) == 0 {
			step.Skipped = true
			step.ExitCode = -1
			report.Steps = append(report.Steps, step)
			continue
		}

		e.logger.Info("Running remediation command", "command", step.Command)
		result := e.executor.RunWithTimeout(ctx, e.timeout, cmd[0], cmd[1:]...)
		step.ExitCode = result.ExitCode
		step.Stdout = result.Stdout
		step.Stderr = result.Stderr
		if result.Err != nil && step.Stderr == "" {
			step.Stderr = result.Err.Error()
		}
		step.Unreliable = failed

		if !result.Success() {
			if step.ExitCode == 0 {
				step.ExitCode = -1
			}
			e.logger.Warn("Remediation command failed", "command", step.Command, "exit_code", step.ExitCode, "stderr", step.Stderr)
			failed = true
			if e.policy == StopOnFailure {
				stopped = true
			}
		}
		report.Steps = append(report.Steps, step)
	}

	report.OverallSuccess = true
	for _, s := range report.Steps {
		if !s.Success() {
			report.OverallSuccess = false
			break
		}
	}
	return report
}
