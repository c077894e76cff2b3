package remediation

import (
	"fmt"
	"io"
	"strings"

	"github.com/angelfreak/netdiag/pkg/types"
)

// RenderPlan writes the commands of plan, one per line
func RenderPlan(w io.Writer, plan *types.RemediationPlan) {
	target := plan.Interface
	if plan.Profile != "" {
		target = fmt.Sprintf("%s (profile %q)", plan.Interface, plan.Profile)
	}
	fmt.Fprintf(w, "Plan %s for %s:\n", plan.Kind, target)
	for i, cmd := range plan.Commands {
		fmt.Fprintf(w, "  %d. %s\n", i+1, cmd)
	}
}

// Render writes a per-step summary of an execution followed by advice
func Render(w io.Writer, report *types.ExecutionReport) {
	unreliable := false
	for _, step := range report.Steps {
		switch {
		case step.Skipped:
			fmt.Fprintf(w, "[SKIPPED] %s\n", step.Command)
		case step.Success():
			fmt.Fprintf(w, "[OK] %s\n", step.Command)
		default:
			fmt.Fprintf(w, "[FAILED exit %d] %s\n", step.ExitCode, step.Command)
			if msg := strings.TrimSpace(step.Stderr); msg != "" {
				fmt.Fprintf(w, "    %s\n", msg)
			}
		}
		if step.Unreliable && !step.Skipped {
			unreliable = true
		}
	}

	if unreliable {
		fmt.Fprintln(w, "Note: commands after the first failure ran against a partially applied configuration; their results may not be reliable.")
	}
	if report.OverallSuccess {
		fmt.Fprintln(w, "✓ All commands succeeded. Run the diagnosis again to confirm the fix.")
		return
	}
	fmt.Fprintln(w, "✗ Remediation did not complete. Check the output above and make sure you have the required privileges.")
}
