package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/angelfreak/netdiag/pkg/netdiag"
	"github.com/angelfreak/netdiag/pkg/remediation"
	"github.com/angelfreak/netdiag/pkg/types"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output
const (
	OutputText = "text"
	OutputYAML = "yaml"
)

// errReported marks a failure whose details were already written to the user
var errReported = errors.New("reported")

// Service is the core surface the CLI drives
type Service interface {
	ListInterfaces(ctx context.Context) (types.Inventory, error)
	SelectInterface(ctx context.Context, name string) (netdiag.Selection, error)
	Diagnose(ctx context.Context, name string) (*types.DiagnosticReport, error)
	Plan(ctx context.Context, kind types.RemediationKind, params netdiag.PlanParams) (*types.RemediationPlan, error)
	Execute(ctx context.Context, plan *types.RemediationPlan) *types.ExecutionReport
}

// App encapsulates all dependencies for testable CLI operations.
// Each command maps to one Run method.
type App struct {
	Logger  types.Logger // Structured logging
	Service Service      // Diagnosis and remediation core

	// Runtime configuration
	Interface string // Interface from --iface; empty means auto-select
	Output    string // "text" or "yaml"
	AssumeYes bool   // Skip the confirmation prompt before fixing
	Debug     bool   // Enable debug output

	// Streams for testability
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	stdin *bufio.Reader
}

// printf writes formatted output to stdout
func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.Stdout, format, args...)
}

// progress prints a progress message only in text mode without debug logs
func (a *App) progress(format string, args ...interface{}) {
	if !a.Debug && !a.yaml() {
		fmt.Fprintf(a.Stdout, format, args...)
	}
}

// println writes a line to stdout
func (a *App) println(args ...interface{}) {
	fmt.Fprintln(a.Stdout, args...)
}

// errorf writes formatted output to stderr
func (a *App) errorf(format string, args ...interface{}) {
	fmt.Fprintf(a.Stderr, format, args...)
}

func (a *App) yaml() bool {
	return a.Output == OutputYAML
}

// fail prints err with its hint and returns errReported
func (a *App) fail(err error) error {
	a.Logger.Debug("Command failed", "error", err)
	a.errorf("Error: %v\n", err)
	if hint := types.HintOf(err); hint != "" {
		a.errorf("Hint: %s\n", hint)
	}
	return errReported
}

func (a *App) writeYAML(v interface{}) error {
	enc := yaml.NewEncoder(a.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

func (a *App) readLine() (string, error) {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(a.Stdin)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// RunList prints every non-loopback interface with its addresses,
// gateway and configuration mode
func (a *App) RunList(ctx context.Context) error {
	inv, err := a.Service.ListInterfaces(ctx)
	if err != nil {
		return a.fail(err)
	}

	if a.yaml() {
		infos := make([]types.InterfaceInfo, 0, len(inv))
		for _, name := range inv.Names() {
			infos = append(infos, inv[name])
		}
		return a.writeYAML(infos)
	}

	if len(inv) == 0 {
		a.println("No interfaces found")
		return nil
	}
	for _, name := range inv.Names() {
		a.printInterface(inv[name])
		a.println()
	}
	return nil
}

func (a *App) printInterface(info types.InterfaceInfo) {
	a.printf("Interface: %s\n", info.Name)
	a.printf("  State:     %s\n", info.State)
	if info.MAC != "" {
		a.printf("  MAC:       %s\n", info.MAC)
	}
	if len(info.Addrs) == 0 {
		a.printf("  Addresses: none\n")
	}
	for i, addr := range info.Addrs {
		label := "  Addresses:"
		if i > 0 {
			label = "            "
		}
		a.printf("%s %s\n", label, addr)
	}
	if info.Gateway != nil {
		suffix := ""
		if info.GatewayInferred {
			suffix = " (inferred)"
		}
		a.printf("  Gateway:   %s%s\n", info.Gateway, suffix)
	}
	a.printf("  Config:    %s\n", info.ConfigMode)
}

// resolveInterface picks the interface for a command. An explicit name wins;
// otherwise the single addressed interface is used, or the user is asked to
// choose among the candidates.
func (a *App) resolveInterface(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = a.Interface
	}
	sel, err := a.Service.SelectInterface(ctx, name)
	if err != nil {
		return "", err
	}
	if sel.Name != "" {
		return sel.Name, nil
	}
	if len(sel.Candidates) == 0 {
		return "", types.NewError(types.ErrInvalidInput, "no network interfaces found")
	}
	if a.AssumeYes || a.yaml() {
		return "", types.NewError(types.ErrInvalidInput, "several interfaces are available: %s", strings.Join(sel.Candidates, ", ")).
			WithHint("choose one with --iface")
	}

	a.println("Several interfaces are available:")
	for i, c := range sel.Candidates {
		a.printf("  %d) %s\n", i+1, c)
	}
	a.printf("Select interface [1-%d]: ", len(sel.Candidates))
	answer, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(sel.Candidates) {
		return sel.Candidates[n-1], nil
	}
	for _, c := range sel.Candidates {
		if c == answer {
			return c, nil
		}
	}
	return "", types.NewError(types.ErrInvalidInput, "invalid selection %q", answer)
}

// RunDiagnose diagnoses one interface and prints the findings, suggestions
// and the fixes that apply. A report that is not OK returns errReported.
func (a *App) RunDiagnose(ctx context.Context, name string) error {
	iface, err := a.resolveInterface(ctx, name)
	if err != nil {
		return a.fail(err)
	}

	a.progress("Diagnosing %s...\n", iface)
	report, err := a.Service.Diagnose(ctx, iface)
	if report == nil {
		return a.fail(err)
	}

	if a.yaml() {
		if werr := a.writeYAML(report); werr != nil {
			return a.fail(werr)
		}
	} else {
		a.printReport(report)
	}

	if err != nil {
		return a.fail(err)
	}
	if !report.OverallOK {
		return errReported
	}
	return nil
}

func (a *App) printReport(r *types.DiagnosticReport) {
	a.println()
	a.printInterface(r.Interface)
	if len(r.DNSServers) > 0 {
		a.printf("  DNS:       %s\n", strings.Join(r.DNSServers, ", "))
	}
	a.println()

	for _, f := range r.Findings {
		a.printf("[%-4s] %-8s %s\n", f.Severity, f.Stage, f.Message)
	}

	if len(r.Suggestions) > 0 {
		a.println()
		a.println("Suggestions:")
		for _, s := range r.Suggestions {
			a.printf("  • %s\n", s)
		}
	}

	fixes := availableFixes(r)
	if len(fixes) > 0 {
		a.println()
		a.println("Available fixes:")
		for _, f := range fixes {
			a.printf("  netdiag fix %s %s\n", f, r.Interface.Name)
		}
	}

	a.println()
	if r.OverallOK {
		a.println("✓ Network connectivity looks healthy")
	} else {
		a.println("✗ Problems found")
	}
}

// availableFixes lists the fix subcommands worth offering for r
func availableFixes(r *types.DiagnosticReport) []string {
	var fixes []string
	if r.HasDNSIssue() {
		fixes = append(fixes, "dns")
	}
	if stage, failed := r.FailedStage(); failed && (stage == types.StageLink || stage == types.StageGateway) {
		if r.Interface.ConfigMode != types.ModeDHCP {
			fixes = append(fixes, "dhcp")
		}
	}
	return fixes
}

// RunPlan prints the remediation plan for kind without running it
func (a *App) RunPlan(ctx context.Context, kind types.RemediationKind, name string, params netdiag.PlanParams) error {
	plan, err := a.plan(ctx, kind, name, params)
	if err != nil {
		return a.fail(err)
	}
	if a.yaml() {
		return a.writeYAML(plan)
	}
	remediation.RenderPlan(a.Stdout, plan)
	return nil
}

func (a *App) plan(ctx context.Context, kind types.RemediationKind, name string, params netdiag.PlanParams) (*types.RemediationPlan, error) {
	iface, err := a.resolveInterface(ctx, name)
	if err != nil {
		return nil, err
	}
	params.Interface = iface
	return a.Service.Plan(ctx, kind, params)
}

// RunFix plans kind, asks for confirmation unless AssumeYes, executes the
// plan and prints every step
func (a *App) RunFix(ctx context.Context, kind types.RemediationKind, name string, params netdiag.PlanParams) error {
	plan, err := a.plan(ctx, kind, name, params)
	if err != nil {
		return a.fail(err)
	}
	if len(plan.Commands) == 0 {
		a.println("Nothing to do")
		return nil
	}

	if !a.yaml() {
		remediation.RenderPlan(a.Stdout, plan)
	}
	if !a.AssumeYes {
		a.printf("Apply these %d commands? [y/N]: ", len(plan.Commands))
		answer, err := a.readLine()
		if err != nil || !isYes(answer) {
			a.println("Aborted")
			return nil
		}
	}

	report := a.Service.Execute(ctx, plan)
	if a.yaml() {
		if err := a.writeYAML(report); err != nil {
			return a.fail(err)
		}
	} else {
		remediation.Render(a.Stdout, report)
	}
	if !report.OverallSuccess {
		return errReported
	}
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// ParseStaticArgs builds a static address request from CLI values.
// address must be in CIDR form.
func ParseStaticArgs(address, gateway string, dns []string) (types.StaticIPRequest, error) {
	if address == "" {
		return types.StaticIPRequest{}, types.NewError(types.ErrInvalidInput, "--address is required").
			WithHint("pass the address in CIDR form, e.g. --address 192.168.1.50/24")
	}
	addr, err := types.ParseAddress(address)
	if err != nil {
		return types.StaticIPRequest{}, types.WrapError(err, types.ErrInvalidInput, "invalid address %q", address).
			WithHint("pass the address in CIDR form, e.g. --address 192.168.1.50/24")
	}
	return types.StaticIPRequest{
		Address: addr.IP.String(),
		Prefix:  addr.PrefixLen,
		Gateway: gateway,
		DNS:     dns,
	}, nil
}
