// Package netdiag is the in-process entry point for presentation layers:
// list interfaces, diagnose one, plan a fix and execute it.
package netdiag

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelfreak/netdiag/pkg/diagnose"
	"github.com/angelfreak/netdiag/pkg/inventory"
	"github.com/angelfreak/netdiag/pkg/nmcli"
	"github.com/angelfreak/netdiag/pkg/probe"
	"github.com/angelfreak/netdiag/pkg/remediation"
	"github.com/angelfreak/netdiag/pkg/resolver"
	"github.com/angelfreak/netdiag/pkg/types"
)

// PlanParams carries the kind-specific inputs of a remediation request
type PlanParams struct {
	Interface string
	DNS       []string              // SET_DNS servers; empty selects the recommended pair
	Static    types.StaticIPRequest // SET_STATIC_IP only
}

// Selection is the outcome of interface auto-selection. Name is set when a
// single interface was chosen; otherwise Candidates lists what to offer.
type Selection struct {
	Name       string
	Candidates []string
}

// Service wires the inventory, diagnosis and remediation components
type Service struct {
	logger    types.Logger
	inventory types.InventoryBuilder
	engine    *diagnose.Engine
	generator *remediation.Generator
	executor  *remediation.Executor
}

// NewService builds every component from cfg on top of executor
func NewService(cfg *types.Config, executor types.SystemExecutor, logger types.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &types.Config{}
	}

	profiles := nmcli.NewClient(executor, logger)

	source, err := inventory.NewSource(cfg.Inventory.Source, executor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory source: %w", err)
	}
	conflicts, err := probe.NewConflictDetector(cfg.Probe.ConflictBackend, executor, logger, &cfg.Probe)
	if err != nil {
		return nil, fmt.Errorf("failed to create conflict detector: %w", err)
	}
	policy, err := remediation.ParsePolicy(cfg.Remediation.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse remediation policy: %w", err)
	}

	prober := probe.NewProber(executor, logger, &cfg.Probe)
	dns := resolver.NewInspector(executor, logger, cfg.DNS.GetResolvConf())

	return &Service{
		logger:    logger,
		inventory: inventory.NewBuilder(source, profiles, logger, cfg.Ignored.Interfaces),
		engine:    diagnose.NewEngine(prober, dns, logger, cfg),
		generator: remediation.NewGenerator(executor, profiles, conflicts, logger, cfg),
		executor:  remediation.NewExecutor(executor, logger, policy, cfg.Remediation.GetCommandTimeout()),
	}, nil
}

// ListInterfaces returns the current non-loopback interfaces
func (s *Service) ListInterfaces(ctx context.Context) (types.Inventory, error) {
	return s.inventory.Build(ctx)
}

// SelectInterface resolves which interface to diagnose. A non-empty name
// must exist. With no name, the only interface holding an address is
// chosen; otherwise the candidates are those with an address, or every
// interface when none has one.
func (s *Service) SelectInterface(ctx context.Context, name string) (Selection, error) {
	inv, err := s.inventory.Build(ctx)
	if err != nil {
		return Selection{}, err
	}

	if name != "" {
		if _, ok := inv[name]; !ok {
			return Selection{}, unknownInterface(name, inv)
		}
		return Selection{Name: name}, nil
	}

	var addressed []string
	for _, n := range inv.Names() {
		info := inv[n]
		if info.HasAddress() {
			addressed = append(addressed, n)
		}
	}
	switch len(addressed) {
	case 1:
		s.logger.Debug("Auto-selected interface", "interface", addressed[0])
		return Selection{Name: addressed[0]}, nil
	case 0:
		return Selection{Candidates: inv.Names()}, nil
	default:
		return Selection{Candidates: addressed}, nil
	}
}

func unknownInterface(name string, inv types.Inventory) error {
	return types.NewError(types.ErrInvalidInput, "interface %q not found", name).
		WithHint("available interfaces: %s", strings.Join(inv.Names(), ", "))
}

// Diagnose collects fresh interface state and runs every stage for name.
// Inventory failures abort; probe failures become findings.
func (s *Service) Diagnose(ctx context.Context, name string) (*types.DiagnosticReport, error) {
	inv, err := s.inventory.Build(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := inv[name]
	if !ok {
		return nil, unknownInterface(name, inv)
	}
	return s.engine.Diagnose(ctx, name, info)
}

// Plan produces the remediation plan for kind without executing it
func (s *Service) Plan(ctx context.Context, kind types.RemediationKind, params PlanParams) (*types.RemediationPlan, error) {
	switch kind {
	case types.KindSetDNS:
		return s.generator.SetDNS(ctx, params.Interface, params.DNS)
	case types.KindSetDHCP:
		return s.generator.SetDHCP(ctx, params.Interface)
	case types.KindSetStaticIP:
		return s.generator.SetStaticIP(ctx, params.Interface, params.Static)
	default:
		return nil, types.NewError(types.ErrInvalidInput, "unknown remediation kind %q", kind).
			WithHint("use %s, %s or %s", types.KindSetDNS, types.KindSetDHCP, types.KindSetStaticIP)
	}
}

// Execute runs plan and reports every step
func (s *Service) Execute(ctx context.Context, plan *types.RemediationPlan) *types.ExecutionReport {
	s.logger.Info("Executing remediation plan", "kind", plan.Kind, "interface", plan.Interface, "commands", len(plan.Commands))
	return s.executor.Execute(ctx, plan)
}
