// Package remediation plans and runs privileged configuration fixes.
package remediation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelfreak/netdiag/pkg/types"
)

// Generator turns a diagnosed problem into an ordered command plan. It
// never executes anything except read-only lookups and the conflict probe.
type Generator struct {
	executor    types.SystemExecutor
	profiles    types.ProfileResolver
	conflicts   types.ConflictDetector
	logger      types.Logger
	elevate     []string
	recommended []string
}

// NewGenerator creates a generator. Commands are prefixed with cfg.Elevate
// ("sudo" by default, "none" for no prefix).
func NewGenerator(executor types.SystemExecutor, profiles types.ProfileResolver, conflicts types.ConflictDetector, logger types.Logger, cfg *types.Config) *Generator {
	if cfg == nil {
		cfg = &types.Config{}
	}
	return &Generator{
		executor:    executor,
		profiles:    profiles,
		conflicts:   conflicts,
		logger:      logger,
		elevate:     elevatePrefix(cfg.Remediation.Elevate),
		recommended: cfg.DNS.GetRecommended(),
	}
}

func elevatePrefix(value string) []string {
	switch strings.TrimSpace(value) {
	case "":
		return []string{"sudo"}
	case "none":
		return nil
	default:
		return strings.Fields(value)
	}
}

func (g *Generator) cmd(args ...string) types.Command {
	c := make(types.Command, 0, len(g.elevate)+len(args))
	c = append(c, g.elevate...)
	return append(c, args...)
}

func (g *Generator) nmcli(args ...string) types.Command {
	return g.cmd(append([]string{"nmcli", "con"}, args...)...)
}

// SetDNS plans a resolver override. systemd-resolved is preferred; otherwise
// the interface's NetworkManager profile is edited and re-activated. With
// neither available no plan is produced: raw resolver files are never
// edited. An empty servers list selects the recommended resolvers.
func (g *Generator) SetDNS(ctx context.Context, iface string, servers []string) (*types.RemediationPlan, error) {
	if err := types.ValidateInterfaceName(iface); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidInput, "invalid interface")
	}
	if len(servers) == 0 {
		servers = g.recommended
	}
	for _, s := range servers {
		if err := types.ValidateIPv4(s); err != nil {
			return nil, types.WrapError(err, types.ErrInvalidInput, "invalid DNS server")
		}
	}

	plan := &types.RemediationPlan{Kind: types.KindSetDNS, Interface: iface}

	if g.executor.HasCommand("resolvectl") {
		plan.Commands = []types.Command{
			g.cmd(append([]string{"resolvectl", "dns", iface}, servers...)...),
		}
		g.logger.Debug("Planned DNS change via resolvectl", "interface", iface, "servers", servers)
		return plan, nil
	}

	if g.profiles == nil || !g.profiles.Available() {
		return nil, types.NewError(types.ErrToolUnavailable, "neither resolvectl nor nmcli is available").
			WithHint("edit /etc/resolv.conf manually and add: %s", nameserverLines(servers))
	}

	profile, err := g.profiles.ActiveProfile(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to plan DNS change for %s: %w", iface, err)
	}
	plan.Profile = profile
	plan.Commands = []types.Command{
		g.nmcli("mod", profile, "ipv4.dns", strings.Join(servers, " ")),
		g.nmcli("mod", profile, "ipv4.ignore-auto-dns", "yes"),
		g.nmcli("down", profile),
		g.nmcli("up", profile),
	}
	g.logger.Debug("Planned DNS change via nmcli", "interface", iface, "profile", profile)
	return plan, nil
}

func nameserverLines(servers []string) string {
	lines := make([]string, len(servers))
	for i, s := range servers {
		lines[i] = "nameserver " + s
	}
	return strings.Join(lines, "; ")
}

// SetDHCP plans a switch of the interface's profile back to DHCP
func (g *Generator) SetDHCP(ctx context.Context, iface string) (*types.RemediationPlan, error) {
	if err := types.ValidateInterfaceName(iface); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidInput, "invalid interface")
	}
	profile, err := g.resolveProfile(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to plan DHCP for %s: %w", iface, err)
	}

	return &types.RemediationPlan{
		Kind:      types.KindSetDHCP,
		Interface: iface,
		Profile:   profile,
		Commands: []types.Command{
			g.nmcli("mod", profile, "ipv4.method", "auto"),
			g.nmcli("mod", profile, "ipv4.dns", "", "ipv4.ignore-auto-dns", "no"),
			g.nmcli("mod", profile, "ipv6.method", "auto"),
			g.nmcli("down", profile),
			g.nmcli("up", profile),
		},
	}, nil
}

// SetStaticIP plans a static address. The candidate address is probed
// first and the plan is refused if anything answers.
func (g *Generator) SetStaticIP(ctx context.Context, iface string, req types.StaticIPRequest) (*types.RemediationPlan, error) {
	if err := types.ValidateInterfaceName(iface); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidInput, "invalid interface")
	}
	if err := req.Validate(); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidInput, "invalid static address request")
	}

	if err := g.checkConflict(ctx, req.Address); err != nil {
		return nil, err
	}

	profile, err := g.resolveProfile(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to plan static address for %s: %w", iface, err)
	}

	cidr := req.Address + "/" + strconv.Itoa(req.Prefix)
	commands := []types.Command{
		g.nmcli("mod", profile, "ipv4.method", "manual", "ipv4.addresses", cidr),
		g.nmcli("mod", profile, "ipv4.gateway", req.Gateway),
	}
	if len(req.DNS) > 0 {
		commands = append(commands, g.nmcli("mod", profile, "ipv4.dns", strings.Join(req.DNS, " "), "ipv4.ignore-auto-dns", "yes"))
	} else {
		commands = append(commands, g.nmcli("mod", profile, "ipv4.dns", "", "ipv4.ignore-auto-dns", "no"))
	}
	commands = append(commands, g.nmcli("down", profile), g.nmcli("up", profile))

	return &types.RemediationPlan{
		Kind:      types.KindSetStaticIP,
		Interface: iface,
		Profile:   profile,
		Commands:  commands,
	}, nil
}

// checkConflict refuses an address that answers an echo request. A probe
// that cannot run is logged and treated as no conflict.
func (g *Generator) checkConflict(ctx context.Context, addr string) error {
	if g.conflicts == nil {
		g.logger.Warn("No conflict detector configured, skipping duplicate address check", "address", addr)
		return nil
	}
	inUse, err := g.conflicts.InUse(ctx, addr)
	if err != nil {
		if types.IsCode(err, types.ErrInvalidInput) {
			return err
		}
		g.logger.Warn("Conflict check failed, assuming address is free", "address", addr, "error", err)
		return nil
	}
	if inUse {
		return types.NewError(types.ErrConflictDetected, "%s is already in use on the network", addr).
			WithHint("pick a different address; another host answered a ping for %s", addr)
	}
	return nil
}

func (g *Generator) resolveProfile(ctx context.Context, iface string) (string, error) {
	if g.profiles == nil || !g.profiles.Available() {
		return "", types.NewError(types.ErrToolUnavailable, "nmcli is not available").
			WithHint("install NetworkManager, or configure %s by hand", iface)
	}
	return g.profiles.ActiveProfile(ctx, iface)
}
