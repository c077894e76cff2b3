// Package inventory builds a snapshot of the host's non-loopback interfaces.
package inventory

import (
	"context"
	"fmt"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

// Source names accepted by NewSource
const (
	SourceIP      = "ip"
	SourceNetlink = "netlink"
)

// Source supplies raw link and routing state
type Source interface {
	Links(ctx context.Context) ([]system.LinkBlock, error)
	DefaultRoutes(ctx context.Context) ([]system.DefaultRoute, error)
}

// NewSource returns the named source; empty selects the ip CLI
func NewSource(kind string, executor types.SystemExecutor, logger types.Logger) (Source, error) {
	switch kind {
	case "", SourceIP:
		return NewIPSource(executor, logger), nil
	case SourceNetlink:
		src, err := NewNetlinkSource()
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, types.NewError(types.ErrInvalidInput, "unknown inventory source %q", kind).
			WithHint("use %q or %q", SourceIP, SourceNetlink)
	}
}

// Builder implements types.InventoryBuilder
type Builder struct {
	source   Source
	profiles types.ProfileResolver
	logger   types.Logger
	ignored  map[string]bool
}

// NewBuilder creates an inventory builder. profiles may be nil, in which
// case every configuration mode is inferred.
func NewBuilder(source Source, profiles types.ProfileResolver, logger types.Logger, ignored []string) *Builder {
	skip := make(map[string]bool, len(ignored))
	for _, name := range ignored {
		skip[name] = true
	}
	return &Builder{
		source:   source,
		profiles: profiles,
		logger:   logger,
		ignored:  skip,
	}
}

// Build collects a fresh inventory. Only a failure to list links is fatal;
// gateway and configuration-mode lookups degrade to best-effort values.
func (b *Builder) Build(ctx context.Context) (types.Inventory, error) {
	links, err := b.source.Links(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrInventoryFailed, "failed to list interfaces").
			WithHint("make sure the ip utility (iproute2) is installed and runnable")
	}

	inv := make(types.Inventory, len(links))
	for _, link := range links {
		if link.Name == "lo" || b.ignored[link.Name] {
			continue
		}
		if _, dup := inv[link.Name]; dup {
			b.logger.Debug("Duplicate interface in link dump", "interface", link.Name)
			continue
		}
		mac := link.MAC
		if mac != "" && types.ValidateMAC(mac) != nil {
			b.logger.Debug("Dropping malformed hardware address", "interface", link.Name, "mac", mac)
			mac = ""
		}
		inv[link.Name] = types.InterfaceInfo{
			Name:       link.Name,
			Addrs:      link.Addrs,
			MAC:        mac,
			State:      link.State(),
			ConfigMode: types.ModeUnknown,
		}
	}

	routes, err := b.source.DefaultRoutes(ctx)
	if err != nil {
		b.logger.Warn("Failed to read default routes, gateways unknown", "error", err)
	}
	attachGateways(inv, routes)

	for _, name := range inv.Names() {
		info := inv[name]
		info.ConfigMode = b.configMode(ctx, &info)
		inv[name] = info
	}

	b.logger.Debug("Inventory built", "interfaces", len(inv))
	return inv, nil
}

// attachGateways assigns each default route to its device, then lends the
// gateway to UP interfaces whose primary address shares the owner's network.
// Borrowed gateways are marked inferred: two unbridged interfaces with
// overlapping address space will receive a wrong gateway.
func attachGateways(inv types.Inventory, routes []system.DefaultRoute) {
	var owners []string
	for _, r := range routes {
		info, ok := inv[r.Device]
		if !ok || info.Gateway != nil {
			continue
		}
		info.Gateway = r.Gateway
		inv[r.Device] = info
		owners = append(owners, r.Device)
	}

	for _, owner := range owners {
		ownerInfo := inv[owner]
		ownerAddr, ok := ownerInfo.PrimaryAddress()
		if !ok {
			continue
		}
		ownerNet := ownerAddr.Network()

		for _, name := range inv.Names() {
			info := inv[name]
			if name == owner || info.Gateway != nil || info.State != types.LinkUp {
				continue
			}
			addr, ok := info.PrimaryAddress()
			if !ok || !ownerNet.Contains(addr.IP) {
				continue
			}
			info.Gateway = ownerInfo.Gateway
			info.GatewayInferred = true
			inv[name] = info
		}
	}
}

func (b *Builder) configMode(ctx context.Context, info *types.InterfaceInfo) types.ConfigMode {
	if b.profiles != nil && b.profiles.Available() {
		method, err := b.lookupMethod(ctx, info.Name)
		if err == nil && method != types.MethodUnknown {
			return types.ConfigMode{Method: method}
		}
		if err != nil {
			b.logger.Debug("Config mode lookup failed, inferring", "interface", info.Name, "error", err)
		}
	}

	if info.HasAddress() {
		return types.ModeStaticInferred
	}
	return types.ModeDHCPPending
}

func (b *Builder) lookupMethod(ctx context.Context, iface string) (types.ConfigMethod, error) {
	profile, err := b.profiles.ActiveProfile(ctx, iface)
	if err != nil {
		return types.MethodUnknown, err
	}
	method, err := b.profiles.IPv4Method(ctx, profile)
	if err != nil {
		return types.MethodUnknown, fmt.Errorf("failed to read method of %q: %w", profile, err)
	}
	return method, nil
}
