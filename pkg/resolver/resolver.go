// Package resolver discovers the DNS servers the host is currently using.
package resolver

import (
	"context"
	"strings"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

// Inspector implements types.DNSInspector
type Inspector struct {
	executor   types.SystemExecutor
	logger     types.Logger
	resolvConf string
}

// NewInspector creates an inspector that falls back to resolvConf when
// systemd-resolved cannot be queried
func NewInspector(executor types.SystemExecutor, logger types.Logger, resolvConf string) *Inspector {
	if resolvConf == "" {
		resolvConf = "/etc/resolv.conf"
	}
	return &Inspector{
		executor:   executor,
		logger:     logger,
		resolvConf: resolvConf,
	}
}

// Servers returns the configured resolvers, or an empty slice when none can
// be found. It never fails.
func (i *Inspector) Servers(ctx context.Context) []string {
	result := i.executor.Run(ctx, "resolvectl", "dns")
	switch {
	case result.Success() && strings.TrimSpace(result.Stdout) != "":
		if servers := system.ParseResolvectlDNS(result.Stdout); len(servers) > 0 {
			i.logger.Debug("DNS servers from resolvectl", "servers", servers)
			return servers
		}
		i.logger.Debug("resolvectl listed no IPv4 servers, falling back", "file", i.resolvConf)
	case result.NotFound():
		i.logger.Debug("resolvectl not installed, falling back", "file", i.resolvConf)
	case !result.Success():
		i.logger.Warn("resolvectl dns failed", "exit", result.ExitCode, "error", result.Detail())
	}

	return i.fromResolvConf(ctx)
}

func (i *Inspector) fromResolvConf(ctx context.Context) []string {
	result := i.executor.Run(ctx, "cat", i.resolvConf)
	if !result.Success() {
		i.logger.Warn("Failed to read resolver config", "file", i.resolvConf, "error", result.Detail())
		return []string{}
	}

	servers := system.ParseResolvConf(result.Stdout)
	if servers == nil {
		return []string{}
	}
	i.logger.Debug("DNS servers from resolver config", "file", i.resolvConf, "servers", servers)
	return servers
}
