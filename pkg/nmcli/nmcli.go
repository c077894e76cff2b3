// Package nmcli resolves NetworkManager connection profiles for interfaces.
package nmcli

import (
	"context"
	"strings"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

// Client implements types.ProfileResolver on top of the nmcli CLI
type Client struct {
	executor types.SystemExecutor
	logger   types.Logger
}

// NewClient creates a new nmcli client
func NewClient(executor types.SystemExecutor, logger types.Logger) *Client {
	return &Client{
		executor: executor,
		logger:   logger,
	}
}

// Available reports whether nmcli is installed
func (c *Client) Available() bool {
	return c.executor.HasCommand("nmcli")
}

// ActiveProfile returns the name of the connection currently bound to iface
func (c *Client) ActiveProfile(ctx context.Context, iface string) (string, error) {
	result := c.executor.Run(ctx, "nmcli", "-g", "GENERAL.CONNECTION", "device", "show", iface)
	if result.NotFound() {
		return "", types.NewError(types.ErrToolUnavailable, "nmcli is not installed").
			WithHint("install NetworkManager or configure %s manually", iface)
	}
	if !result.Success() {
		c.logger.Debug("nmcli device show failed", "interface", iface, "exit", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		return "", types.NewError(types.ErrProfileUnresolved, "could not query NetworkManager for %s: %s", iface, result.Detail()).
			WithHint("make sure %s is managed by NetworkManager (nmcli device status)", iface)
	}

	profile, ok := system.ParseNmcliProfile(result.Stdout)
	if !ok {
		return "", types.NewError(types.ErrProfileUnresolved, "no active connection profile for %s", iface).
			WithHint("activate a connection on %s first (nmcli device connect %s)", iface, iface)
	}
	c.logger.Debug("Resolved connection profile", "interface", iface, "profile", profile)
	return profile, nil
}

// IPv4Method reads ipv4.method from a connection profile
func (c *Client) IPv4Method(ctx context.Context, profile string) (types.ConfigMethod, error) {
	result := c.executor.Run(ctx, "nmcli", "-t", "connection", "show", profile)
	if result.NotFound() {
		return types.MethodUnknown, types.NewError(types.ErrToolUnavailable, "nmcli is not installed")
	}
	if !result.Success() {
		return types.MethodUnknown, types.NewError(types.ErrProfileUnresolved, "could not read profile %q: %s", profile, result.Detail())
	}

	value, ok := system.ParseNmcliField(result.Stdout, "ipv4.method")
	if !ok {
		return types.MethodUnknown, types.NewError(types.ErrParseAmbiguous, "profile %q has no ipv4.method field", profile)
	}
	method := system.ParseIPv4Method(value)
	if method == types.MethodUnknown {
		c.logger.Debug("Unrecognised ipv4.method", "profile", profile, "value", value)
	}
	return method, nil
}
