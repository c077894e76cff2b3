package inventory

import (
	"context"
	"fmt"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

// IPSource reads state from the iproute2 CLI
type IPSource struct {
	executor types.SystemExecutor
	logger   types.Logger
}

// NewIPSource creates a source backed by `ip`
func NewIPSource(executor types.SystemExecutor, logger types.Logger) *IPSource {
	return &IPSource{
		executor: executor,
		logger:   logger,
	}
}

// Links parses `ip addr show`
func (s *IPSource) Links(ctx context.Context) ([]system.LinkBlock, error) {
	result := s.executor.Run(ctx, "ip", "addr", "show")
	if !result.Success() {
		return nil, fmt.Errorf("failed to run ip addr show: %s", result.Detail())
	}

	blocks, orphans := system.ParseIPAddr(result.Stdout)
	if orphans > 0 {
		s.logger.Debug("Ignored lines outside any interface block", "lines", orphans)
	}
	return blocks, nil
}

// DefaultRoutes parses `ip route show default`
func (s *IPSource) DefaultRoutes(ctx context.Context) ([]system.DefaultRoute, error) {
	result := s.executor.Run(ctx, "ip", "route", "show", "default")
	if !result.Success() {
		return nil, fmt.Errorf("failed to run ip route show default: %s", result.Detail())
	}
	return system.ParseDefaultRoutes(result.Stdout), nil
}
