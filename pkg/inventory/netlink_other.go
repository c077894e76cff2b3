//go:build !linux

package inventory

import (
	"context"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

var errNetlinkUnsupported = types.NewError(types.ErrToolUnavailable, "netlink inventory source is only available on Linux").
	WithHint("set inventory.source to %q", SourceIP)

// NetlinkSource is unavailable on this platform
type NetlinkSource struct{}

// NewNetlinkSource always fails off Linux
func NewNetlinkSource() (*NetlinkSource, error) {
	return nil, errNetlinkUnsupported
}

func (s *NetlinkSource) Links(ctx context.Context) ([]system.LinkBlock, error) {
	return nil, errNetlinkUnsupported
}

func (s *NetlinkSource) DefaultRoutes(ctx context.Context) ([]system.DefaultRoute, error) {
	return nil, errNetlinkUnsupported
}
