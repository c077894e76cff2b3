package inventory

import (
	"context"
	"fmt"
	"net"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/vishvananda/netlink"
)

// NetlinkSource reads state straight from the kernel over rtnetlink
type NetlinkSource struct {
	handle *netlink.Handle
}

// NewNetlinkSource opens a netlink handle in the current namespace
func NewNetlinkSource() (*NetlinkSource, error) {
	h, err := netlink.NewHandle()
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink handle: %w", err)
	}
	return &NetlinkSource{handle: h}, nil
}

// Links lists non-loopback links with their IPv4 addresses
func (s *NetlinkSource) Links(ctx context.Context) ([]system.LinkBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	links, err := s.handle.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	blocks := make([]system.LinkBlock, 0, len(links))
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 || attrs.Name == "lo" {
			continue
		}

		block := system.LinkBlock{
			Index: attrs.Index,
			Name:  attrs.Name,
		}
		if attrs.Flags&net.FlagUp != 0 {
			block.Flags = append(block.Flags, "UP")
		}
		if len(attrs.HardwareAddr) == 6 {
			block.MAC = attrs.HardwareAddr.String()
		}

		addrs, err := s.handle.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", attrs.Name, err)
		}
		for _, a := range addrs {
			ones, _ := a.IPNet.Mask.Size()
			block.Addrs = append(block.Addrs, types.Address{IP: a.IP, PrefixLen: ones})
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// DefaultRoutes lists IPv4 routes without a destination that have a next hop
func (s *NetlinkSource) DefaultRoutes(ctx context.Context) ([]system.DefaultRoute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	routes, err := s.handle.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	var out []system.DefaultRoute
	for _, r := range routes {
		if !isDefault(r) || r.Gw == nil {
			continue
		}
		link, err := s.handle.LinkByIndex(r.LinkIndex)
		if err != nil {
			continue
		}
		out = append(out, system.DefaultRoute{Gateway: r.Gw, Device: link.Attrs().Name})
	}
	return out, nil
}

func isDefault(r netlink.Route) bool {
	if r.Dst == nil {
		return true
	}
	ones, _ := r.Dst.Mask.Size()
	return ones == 0 && r.Dst.IP.IsUnspecified()
}
