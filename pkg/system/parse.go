package system

import (
	"bytes"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/angelfreak/netdiag/pkg/types"
)

// Parsers for external tool output. Each returns a typed result and reports
// whether anything usable was found; none of them fail on unexpected text.

var (
	linkHeaderRegex = regexp.MustCompile(`^(\d+):\s+(\S+):\s+<([^>]*)>`)
	etherRegex      = regexp.MustCompile(`link/ether\s+(([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2})`)
	inetRegex       = regexp.MustCompile(`inet\s+(\d+\.\d+\.\d+\.\d+/\d{1,2})`)
	defaultRouteRe  = regexp.MustCompile(`default via (\d+\.\d+\.\d+\.\d+) dev (\S+)`)
	ipv4TokenRegex  = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
	nameserverRegex = regexp.MustCompile(`(?m)^\s*nameserver\s+(\S+)`)
	lossRegex       = regexp.MustCompile(`(\d+(?:\.\d+)?)% packet loss`)
	rttRegex        = regexp.MustCompile(`(?:rtt|round-trip) min/avg/max(?:/(?:mdev|stddev))? = [\d.]+/([\d.]+)/`)
	httpStatusRegex = regexp.MustCompile(`(?m)^HTTP/\d(?:\.\d)? (\d{3})[^\r\n]*`)
)

// LinkBlock is one interface section of `ip addr show`
type LinkBlock struct {
	Index int
	Name  string
	Flags []string
	MAC   string
	Addrs []types.Address
}

// State derives the administrative state from the flag list
func (b LinkBlock) State() types.LinkState {
	for _, f := range b.Flags {
		if f == "UP" {
			return types.LinkUp
		}
	}
	return types.LinkDown
}

// ParseIPAddr splits `ip addr show` output into per-interface blocks,
// skipping loopback. The second return value counts non-blank lines that
// appeared outside any interface context.
func ParseIPAddr(output string) ([]LinkBlock, int) {
	var blocks []LinkBlock
	var current *LinkBlock
	inLoopback := false
	orphans := 0
	seen := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		if m := linkHeaderRegex.FindStringSubmatch(line); m != nil {
			current = nil
			inLoopback = false
			name := m[2]
			// VLAN and veth names carry their parent after '@'
			if at := strings.Index(name, "@"); at > 0 {
				name = name[:at]
			}
			if name == "lo" {
				inLoopback = true
				continue
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			idx, _ := strconv.Atoi(m[1])
			blocks = append(blocks, LinkBlock{
				Index: idx,
				Name:  name,
				Flags: strings.Split(m[3], ","),
			})
			current = &blocks[len(blocks)-1]
			continue
		}

		if current == nil {
			if !inLoopback && strings.TrimSpace(line) != "" {
				orphans++
			}
			continue
		}

		if m := etherRegex.FindStringSubmatch(line); m != nil {
			current.MAC = strings.ToLower(m[1])
			continue
		}
		if m := inetRegex.FindStringSubmatch(line); m != nil {
			if addr, err := types.ParseAddress(m[1]); err == nil {
				current.Addrs = append(current.Addrs, addr)
			}
		}
	}
	return blocks, orphans
}

// DefaultRoute is one `default via GW dev DEV` entry
type DefaultRoute struct {
	Gateway net.IP
	Device  string
}

// ParseDefaultRoutes extracts every default route from `ip route show default`
func ParseDefaultRoutes(output string) []DefaultRoute {
	var routes []DefaultRoute
	for _, line := range strings.Split(output, "\n") {
		m := defaultRouteRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		gw := net.ParseIP(m[1])
		if gw == nil {
			continue
		}
		routes = append(routes, DefaultRoute{Gateway: gw, Device: m[2]})
	}
	return routes
}

// ParseResolvectlDNS extracts resolver addresses from `resolvectl dns`.
// Servers in the Global scope win over link-scoped ones.
func ParseResolvectlDNS(output string) []string {
	if idx := strings.Index(output, "Global:"); idx >= 0 {
		global := output[idx+len("Global:"):]
		if end := strings.Index(global, "Link "); end >= 0 {
			global = global[:end]
		}
		if servers := uniqueIPv4(ipv4TokenRegex.FindAllString(global, -1)); len(servers) > 0 {
			return servers
		}
	}
	return uniqueIPv4(ipv4TokenRegex.FindAllString(output, -1))
}

// ParseResolvConf extracts nameserver directives in file order
func ParseResolvConf(content string) []string {
	var servers []string
	for _, m := range nameserverRegex.FindAllStringSubmatch(content, -1) {
		servers = append(servers, m[1])
	}
	return servers
}

// uniqueIPv4 dedupes valid IPv4 tokens and sorts them numerically
func uniqueIPv4(tokens []string) []string {
	seen := make(map[string]bool)
	var ips []net.IP
	for _, tok := range tokens {
		ip := net.ParseIP(tok).To4()
		if ip == nil || seen[ip.String()] {
			continue
		}
		seen[ip.String()] = true
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool { return bytes.Compare(ips[i], ips[j]) < 0 })

	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}

// PingStats is the summary parsed from ping output
type PingStats struct {
	LossPct    float64
	LossParsed bool
	AvgRTTMs   float64
	RTTParsed  bool
}

// ParsePing extracts packet loss and average round-trip time. Both summary
// styles are accepted:
//
//	rtt min/avg/max/mdev = 1.1/2.2/3.3/0.4 ms   (iputils)
//	round-trip min/avg/max = 1.1/2.2/3.3 ms     (busybox, BSD)
func ParsePing(output string) PingStats {
	var stats PingStats
	if m := lossRegex.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.LossPct = v
			stats.LossParsed = true
		}
	}
	if m := rttRegex.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			stats.AvgRTTMs = v
			stats.RTTParsed = true
		}
	}
	return stats
}

// ParseHTTPStatus scans curl -I output. It returns the first status line and
// whether any response in the redirect chain was 2xx or 3xx.
func ParseHTTPStatus(output string) (string, bool) {
	matches := httpStatusRegex.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if m[1][0] == '2' || m[1][0] == '3' {
			return strings.TrimSpace(matches[0][0]), true
		}
	}
	return strings.TrimSpace(matches[0][0]), false
}

// ParseNmcliProfile reads `nmcli -g GENERAL.CONNECTION device show IFACE`
func ParseNmcliProfile(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || name == "--" {
			continue
		}
		return name, true
	}
	return "", false
}

// ParseNmcliField returns the value of a field from `nmcli -t connection show`
func ParseNmcliField(output, field string) (string, bool) {
	prefix := field + ":"
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

// ParseIPv4Method maps an ipv4.method value to a ConfigMethod
func ParseIPv4Method(value string) types.ConfigMethod {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "auto":
		return types.MethodDHCP
	case "manual":
		return types.MethodStatic
	case "disabled":
		return types.MethodDisabled
	default:
		return types.MethodUnknown
	}
}
