// Package diagnose localises a connectivity fault one layer at a time:
// link, gateway, DNS, then internet. Every stage adds exactly one finding and
// a FAIL ends the run.
package diagnose

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/angelfreak/netdiag/pkg/types"
)

// Engine runs the staged diagnosis
type Engine struct {
	prober      types.Prober
	dns         types.DNSInspector
	logger      types.Logger
	target      string
	url         string
	count       int
	threshold   float64
	recommended []string
}

// NewEngine creates a diagnostic engine. cfg may be nil for defaults.
func NewEngine(prober types.Prober, dns types.DNSInspector, logger types.Logger, cfg *types.Config) *Engine {
	if cfg == nil {
		cfg = &types.Config{}
	}
	e := &Engine{
		prober:      prober,
		dns:         dns,
		logger:      logger,
		target:      cfg.Probe.Target,
		url:         cfg.Probe.URL,
		count:       cfg.Probe.GetCount(),
		threshold:   cfg.DNS.GetLatencyThreshold(),
		recommended: cfg.DNS.GetRecommended(),
	}
	if e.target == "" {
		e.target = types.DefaultProbeTarget
	}
	if e.url == "" {
		e.url = types.DefaultProbeURL
	}
	return e
}

type stage func(context.Context, *types.DiagnosticReport) bool

// Diagnose runs every stage for one interface. The error is non-nil only
// when ctx is cancelled, in which case the partial report is returned.
func (e *Engine) Diagnose(ctx context.Context, name string, info types.InterfaceInfo) (*types.DiagnosticReport, error) {
	if info.Name == "" {
		info.Name = name
	}
	report := &types.DiagnosticReport{Interface: info}
	e.logger.Info("Diagnosing interface", "interface", name)

	for _, run := range []stage{e.checkLink, e.checkGateway, e.checkDNS, e.checkInternet} {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("diagnosis of %s interrupted: %w", name, err)
		}
		if !run(ctx, report) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("diagnosis of %s interrupted: %w", name, err)
	}
	e.logger.Debug("Diagnosis finished", "interface", name, "ok", report.OverallOK)
	return report, nil
}

func (e *Engine) checkLink(ctx context.Context, r *types.DiagnosticReport) bool {
	info := r.Interface
	if !info.HasAddress() {
		r.Add(types.StageLink, types.SeverityFail, "%s has no IPv4 address (state %s, configuration %s)", info.Name, info.State, info.ConfigMode)
		if info.State == types.LinkDown {
			r.Suggest("%s is down: bring it up with 'ip link set %s up' or reconnect the cable", info.Name, info.Name)
		}
		r.Suggest("%s", noAddressHint(info))
		return false
	}

	addrs := make([]string, 0, len(info.Addrs))
	for _, a := range info.Addrs {
		addrs = append(addrs, a.String())
	}
	if info.State == types.LinkDown {
		r.Add(types.StageLink, types.SeverityWarn, "%s is down; addresses %s may be stale", info.Name, strings.Join(addrs, ", "))
		return true
	}
	r.Add(types.StageLink, types.SeverityOK, "%s is up with %s (configuration %s)", info.Name, strings.Join(addrs, ", "), info.ConfigMode)
	return true
}

func noAddressHint(info types.InterfaceInfo) string {
	switch info.ConfigMode.Method {
	case types.MethodDHCP:
		return "No DHCP lease: check the cable or wireless association, make sure a DHCP server is running on this network, and check whether the router filters this MAC address"
	case types.MethodStatic:
		return "Static configuration is not applied: check the address, prefix and gateway in the connection profile"
	case types.MethodDisabled:
		return "IPv4 is disabled on this connection: switch it to DHCP or assign a static address"
	default:
		return "Check the physical connection and the interface configuration"
	}
}

func (e *Engine) checkGateway(ctx context.Context, r *types.DiagnosticReport) bool {
	info := r.Interface
	if info.Gateway == nil {
		r.Add(types.StageGateway, types.SeverityWarn, "no default gateway known for %s", info.Name)
		primary, _ := info.PrimaryAddress()
		if candidates := gatewayCandidates(primary); len(candidates) > 0 {
			r.Suggest("Configure a gateway; likely candidates on %s are %s", primary.Network(), strings.Join(candidates, " or "))
		} else {
			r.Suggest("Configure a default gateway for %s", info.Name)
		}
		return false
	}

	gw := info.Gateway.String()
	res := e.prober.Ping(ctx, gw, e.count)
	origin := ""
	if info.GatewayInferred {
		origin = " (inferred from a same-subnet interface)"
	}
	if !res.Reachable {
		r.Add(types.StageGateway, types.SeverityFail, "gateway %s%s is unreachable (%.0f%% loss)", gw, origin, res.PacketLossPct)
		r.Suggest("Check the cable or wireless link to the router at %s and whether a firewall drops ICMP", gw)
		return false
	}
	r.Add(types.StageGateway, types.SeverityOK, "gateway %s%s reachable, %s", gw, origin, describe(res))
	return true
}

// gatewayCandidates returns the first and last usable host of addr's network
func gatewayCandidates(addr types.Address) []string {
	ip := addr.IP.To4()
	if ip == nil || addr.PrefixLen >= 31 || addr.PrefixLen < 1 {
		return nil
	}
	network := addr.Network()
	base := binary.BigEndian.Uint32(network.IP.To4())
	size := uint32(1) << uint(32-addr.PrefixLen)

	first := uint32ToIP(base + 1)
	last := uint32ToIP(base + size - 2)
	if first.Equal(last) {
		return []string{first.String()}
	}
	return []string{first.String(), last.String()}
}

func uint32ToIP(n uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, n)
	return ip
}

func (e *Engine) checkDNS(ctx context.Context, r *types.DiagnosticReport) bool {
	servers := e.dns.Servers(ctx)
	r.DNSServers = servers
	if len(servers) == 0 {
		r.Add(types.StageDNS, types.SeverityFail, "no DNS servers configured")
		r.Suggest("Set DNS servers to %s", strings.Join(e.recommended, " and "))
		return false
	}

	var dead, slow, fine []string
	for _, server := range servers {
		res := e.prober.Ping(ctx, server, e.count)
		switch {
		case !res.Reachable:
			dead = append(dead, server)
		case res.LatencyKnown() && res.AvgLatencyMs > e.threshold:
			slow = append(slow, fmt.Sprintf("%s (%.1f ms)", server, res.AvgLatencyMs))
		default:
			fine = append(fine, fmt.Sprintf("%s (%s)", server, latency(res)))
		}
	}

	switch {
	case len(dead) > 0:
		r.Add(types.StageDNS, types.SeverityFail, "DNS servers unreachable: %s", strings.Join(dead, ", "))
		r.Suggest("Switch DNS to %s", strings.Join(e.recommended, " and "))
		return false
	case len(slow) > 0:
		r.Add(types.StageDNS, types.SeverityWarn, "DNS servers slower than %.0f ms: %s", e.threshold, strings.Join(slow, ", "))
		r.Suggest("Consider switching DNS to %s for faster lookups", strings.Join(e.recommended, " and "))
		return true
	default:
		r.Add(types.StageDNS, types.SeverityOK, "DNS servers reachable: %s", strings.Join(fine, ", "))
		return true
	}
}

func (e *Engine) checkInternet(ctx context.Context, r *types.DiagnosticReport) bool {
	res := e.prober.Ping(ctx, e.target, e.count)
	if res.Reachable {
		r.Add(types.StageInternet, types.SeverityOK, "%s reachable, %s", e.target, describe(res))
		r.OverallOK = true
		return true
	}

	ok, msg := e.prober.Curl(ctx, e.url)
	if ok {
		r.Add(types.StageInternet, types.SeverityOK, "%s does not answer ping but %s responds (%s); ICMP may be filtered", e.target, e.url, msg)
		r.OverallOK = true
		return true
	}
	r.Add(types.StageInternet, types.SeverityFail, "%s unreachable by ping and HTTP: %s", e.target, msg)
	r.Suggest("The local network looks healthy; check the upstream link, modem or ISP")
	return false
}

func describe(res types.ProbeResult) string {
	return fmt.Sprintf("avg %s, %.0f%% loss", latency(res), res.PacketLossPct)
}

func latency(res types.ProbeResult) string {
	if !res.LatencyKnown() {
		return "latency unknown"
	}
	return fmt.Sprintf("%.1f ms", res.AvgLatencyMs)
}
