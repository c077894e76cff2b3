package diagnose

import (
	"context"
	"math"
	"net"
	"strings"
	"testing"

	"github.com/angelfreak/netdiag/pkg/system/systemtest"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber answers pings from a table; unknown hosts are unreachable
type scriptedProber struct {
	pings   map[string]types.ProbeResult
	curlOK  bool
	curlMsg string
	pinged  []string
	curled  []string
}

func (p *scriptedProber) Ping(ctx context.Context, host string, count int) types.ProbeResult {
	p.pinged = append(p.pinged, host)
	if r, ok := p.pings[host]; ok {
		return r
	}
	return types.Unreachable(host)
}

func (p *scriptedProber) Curl(ctx context.Context, url string) (bool, string) {
	p.curled = append(p.curled, url)
	return p.curlOK, p.curlMsg
}

type staticDNS []string

func (s staticDNS) Servers(ctx context.Context) []string { return s }

func up(host string, ms float64) types.ProbeResult {
	return types.NewProbeResult(host, 0, ms)
}

func eth0() types.InterfaceInfo {
	addr, _ := types.ParseAddress("192.168.1.50/24")
	return types.InterfaceInfo{
		Name:       "eth0",
		Addrs:      []types.Address{addr},
		MAC:        "52:54:00:ab:cd:ef",
		State:      types.LinkUp,
		Gateway:    net.ParseIP("192.168.1.1"),
		ConfigMode: types.ModeDHCP,
	}
}

func healthyProber() *scriptedProber {
	return &scriptedProber{pings: map[string]types.ProbeResult{
		"192.168.1.1":   up("192.168.1.1", 0.5),
		"223.5.5.5":     up("223.5.5.5", 12),
		"223.6.6.6":     up("223.6.6.6", 15),
		"www.baidu.com": up("www.baidu.com", 30),
	}}
}

func newEngine(p types.Prober, dns types.DNSInspector) *Engine {
	return NewEngine(p, dns, &systemtest.MockLogger{}, nil)
}

func stagesOf(r *types.DiagnosticReport) []types.Stage {
	var out []types.Stage
	for _, f := range r.Findings {
		out = append(out, f.Stage)
	}
	return out
}

func TestScenarioAHealthy(t *testing.T) {
	p := healthyProber()
	r, err := newEngine(p, staticDNS{"223.5.5.5", "223.6.6.6"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	require.Len(t, r.Findings, 4)
	for _, f := range r.Findings {
		assert.Equal(t, types.SeverityOK, f.Severity, f.Message)
	}
	assert.Equal(t, []types.Stage{types.StageLink, types.StageGateway, types.StageDNS, types.StageInternet}, stagesOf(r))
	assert.True(t, r.OverallOK)
	assert.Empty(t, r.Suggestions)
	assert.Equal(t, []string{"223.5.5.5", "223.6.6.6"}, r.DNSServers)
	assert.Empty(t, p.curled)
}

func TestScenarioBNoAddressDHCPPending(t *testing.T) {
	p := healthyProber()
	info := types.InterfaceInfo{Name: "eth1", State: types.LinkUp, ConfigMode: types.ModeDHCPPending}

	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth1", info)
	require.NoError(t, err)

	require.Len(t, r.Findings, 1)
	assert.Equal(t, types.StageLink, r.Findings[0].Stage)
	assert.Equal(t, types.SeverityFail, r.Findings[0].Severity)
	assert.False(t, r.OverallOK)
	require.NotEmpty(t, r.Suggestions)
	joined := strings.Join(r.Suggestions, "\n")
	assert.Contains(t, joined, "DHCP")
	assert.Contains(t, joined, "cable")
	assert.Empty(t, p.pinged)
}

func TestNoAddressSuggestionFollowsConfigMode(t *testing.T) {
	tests := []struct {
		mode types.ConfigMode
		want string
	}{
		{types.ModeDHCP, "DHCP server"},
		{types.ModeStatic, "Static configuration"},
		{types.ModeStaticInferred, "Static configuration"},
		{types.ModeDisabled, "IPv4 is disabled"},
		{types.ModeUnknown, "physical connection"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			info := types.InterfaceInfo{Name: "eth1", State: types.LinkUp, ConfigMode: tt.mode}
			r, err := newEngine(healthyProber(), staticDNS{}).Diagnose(context.Background(), "eth1", info)
			require.NoError(t, err)
			assert.Contains(t, strings.Join(r.Suggestions, "\n"), tt.want)
		})
	}
}

func TestDownInterfaceWithoutAddressSuggestsLinkUp(t *testing.T) {
	info := types.InterfaceInfo{Name: "eth1", State: types.LinkDown, ConfigMode: types.ModeDHCPPending}
	r, err := newEngine(healthyProber(), staticDNS{}).Diagnose(context.Background(), "eth1", info)
	require.NoError(t, err)
	assert.Contains(t, r.Suggestions[0], "ip link set eth1 up")
}

func TestDownInterfaceWithStaleAddressWarns(t *testing.T) {
	info := eth0()
	info.State = types.LinkDown
	r, err := newEngine(healthyProber(), staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", info)
	require.NoError(t, err)
	assert.Equal(t, types.SeverityWarn, r.Findings[0].Severity)
	assert.Len(t, r.Findings, 4)
}

func TestScenarioCDNSUnreachable(t *testing.T) {
	p := healthyProber()
	r, err := newEngine(p, staticDNS{"10.0.0.53"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	require.Len(t, r.Findings, 3)
	dns := r.Findings[2]
	assert.Equal(t, types.StageDNS, dns.Stage)
	assert.Equal(t, types.SeverityFail, dns.Severity)
	assert.Contains(t, dns.Message, "10.0.0.53")
	assert.NotContains(t, stagesOf(r), types.StageInternet)
	assert.Contains(t, strings.Join(r.Suggestions, "\n"), "223.5.5.5 and 223.6.6.6")
	assert.False(t, r.OverallOK)
	assert.True(t, r.HasDNSIssue())
	assert.NotContains(t, p.pinged, "www.baidu.com")
}

func TestOneDeadDNSServerFailsStage(t *testing.T) {
	p := healthyProber()
	r, err := newEngine(p, staticDNS{"223.5.5.5", "10.0.0.53"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	stage, failed := r.FailedStage()
	assert.True(t, failed)
	assert.Equal(t, types.StageDNS, stage)
	// both servers were probed independently
	assert.Contains(t, p.pinged, "223.5.5.5")
	assert.Contains(t, p.pinged, "10.0.0.53")
}

func TestNoDNSServers(t *testing.T) {
	r, err := newEngine(healthyProber(), staticDNS{}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	last := r.Findings[len(r.Findings)-1]
	assert.Equal(t, types.StageDNS, last.Stage)
	assert.Equal(t, types.SeverityFail, last.Severity)
	assert.Contains(t, strings.Join(r.Suggestions, "\n"), "223.5.5.5")
}

func TestSlowDNSOnlyWarns(t *testing.T) {
	p := healthyProber()
	p.pings["10.0.0.53"] = up("10.0.0.53", 180)

	r, err := newEngine(p, staticDNS{"10.0.0.53"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	assert.Equal(t, []types.Severity{types.SeverityOK, types.SeverityOK, types.SeverityWarn, types.SeverityOK}, r.Severities())
	assert.True(t, r.OverallOK)
	assert.True(t, r.HasDNSIssue())
}

func TestDNSUnknownLatencyIsNotSlow(t *testing.T) {
	p := healthyProber()
	p.pings["10.0.0.53"] = types.NewProbeResult("10.0.0.53", 0, math.Inf(1))

	r, err := newEngine(p, staticDNS{"10.0.0.53"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)
	assert.Equal(t, types.SeverityOK, r.Findings[2].Severity)
	assert.Contains(t, r.Findings[2].Message, "latency unknown")
}

func TestLatencyThresholdFromConfig(t *testing.T) {
	p := healthyProber()
	cfg := &types.Config{DNS: types.DNSConfig{LatencyThresholdMs: 10}}
	e := NewEngine(p, staticDNS{"223.5.5.5"}, &systemtest.MockLogger{}, cfg)

	r, err := e.Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)
	assert.Equal(t, types.SeverityWarn, r.Findings[2].Severity)
}

func TestGatewayUnreachable(t *testing.T) {
	p := healthyProber()
	delete(p.pings, "192.168.1.1")

	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	gateways := 0
	for _, f := range r.Findings {
		if f.Stage == types.StageGateway {
			gateways++
			assert.Equal(t, types.SeverityFail, f.Severity)
		}
		assert.NotEqual(t, types.StageDNS, f.Stage)
		assert.NotEqual(t, types.StageInternet, f.Stage)
	}
	assert.Equal(t, 1, gateways)
	assert.Contains(t, strings.Join(r.Suggestions, "\n"), "cable")
	assert.Equal(t, []string{"192.168.1.1"}, p.pinged)
}

func TestNoGatewaySuggestsCandidates(t *testing.T) {
	info := eth0()
	info.Gateway = nil
	p := healthyProber()

	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", info)
	require.NoError(t, err)

	require.Len(t, r.Findings, 2)
	assert.Equal(t, types.SeverityWarn, r.Findings[1].Severity)
	assert.False(t, r.OverallOK)
	require.Len(t, r.Suggestions, 1)
	assert.Contains(t, r.Suggestions[0], "192.168.1.1 or 192.168.1.254")
	assert.Empty(t, p.pinged)
}

func TestInferredGatewayIsLabelled(t *testing.T) {
	info := eth0()
	info.GatewayInferred = true
	r, err := newEngine(healthyProber(), staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", info)
	require.NoError(t, err)
	assert.Contains(t, r.Findings[1].Message, "inferred")
}

func TestGatewayCandidates(t *testing.T) {
	tests := []struct {
		cidr string
		want []string
	}{
		{"192.168.1.50/24", []string{"192.168.1.1", "192.168.1.254"}},
		{"10.1.2.3/8", []string{"10.0.0.1", "10.255.255.254"}},
		{"172.16.0.5/30", []string{"172.16.0.5", "172.16.0.6"}},
		{"172.16.0.1/31", nil},
		{"172.16.0.1/32", nil},
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			addr, err := types.ParseAddress(tt.cidr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gatewayCandidates(addr))
		})
	}
}

func TestInternetFallsBackToHTTP(t *testing.T) {
	p := healthyProber()
	delete(p.pings, "www.baidu.com")
	p.curlOK = true
	p.curlMsg = "HTTP check succeeded: HTTP/1.1 200 OK"

	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	last := r.Findings[len(r.Findings)-1]
	assert.Equal(t, types.StageInternet, last.Stage)
	assert.Equal(t, types.SeverityOK, last.Severity)
	assert.Contains(t, last.Message, "ICMP may be filtered")
	assert.True(t, r.OverallOK)
	assert.Equal(t, []string{"http://www.baidu.com"}, p.curled)
}

func TestInternetDown(t *testing.T) {
	p := healthyProber()
	delete(p.pings, "www.baidu.com")
	p.curlMsg = "HTTP check failed (exit 6): curl: (6) Could not resolve host"

	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)

	stage, failed := r.FailedStage()
	assert.True(t, failed)
	assert.Equal(t, types.StageInternet, stage)
	assert.False(t, r.OverallOK)
	assert.Contains(t, strings.Join(r.Suggestions, "\n"), "ISP")
}

func TestCustomTargetFromConfig(t *testing.T) {
	p := healthyProber()
	p.pings["example.org"] = up("example.org", 40)
	cfg := &types.Config{Probe: types.ProbeConfig{Target: "example.org", URL: "https://example.org"}}

	r, err := NewEngine(p, staticDNS{"223.5.5.5"}, &systemtest.MockLogger{}, cfg).Diagnose(context.Background(), "eth0", eth0())
	require.NoError(t, err)
	assert.True(t, r.OverallOK)
	assert.Contains(t, p.pinged, "example.org")
	assert.NotContains(t, p.pinged, "www.baidu.com")
}

func TestDiagnoseIsStableUnderStableConditions(t *testing.T) {
	scenarios := map[string]staticDNS{
		"healthy": {"223.5.5.5", "223.6.6.6"},
		"dns":     {"10.0.0.53"},
		"none":    {},
	}
	for name, dns := range scenarios {
		t.Run(name, func(t *testing.T) {
			e := newEngine(healthyProber(), dns)
			first, err := e.Diagnose(context.Background(), "eth0", eth0())
			require.NoError(t, err)
			second, err := e.Diagnose(context.Background(), "eth0", eth0())
			require.NoError(t, err)
			assert.Equal(t, first.Severities(), second.Severities())
			assert.Equal(t, first.OverallOK, second.OverallOK)
		})
	}
}

func TestDiagnoseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := healthyProber()
	r, err := newEngine(p, staticDNS{"223.5.5.5"}).Diagnose(ctx, "eth0", eth0())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, r)
	assert.Empty(t, r.Findings)
	assert.Empty(t, p.pinged)
}
