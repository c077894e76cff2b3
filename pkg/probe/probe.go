// Package probe measures reachability with ping and curl.
package probe

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
)

// Prober implements types.Prober by running ping and curl
type Prober struct {
	executor      types.SystemExecutor
	logger        types.Logger
	packetTimeout time.Duration
	curlTimeout   time.Duration
}

// NewProber creates a prober using the timeouts from cfg
func NewProber(executor types.SystemExecutor, logger types.Logger, cfg *types.ProbeConfig) *Prober {
	if cfg == nil {
		cfg = &types.ProbeConfig{}
	}
	return &Prober{
		executor:      executor,
		logger:        logger,
		packetTimeout: cfg.GetPacketTimeout(),
		curlTimeout:   cfg.GetCurlTimeout(),
	}
}

// Ping sends count echo requests. A nonzero exit or an unparsable loss line
// is total loss; a missing RTT summary leaves the host reachable with
// unknown latency.
func (p *Prober) Ping(ctx context.Context, host string, count int) types.ProbeResult {
	if count < 1 {
		count = 1
	}
	wait := seconds(p.packetTimeout)
	budget := time.Duration(count)*(time.Duration(wait)*time.Second+time.Second) + 2*time.Second

	result := p.executor.RunWithTimeout(ctx, budget, "ping", "-c", strconv.Itoa(count), "-W", strconv.Itoa(wait), host)
	if !result.Success() {
		p.logger.Debug("Ping failed", "host", host, "exit", result.ExitCode)
		return types.Unreachable(host)
	}

	stats := system.ParsePing(result.Stdout)
	loss := 100.0
	if stats.LossParsed {
		loss = stats.LossPct
	} else {
		p.logger.Debug("Could not parse packet loss", "host", host)
	}
	latency := math.Inf(1)
	if stats.RTTParsed {
		latency = stats.AvgRTTMs
	} else {
		p.logger.Debug("Could not parse round-trip summary", "host", host)
	}

	probe := types.NewProbeResult(host, loss, latency)
	p.logger.Debug("Ping finished", "host", host, "loss", probe.PacketLossPct, "avg_ms", probe.AvgLatencyMs)
	return probe
}

// Curl issues a HEAD request that follows redirects. It succeeds only when
// curl exits cleanly and a 2xx or 3xx status line was received.
func (p *Prober) Curl(ctx context.Context, url string) (bool, string) {
	secs := seconds(p.curlTimeout)
	result := p.executor.RunWithTimeout(ctx, p.curlTimeout+2*time.Second, "curl", "-sSLI", "-m", strconv.Itoa(secs), url)
	if result.NotFound() {
		return false, "curl is not installed"
	}

	status, ok := system.ParseHTTPStatus(result.Stdout)
	switch {
	case result.Success() && ok:
		return true, fmt.Sprintf("HTTP check succeeded: %s", status)
	case status != "":
		return false, fmt.Sprintf("HTTP check failed: %s", status)
	default:
		return false, fmt.Sprintf("HTTP check failed (exit %d): %s", result.ExitCode, result.Detail())
	}
}

// seconds rounds d up to whole seconds, minimum one
func seconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
