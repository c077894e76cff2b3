package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
	probing "github.com/prometheus-community/pro-bing"
)

// Conflict detection backends
const (
	BackendExec = "exec"
	BackendICMP = "icmp"
)

// conflictTimeout bounds the single echo used for conflict detection
const conflictTimeout = time.Second

// NewConflictDetector returns the detector for backend; empty selects exec
func NewConflictDetector(backend string, executor types.SystemExecutor, logger types.Logger, cfg *types.ProbeConfig) (types.ConflictDetector, error) {
	switch backend {
	case "", BackendExec:
		return NewExecDetector(executor, logger), nil
	case BackendICMP:
		privileged := cfg != nil && cfg.Privileged
		return NewICMPDetector(logger, conflictTimeout, privileged), nil
	default:
		return nil, types.NewError(types.ErrInvalidInput, "unknown conflict backend %q", backend).
			WithHint("use %q or %q", BackendExec, BackendICMP)
	}
}

// ExecDetector sends one echo request with the ping CLI
type ExecDetector struct {
	executor types.SystemExecutor
	logger   types.Logger
}

// NewExecDetector creates a ping-based conflict detector
func NewExecDetector(executor types.SystemExecutor, logger types.Logger) *ExecDetector {
	return &ExecDetector{
		executor: executor,
		logger:   logger,
	}
}

// InUse reports whether ip answered a single echo request
func (d *ExecDetector) InUse(ctx context.Context, ip string) (bool, error) {
	if err := types.ValidateIPv4(ip); err != nil {
		return false, types.WrapError(err, types.ErrInvalidInput, "cannot probe %q", ip)
	}

	result := d.executor.RunWithTimeout(ctx, conflictTimeout+2*time.Second, "ping", "-c", "1", "-W", "1", ip)
	if result.NotFound() {
		return false, types.NewError(types.ErrToolUnavailable, "ping is not installed").
			WithHint("install iputils-ping or set probe.conflict_backend to %q", BackendICMP)
	}
	if result.Err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", ip, result.Err)
	}
	if !result.Success() {
		return false, nil
	}

	stats := system.ParsePing(result.Stdout)
	inUse := !stats.LossParsed || stats.LossPct < 100
	d.logger.Debug("Conflict probe", "ip", ip, "in_use", inUse)
	return inUse, nil
}

// ICMPDetector sends one echo request in-process with pro-bing
type ICMPDetector struct {
	logger     types.Logger
	timeout    time.Duration
	privileged bool
}

// NewICMPDetector creates a pro-bing conflict detector. Unprivileged mode
// uses UDP ping sockets and needs net.ipv4.ping_group_range to include the
// caller's group.
func NewICMPDetector(logger types.Logger, timeout time.Duration, privileged bool) *ICMPDetector {
	return &ICMPDetector{
		logger:     logger,
		timeout:    timeout,
		privileged: privileged,
	}
}

// InUse reports whether ip answered a single echo request
func (d *ICMPDetector) InUse(ctx context.Context, ip string) (bool, error) {
	if err := types.ValidateIPv4(ip); err != nil {
		return false, types.WrapError(err, types.ErrInvalidInput, "cannot probe %q", ip)
	}

	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false, fmt.Errorf("failed to create pinger for %s: %w", ip, err)
	}
	pinger.Count = 1
	pinger.Timeout = d.timeout
	pinger.SetPrivileged(d.privileged)

	pinger.OnRecv = func(pkt *probing.Packet) {
		d.logger.Debug("Conflict probe answered",
			"ip", pkt.IPAddr,
			"seq", pkt.Seq,
			"rtt", pkt.Rtt.String(),
			"ttl", pkt.TTL)
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("pinger execution failed for %s: %w", ip, err)
	}

	stats := pinger.Statistics()
	d.logger.Debug("Conflict probe statistics",
		"ip", ip,
		"sent", stats.PacketsSent,
		"received", stats.PacketsRecv)
	return stats.PacketsRecv > 0, nil
}
