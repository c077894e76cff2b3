package types

import (
	"context"
	"fmt"
	"math"
	"net"
	"sort"
	"strings"
	"time"
)

// Recommended public resolvers offered whenever the DNS stage fails
const (
	PrimaryDNS   = "223.5.5.5"
	SecondaryDNS = "223.6.6.6"
)

// Defaults for the internet reachability stage
const (
	DefaultProbeTarget = "www.baidu.com"
	DefaultProbeURL    = "http://www.baidu.com"
)

// Config represents the main configuration structure
type Config struct {
	Probe       ProbeConfig       `yaml:"probe" mapstructure:"probe"`
	DNS         DNSConfig         `yaml:"dns" mapstructure:"dns"`
	Inventory   InventoryConfig   `yaml:"inventory" mapstructure:"inventory"`
	Ignored     IgnoredConfig     `yaml:"ignored" mapstructure:"ignored"`
	Remediation RemediationConfig `yaml:"remediation" mapstructure:"remediation"`
}

// ProbeConfig controls ping/curl probing
type ProbeConfig struct {
	Target          string `yaml:"target" mapstructure:"target"`                     // Host pinged by the internet stage
	URL             string `yaml:"url" mapstructure:"url"`                           // URL checked when ICMP fails
	Count           int    `yaml:"count" mapstructure:"count"`                       // Echo requests per probe (default: 3)
	PacketTimeout   int    `yaml:"packet_timeout" mapstructure:"packet_timeout"`     // Per-packet wait in seconds (default: 1s)
	CurlTimeout     int    `yaml:"curl_timeout" mapstructure:"curl_timeout"`         // HTTP check budget in seconds (default: 5s)
	ConflictBackend string `yaml:"conflict_backend" mapstructure:"conflict_backend"` // "exec" or "icmp"
	Privileged      bool   `yaml:"privileged" mapstructure:"privileged"`             // Raw sockets for the icmp backend
}

// GetCount returns the echo count with default fallback
func (p *ProbeConfig) GetCount() int {
	if p.Count > 0 {
		return p.Count
	}
	return 3
}

// GetPacketTimeout returns the per-packet timeout with default fallback
func (p *ProbeConfig) GetPacketTimeout() time.Duration {
	if p.PacketTimeout > 0 {
		return time.Duration(p.PacketTimeout) * time.Second
	}
	return 1 * time.Second
}

// GetCurlTimeout returns the HTTP check timeout with default fallback
func (p *ProbeConfig) GetCurlTimeout() time.Duration {
	if p.CurlTimeout > 0 {
		return time.Duration(p.CurlTimeout) * time.Second
	}
	return 5 * time.Second
}

// DNSConfig holds resolver inspection and recommendation settings
type DNSConfig struct {
	Recommended        []string `yaml:"recommended" mapstructure:"recommended"`
	LatencyThresholdMs float64  `yaml:"latency_threshold_ms" mapstructure:"latency_threshold_ms"`
	ResolvConf         string   `yaml:"resolv_conf" mapstructure:"resolv_conf"`
}

// GetRecommended returns the recommended resolver pair with default fallback
func (d *DNSConfig) GetRecommended() []string {
	if len(d.Recommended) > 0 {
		return d.Recommended
	}
	return []string{PrimaryDNS, SecondaryDNS}
}

// GetLatencyThreshold returns the slow-resolver threshold in milliseconds
func (d *DNSConfig) GetLatencyThreshold() float64 {
	if d.LatencyThresholdMs > 0 {
		return d.LatencyThresholdMs
	}
	return 50
}

// GetResolvConf returns the static resolver file path
func (d *DNSConfig) GetResolvConf() string {
	if d.ResolvConf != "" {
		return d.ResolvConf
	}
	return "/etc/resolv.conf"
}

// InventoryConfig selects how interface state is collected
type InventoryConfig struct {
	Source string `yaml:"source" mapstructure:"source"` // "ip" or "netlink"
}

// IgnoredConfig contains interfaces to ignore
type IgnoredConfig struct {
	Interfaces []string `yaml:"interfaces" mapstructure:"interfaces"`
}

// RemediationConfig controls how fixes are emitted and run
type RemediationConfig struct {
	Elevate        string `yaml:"elevate" mapstructure:"elevate"`                 // Privilege prefix, e.g. "sudo"
	Policy         string `yaml:"policy" mapstructure:"policy"`                   // "continue" or "stop"
	CommandTimeout int    `yaml:"command_timeout" mapstructure:"command_timeout"` // Seconds per command (default: 30s)
}

// GetCommandTimeout returns command timeout with default fallback
func (r *RemediationConfig) GetCommandTimeout() time.Duration {
	if r.CommandTimeout > 0 {
		return time.Duration(r.CommandTimeout) * time.Second
	}
	return 30 * time.Second
}

// LinkState is the administrative state of an interface
type LinkState string

const (
	LinkUp   LinkState = "UP"
	LinkDown LinkState = "DOWN"
)

// ConfigMethod is how an interface obtains its IPv4 configuration
type ConfigMethod string

const (
	MethodDHCP     ConfigMethod = "DHCP"
	MethodStatic   ConfigMethod = "STATIC"
	MethodDisabled ConfigMethod = "DISABLED"
	MethodUnknown  ConfigMethod = "UNKNOWN"
)

// ConfigMode tags a method as confirmed by the connection manager or inferred
// from the presence of an address.
type ConfigMode struct {
	Method   ConfigMethod `yaml:"method"`
	Inferred bool         `yaml:"inferred"`
}

var (
	ModeDHCP           = ConfigMode{Method: MethodDHCP}
	ModeDHCPPending    = ConfigMode{Method: MethodDHCP, Inferred: true}
	ModeStatic         = ConfigMode{Method: MethodStatic}
	ModeStaticInferred = ConfigMode{Method: MethodStatic, Inferred: true}
	ModeDisabled       = ConfigMode{Method: MethodDisabled}
	ModeUnknown        = ConfigMode{Method: MethodUnknown}
)

func (m ConfigMode) String() string {
	switch {
	case m.Method == MethodDHCP && m.Inferred:
		return "DHCP (pending, inferred)"
	case m.Method == MethodDHCP:
		return "DHCP"
	case m.Method == MethodStatic && m.Inferred:
		return "static/manual (inferred)"
	case m.Method == MethodStatic:
		return "static"
	case m.Method == MethodDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Address is an IPv4 address with its prefix length
type Address struct {
	IP        net.IP `yaml:"ip"`
	PrefixLen int    `yaml:"prefix"`
}

// ParseAddress parses "a.b.c.d/nn"
func ParseAddress(cidr string) (Address, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Address{}, err
	}
	ones, _ := ipnet.Mask.Size()
	return Address{IP: ip, PrefixLen: ones}, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.IP, a.PrefixLen)
}

// Network returns the network the address belongs to
func (a Address) Network() *net.IPNet {
	bits := 32
	ip := a.IP.To4()
	if ip == nil {
		bits = 128
		ip = a.IP
	}
	mask := net.CIDRMask(a.PrefixLen, bits)
	return &net.IPNet{IP: ip.Mask(mask), Mask: mask}
}

// InterfaceInfo describes one non-loopback interface. Rebuilt on every run.
type InterfaceInfo struct {
	Name            string     `yaml:"name"`
	Addrs           []Address  `yaml:"addresses"`
	MAC             string     `yaml:"mac,omitempty"`
	State           LinkState  `yaml:"state"`
	Gateway         net.IP     `yaml:"gateway,omitempty"`
	GatewayInferred bool       `yaml:"gateway_inferred,omitempty"` // Assigned by the same-subnet heuristic
	ConfigMode      ConfigMode `yaml:"config_mode"`
}

// HasAddress reports whether the interface carries at least one IPv4 address
func (i *InterfaceInfo) HasAddress() bool {
	return len(i.Addrs) > 0
}

// PrimaryAddress returns the first address
func (i *InterfaceInfo) PrimaryAddress() (Address, bool) {
	if len(i.Addrs) == 0 {
		return Address{}, false
	}
	return i.Addrs[0], true
}

// Inventory maps interface name to its info
type Inventory map[string]InterfaceInfo

// Names returns interface names in sorted order
func (inv Inventory) Names() []string {
	names := make([]string, 0, len(inv))
	for name := range inv {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProbeResult is the outcome of one ping probe
type ProbeResult struct {
	Target        string  `yaml:"target"`
	Reachable     bool    `yaml:"reachable"`
	AvgLatencyMs  float64 `yaml:"avg_latency_ms"`
	PacketLossPct float64 `yaml:"packet_loss_pct"`
}

// NewProbeResult derives reachability from packet loss so the two never disagree
func NewProbeResult(target string, lossPct, latencyMs float64) ProbeResult {
	if lossPct < 0 {
		lossPct = 0
	}
	if lossPct > 100 {
		lossPct = 100
	}
	if lossPct >= 100 {
		latencyMs = math.Inf(1)
	}
	return ProbeResult{
		Target:        target,
		Reachable:     lossPct < 100,
		AvgLatencyMs:  latencyMs,
		PacketLossPct: lossPct,
	}
}

// Unreachable returns a probe result with total loss
func Unreachable(target string) ProbeResult {
	return NewProbeResult(target, 100, math.Inf(1))
}

// LatencyKnown is false when the RTT summary could not be parsed
func (p ProbeResult) LatencyKnown() bool {
	return !math.IsInf(p.AvgLatencyMs, 1)
}

// Stage is one layer of the diagnostic pipeline
type Stage string

const (
	StageLink     Stage = "LINK"
	StageGateway  Stage = "GATEWAY"
	StageDNS      Stage = "DNS"
	StageInternet Stage = "INTERNET"
)

// Severity of a finding
type Severity string

const (
	SeverityOK   Severity = "OK"
	SeverityWarn Severity = "WARN"
	SeverityFail Severity = "FAIL"
)

// Finding is one observation made by a stage
type Finding struct {
	Stage    Stage    `yaml:"stage"`
	Severity Severity `yaml:"severity"`
	Message  string   `yaml:"message"`
}

// DiagnosticReport is the output of one diagnosis of one interface
type DiagnosticReport struct {
	Interface   InterfaceInfo `yaml:"interface"`
	DNSServers  []string      `yaml:"dns_servers,omitempty"`
	Findings    []Finding     `yaml:"findings"`
	Suggestions []string      `yaml:"suggestions"`
	OverallOK   bool          `yaml:"overall_ok"`
}

// Add appends a finding
func (r *DiagnosticReport) Add(stage Stage, severity Severity, format string, args ...interface{}) {
	r.Findings = append(r.Findings, Finding{Stage: stage, Severity: severity, Message: fmt.Sprintf(format, args...)})
}

// Suggest appends a remediation hint
func (r *DiagnosticReport) Suggest(format string, args ...interface{}) {
	r.Suggestions = append(r.Suggestions, fmt.Sprintf(format, args...))
}

// FailedStage returns the stage that stopped the pipeline, if any
func (r *DiagnosticReport) FailedStage() (Stage, bool) {
	for _, f := range r.Findings {
		if f.Severity == SeverityFail {
			return f.Stage, true
		}
	}
	return "", false
}

// HasDNSIssue reports whether the DNS stage failed or found slow servers
func (r *DiagnosticReport) HasDNSIssue() bool {
	for _, f := range r.Findings {
		if f.Stage == StageDNS && f.Severity != SeverityOK {
			return true
		}
	}
	return false
}

// Severities lists the worst severity per stage in pipeline order
func (r *DiagnosticReport) Severities() []Severity {
	var out []Severity
	var last Stage
	for _, f := range r.Findings {
		if f.Stage != last {
			out = append(out, f.Severity)
			last = f.Stage
			continue
		}
		if rank(f.Severity) > rank(out[len(out)-1]) {
			out[len(out)-1] = f.Severity
		}
	}
	return out
}

func rank(s Severity) int {
	switch s {
	case SeverityFail:
		return 2
	case SeverityWarn:
		return 1
	}
	return 0
}

// RemediationKind names a fix
type RemediationKind string

const (
	KindSetDNS      RemediationKind = "SET_DNS"
	KindSetDHCP     RemediationKind = "SET_DHCP"
	KindSetStaticIP RemediationKind = "SET_STATIC_IP"
)

// Command is an argv vector
type Command []string

// String renders the command for display, quoting empty arguments and
// arguments containing whitespace
func (c Command) String() string {
	parts := make([]string, len(c))
	for i, arg := range c {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

// RemediationPlan is an ordered, unexecuted sequence of commands
type RemediationPlan struct {
	Kind      RemediationKind `yaml:"kind"`
	Interface string          `yaml:"interface"`
	Profile   string          `yaml:"profile,omitempty"` // Connection-manager profile the commands target
	Commands  []Command       `yaml:"commands"`
}

// StaticIPRequest carries parameters for a static address plan
type StaticIPRequest struct {
	Address string   `yaml:"address"`
	Prefix  int      `yaml:"prefix"`
	Gateway string   `yaml:"gateway,omitempty"`
	DNS     []string `yaml:"dns,omitempty"`
}

// StepResult records one executed remediation command
type StepResult struct {
	Command    string `yaml:"command"`
	ExitCode   int    `yaml:"exit_code"`
	Stdout     string `yaml:"stdout,omitempty"`
	Stderr     string `yaml:"stderr,omitempty"`
	Skipped    bool   `yaml:"skipped,omitempty"`    // Not run because the policy stopped execution
	Unreliable bool   `yaml:"unreliable,omitempty"` // Ran after an earlier command failed
}

// Success reports whether the command ran and exited zero
func (s StepResult) Success() bool {
	return !s.Skipped && s.ExitCode == 0
}

// ExecutionReport is the result of running a plan
type ExecutionReport struct {
	Plan           RemediationPlan `yaml:"plan"`
	Steps          []StepResult    `yaml:"steps"`
	OverallSuccess bool            `yaml:"overall_success"`
}

// Interfaces for dependency injection and testing

// CommandResult is the raw outcome of one external command
type CommandResult struct {
	Argv     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error // Set when the command could not be started or was interrupted
}

// Success reports a clean zero exit
func (r *CommandResult) Success() bool {
	return r != nil && r.Err == nil && r.ExitCode == 0
}

// NotFound reports whether the binary was missing
func (r *CommandResult) NotFound() bool {
	return r != nil && r.ExitCode == ExitNotFound
}

// Detail summarises a failure for user-facing messages
func (r *CommandResult) Detail() string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return fmt.Sprintf("exit status %d", r.ExitCode)
}

// ExitNotFound is the exit code reported for a missing binary, as shells do
const ExitNotFound = 127

// SystemExecutor handles system command execution
type SystemExecutor interface {
	Run(ctx context.Context, cmd string, args ...string) *CommandResult
	RunWithTimeout(ctx context.Context, timeout time.Duration, cmd string, args ...string) *CommandResult
	HasCommand(cmd string) bool
}

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// InventoryBuilder collects interface state
type InventoryBuilder interface {
	Build(ctx context.Context) (Inventory, error)
}

// DNSInspector discovers configured resolvers
type DNSInspector interface {
	Servers(ctx context.Context) []string
}

// Prober issues reachability probes
type Prober interface {
	Ping(ctx context.Context, host string, count int) ProbeResult
	Curl(ctx context.Context, url string) (bool, string)
}

// ConflictDetector checks whether a candidate address already answers
type ConflictDetector interface {
	InUse(ctx context.Context, ip string) (bool, error)
}

// ProfileResolver maps an interface to its connection-manager profile
type ProfileResolver interface {
	Available() bool
	ActiveProfile(ctx context.Context, iface string) (string, error)
	IPv4Method(ctx context.Context, profile string) (ConfigMethod, error)
}

// ConfigManager handles configuration loading and management
type ConfigManager interface {
	LoadConfig(path string) (*Config, error)
	GetConfig() *Config
}
