package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. NETDIAG_PROBE_TARGET
const EnvPrefix = "NETDIAG"

// Known valid field names for each config section
var sectionFields = map[string]map[string]bool{
	"probe": {
		"target":           true,
		"url":              true,
		"count":            true,
		"packet_timeout":   true,
		"curl_timeout":     true,
		"conflict_backend": true,
		"privileged":       true,
	},
	"dns": {
		"recommended":          true,
		"latency_threshold_ms": true,
		"resolv_conf":          true,
	},
	"inventory": {
		"source": true,
	},
	"ignored": {
		"interfaces": true,
	},
	"remediation": {
		"elevate":         true,
		"policy":          true,
		"command_timeout": true,
	},
}

// defaults seeds viper so every key is known to AutomaticEnv
var defaults = map[string]interface{}{
	"probe.target":                types.DefaultProbeTarget,
	"probe.url":                   types.DefaultProbeURL,
	"probe.count":                 3,
	"probe.packet_timeout":        1,
	"probe.curl_timeout":          5,
	"probe.conflict_backend":      "exec",
	"probe.privileged":            false,
	"dns.recommended":             []string{types.PrimaryDNS, types.SecondaryDNS},
	"dns.latency_threshold_ms":    50.0,
	"dns.resolv_conf":             "/etc/resolv.conf",
	"inventory.source":            "ip",
	"ignored.interfaces":          []string{},
	"remediation.elevate":         "sudo",
	"remediation.policy":          "continue",
	"remediation.command_timeout": 30,
}

// ValidationError represents a config validation error with suggestions
type ValidationError struct {
	Section    string
	Field      string
	Suggestion string
}

func (e ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown field '%s' in %s (did you mean '%s'?)", e.Field, e.Section, e.Suggestion)
	}
	return fmt.Sprintf("unknown field '%s' in %s", e.Field, e.Section)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "config validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(a, b string) int {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(a)][len(b)]
}

// findSimilarField finds the most similar valid field name
func findSimilarField(field string, validFields map[string]bool) string {
	bestMatch := ""
	bestDistance := 3 // Max distance to consider as a typo

	for valid := range validFields {
		dist := levenshteinDistance(field, valid)
		if dist < bestDistance {
			bestDistance = dist
			bestMatch = valid
		} else if dist == bestDistance && bestMatch != "" {
			if len(valid) < len(bestMatch) || (len(valid) == len(bestMatch) && valid < bestMatch) {
				bestMatch = valid
			}
		}
	}
	return bestMatch
}

func validateFields(section string, data map[string]interface{}, validFields map[string]bool) []ValidationError {
	var errs []ValidationError
	for field := range data {
		if !validFields[field] {
			errs = append(errs, ValidationError{
				Section:    section,
				Field:      field,
				Suggestion: findSimilarField(field, validFields),
			})
		}
	}
	return errs
}

// ValidateConfigFile validates a config file for unknown/misspelled fields
func ValidateConfigFile(path string) ValidationErrors {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil // File read errors handled elsewhere
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil // Parse errors handled elsewhere
	}

	return validateRawConfig(raw)
}

func validateRawConfig(raw map[string]interface{}) ValidationErrors {
	sections := make(map[string]bool, len(sectionFields))
	for name := range sectionFields {
		sections[name] = true
	}

	var errs ValidationErrors
	for key, value := range raw {
		fields, ok := sectionFields[key]
		if !ok {
			errs = append(errs, ValidationError{
				Section:    "top level",
				Field:      key,
				Suggestion: findSimilarField(key, sections),
			})
			continue
		}
		if m, ok := value.(map[string]interface{}); ok {
			errs = append(errs, validateFields(key, m, fields)...)
		}
	}

	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Section != errs[j].Section {
			return errs[i].Section < errs[j].Section
		}
		return errs[i].Field < errs[j].Field
	})
	return errs
}

// validateValues checks enums and addresses after unmarshalling
func validateValues(cfg *types.Config) error {
	for _, server := range cfg.DNS.Recommended {
		if err := types.ValidateIPv4(server); err != nil {
			return types.WrapError(err, types.ErrInvalidInput, "dns.recommended")
		}
	}
	if !oneOf(cfg.Probe.ConflictBackend, "", "exec", "icmp") {
		return types.NewError(types.ErrInvalidInput, "probe.conflict_backend must be \"exec\" or \"icmp\", got %q", cfg.Probe.ConflictBackend)
	}
	if !oneOf(cfg.Inventory.Source, "", "ip", "netlink") {
		return types.NewError(types.ErrInvalidInput, "inventory.source must be \"ip\" or \"netlink\", got %q", cfg.Inventory.Source)
	}
	if !oneOf(strings.ToLower(cfg.Remediation.Policy), "", "continue", "stop") {
		return types.NewError(types.ErrInvalidInput, "remediation.policy must be \"continue\" or \"stop\", got %q", cfg.Remediation.Policy)
	}

	numbers := []struct {
		key   string
		value float64
	}{
		{"probe.count", float64(cfg.Probe.Count)},
		{"probe.packet_timeout", float64(cfg.Probe.PacketTimeout)},
		{"probe.curl_timeout", float64(cfg.Probe.CurlTimeout)},
		{"dns.latency_threshold_ms", cfg.DNS.LatencyThresholdMs},
		{"remediation.command_timeout", float64(cfg.Remediation.CommandTimeout)},
	}
	for _, n := range numbers {
		if n.value < 0 {
			return types.NewError(types.ErrInvalidInput, "%s must not be negative", n.key)
		}
	}
	for _, name := range cfg.Ignored.Interfaces {
		if err := types.ValidateInterfaceName(name); err != nil {
			return types.WrapError(err, types.ErrInvalidInput, "ignored.interfaces")
		}
	}
	return nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Manager implements the ConfigManager interface
type Manager struct {
	config     *types.Config
	logger     types.Logger
	configPath string
}

var _ types.ConfigManager = (*Manager)(nil)

// NewManager creates a new config manager
func NewManager(logger types.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// DefaultPath returns ~/.netdiag/config.yaml, using the invoking user's home
// when run under sudo
func DefaultPath() (string, error) {
	var home string
	// sudo sets HOME=/root, so SUDO_USER must be checked first
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if sudoUser == "root" {
			home = "/root"
		} else {
			home = filepath.Join("/home", sudoUser)
		}
	} else if envHome := os.Getenv("HOME"); envHome != "" {
		home = envHome
	} else {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, ".netdiag", "config.yaml"), nil
}

func (m *Manager) debug(msg string, fields ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, fields...)
	}
}

// LoadConfig loads configuration from path. "-" skips the file, an empty
// path selects DefaultPath, and a missing file yields defaults. NETDIAG_*
// environment variables override file values in every case.
func (m *Manager) LoadConfig(path string) (*types.Config, error) {
	m.debug("LoadConfig called", "path", path)

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case path == "-":
		m.debug("Using no config file (path='-')")
		path = ""
	case path == "":
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
		m.debug("Using default config path", "path", path)
	case strings.HasPrefix(path, "~"):
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
		m.debug("Expanded ~ path", "expandedPath", path)
	}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			m.debug("Config file does not exist, using defaults", "path", path)
			path = ""
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if ext := filepath.Ext(path); ext == "" || ext == ".example" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if validationErrors := ValidateConfigFile(path); len(validationErrors) > 0 {
			return nil, validationErrors
		}
		m.debug("Config file loaded", "path", path)
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateValues(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = &cfg
	m.configPath = path
	return &cfg, nil
}

// Path returns the file the config was loaded from, empty when none was read
func (m *Manager) Path() string {
	return m.configPath
}

// GetIgnoredInterfaces returns the list of ignored interfaces
func (m *Manager) GetIgnoredInterfaces() []string {
	if m.config == nil {
		return nil
	}
	return m.config.Ignored.Interfaces
}

// GetConfig returns the loaded configuration
func (m *Manager) GetConfig() *types.Config {
	return m.config
}
