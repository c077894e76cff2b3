package types

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Validation regexes - compiled once at package init
var (
	// Interface names: start with letter, alphanumeric + underscore/dash/dot/at, max 15 chars
	interfaceRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.@-]{0,14}$`)

	// MAC address: 6 hex pairs separated by colons
	macRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
)

// ValidateInterfaceName validates a network interface name
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if len(name) > 15 {
		return fmt.Errorf("interface name too long (max 15 characters)")
	}
	if !interfaceRegex.MatchString(name) {
		return fmt.Errorf("invalid interface name: must start with letter, contain only alphanumeric, underscore, dot, at or dash")
	}
	return nil
}

// ValidateMAC validates a MAC address format
func ValidateMAC(mac string) error {
	if !macRegex.MatchString(mac) {
		return fmt.Errorf("invalid MAC address format: expected XX:XX:XX:XX:XX:XX")
	}
	return nil
}

// ValidateIPv4 validates a dotted-quad IPv4 address
func ValidateIPv4(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || strings.Contains(addr, ":") {
		return fmt.Errorf("invalid IPv4 address: %s", addr)
	}
	return nil
}

// ValidatePrefix validates an IPv4 prefix length
func ValidatePrefix(prefix int) error {
	if prefix < 0 || prefix > 32 {
		return fmt.Errorf("invalid prefix length %d: must be between 0 and 32", prefix)
	}
	return nil
}

// ValidateDNSServer validates a DNS server address
func ValidateDNSServer(server string) error {
	if server == "" {
		return fmt.Errorf("DNS server cannot be empty")
	}
	if ip := net.ParseIP(server); ip == nil {
		return fmt.Errorf("invalid DNS server IP address: %s", server)
	}
	return nil
}

// Validate checks every field of a static address request
func (r *StaticIPRequest) Validate() error {
	if err := ValidateIPv4(r.Address); err != nil {
		return err
	}
	if err := ValidatePrefix(r.Prefix); err != nil {
		return err
	}
	if r.Gateway != "" {
		if err := ValidateIPv4(r.Gateway); err != nil {
			return fmt.Errorf("invalid gateway: %w", err)
		}
	}
	for _, server := range r.DNS {
		if err := ValidateDNSServer(server); err != nil {
			return err
		}
	}
	return nil
}
