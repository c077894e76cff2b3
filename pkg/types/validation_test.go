package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateInterfaceName(t *testing.T) {
	tests := []struct {
		name    string
		iface   string
		wantErr bool
	}{
		{"valid eth0", "eth0", false},
		{"valid wlan0", "wlan0", false},
		{"valid enp0s3", "enp0s3", false},
		{"valid with underscore", "eth_0", false},
		{"valid with dash", "eth-0", false},
		{"valid vlan", "eth0.100", false},
		{"valid max length", "abcdefghijklmno", false},
		{"empty", "", true},
		{"too long", "abcdefghijklmnop", true},
		{"starts with number", "0eth", true},
		{"contains space", "eth 0", true},
		{"contains slash", "eth/0", true},
		{"contains semicolon", "eth;rm -rf", true},
		{"path traversal attempt", "../../../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInterfaceName(tt.iface)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMAC(t *testing.T) {
	tests := []struct {
		name    string
		mac     string
		wantErr bool
	}{
		{"valid lowercase", "aa:bb:cc:dd:ee:ff", false},
		{"valid uppercase", "AA:BB:CC:DD:EE:FF", false},
		{"empty", "", true},
		{"too short", "aa:bb:cc:dd:ee", true},
		{"wrong separator", "aa-bb-cc-dd-ee-ff", true},
		{"invalid hex", "gg:bb:cc:dd:ee:ff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMAC(tt.mac)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIPv4(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid", "192.168.1.77", false},
		{"valid zero", "0.0.0.0", false},
		{"empty", "", true},
		{"octet overflow", "192.168.1.256", true},
		{"too few octets", "192.168.1", true},
		{"ipv6", "fe80::1", true},
		{"mapped ipv6", "::ffff:192.168.1.1", true},
		{"cidr", "192.168.1.1/24", true},
		{"hostname", "router.local", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIPv4(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix(0))
	assert.NoError(t, ValidatePrefix(24))
	assert.NoError(t, ValidatePrefix(32))
	assert.Error(t, ValidatePrefix(-1))
	assert.Error(t, ValidatePrefix(33))
}

func TestValidateDNSServer(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		wantErr bool
	}{
		{"valid IPv4", "8.8.8.8", false},
		{"valid IPv6", "2001:4860:4860::8888", false},
		{"empty", "", true},
		{"hostname", "dns.google", true},
		{"garbage", "not-an-ip", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDNSServer(tt.server)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticIPRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     StaticIPRequest
		wantErr bool
	}{
		{"minimal", StaticIPRequest{Address: "192.168.1.77", Prefix: 24}, false},
		{"full", StaticIPRequest{Address: "192.168.1.77", Prefix: 24, Gateway: "192.168.1.1", DNS: []string{"223.5.5.5"}}, false},
		{"bad address", StaticIPRequest{Address: "192.168.1.777", Prefix: 24}, true},
		{"bad prefix", StaticIPRequest{Address: "192.168.1.77", Prefix: 40}, true},
		{"bad gateway", StaticIPRequest{Address: "192.168.1.77", Prefix: 24, Gateway: "gw"}, true},
		{"bad dns", StaticIPRequest{Address: "192.168.1.77", Prefix: 24, DNS: []string{"x"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProbeConfigDefaults(t *testing.T) {
	p := &ProbeConfig{}
	assert.Equal(t, 3, p.GetCount())
	assert.Equal(t, 1*time.Second, p.GetPacketTimeout())
	assert.Equal(t, 5*time.Second, p.GetCurlTimeout())

	p = &ProbeConfig{Count: 5, PacketTimeout: 2, CurlTimeout: 10}
	assert.Equal(t, 5, p.GetCount())
	assert.Equal(t, 2*time.Second, p.GetPacketTimeout())
	assert.Equal(t, 10*time.Second, p.GetCurlTimeout())
}

func TestDNSConfigDefaults(t *testing.T) {
	d := &DNSConfig{}
	assert.Equal(t, []string{PrimaryDNS, SecondaryDNS}, d.GetRecommended())
	assert.Equal(t, 50.0, d.GetLatencyThreshold())
	assert.Equal(t, "/etc/resolv.conf", d.GetResolvConf())

	d = &DNSConfig{Recommended: []string{"1.1.1.1"}, LatencyThresholdMs: 80, ResolvConf: "/tmp/resolv.conf"}
	assert.Equal(t, []string{"1.1.1.1"}, d.GetRecommended())
	assert.Equal(t, 80.0, d.GetLatencyThreshold())
	assert.Equal(t, "/tmp/resolv.conf", d.GetResolvConf())
}

func TestRemediationConfigGetCommandTimeout(t *testing.T) {
	r := &RemediationConfig{}
	assert.Equal(t, 30*time.Second, r.GetCommandTimeout())
	r.CommandTimeout = 7
	assert.Equal(t, 7*time.Second, r.GetCommandTimeout())
}
