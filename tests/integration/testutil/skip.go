//go:build integration

// Package testutil provides namespace fixtures for integration tests that
// inspect real interface and routing state.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// SkipIfNotRoot skips the test if not running as root.
// Most network operations require CAP_NET_ADMIN which typically means root.
func SkipIfNotRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("skipping: test requires root privileges")
	}
}

// SkipIfNoNetNS skips the test if network namespaces are not supported.
func SkipIfNoNetNS(t *testing.T) {
	t.Helper()
	// Check if ip netns command works
	if err := exec.Command("ip", "netns", "list").Run(); err != nil {
		t.Skip("skipping: network namespaces not supported")
	}
}

// SkipIfMissingCmd skips the test if a required command is not available.
func SkipIfMissingCmd(t *testing.T, cmd string) {
	t.Helper()
	if _, err := exec.LookPath(cmd); err != nil {
		t.Skipf("skipping: required command %q not found in PATH", cmd)
	}
}
