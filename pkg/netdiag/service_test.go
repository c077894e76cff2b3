package netdiag

import (
	"context"
	"testing"

	"github.com/angelfreak/netdiag/pkg/system/systemtest"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneAddressed = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
    inet 127.0.0.1/8 scope host lo
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 state UP
    link/ether 52:54:00:ab:cd:ef brd ff:ff:ff:ff:ff:ff
    inet 192.168.1.50/24 brd 192.168.1.255 scope global eth0
3: eth1: <BROADCAST,MULTICAST,UP> mtu 1500 state DOWN
    link/ether 52:54:00:11:22:33 brd ff:ff:ff:ff:ff:ff
`

const twoAddressed = oneAddressed + `4: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 state UP
    link/ether 52:54:00:aa:bb:cc brd ff:ff:ff:ff:ff:ff
    inet 10.1.0.7/16 brd 10.1.255.255 scope global wlan0
`

const noneAddressed = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
2: eth1: <BROADCAST,MULTICAST,UP> mtu 1500 state DOWN
    link/ether 52:54:00:11:22:33 brd ff:ff:ff:ff:ff:ff
3: eth0: <BROADCAST,MULTICAST,UP> mtu 1500 state DOWN
    link/ether 52:54:00:ab:cd:ef brd ff:ff:ff:ff:ff:ff
`

func pingOK(host string) string {
	return "--- " + host + " ping statistics ---\n" +
		"3 packets transmitted, 3 received, 0% packet loss, time 2003ms\n" +
		"rtt min/avg/max/mdev = 10.100/12.300/14.500/1.000 ms\n"
}

func newService(t *testing.T, exec *systemtest.MockExecutor, cfg *types.Config) *Service {
	t.Helper()
	svc, err := NewService(cfg, exec, &systemtest.MockLogger{})
	require.NoError(t, err)
	return svc
}

func withInventory(ipAddr string) *systemtest.MockExecutor {
	return systemtest.NewStrictMockExecutor().
		On("ip addr show", ipAddr).
		On("ip route show default", "default via 192.168.1.1 dev eth0 proto dhcp metric 100\n")
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	exec := systemtest.NewStrictMockExecutor()
	logger := &systemtest.MockLogger{}

	_, err := NewService(&types.Config{Inventory: types.InventoryConfig{Source: "proc"}}, exec, logger)
	assert.Error(t, err)

	_, err = NewService(&types.Config{Probe: types.ProbeConfig{ConflictBackend: "arping"}}, exec, logger)
	assert.Error(t, err)

	_, err = NewService(&types.Config{Remediation: types.RemediationConfig{Policy: "retry"}}, exec, logger)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestListInterfaces(t *testing.T) {
	exec := withInventory(oneAddressed)
	inv, err := newService(t, exec, nil).ListInterfaces(context.Background())
	require.NoError(t, err)
	exec.AssertNoUnexpected(t)
	assert.Equal(t, []string{"eth0", "eth1"}, inv.Names())
	assert.Equal(t, types.ModeStaticInferred, inv["eth0"].ConfigMode)
	assert.Equal(t, types.ModeDHCPPending, inv["eth1"].ConfigMode)
}

func TestListInterfacesInventoryFailure(t *testing.T) {
	exec := systemtest.NewStrictMockExecutor().OnExit("ip addr show", 1, "", "RTNETLINK answers: Operation not permitted")
	_, err := newService(t, exec, nil).ListInterfaces(context.Background())
	assert.True(t, types.IsCode(err, types.ErrInventoryFailed))
}

func TestSelectInterface(t *testing.T) {
	tests := []struct {
		name           string
		ipAddr         string
		requested      string
		wantName       string
		wantCandidates []string
		wantErr        types.ErrorCode
	}{
		{"single addressed interface", oneAddressed, "", "eth0", nil, ""},
		{"several addressed interfaces", twoAddressed, "", "", []string{"eth0", "wlan0"}, ""},
		{"nothing addressed offers everything", noneAddressed, "", "", []string{"eth0", "eth1"}, ""},
		{"explicit name", twoAddressed, "eth1", "eth1", nil, ""},
		{"unknown name", oneAddressed, "wlan9", "", nil, types.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := newService(t, withInventory(tt.ipAddr), nil).SelectInterface(context.Background(), tt.requested)
			if tt.wantErr != "" {
				assert.True(t, types.IsCode(err, tt.wantErr))
				assert.Contains(t, types.HintOf(err), "eth0")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, sel.Name)
			assert.Equal(t, tt.wantCandidates, sel.Candidates)
		})
	}
}

func TestDiagnoseHealthy(t *testing.T) {
	exec := withInventory(oneAddressed).
		On("ping -c 3 -W 1 192.168.1.1", pingOK("192.168.1.1")).
		On("resolvectl dns", "Global: 223.5.5.5 223.6.6.6\nLink 2 (eth0):\n").
		On("ping -c 3 -W 1 223.5.5.5", pingOK("223.5.5.5")).
		On("ping -c 3 -W 1 223.6.6.6", pingOK("223.6.6.6")).
		On("ping -c 3 -W 1 www.baidu.com", pingOK("www.baidu.com"))

	report, err := newService(t, exec, nil).Diagnose(context.Background(), "eth0")
	require.NoError(t, err)
	exec.AssertNoUnexpected(t)

	assert.True(t, report.OverallOK)
	assert.Len(t, report.Findings, 4)
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, []string{"223.5.5.5", "223.6.6.6"}, report.DNSServers)
	assert.Equal(t, "52:54:00:ab:cd:ef", report.Interface.MAC)
}

func TestDiagnoseNoAddress(t *testing.T) {
	exec := withInventory(oneAddressed)

	report, err := newService(t, exec, nil).Diagnose(context.Background(), "eth1")
	require.NoError(t, err)
	exec.AssertNoUnexpected(t)
	exec.AssertNoneMatching(t, "ping")

	require.Len(t, report.Findings, 1)
	assert.Equal(t, types.StageLink, report.Findings[0].Stage)
	assert.Equal(t, types.SeverityFail, report.Findings[0].Severity)
	assert.False(t, report.OverallOK)
}

func TestDiagnoseUnknownInterface(t *testing.T) {
	_, err := newService(t, withInventory(oneAddressed), nil).Diagnose(context.Background(), "eth7")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestPlan(t *testing.T) {
	exec := systemtest.NewStrictMockExecutor().
		Install("nmcli").
		On("nmcli -g GENERAL.CONNECTION device show eth0", "Wired connection 1\n").
		OnExit("ping -c 1 -W 1 192.168.1.77", 1, "1 packets transmitted, 0 received, 100% packet loss\n", "")
	svc := newService(t, exec, &types.Config{Remediation: types.RemediationConfig{Elevate: "none"}})
	ctx := context.Background()

	plan, err := svc.Plan(ctx, types.KindSetDNS, PlanParams{Interface: "eth0"})
	require.NoError(t, err)
	assert.Equal(t, "Wired connection 1", plan.Profile)
	assert.Equal(t, "nmcli con mod 'Wired connection 1' ipv4.dns '223.5.5.5 223.6.6.6'", plan.Commands[0].String())

	plan, err = svc.Plan(ctx, types.KindSetDHCP, PlanParams{Interface: "eth0"})
	require.NoError(t, err)
	assert.Len(t, plan.Commands, 5)

	plan, err = svc.Plan(ctx, types.KindSetStaticIP, PlanParams{
		Interface: "eth0",
		Static:    types.StaticIPRequest{Address: "192.168.1.77", Prefix: 24, Gateway: "192.168.1.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.KindSetStaticIP, plan.Kind)
	exec.AssertExecuted(t, "ping -c 1 -W 1 192.168.1.77")

	_, err = svc.Plan(ctx, "SET_MTU", PlanParams{Interface: "eth0"})
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	exec.AssertNoUnexpected(t)
}

func TestPlanStaticIPConflict(t *testing.T) {
	exec := systemtest.NewStrictMockExecutor().
		Install("nmcli").
		On("ping -c 1 -W 1 192.168.1.77", "1 packets transmitted, 1 received, 0% packet loss\n")

	plan, err := newService(t, exec, nil).Plan(context.Background(), types.KindSetStaticIP, PlanParams{
		Interface: "eth0",
		Static:    types.StaticIPRequest{Address: "192.168.1.77", Prefix: 24},
	})
	assert.Nil(t, plan)
	assert.True(t, types.IsCode(err, types.ErrConflictDetected))
	exec.AssertNoneMatching(t, "nmcli")
}

func TestExecute(t *testing.T) {
	exec := systemtest.NewStrictMockExecutor().
		On("resolvectl dns eth0 223.5.5.5 223.6.6.6", "")
	svc := newService(t, exec, &types.Config{Remediation: types.RemediationConfig{Elevate: "none"}})

	report := svc.Execute(context.Background(), &types.RemediationPlan{
		Kind:      types.KindSetDNS,
		Interface: "eth0",
		Commands:  []types.Command{{"resolvectl", "dns", "eth0", "223.5.5.5", "223.6.6.6"}},
	})
	exec.AssertNoUnexpected(t)
	assert.True(t, report.OverallSuccess)
	require.Len(t, report.Steps, 1)
}
