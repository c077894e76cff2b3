//go:build integration

package inventory

import (
	"context"
	"testing"

	"github.com/angelfreak/netdiag/pkg/system"
	"github.com/angelfreak/netdiag/pkg/types"
	"github.com/angelfreak/netdiag/tests/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNamespace(t *testing.T) *testutil.TestNamespace {
	t.Helper()
	testutil.SkipIfNotRoot(t)
	testutil.SkipIfMissingCmd(t, "ip")

	ns := testutil.NewTestNamespace(t)
	require.NoError(t, ns.AddVethPeers("vd0", "vd1"))
	require.NoError(t, ns.Configure("vd0", "10.200.0.2/24"))
	require.NoError(t, ns.Configure("vd1", "10.200.0.3/24"))
	require.NoError(t, ns.AddDefaultRoute("10.200.0.1", "vd0"))
	return ns
}

func assertNamespaceInventory(t *testing.T, inv types.Inventory) {
	t.Helper()
	assert.NotContains(t, inv, "lo")
	require.Contains(t, inv, "vd0")
	require.Contains(t, inv, "vd1")

	vd0 := inv["vd0"]
	assert.Equal(t, types.LinkUp, vd0.State)
	assert.Equal(t, "10.200.0.2/24", vd0.Addrs[0].String())
	assert.Equal(t, "10.200.0.1", vd0.Gateway.String())
	assert.False(t, vd0.GatewayInferred)
	assert.NotEmpty(t, vd0.MAC)

	vd1 := inv["vd1"]
	assert.Equal(t, "10.200.0.1", vd1.Gateway.String())
	assert.True(t, vd1.GatewayInferred)
}

func TestIPSource_Integration(t *testing.T) {
	ns := setupNamespace(t)

	err := ns.Run(func() {
		logger := system.NewNopLogger()
		executor := system.NewExecutor(logger, 0)
		inv, err := NewBuilder(NewIPSource(executor, logger), nil, logger, nil).Build(context.Background())
		require.NoError(t, err)
		assertNamespaceInventory(t, inv)
	})
	require.NoError(t, err)
}

func TestNetlinkSource_Integration(t *testing.T) {
	ns := setupNamespace(t)

	err := ns.Run(func() {
		src, err := NewNetlinkSource()
		require.NoError(t, err)
		inv, err := NewBuilder(src, nil, system.NewNopLogger(), nil).Build(context.Background())
		require.NoError(t, err)
		assertNamespaceInventory(t, inv)
	})
	require.NoError(t, err)
}

func TestSourcesAgree_Integration(t *testing.T) {
	ns := setupNamespace(t)

	out, err := ns.ExecOutput("ip", "addr", "show")
	require.NoError(t, err)
	parsed, _ := system.ParseIPAddr(out)

	err = ns.Run(func() {
		src, err := NewNetlinkSource()
		require.NoError(t, err)
		links, err := src.Links(context.Background())
		require.NoError(t, err)

		byName := make(map[string]system.LinkBlock)
		for _, l := range links {
			byName[l.Name] = l
		}
		for _, p := range parsed {
			l, ok := byName[p.Name]
			require.True(t, ok, "netlink missing %s", p.Name)
			assert.Equal(t, p.MAC, l.MAC)
			assert.Equal(t, p.State(), l.State())
			assert.Equal(t, len(p.Addrs), len(l.Addrs))
		}
	})
	require.NoError(t, err)
}
