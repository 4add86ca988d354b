package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/daemonconfig"
)

// New only wires in-process structures; it never touches netlink or
// nftables, so it is safe to exercise without root or a real kernel.
func TestNewWiresEveryComponent(t *testing.T) {
	cfg := daemonconfig.DefaultConfig()
	cfg.AdminSocketPath = "/tmp/netd-test-admin.sock"
	cfg.FwmarkSocketPath = "/tmp/netd-test-fwmark.sock"
	cfg.DNSProxySocketPath = "/tmp/netd-test-dnsproxy.sock"

	d := New(cfg, nil)
	require.NotNil(t, d)

	assert.NotNil(t, d.Permissions)
	assert.NotNil(t, d.Routes)
	assert.NotNil(t, d.Firewall)
	assert.NotNil(t, d.Networks)
	assert.NotNil(t, d.FwmarkServer)
	assert.NotNil(t, d.DNSProxy)
	assert.NotNil(t, d.Dispatcher)
	assert.NotNil(t, d.NetlinkListener)

	assert.Equal(t, cfg.AdminSocketPath, d.Dispatcher.SocketPath)
	assert.Equal(t, cfg.FwmarkSocketPath, d.FwmarkServer.SocketPath)
	assert.Equal(t, cfg.DNSProxySocketPath, d.DNSProxy.SocketPath)
	assert.Len(t, d.listeners, 3)
}

func TestNewIsIdempotentAcrossInstances(t *testing.T) {
	// Two Daemons must not collide on Prometheus registration when each
	// gets its own registry (reg == nil creates a private one per
	// dispatcher.Server, mirroring the dispatcher package's own tests).
	cfg := daemonconfig.DefaultConfig()
	d1 := New(cfg, nil)
	d2 := New(cfg, nil)
	assert.NotNil(t, d1)
	assert.NotNil(t, d2)
}
