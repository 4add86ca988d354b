//go:build linux

package firewall

import (
	"testing"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIngressMarkerStampsRawNetIDOnly(t *testing.T) {
	conn := NewMockNFTablesConn()
	conn.On("AddTable", mock.Anything).Return(&nftables.Table{}).Maybe()
	conn.On("AddChain", mock.Anything).Return(&nftables.Chain{}).Maybe()
	conn.On("AddRule", mock.Anything).Return(&nftables.Rule{}).Maybe()
	conn.On("Flush").Return(nil)

	m := NewIngressMarker(conn)
	require.NoError(t, m.Setup())
	require.NoError(t, m.InstallForInterface("wlan0", 100))

	require.Equal(t, 1, conn.GetRuleCount())

	var stamped []byte
	for _, rules := range conn.rules {
		for _, r := range rules {
			for _, e := range r.Exprs {
				if imm, ok := e.(*expr.Immediate); ok {
					stamped = imm.Data
				}
			}
		}
	}
	require.Equal(t, binaryutil.NativeEndian.PutUint32(100), stamped)
}

func TestIngressMarkerRemoveForInterfaceDeletesInstalledRule(t *testing.T) {
	conn := NewMockNFTablesConn()
	conn.On("AddTable", mock.Anything).Return(&nftables.Table{}).Maybe()
	conn.On("AddChain", mock.Anything).Return(&nftables.Chain{}).Maybe()
	conn.On("AddRule", mock.Anything).Return(&nftables.Rule{}).Maybe()
	conn.On("DelRule", mock.Anything).Return(nil)
	conn.On("Flush").Return(nil)

	m := NewIngressMarker(conn)
	require.NoError(t, m.Setup())
	require.NoError(t, m.InstallForInterface("wlan0", 100))

	require.NoError(t, m.RemoveForInterface("wlan0"))
	conn.AssertCalled(t, "DelRule", mock.Anything)

	// A second call for the same (now-unmarked) interface is a no-op,
	// not a double-delete.
	require.NoError(t, m.RemoveForInterface("wlan0"))
	conn.AssertNumberOfCalls(t, "DelRule", 1)
}
