//go:build linux
// +build linux

package firewall

import (
	"fmt"

	"github.com/google/nftables"
	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// IngressMarker installs the prerouting rule that stamps every packet
// arriving on a network's interfaces with that network's raw id, so
// later policy-routing decisions (internal/routecontrol) can select a
// table purely from the packet mark. Only the netId bits are stamped;
// no permission bits are added here.
type IngressMarker struct {
	conn  NFTablesConn
	table *nftables.Table
	chain *nftables.Chain
	rules map[string]*nftables.Rule
}

func NewIngressMarker(conn NFTablesConn) *IngressMarker {
	return &IngressMarker{
		conn: conn,
		table: &nftables.Table{
			Name:   Table,
			Family: nftables.TableFamilyINet,
		},
		rules: make(map[string]*nftables.Rule),
	}
}

// NewRealIngressMarker opens a real nftables connection and wraps it
// in an IngressMarker. Callers should defer this past construction
// time (to Run, not New) since opening it requires CAP_NET_ADMIN.
func NewRealIngressMarker() (*IngressMarker, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("firewall: opening nftables connection: %w", err)
	}
	return NewIngressMarker(NewRealNFTablesConn(conn)), nil
}

// Setup declares the mangle-priority prerouting chain the per-interface
// marking rules attach to. Must run once before InstallForInterface.
func (m *IngressMarker) Setup() error {
	m.conn.AddTable(m.table)
	m.chain = m.conn.AddChain(&nftables.Chain{
		Name:     chainIngressMark,
		Table:    m.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookPrerouting,
		Priority: nftables.ChainPriorityMangle,
	})
	return m.conn.Flush()
}

// InstallForInterface adds the rule stamping packets arriving on iface
// with netID. Called once per interface added to a network.
func (m *IngressMarker) InstallForInterface(iface string, netID uint32) error {
	if m.chain == nil {
		return fmt.Errorf("firewall: ingress marker not set up")
	}

	exprs := []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     ifnameBytes(iface),
		},
		&expr.Immediate{
			Register: 1,
			Data:     binaryutil.NativeEndian.PutUint32(netID),
		},
		&expr.Meta{Key: expr.MetaKeyMARK, Register: 1, SourceRegister: true},
	}

	rule := m.conn.AddRule(&nftables.Rule{
		Table: m.table,
		Chain: m.chain,
		Exprs: exprs,
	})
	if err := m.conn.Flush(); err != nil {
		return err
	}
	m.rules[iface] = rule
	return nil
}

// RemoveForInterface deletes the marking rule previously installed for
// iface. A no-op if iface was never marked.
func (m *IngressMarker) RemoveForInterface(iface string) error {
	rule, ok := m.rules[iface]
	if !ok {
		return nil
	}
	if err := m.conn.DelRule(rule); err != nil {
		return fmt.Errorf("firewall: removing ingress mark for %s: %w", iface, err)
	}
	if err := m.conn.Flush(); err != nil {
		return err
	}
	delete(m.rules, iface)
	return nil
}

// ifnameBytes pads iface to the fixed 16-byte IFNAMSIZ nft expects for
// interface-name comparisons.
func ifnameBytes(iface string) []byte {
	b := make([]byte, unix.IFNAMSIZ)
	copy(b, iface)
	return b
}
