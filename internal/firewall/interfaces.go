//go:build linux
// +build linux

package firewall

import "github.com/google/nftables"

// NFTablesConn abstracts nftables.Conn operations so tests can
// substitute a recording fake instead of touching the kernel.
type NFTablesConn interface {
	AddTable(t *nftables.Table) *nftables.Table
	DelTable(t *nftables.Table)
	ListTables() ([]*nftables.Table, error)

	AddChain(c *nftables.Chain) *nftables.Chain
	DelChain(c *nftables.Chain)
	ListChains() ([]*nftables.Chain, error)
	ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error)

	AddRule(r *nftables.Rule) *nftables.Rule
	DelRule(r *nftables.Rule) error
	GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error)
	InsertRule(r *nftables.Rule) *nftables.Rule

	Flush() error
}

// RealNFTablesConn wraps the actual nftables.Conn for production use.
type RealNFTablesConn struct {
	conn *nftables.Conn
}

func NewRealNFTablesConn(conn *nftables.Conn) *RealNFTablesConn {
	return &RealNFTablesConn{conn: conn}
}

func (r *RealNFTablesConn) AddTable(t *nftables.Table) *nftables.Table { return r.conn.AddTable(t) }
func (r *RealNFTablesConn) DelTable(t *nftables.Table)                 { r.conn.DelTable(t) }
func (r *RealNFTablesConn) ListTables() ([]*nftables.Table, error)     { return r.conn.ListTables() }

func (r *RealNFTablesConn) AddChain(c *nftables.Chain) *nftables.Chain { return r.conn.AddChain(c) }
func (r *RealNFTablesConn) DelChain(c *nftables.Chain)                 { r.conn.DelChain(c) }
func (r *RealNFTablesConn) ListChains() ([]*nftables.Chain, error)     { return r.conn.ListChains() }
func (r *RealNFTablesConn) ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error) {
	return r.conn.ListChainsOfTableFamily(family)
}

func (r *RealNFTablesConn) AddRule(rule *nftables.Rule) *nftables.Rule { return r.conn.AddRule(rule) }
func (r *RealNFTablesConn) DelRule(rule *nftables.Rule) error          { return r.conn.DelRule(rule) }
func (r *RealNFTablesConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	return r.conn.GetRules(t, c)
}
func (r *RealNFTablesConn) InsertRule(rule *nftables.Rule) *nftables.Rule {
	return r.conn.InsertRule(rule)
}

func (r *RealNFTablesConn) Flush() error { return r.conn.Flush() }

// CommandRunner abstracts shell command execution, used to shell out
// to nft(8) for script-based chain replaces.
type CommandRunner interface {
	Run(name string, args ...string) error
	RunInput(input string, name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes actual shell commands; implemented in
// command_linux.go.
type RealCommandRunner struct{}

var DefaultCommandRunner CommandRunner = &RealCommandRunner{}
