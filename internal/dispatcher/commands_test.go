package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/firewall"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/netctrl"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/routecontrol"
)

type fakeNetworks struct {
	networks  map[fwmark.NetID]netctrl.Network
	uidRanges []netctrl.UIDRangeInfo

	createErr      error
	createVPNErr   error
	destroyErr     error
	addIfaceErr    error
	removeIfaceErr error
	setDefaultErr  error
	setPermErr     error
	addUIDErr      error

	lastCreateNetID fwmark.NetID
	lastCreatePerm  fwmark.Permission
	lastVPNStart    uint32
	lastVPNEnd      uint32
	lastVPNSecure   bool
}

func newFakeNetworks() *fakeNetworks {
	return &fakeNetworks{networks: make(map[fwmark.NetID]netctrl.Network)}
}

func (f *fakeNetworks) CreateNetwork(netID fwmark.NetID, perm fwmark.Permission) error {
	f.lastCreateNetID, f.lastCreatePerm = netID, perm
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.networks[netID]; exists {
		return netctrl.ErrDuplicateNetID
	}
	f.networks[netID] = netctrl.Network{}
	return nil
}

func (f *fakeNetworks) CreateVirtualNetwork(netID fwmark.NetID, start, end uint32, secure bool) error {
	f.lastVPNStart, f.lastVPNEnd, f.lastVPNSecure = start, end, secure
	if f.createVPNErr != nil {
		return f.createVPNErr
	}
	f.networks[netID] = netctrl.Network{}
	return nil
}

func (f *fakeNetworks) DestroyNetwork(netID fwmark.NetID) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	delete(f.networks, netID)
	return nil
}

func (f *fakeNetworks) AddInterfaceToNetwork(fwmark.NetID, string) error {
	return f.addIfaceErr
}

func (f *fakeNetworks) RemoveInterfaceFromNetwork(fwmark.NetID, string) error {
	return f.removeIfaceErr
}

func (f *fakeNetworks) SetDefaultNetwork(fwmark.NetID) error { return f.setDefaultErr }

func (f *fakeNetworks) SetPermissionForNetworks(fwmark.Permission, []fwmark.NetID) error {
	return f.setPermErr
}

func (f *fakeNetworks) AddUIDRange(fwmark.NetID, uint32, uint32, bool) error { return f.addUIDErr }
func (f *fakeNetworks) RemoveUIDRange(fwmark.NetID, uint32, uint32)          {}

func (f *fakeNetworks) Network(netID fwmark.NetID) (netctrl.Network, bool) {
	n, ok := f.networks[netID]
	return n, ok
}

func (f *fakeNetworks) UIDRanges() []netctrl.UIDRangeInfo { return f.uidRanges }

type fakeRoutes struct {
	addErr, removeErr error
	lastTableType     routecontrol.TableType
}

func (f *fakeRoutes) AddRoute(iface, dst, nexthop string, tt routecontrol.TableType, uid uint32) error {
	f.lastTableType = tt
	return f.addErr
}
func (f *fakeRoutes) RemoveRoute(iface, dst, nexthop string, tt routecontrol.TableType, uid uint32) error {
	return f.removeErr
}

type fakeFirewall struct {
	enableErr, disableErr, setRuleErr, replaceErr error
	lastMode                                      firewall.Mode
	lastChain                                     string
	lastUIDs                                      []uint32
}

func (f *fakeFirewall) EnableFirewall(mode firewall.Mode) error {
	f.lastMode = mode
	return f.enableErr
}
func (f *fakeFirewall) DisableFirewall() error { return f.disableErr }
func (f *fakeFirewall) SetUIDRule(chain string, uid uint32, rule firewall.UIDRule) error {
	f.lastChain = chain
	return f.setRuleErr
}
func (f *fakeFirewall) ReplaceUIDChain(chain string, mode firewall.Mode, uids []uint32) error {
	f.lastChain, f.lastMode, f.lastUIDs = chain, mode, uids
	return f.replaceErr
}

type fakePermissions struct {
	set map[uint32]fwmark.Permission
}

func newFakePermissions() *fakePermissions {
	return &fakePermissions{set: make(map[uint32]fwmark.Permission)}
}

func (f *fakePermissions) SetPermissionForUser(perm fwmark.Permission, uid uint32) {
	f.set[uid] = perm
}

func newTestDispatcher() (*Server, *fakeNetworks, *fakeRoutes, *fakeFirewall, *fakePermissions) {
	nets := newFakeNetworks()
	routes := &fakeRoutes{}
	fw := &fakeFirewall{}
	perms := newFakePermissions()
	return New("", nets, routes, fw, perms, nil), nets, routes, fw, perms
}

func TestNetworkCreateSuccess(t *testing.T) {
	s, nets, _, _, _ := newTestDispatcher()
	code, msg := s.execute([]string{"network", "create", "100", "CHANGE_NETWORK_STATE"})
	require.Equal(t, CommandOkay, code, msg)
	assert.Equal(t, fwmark.NetID(100), nets.lastCreateNetID)
	assert.Equal(t, fwmark.PermissionChangeNetworkState, nets.lastCreatePerm)
}

func TestNetworkCreateBadArity(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "create"})
	assert.Equal(t, CommandSyntaxErr, code)
}

func TestNetworkCreateUnknownPermission(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "create", "100", "NOT_A_PERMISSION"})
	assert.Equal(t, CommandParamErr, code)
}

func TestNetworkCreateDuplicatePropagatesAsOperationFailed(t *testing.T) {
	s, nets, _, _, _ := newTestDispatcher()
	nets.createErr = netctrl.ErrDuplicateNetID
	code, _ := s.execute([]string{"network", "create", "100"})
	assert.Equal(t, OperationFailed, code)
}

func TestNetworkCreateVPN(t *testing.T) {
	s, nets, _, _, _ := newTestDispatcher()
	code, msg := s.execute([]string{"network", "create", "vpn", "200", "1000-1999", "true"})
	require.Equal(t, CommandOkay, code, msg)
	assert.Equal(t, uint32(1000), nets.lastVPNStart)
	assert.Equal(t, uint32(1999), nets.lastVPNEnd)
	assert.True(t, nets.lastVPNSecure)
}

func TestNetworkCreateVPNBadRange(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "create", "vpn", "200", "1999-1000"})
	assert.Equal(t, CommandParamErr, code)
}

func TestNetworkDestroy(t *testing.T) {
	s, nets, _, _, _ := newTestDispatcher()
	nets.networks[5] = netctrl.Network{}
	code, _ := s.execute([]string{"network", "destroy", "5"})
	require.Equal(t, CommandOkay, code)
	_, ok := nets.networks[5]
	assert.False(t, ok)
}

func TestNetworkInterfaceAddRemove(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "interface", "add", "5", "wlan0"})
	assert.Equal(t, CommandOkay, code)
	code, _ = s.execute([]string{"network", "interface", "remove", "5", "wlan0"})
	assert.Equal(t, CommandOkay, code)
}

func TestNetworkDefaultSetAndClear(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "default", "set", "5"})
	assert.Equal(t, CommandOkay, code)
	code, _ = s.execute([]string{"network", "default", "clear"})
	assert.Equal(t, CommandOkay, code)
}

func TestNetworkPermissionUserSet(t *testing.T) {
	s, _, _, _, perms := newTestDispatcher()
	code, _ := s.execute([]string{"network", "permission", "user", "set", "CHANGE_NETWORK_STATE", "1000", "1001"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, fwmark.PermissionChangeNetworkState, perms.set[1000])
	assert.Equal(t, fwmark.PermissionChangeNetworkState, perms.set[1001])
}

func TestNetworkPermissionNetworkSet(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "permission", "network", "set", "CONNECTIVITY_INTERNAL", "5"})
	assert.Equal(t, CommandOkay, code)
}

func TestNetworkUIDRangeAddRemove(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "uidrange", "add", "5", "1000-1999", "true"})
	assert.Equal(t, CommandOkay, code)
	code, _ = s.execute([]string{"network", "uidrange", "remove", "5", "1000-1999", "true"})
	assert.Equal(t, CommandOkay, code)
}

func TestNetworkUIDRangeBadRange(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "uidrange", "add", "5", "not-a-range", "true"})
	assert.Equal(t, CommandParamErr, code)
}

func TestNetworkUIDRangesList(t *testing.T) {
	s, nets, _, _, _ := newTestDispatcher()
	nets.uidRanges = []netctrl.UIDRangeInfo{{Range: netctrl.UIDRange{Start: 1000, End: 1999}, NetID: 5, ForDNS: true}}
	code, msg := s.execute([]string{"network", "uidranges", "list"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, "OK", msg)

	code, msg = s.execute([]string{"dispatcher", "dump"})
	require.Equal(t, CommandOkay, code)
	assert.Contains(t, msg, "1000-1999")
}

func TestNetworkRouteAddUnknownNetwork(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "route", "add", "5", "wlan0", "10.0.0.0/24"})
	// A syntactically valid but nonexistent netId is a domain error,
	// not a malformed-parameter one.
	assert.Equal(t, OperationFailed, code)
}

func TestNetworkRouteAddKnownNetwork(t *testing.T) {
	s, nets, routes, _, _ := newTestDispatcher()
	nets.networks[5] = netctrl.Network{}
	code, _ := s.execute([]string{"network", "route", "add", "5", "wlan0", "10.0.0.0/24", "10.0.0.1"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, routecontrol.TableInterface, routes.lastTableType)
}

func TestFirewallEnableDisable(t *testing.T) {
	s, _, _, fw, _ := newTestDispatcher()
	code, _ := s.execute([]string{"firewall", "enable", "whitelist"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, firewall.Whitelist, fw.lastMode)

	code, _ = s.execute([]string{"firewall", "disable"})
	assert.Equal(t, CommandOkay, code)
}

func TestFirewallEnableBadMode(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"firewall", "enable", "sideways"})
	assert.Equal(t, CommandParamErr, code)
}

func TestFirewallSetUIDRule(t *testing.T) {
	s, _, _, fw, _ := newTestDispatcher()
	code, _ := s.execute([]string{"firewall", "set_uid_rule", "fw_dozable", "1000", "allow"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, "fw_dozable", fw.lastChain)
}

func TestFirewallSetUIDRuleGenericChain(t *testing.T) {
	s, _, _, fw, _ := newTestDispatcher()
	code, _ := s.execute([]string{"firewall", "set_uid_rule", "-", "1000", "deny"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, "", fw.lastChain)
}

func TestFirewallSetChain(t *testing.T) {
	s, _, _, fw, _ := newTestDispatcher()
	code, _ := s.execute([]string{"firewall", "set_chain", "fw_dozable", "whitelist", "1000", "1001"})
	require.Equal(t, CommandOkay, code)
	assert.Equal(t, []uint32{1000, 1001}, fw.lastUIDs)
}

func TestUnknownTopLevelCommand(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"bogus"})
	assert.Equal(t, CommandSyntaxErr, code)
}

func TestUnknownNetworkSubcommand(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute([]string{"network", "teleport"})
	assert.Equal(t, CommandSyntaxErr, code)
}

func TestEmptyCommand(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	code, _ := s.execute(nil)
	assert.Equal(t, CommandSyntaxErr, code)
}

func TestParseUIDRangeErrors(t *testing.T) {
	_, _, err := parseUIDRange("bad")
	require.Error(t, err)
	assert.Equal(t, CommandParamErr, codeFor(err))
}

func TestParseNetIDError(t *testing.T) {
	_, err := parseNetID("not-a-number")
	require.Error(t, err)
	assert.Equal(t, CommandSyntaxErr, codeFor(err))
}

func TestStatsReportsCommandCounters(t *testing.T) {
	s, _, _, _, _ := newTestDispatcher()
	// handleConn is what actually calls metrics.observe per line; exercise
	// it directly here since execute() alone (used by every other test in
	// this file) never touches the counters.
	s.metrics.observe("network", CommandOkay)
	s.metrics.observe("network", CommandSyntaxErr)

	code, msg := s.execute([]string{"stats"})
	require.Equal(t, CommandOkay, code)
	assert.Contains(t, msg, "netd_dispatcher_commands_total")
	assert.Contains(t, msg, `verb="network"`)
	assert.Contains(t, msg, `class="2xx"`)
	assert.Contains(t, msg, `class="5xx"`)
}
