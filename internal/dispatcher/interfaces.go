package dispatcher

import (
	"github.com/CyanogenMod/android-system-netd-sub000/internal/firewall"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/netctrl"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/routecontrol"
)

// NetworkController is the subset of netctrl.Controller the dispatcher
// drives. Narrowed to an interface so tests can substitute a fake
// registry instead of wiring routecontrol/nftables for real.
type NetworkController interface {
	CreateNetwork(netID fwmark.NetID, requiredPermission fwmark.Permission) error
	CreateVirtualNetwork(netID fwmark.NetID, uidStart, uidEnd uint32, secure bool) error
	DestroyNetwork(netID fwmark.NetID) error
	AddInterfaceToNetwork(netID fwmark.NetID, iface string) error
	RemoveInterfaceFromNetwork(netID fwmark.NetID, iface string) error
	SetDefaultNetwork(netID fwmark.NetID) error
	SetPermissionForNetworks(newPermission fwmark.Permission, netIDs []fwmark.NetID) error
	AddUIDRange(netID fwmark.NetID, start, end uint32, forDNS bool) error
	RemoveUIDRange(netID fwmark.NetID, start, end uint32)
	Network(netID fwmark.NetID) (netctrl.Network, bool)
	UIDRanges() []netctrl.UIDRangeInfo
}

// RouteController is the subset of routecontrol.Controller the
// dispatcher's "network route" commands drive directly; route edits
// bypass netctrl since they don't change network membership.
type RouteController interface {
	AddRoute(iface, destination, nexthop string, tableType routecontrol.TableType, uid uint32) error
	RemoveRoute(iface, destination, nexthop string, tableType routecontrol.TableType, uid uint32) error
}

// FirewallController is the subset of firewall.Controller the
// dispatcher's "firewall" commands drive.
type FirewallController interface {
	EnableFirewall(mode firewall.Mode) error
	DisableFirewall() error
	SetUIDRule(chainName string, uid uint32, rule firewall.UIDRule) error
	ReplaceUIDChain(chainName string, mode firewall.Mode, uids []uint32) error
}

// PermissionSetter lets "network permission user set" update the
// per-UID permission registry directly (network permission goes
// through NetworkController.SetPermissionForNetworks instead, since
// that also edits routing rules).
type PermissionSetter interface {
	SetPermissionForUser(permission fwmark.Permission, uid uint32)
}
