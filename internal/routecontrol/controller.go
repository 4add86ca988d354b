package routecontrol

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// ErrInterfaceUnknown is returned when a table number cannot be
// resolved because the interface was never seen and isn't cached.
var ErrInterfaceUnknown = errors.New("routecontrol: interface has no known table")

const netIDMask = 0x0000ffff

// Controller owns the policy-routing-rule ladder and per-table route
// edits. It is safe for concurrent use; callers above it (the network
// controller) still serialize writes through the single-writer
// command dispatcher, but the ifindex cache has its own lock.
type Controller struct {
	nl     Netlinker
	ifidx  *ifindexCache
	logger *logging.Logger
}

// NewController wraps nl with the rule-ladder logic. Init must be
// called once, before any network is created.
func NewController(nl Netlinker) *Controller {
	return &Controller{
		nl:     nl,
		ifidx:  newIfindexCache(),
		logger: logging.WithComponent("routecontrol"),
	}
}

// Init installs the priority-11000 (privileged legacy), 16000 (legacy)
// 20000 (main fallthrough) and 21000 (unreachable catch-all) rules.
// Must run before any network is created.
func (c *Controller) Init() error {
	// 11000: privileged legacy — mark carries CONNECTIVITY_INTERNAL.
	mark := fwmark.Encode(fwmark.Unset, false, false, fwmark.PermissionConnectivityInternal)
	mask := fwmark.EncodeMask(false, false, false, fwmark.PermissionConnectivityInternal)
	if err := c.addRuleBothFamilies(priorityPrivilegedLegacy, TablePrivilegedLegacy, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: init privileged-legacy rule: %w", err)
	}

	// 16000: legacy — explicitly_selected == 0.
	mark = fwmark.Encode(fwmark.Unset, false, false, fwmark.PermissionNone)
	mask = fwmark.EncodeMask(false, true, false, fwmark.PermissionNone)
	if err := c.addRuleBothFamilies(priorityLegacy, TableLegacy, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: init legacy rule: %w", err)
	}

	// 20000: main table fallthrough — netId == 0 (no network chosen).
	mark = fwmark.Encode(fwmark.Unset, false, false, fwmark.PermissionNone)
	mask = fwmark.EncodeMask(true, false, false, fwmark.PermissionNone)
	if err := c.addRuleBothFamilies(priorityMain, TableMain, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: init main-table rule: %w", err)
	}

	// 21000: catch-all unreachable.
	if err := c.addUnreachableRule(); err != nil {
		return fmt.Errorf("routecontrol: init unreachable rule: %w", err)
	}

	return nil
}

// AddInterfaceToNetwork installs the per-network rule triple
// (13000/14000/17000) for (netID, iface, permission).
func (c *Controller) AddInterfaceToNetwork(netID fwmark.NetID, iface string, permission fwmark.Permission) error {
	return c.modifyPerNetworkRules(netID, iface, permission, true)
}

// RemoveInterfaceFromNetwork removes the per-network rule triple and
// flushes the interface's route table.
func (c *Controller) RemoveInterfaceFromNetwork(netID fwmark.NetID, iface string, permission fwmark.Permission) error {
	if err := c.modifyPerNetworkRules(netID, iface, permission, false); err != nil {
		return err
	}
	return c.flushTable(iface)
}

// ModifyNetworkPermission swaps the permission requirement for an
// already-attached interface. New rules go in before old ones come
// out, so there is no window with no matching rule at all.
func (c *Controller) ModifyNetworkPermission(netID fwmark.NetID, iface string, oldPermission, newPermission fwmark.Permission) error {
	if err := c.modifyPerNetworkRules(netID, iface, newPermission, true); err != nil {
		return err
	}
	return c.modifyPerNetworkRules(netID, iface, oldPermission, false)
}

// AddToDefaultNetwork installs the priority-19000 default-network rule.
func (c *Controller) AddToDefaultNetwork(iface string, permission fwmark.Permission) error {
	return c.modifyDefaultNetworkRule(iface, permission, true)
}

// RemoveFromDefaultNetwork removes the priority-19000 rule.
func (c *Controller) RemoveFromDefaultNetwork(iface string, permission fwmark.Permission) error {
	return c.modifyDefaultNetworkRule(iface, permission, false)
}

func (c *Controller) modifyPerNetworkRules(netID fwmark.NetID, iface string, permission fwmark.Permission, add bool) error {
	table := c.ifidx.tableForInterface(c.nl, iface)
	if table == 0 {
		return fmt.Errorf("%w: %s", ErrInterfaceUnknown, iface)
	}

	// 14000: outgoing-interface forcing — oif=iface, permission satisfied.
	mark := fwmark.Encode(fwmark.Unset, false, false, permission)
	mask := fwmark.EncodeMask(false, false, false, permission)
	if err := c.rule(add, priorityPerNetworkInterface, table, mark, mask, iface); err != nil {
		return fmt.Errorf("routecontrol: per-network-interface rule for %s: %w", iface, err)
	}

	// 17000: per-network normal — netId matches.
	mark = fwmark.Encode(netID, false, false, fwmark.PermissionNone)
	mask = fwmark.EncodeMask(true, false, false, fwmark.PermissionNone)
	if err := c.rule(add, priorityPerNetworkNormal, table, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: per-network-normal rule for %s: %w", iface, err)
	}

	// 13000: explicitly selected network — explicit bit + netId.
	mark = fwmark.Encode(netID, true, false, fwmark.PermissionNone)
	mask = fwmark.EncodeMask(true, true, false, fwmark.PermissionNone)
	if err := c.rule(add, priorityPerNetworkExplicit, table, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: per-network-explicit rule for %s: %w", iface, err)
	}

	return nil
}

func (c *Controller) modifyDefaultNetworkRule(iface string, permission fwmark.Permission, add bool) error {
	table := c.ifidx.tableForInterface(c.nl, iface)
	if table == 0 {
		return fmt.Errorf("%w: %s", ErrInterfaceUnknown, iface)
	}

	mark := fwmark.Encode(fwmark.Unset, false, false, permission)
	mask := fwmark.EncodeMask(true, false, false, permission)
	if err := c.rule(add, priorityDefaultNetwork, table, mark, mask, ""); err != nil {
		return fmt.Errorf("routecontrol: default-network rule for %s: %w", iface, err)
	}
	return nil
}

func (c *Controller) flushTable(iface string) error {
	table := c.ifidx.tableForInterface(c.nl, iface)
	c.ifidx.forget(iface)
	if table == 0 {
		return nil
	}
	routes, err := c.nl.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return fmt.Errorf("routecontrol: listing table %d for %s: %w", table, iface, err)
	}
	for i := range routes {
		if err := c.nl.RouteDel(&routes[i]); err != nil && !isExistsErr(err) {
			c.logger.Warn("failed to remove route during table flush", "iface", iface, "table", table, "err", err)
		}
	}
	return nil
}

// AddRoute installs a route in the table selected by tableType. If the
// route has no nexthop (directly connected), the same route is also
// installed in the main table so the kernel can validate later
// gateways are reachable; a pre-existing duplicate there is ignored.
func (c *Controller) AddRoute(iface, destination, nexthop string, tableType TableType, uid uint32) error {
	return c.modifyRoute(iface, destination, nexthop, tableType, uid, true)
}

// RemoveRoute removes a route previously installed by AddRoute.
func (c *Controller) RemoveRoute(iface, destination, nexthop string, tableType TableType, uid uint32) error {
	return c.modifyRoute(iface, destination, nexthop, tableType, uid, false)
}

func (c *Controller) modifyRoute(iface, destination, nexthop string, tableType TableType, _ uint32, add bool) error {
	table, err := c.resolveTableType(iface, tableType)
	if err != nil {
		return err
	}

	route, err := c.buildRoute(iface, destination, nexthop, table)
	if err != nil {
		return err
	}

	if err := c.applyRoute(route, add); err != nil {
		return fmt.Errorf("routecontrol: route on table %d: %w", table, err)
	}

	if nexthop == "" {
		mainRoute, err := c.buildRoute(iface, destination, "", TableMain)
		if err != nil {
			return err
		}
		if err := c.applyRoute(mainRoute, add); err != nil && !(add && isExistsErr(err)) {
			return fmt.Errorf("routecontrol: directly-connected route on main table: %w", err)
		}
	}

	return nil
}

func (c *Controller) resolveTableType(iface string, tableType TableType) (int, error) {
	switch tableType {
	case TableInterface:
		table := c.ifidx.tableForInterface(c.nl, iface)
		if table == 0 {
			return 0, fmt.Errorf("%w: %s", ErrInterfaceUnknown, iface)
		}
		return table, nil
	case TableLegacyType:
		return TableLegacy, nil
	case TablePrivilegedLegacyType:
		return TablePrivilegedLegacy, nil
	default:
		return 0, fmt.Errorf("routecontrol: unknown table type %d", tableType)
	}
}

func (c *Controller) buildRoute(iface, destination, nexthop string, table int) (*netlink.Route, error) {
	route := &netlink.Route{Table: table}

	if destination != "" {
		_, dst, err := net.ParseCIDR(destination)
		if err != nil {
			return nil, fmt.Errorf("routecontrol: invalid destination %q: %w", destination, err)
		}
		route.Dst = dst
	}

	if iface != "" {
		index, err := ifNametoindex(c.nl, iface)
		if err != nil {
			return nil, fmt.Errorf("routecontrol: resolving interface %q: %w", iface, err)
		}
		route.LinkIndex = index
	}

	if nexthop != "" {
		gw := net.ParseIP(nexthop)
		if gw == nil {
			return nil, fmt.Errorf("routecontrol: invalid nexthop %q", nexthop)
		}
		route.Gw = gw
	}

	return route, nil
}

func (c *Controller) applyRoute(route *netlink.Route, add bool) error {
	if add {
		return c.nl.RouteAdd(route)
	}
	return c.nl.RouteDel(route)
}

func (c *Controller) rule(add bool, priority, table int, mark, mask uint32, oifName string) error {
	r := netlink.NewRule()
	r.Priority = priority
	r.Table = table
	r.Mark = mark
	r.Mask = &mask
	if oifName != "" {
		r.OifName = oifName
	}

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		r.Family = family
		var err error
		if add {
			err = c.nl.RuleAdd(r)
		} else {
			err = c.nl.RuleDel(r)
		}
		if err != nil && !isExistsErr(err) && !isNotFoundErr(err) {
			return err
		}
	}
	return nil
}

func (c *Controller) addRuleBothFamilies(priority, table int, mark, mask uint32, oifName string) error {
	return c.rule(true, priority, table, mark, mask, oifName)
}

func (c *Controller) addUnreachableRule() error {
	r := netlink.NewRule()
	r.Priority = priorityUnreachable
	r.Type = unix.RTN_UNREACHABLE

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		r.Family = family
		if err := c.nl.RuleAdd(r); err != nil && !isExistsErr(err) {
			return err
		}
	}
	return nil
}

func isExistsErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "file exists")
}

func isNotFoundErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "no such process") ||
		strings.Contains(err.Error(), "no such file or directory"))
}
