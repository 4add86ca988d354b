// Package routecontrol owns the policy-routing-rule ladder and the
// per-interface route tables that turn a fwmark into a routing
// decision: privileged-legacy, per-network, legacy and default-network
// fall-through, in the priority order listed in priorities.go.
package routecontrol

import (
	"github.com/vishvananda/netlink"
)

// Netlinker abstracts the netlink operations the route controller
// needs, so tests can substitute a mock instead of touching the real
// kernel routing tables.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)

	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error

	RuleAdd(rule *netlink.Rule) error
	RuleDel(rule *netlink.Rule) error
	RuleList(family int) ([]netlink.Rule, error)

	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
}

// ifNametoindex resolves an interface name to its kernel index through
// the Netlinker, so the controller never calls net.InterfaceByName
// directly and stays mockable.
func ifNametoindex(nl Netlinker, name string) (int, error) {
	link, err := nl.LinkByName(name)
	if err != nil {
		return 0, err
	}
	return link.Attrs().Index, nil
}
