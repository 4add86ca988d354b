//go:build linux

package routecontrol

import "github.com/vishvananda/netlink"

// RealNetlinker is the production Netlinker, backed by the kernel via
// github.com/vishvananda/netlink.
type RealNetlinker struct{}

func (RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (RealNetlinker) RouteAdd(route *netlink.Route) error { return netlink.RouteAdd(route) }
func (RealNetlinker) RouteDel(route *netlink.Route) error { return netlink.RouteDel(route) }

func (RealNetlinker) RuleAdd(rule *netlink.Rule) error { return netlink.RuleAdd(rule) }
func (RealNetlinker) RuleDel(rule *netlink.Rule) error { return netlink.RuleDel(rule) }
func (RealNetlinker) RuleList(family int) ([]netlink.Rule, error) {
	return netlink.RuleList(family)
}

func (RealNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return netlink.RouteListFiltered(family, filter, filterMask)
}
