//go:build !linux

package routecontrol

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// RealNetlinker stubs out netlink access on platforms that don't have
// it, so the package still builds for local development off-target.
type RealNetlinker struct{}

func (RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return nil, fmt.Errorf("routecontrol: netlink not supported on this platform")
}

func (RealNetlinker) RouteAdd(route *netlink.Route) error { return nil }
func (RealNetlinker) RouteDel(route *netlink.Route) error { return nil }

func (RealNetlinker) RuleAdd(rule *netlink.Rule) error { return nil }
func (RealNetlinker) RuleDel(rule *netlink.Rule) error { return nil }
func (RealNetlinker) RuleList(family int) ([]netlink.Rule, error) {
	return nil, nil
}

func (RealNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return nil, nil
}
