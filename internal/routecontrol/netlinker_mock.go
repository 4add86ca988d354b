package routecontrol

import (
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a testify mock of Netlinker for controller tests.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) RouteAdd(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteDel(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RuleAdd(rule *netlink.Rule) error {
	args := m.Called(rule)
	return args.Error(0)
}

func (m *MockNetlinker) RuleDel(rule *netlink.Rule) error {
	args := m.Called(rule)
	return args.Error(0)
}

func (m *MockNetlinker) RuleList(family int) ([]netlink.Rule, error) {
	args := m.Called(family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Rule), args.Error(1)
}

func (m *MockNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	args := m.Called(family, filter, filterMask)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Route), args.Error(1)
}

// stubLink is a minimal netlink.Link for tests that need LinkByName to
// succeed with a known index.
type stubLink struct {
	attrs netlink.LinkAttrs
}

func newStubLink(name string, index int) *stubLink {
	return &stubLink{attrs: netlink.LinkAttrs{Name: name, Index: index}}
}

func (l *stubLink) Attrs() *netlink.LinkAttrs { return &l.attrs }
func (l *stubLink) Type() string              { return "stub" }
