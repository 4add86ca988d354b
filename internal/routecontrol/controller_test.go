package routecontrol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

func newTestController(nl Netlinker) *Controller {
	return NewController(nl)
}

func TestInitInstallsFourRulesBothFamilies(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("RuleAdd", mock.Anything).Return(nil)

	c := newTestController(nl)
	assert.NoError(t, c.Init())

	// 4 rules x 2 address families.
	nl.AssertNumberOfCalls(t, "RuleAdd", 8)
}

func TestAddInterfaceToNetworkInstallsRuleTriple(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "wlan0").Return(newStubLink("wlan0", 5), nil)

	var tables []int
	nl.On("RuleAdd", mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(0).(*netlink.Rule)
		tables = append(tables, r.Table)
	}).Return(nil)

	c := newTestController(nl)
	err := c.AddInterfaceToNetwork(100, "wlan0", fwmark.PermissionNone)
	assert.NoError(t, err)

	nl.AssertNumberOfCalls(t, "RuleAdd", 6) // 3 rules x 2 families
	wantTable := RouteTableOffset + 5
	for _, table := range tables {
		assert.Equal(t, wantTable, table)
	}
}

func TestAddInterfaceToNetworkUnknownInterface(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "ghost0").Return(nil, errors.New("no such device"))

	c := newTestController(nl)
	err := c.AddInterfaceToNetwork(100, "ghost0", fwmark.PermissionNone)
	assert.ErrorIs(t, err, ErrInterfaceUnknown)
}

func TestRemoveInterfaceFromNetworkFlushesTable(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "wlan0").Return(newStubLink("wlan0", 5), nil)
	nl.On("RuleDel", mock.Anything).Return(nil)
	nl.On("RouteListFiltered", mock.Anything, mock.Anything, mock.Anything).
		Return([]netlink.Route{{Table: RouteTableOffset + 5}, {Table: RouteTableOffset + 5}}, nil)
	nl.On("RouteDel", mock.Anything).Return(nil)

	c := newTestController(nl)
	err := c.RemoveInterfaceFromNetwork(100, "wlan0", fwmark.PermissionNone)
	assert.NoError(t, err)

	nl.AssertNumberOfCalls(t, "RuleDel", 6)
	nl.AssertNumberOfCalls(t, "RouteDel", 2)
}

func TestModifyNetworkPermissionInstallsBeforeRemoving(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "wlan0").Return(newStubLink("wlan0", 5), nil)

	var order []string
	nl.On("RuleAdd", mock.Anything).Run(func(mock.Arguments) { order = append(order, "add") }).Return(nil)
	nl.On("RuleDel", mock.Anything).Run(func(mock.Arguments) { order = append(order, "del") }).Return(nil)

	c := newTestController(nl)
	err := c.ModifyNetworkPermission(100, "wlan0", fwmark.PermissionChangeNetworkState, fwmark.PermissionConnectivityInternal)
	assert.NoError(t, err)

	assert.NotEmpty(t, order)
	assert.Equal(t, "add", order[0])
	assert.Equal(t, "del", order[len(order)-1])
}

func TestAddRouteDirectlyConnectedInsertsMainTableAndIgnoresDuplicate(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "wlan0").Return(newStubLink("wlan0", 5), nil)

	var tables []int
	nl.On("RouteAdd", mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(0).(*netlink.Route)
		tables = append(tables, r.Table)
	}).Return(nil).Once()
	nl.On("RouteAdd", mock.Anything).Return(errors.New("file exists")).Once()

	c := newTestController(nl)
	err := c.AddRoute("wlan0", "192.168.1.0/24", "", TableInterface, 0)
	assert.NoError(t, err)

	nl.AssertNumberOfCalls(t, "RouteAdd", 2)
	assert.Equal(t, RouteTableOffset+5, tables[0])
}

func TestAddRouteDirectlyConnectedSurfacesOtherErrors(t *testing.T) {
	nl := &MockNetlinker{}
	nl.On("LinkByName", "wlan0").Return(newStubLink("wlan0", 5), nil)
	nl.On("RouteAdd", mock.Anything).Return(nil).Once()
	nl.On("RouteAdd", mock.Anything).Return(errors.New("network is unreachable")).Once()

	c := newTestController(nl)
	err := c.AddRoute("wlan0", "192.168.1.0/24", "", TableInterface, 0)
	assert.Error(t, err)
}

func TestAddRouteLegacyAndPrivilegedLegacyTables(t *testing.T) {
	nl := &MockNetlinker{}

	var tables []int
	nl.On("RouteAdd", mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(0).(*netlink.Route)
		tables = append(tables, r.Table)
	}).Return(nil)

	c := newTestController(nl)
	assert.NoError(t, c.AddRoute("", "10.0.0.0/8", "10.0.0.1", TableLegacyType, 1000))
	assert.NoError(t, c.AddRoute("", "10.0.0.0/8", "10.0.0.1", TablePrivilegedLegacyType, 1000))

	assert.Contains(t, tables, TableLegacy)
	assert.Contains(t, tables, TablePrivilegedLegacy)
}
