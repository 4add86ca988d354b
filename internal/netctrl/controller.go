// Package netctrl implements the network registry and the Network
// controller: the component every other piece of the daemon asks
// "which network does this socket/packet belong to."
package netctrl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/permission"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/routecontrol"
)

var (
	ErrInvalidNetID   = errors.New("netctrl: netId out of range [10, 65535]")
	ErrDuplicateNetID = errors.New("netctrl: netId already exists")
	ErrUnknownNetID   = errors.New("netctrl: netId does not exist")
	ErrNotVirtual     = errors.New("netctrl: operation requires a virtual network")
	ErrNotPhysical    = errors.New("netctrl: operation requires a physical network")
	ErrInterfaceInUse = errors.New("netctrl: interface already belongs to a network")
)

// DNSCacheInvalidator lets the network controller tell the DNS proxy to
// drop any cached answers keyed by a netId that just got destroyed,
// without netctrl importing dnsproxy directly.
type DNSCacheInvalidator interface {
	InvalidateNetwork(netID fwmark.NetID)
}

// IngressMarkInstaller installs and removes the prerouting rule that
// stamps packets arriving on an interface with its network's raw id.
// Satisfied by *firewall.IngressMarker.
type IngressMarkInstaller interface {
	InstallForInterface(iface string, netID uint32) error
	RemoveForInterface(iface string) error
}

// Controller composes the network registry, the UID range ladder, the
// default-netId slot, and the permission registry behind one RWMutex.
// It delegates all kernel-facing rule edits to routecontrol.Controller.
type Controller struct {
	mu sync.RWMutex

	networks     map[fwmark.NetID]*Network
	ifaceOwner   map[string]fwmark.NetID
	uidRanges    uidRangeList
	defaultNetID fwmark.NetID

	routes      *routecontrol.Controller
	permissions *permission.Registry
	dnsCache    DNSCacheInvalidator
	ingress     IngressMarkInstaller
	logger      *logging.Logger
}

// NewController wires a Network controller on top of an already-Init'd
// route controller and a permission registry. dnsCache may be nil if
// no DNS proxy is present (e.g. in tests). The ingress marker is set
// separately, via SetIngressMarker, once one is available.
func NewController(routes *routecontrol.Controller, permissions *permission.Registry, dnsCache DNSCacheInvalidator) *Controller {
	return &Controller{
		networks:     make(map[fwmark.NetID]*Network),
		ifaceOwner:   make(map[string]fwmark.NetID),
		defaultNetID: fwmark.Unset,
		routes:       routes,
		permissions:  permissions,
		dnsCache:     dnsCache,
		logger:       logging.WithComponent("netctrl"),
	}
}

// SetIngressMarker installs the ingress packet-marking backend after
// construction, since opening a real one requires a privileged
// nftables connection that daemon.New defers to Run. Safe to call
// before any network exists; every AddInterfaceToNetwork call after
// this point installs the marking rule alongside the route rules.
func (c *Controller) SetIngressMarker(m IngressMarkInstaller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingress = m
}

// GetNetworkForUser implements the selection algorithm: UID-range
// ladder first (skipping non-DNS entries when forDNS is true, without
// terminating the scan), then the caller's requested netId if it
// exists, then the default.
func (c *Controller) GetNetworkForUser(uid uint32, requestedNetID fwmark.NetID, forDNS bool) fwmark.NetID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if netID, ok := c.uidRanges.firstMatch(uid, forDNS); ok {
		return netID
	}
	if requestedNetID != fwmark.Unset {
		if _, ok := c.networks[requestedNetID]; ok {
			return requestedNetID
		}
	}
	return c.defaultNetID
}

// CreateNetwork allocates a new physical network with the given
// required permission.
func (c *Controller) CreateNetwork(netID fwmark.NetID, requiredPermission fwmark.Permission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createNetwork(netID, func() *Network { return newPhysicalNetwork(netID, requiredPermission) })
}

// CreateVirtualNetwork allocates a VPN-style network that owns a fixed
// UID range. Grounded on the original's VirtualNetwork split from
// PhysicalNetwork: every VPN immediately claims its owning UID range
// in the selection ladder so traffic from those UIDs routes through
// the tunnel by default, unless an explicit override shadows it.
func (c *Controller) CreateVirtualNetwork(netID fwmark.NetID, uidStart, uidEnd uint32, secure bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.createNetwork(netID, func() *Network { return newVirtualNetwork(netID, uidStart, uidEnd, secure) }); err != nil {
		return err
	}
	c.uidRanges.addFront(UIDRange{Start: uidStart, End: uidEnd}, netID, true)
	return nil
}

func (c *Controller) createNetwork(netID fwmark.NetID, build func() *Network) error {
	if !netID.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidNetID, netID)
	}
	if _, exists := c.networks[netID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateNetID, netID)
	}
	c.networks[netID] = build()
	c.logger.Audit("network_create", fmt.Sprintf("netId=%d", netID), nil)
	return nil
}

// DestroyNetwork tears a network down entirely: clears its interfaces
// (flushing each one's table), demotes it from default if it was
// default, drops every UID-range entry that referenced it, and clears
// its permission requirement so the netId can be reused.
func (c *Controller) DestroyNetwork(netID fwmark.NetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	net, ok := c.networks[netID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
	}

	if net.State == StateDefault {
		for iface := range net.Interfaces {
			if err := c.routes.RemoveFromDefaultNetwork(iface, net.Permission); err != nil {
				c.logger.Warn("failed to remove default-network rule during destroy", "netId", netID, "iface", iface, "err", err)
			}
		}
		net.unmarkDefault()
		c.defaultNetID = fwmark.Unset
	}

	for iface := range net.Interfaces {
		if err := c.routes.RemoveInterfaceFromNetwork(netID, iface, net.Permission); err != nil {
			c.logger.Warn("failed to remove per-network rules during destroy", "netId", netID, "iface", iface, "err", err)
		}
		if c.ingress != nil {
			if err := c.ingress.RemoveForInterface(iface); err != nil {
				c.logger.Warn("failed to remove ingress mark rule during destroy", "netId", netID, "iface", iface, "err", err)
			}
		}
		delete(c.ifaceOwner, iface)
	}
	net.ClearInterfaces()

	c.uidRanges.removeNetwork(netID)
	c.permissions.ClearNetwork(uint32(netID))
	delete(c.networks, netID)

	if c.dnsCache != nil {
		c.dnsCache.InvalidateNetwork(netID)
	}

	c.logger.Audit("network_destroy", fmt.Sprintf("netId=%d", netID), nil)
	return nil
}

// AddInterfaceToNetwork attaches iface to netID, installing its
// per-network rule triple and the ingress packet-marking rule. An
// interface may belong to at most one network at a time.
func (c *Controller) AddInterfaceToNetwork(netID fwmark.NetID, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	net, ok := c.networks[netID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
	}
	if owner, taken := c.ifaceOwner[iface]; taken && owner != netID {
		return fmt.Errorf("%w: %s belongs to network %d", ErrInterfaceInUse, iface, owner)
	}

	if err := c.routes.AddInterfaceToNetwork(netID, iface, net.Permission); err != nil {
		return err
	}
	if c.ingress != nil {
		if err := c.ingress.InstallForInterface(iface, uint32(netID)); err != nil {
			return fmt.Errorf("netctrl: installing ingress mark rule for %s: %w", iface, err)
		}
	}
	net.AddInterface(iface)
	c.ifaceOwner[iface] = netID
	return nil
}

// RemoveInterfaceFromNetwork detaches iface from netID, removing its
// per-network rule triple and flushing its route table.
func (c *Controller) RemoveInterfaceFromNetwork(netID fwmark.NetID, iface string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	net, ok := c.networks[netID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
	}
	if !net.HasInterface(iface) {
		return fmt.Errorf("netctrl: %s is not attached to network %d", iface, netID)
	}

	if err := c.routes.RemoveInterfaceFromNetwork(netID, iface, net.Permission); err != nil {
		return err
	}
	if c.ingress != nil {
		if err := c.ingress.RemoveForInterface(iface); err != nil {
			c.logger.Warn("failed to remove ingress mark rule", "netId", netID, "iface", iface, "err", err)
		}
	}
	net.RemoveInterface(iface)
	delete(c.ifaceOwner, iface)
	return nil
}

// SetDefaultNetwork installs netID as the default, or clears it if
// netID is fwmark.Unset. The new default's priority-19000 rule is
// installed before the old one is removed, so there is never a
// window with no default route at all.
func (c *Controller) SetDefaultNetwork(netID fwmark.NetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if netID == c.defaultNetID {
		return nil
	}

	var newNet *Network
	if netID != fwmark.Unset {
		n, ok := c.networks[netID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
		}
		if n.Kind != Physical {
			return fmt.Errorf("%w: network %d", ErrNotPhysical, netID)
		}
		newNet = n
	}

	oldNetID := c.defaultNetID

	if newNet != nil {
		for iface := range newNet.Interfaces {
			if err := c.routes.AddToDefaultNetwork(iface, newNet.Permission); err != nil {
				return fmt.Errorf("netctrl: installing default-network rule for %d: %w", netID, err)
			}
		}
		newNet.markDefault()
	}

	if oldNetID != fwmark.Unset {
		if oldNet, ok := c.networks[oldNetID]; ok {
			for iface := range oldNet.Interfaces {
				if err := c.routes.RemoveFromDefaultNetwork(iface, oldNet.Permission); err != nil {
					c.logger.Warn("failed to remove old default-network rule", "netId", oldNetID, "err", err)
				}
			}
			oldNet.unmarkDefault()
		}
	}

	c.defaultNetID = netID
	c.logger.Audit("default_network_set", fmt.Sprintf("netId=%d", netID), map[string]any{"previous": oldNetID})
	return nil
}

// SetPermissionForNetworks updates the required permission on each
// netID, installing rules at the new permission before removing the
// old ones so there is no gap.
func (c *Controller) SetPermissionForNetworks(newPermission fwmark.Permission, netIDs []fwmark.NetID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, netID := range netIDs {
		net, ok := c.networks[netID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
		}
		if net.Kind != Physical {
			return fmt.Errorf("%w: network %d", ErrNotPhysical, netID)
		}
		oldPermission := net.Permission
		for iface := range net.Interfaces {
			if err := c.routes.ModifyNetworkPermission(netID, iface, oldPermission, newPermission); err != nil {
				return fmt.Errorf("netctrl: changing permission on network %d: %w", netID, err)
			}
		}
		net.Permission = newPermission
		c.permissions.SetPermissionForNetwork(newPermission, uint32(netID))
	}
	return nil
}

// AddUIDRange inserts a new UID-range -> netId binding at the front of
// the selection ladder, so it shadows any pre-existing overlapping
// range.
func (c *Controller) AddUIDRange(netID fwmark.NetID, start, end uint32, forDNS bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.networks[netID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetID, netID)
	}
	c.uidRanges.addFront(UIDRange{Start: start, End: end}, netID, forDNS)
	return nil
}

// RemoveUIDRange drops a previously-added binding.
func (c *Controller) RemoveUIDRange(netID fwmark.NetID, start, end uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uidRanges.remove(UIDRange{Start: start, End: end}, netID)
}

// Network returns a snapshot copy of netID's state, safe to read after
// the call returns without holding any lock.
func (c *Controller) Network(netID fwmark.NetID) (Network, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	net, ok := c.networks[netID]
	if !ok {
		return Network{}, false
	}
	snapshot := *net
	snapshot.Interfaces = make(map[string]struct{}, len(net.Interfaces))
	for iface := range net.Interfaces {
		snapshot.Interfaces[iface] = struct{}{}
	}
	return snapshot, true
}

// UIDRanges returns a snapshot of the selection ladder in priority
// order (front of the list wins), for the uidranges-list supplement.
func (c *Controller) UIDRanges() []UIDRangeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]UIDRangeInfo, len(c.uidRanges.entries))
	for i, e := range c.uidRanges.entries {
		out[i] = UIDRangeInfo{Range: e.UIDRange, NetID: e.netID, ForDNS: e.forDNS}
	}
	return out
}

// UIDRangeInfo is the read-only view of one selection-ladder entry.
type UIDRangeInfo struct {
	Range  UIDRange
	NetID  fwmark.NetID
	ForDNS bool
}
