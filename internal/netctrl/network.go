package netctrl

import "github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"

// Kind distinguishes the two network variants. Deliberately a tagged
// struct rather than an interface hierarchy: the two variants share
// almost every field and operation, and a Physical/Virtual type switch
// is simpler to reason about than a two-member class hierarchy.
type Kind int

const (
	Physical Kind = iota
	Virtual
)

func (k Kind) String() string {
	if k == Virtual {
		return "VIRTUAL"
	}
	return "PHYSICAL"
}

// LifecycleState tracks where a network sits in the
// Absent/Created/Populated/Default/Destroyed state machine.
type LifecycleState int

const (
	StateCreated LifecycleState = iota
	StatePopulated
	StateDefault
	StateDestroyed
)

// Network is one logical network: a set of member interfaces plus the
// variant-specific fields. Physical networks carry a required
// Permission; Virtual networks carry the UID range they own and
// whether they're secure (non-privileged apps cannot bypass them).
type Network struct {
	NetID      fwmark.NetID
	Kind       Kind
	Interfaces map[string]struct{}

	// Physical-only.
	Permission fwmark.Permission

	// Virtual-only.
	OwningUIDStart uint32
	OwningUIDEnd   uint32
	Secure         bool

	State LifecycleState
}

func newPhysicalNetwork(netID fwmark.NetID, permission fwmark.Permission) *Network {
	return &Network{
		NetID:      netID,
		Kind:       Physical,
		Interfaces: make(map[string]struct{}),
		Permission: permission,
		State:      StateCreated,
	}
}

func newVirtualNetwork(netID fwmark.NetID, uidStart, uidEnd uint32, secure bool) *Network {
	return &Network{
		NetID:          netID,
		Kind:           Virtual,
		Interfaces:     make(map[string]struct{}),
		OwningUIDStart: uidStart,
		OwningUIDEnd:   uidEnd,
		Secure:         secure,
		State:          StateCreated,
	}
}

// AddInterface records iface as a member. Populates the network if it
// was empty.
func (n *Network) AddInterface(iface string) {
	n.Interfaces[iface] = struct{}{}
	if n.State == StateCreated {
		n.State = StatePopulated
	}
}

// RemoveInterface drops iface. If this empties a Populated (not
// Default) network, it falls back to Created.
func (n *Network) RemoveInterface(iface string) {
	delete(n.Interfaces, iface)
	if len(n.Interfaces) == 0 && n.State == StatePopulated {
		n.State = StateCreated
	}
}

func (n *Network) HasInterface(iface string) bool {
	_, ok := n.Interfaces[iface]
	return ok
}

// ClearInterfaces empties the member set, used by destroy_network. The
// caller is responsible for unmarking the network as default first;
// this always leaves the network in StateCreated.
func (n *Network) ClearInterfaces() []string {
	ifaces := make([]string, 0, len(n.Interfaces))
	for iface := range n.Interfaces {
		ifaces = append(ifaces, iface)
	}
	n.Interfaces = make(map[string]struct{})
	n.State = StateCreated
	return ifaces
}

// markDefault transitions Populated -> Default. Only meaningful for
// Physical networks; callers enforce that.
func (n *Network) markDefault() { n.State = StateDefault }

// unmarkDefault transitions Default -> Populated (or Created, if it
// has no interfaces left).
func (n *Network) unmarkDefault() {
	if len(n.Interfaces) == 0 {
		n.State = StateCreated
		return
	}
	n.State = StatePopulated
}
