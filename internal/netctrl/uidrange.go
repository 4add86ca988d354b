package netctrl

import "github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"

// UIDRange is an inclusive [Start, End] range of Android UIDs.
type UIDRange struct {
	Start uint32
	End   uint32
}

// Contains reports whether uid falls inside the range.
func (r UIDRange) Contains(uid uint32) bool {
	return uid >= r.Start && uid <= r.End
}

// uidRangeEntry binds a UIDRange to the network it selects, plus
// whether that binding should be honored for DNS-only lookups.
type uidRangeEntry struct {
	UIDRange
	netID  fwmark.NetID
	forDNS bool
}

// uidRangeList is the front-insertion, first-match-wins ladder used by
// GetNetworkForUser. Newer explicit UID assignments are inserted at the
// front so they shadow older overlapping ones, matching the documented
// "last explicit wins" selection rule.
type uidRangeList struct {
	entries []uidRangeEntry
}

// addFront inserts a new entry ahead of all existing ones.
func (l *uidRangeList) addFront(r UIDRange, netID fwmark.NetID, forDNS bool) {
	l.entries = append([]uidRangeEntry{{UIDRange: r, netID: netID, forDNS: forDNS}}, l.entries...)
}

// remove drops every entry exactly matching (r, netID).
func (l *uidRangeList) remove(r UIDRange, netID fwmark.NetID) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.UIDRange == r && e.netID == netID {
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
}

// removeNetwork drops every entry bound to netID, used by destroy_network.
func (l *uidRangeList) removeNetwork(netID fwmark.NetID) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.netID == netID {
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
}

// firstMatch walks the ladder front-to-back and returns the first entry
// whose range contains uid. When forDNS is true, entries that aren't
// marked forDNS are skipped rather than stopping the search — a
// non-DNS-eligible range doesn't shadow a DNS-eligible one further back.
func (l *uidRangeList) firstMatch(uid uint32, forDNS bool) (fwmark.NetID, bool) {
	for _, e := range l.entries {
		if !e.Contains(uid) {
			continue
		}
		if forDNS && !e.forDNS {
			continue
		}
		return e.netID, true
	}
	return fwmark.Unset, false
}
