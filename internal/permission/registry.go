// Package permission tracks which Permission bits each UID and each
// network currently hold, and answers the one question every other
// controller asks before it acts: is this caller allowed to touch that
// network.
package permission

import (
	"sync"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

// Registry holds the two sparse uid/netId -> Permission maps. The zero
// value is ready to use: an absent entry means fwmark.PermissionNone.
type Registry struct {
	mu       sync.RWMutex
	users    map[uint32]fwmark.Permission
	networks map[uint32]fwmark.Permission
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:    make(map[uint32]fwmark.Permission),
		networks: make(map[uint32]fwmark.Permission),
	}
}

func get(m map[uint32]fwmark.Permission, id uint32) fwmark.Permission {
	if p, ok := m[id]; ok {
		return p
	}
	return fwmark.PermissionNone
}

// set stores permission under id, or removes the entry entirely when
// permission is PermissionNone so the map never accumulates no-op state.
func set(m map[uint32]fwmark.Permission, permission fwmark.Permission, id uint32) {
	if permission == fwmark.PermissionNone {
		delete(m, id)
	} else {
		m[id] = permission
	}
}

// PermissionForUser returns the permission bits currently held by uid.
func (r *Registry) PermissionForUser(uid uint32) fwmark.Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return get(r.users, uid)
}

// SetPermissionForUser replaces the permission bits held by uid.
// Setting PermissionNone clears the entry.
func (r *Registry) SetPermissionForUser(permission fwmark.Permission, uid uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set(r.users, permission, uid)
}

// PermissionForNetwork returns the permission bits required to use netID.
func (r *Registry) PermissionForNetwork(netID uint32) fwmark.Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return get(r.networks, netID)
}

// SetPermissionForNetwork replaces the permission bits required to use
// netID. Setting PermissionNone clears the entry, making the network
// open to every UID.
func (r *Registry) SetPermissionForNetwork(permission fwmark.Permission, netID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set(r.networks, permission, netID)
}

// IsUserPermittedOnNetwork reports whether uid holds every permission
// bit netID requires.
func (r *Registry) IsUserPermittedOnNetwork(uid, netID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userPermission := get(r.users, uid)
	networkPermission := get(r.networks, netID)
	return userPermission.Holds(networkPermission)
}

// ClearNetwork removes any permission requirement recorded for netID,
// called when a network is destroyed so its id can be reused cleanly.
func (r *Registry) ClearNetwork(netID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.networks, netID)
}
