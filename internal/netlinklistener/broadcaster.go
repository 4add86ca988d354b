package netlinklistener

import "github.com/CyanogenMod/android-system-netd-sub000/internal/dispatcher"

// Broadcaster is the one method the listener needs from the admin
// dispatcher: fan an unsolicited line out to every connected client.
// Narrowed to an interface so tests can assert on broadcasts without
// standing up a real dispatcher.Server.
type Broadcaster interface {
	Broadcast(code int, message string)
}

// Re-exported so callers constructing a Listener don't need to import
// internal/dispatcher themselves just for these two constants.
const (
	InterfaceChange  = dispatcher.InterfaceChange
	BandwidthControl = dispatcher.BandwidthControl
)
