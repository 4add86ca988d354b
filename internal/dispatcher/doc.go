// Package dispatcher implements the admin command socket: a
// line-based, cookie-tagged protocol that serializes every mutating
// call into the network, route, and firewall controllers so they
// never need their own writer locks, and broadcasts unsolicited
// interface-change and bandwidth-quota events to every connected
// client.
package dispatcher
