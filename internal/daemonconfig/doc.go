// Package daemonconfig loads the daemon's startup configuration: socket
// paths, route-table constants, the system/app UID boundary, and log
// level. None of this is protocol state (networks, routes, firewall
// rules are never persisted); it only covers what must be known before
// the controllers can be constructed.
package daemonconfig
