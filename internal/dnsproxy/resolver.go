//go:build linux
// +build linux

package dnsproxy

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

// lookuper is the subset of *net.Resolver the command handlers call,
// narrowed to an interface so tests can substitute a fake without any
// real network access.
type lookuper interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// newResolver is a var so tests can replace it; production code never
// reassigns it.
var newResolver = func(netID fwmark.NetID) lookuper { return resolverForNetwork(netID) }

// resolverForNetwork builds a *net.Resolver whose outbound query
// socket is stamped with netID's fwmark before connecting, so the
// kernel's policy-routing rules send it out the interface that
// network owns. explicit is set so the mark survives regardless of
// whether the underlying socket would otherwise pick up the default
// network.
func resolverForNetwork(netID fwmark.NetID) *net.Resolver {
	mark := int(fwmark.Encode(netID, true, false, fwmark.PermissionNone))
	dialer := &net.Dialer{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK, mark)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, address)
		},
	}
}
