//go:build linux
// +build linux

package dnsproxy

import (
	"net"
	"syscall"

	"github.com/miekg/dns"
	"golang.org/x/sys/unix"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

// resolvConfPath is a var so tests can point it at a fixture file.
var resolvConfPath = "/etc/resolv.conf"

// ptrLookup is a var so tests can substitute a fake without a real
// nameserver. Production resolves gethostbyaddr the way the original
// daemon does: a direct PTR query against the nameservers listed in
// resolvConfPath (the same file for every network), not glibc's NSS
// chain, so the fwmark that steers the
// query out the right interface is under our control end to end.
var ptrLookup = realPTRLookup

// realPTRLookup issues a PTR query for ip against the nameservers
// listed in resolvConfPath, over a UDP socket stamped with netID's
// fwmark so the kernel's policy-routing rules send it out the
// interface that network owns. Falls back to reporting not-found if
// no nameserver is configured or every query fails; callers fall back
// to the stdlib resolver on a miss (see handleGetHostByAddr).
func realPTRLookup(netID fwmark.NetID, ip net.IP) (string, bool) {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return "", false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(dns.ReverseAddr(ip.String())), dns.TypePTR)
	msg.RecursionDesired = true

	client := &dns.Client{
		Net:     "udp",
		Timeout: lookupTimeout,
		Dialer:  markedDialer(netID),
	}

	for _, server := range conf.Servers {
		addr := net.JoinHostPort(server, conf.Port)
		resp, _, err := client.Exchange(msg, addr)
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range resp.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return ptr.Ptr, true
			}
		}
	}
	return "", false
}

// markedDialer builds a *net.Dialer whose sockets carry netID's
// fwmark, the same SO_MARK stamping resolver.go uses for the stdlib
// path.
func markedDialer(netID fwmark.NetID) *net.Dialer {
	mark := int(fwmark.Encode(netID, true, false, fwmark.PermissionNone))
	return &net.Dialer{
		Timeout: lookupTimeout,
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
}
