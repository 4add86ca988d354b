//go:build linux
// +build linux

package dnsproxy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
)

const lookupTimeout = 5 * time.Second

// handleGetAddrInfo mirrors getaddrinfo(3) with arguments in the order
// name, service, family, flags, socktype, protocol. "^" stands for a null argument, matching
// the original wire convention. service/flags/socktype/protocol are
// accepted for protocol parity but don't change which addresses are
// returned, since the underlying resolution is name -> address only.
func (s *Server) handleGetAddrInfo(netID fwmark.NetID, args []string) (int32, [][]byte) {
	if len(args) != 6 {
		return statusBadRequest, nil
	}
	host := unescapeNull(args[0])
	if host == "" {
		return statusBadRequest, nil
	}
	family, err := strconv.Atoi(args[2])
	if err != nil {
		return statusBadRequest, nil
	}

	cacheQuery := fmt.Sprintf("getaddrinfo:%s:%d", strings.ToLower(host), family)
	if e, ok := s.cache.get(netID, cacheQuery); ok {
		return e.status, e.frames
	}

	ips, status := s.lookupIPs(netID, host, family)
	frames := ipsToFrames(ips)
	if status == statusOK {
		s.cache.put(netID, cacheQuery, status, frames)
	}
	return status, frames
}

// handleGetHostByName mirrors the legacy gethostbyname(3): name, address family.
func (s *Server) handleGetHostByName(netID fwmark.NetID, args []string) (int32, [][]byte) {
	if len(args) != 2 {
		return statusBadRequest, nil
	}
	host := unescapeNull(args[0])
	if host == "" {
		return statusBadRequest, nil
	}
	family, err := strconv.Atoi(args[1])
	if err != nil {
		return statusBadRequest, nil
	}

	cacheQuery := fmt.Sprintf("gethostbyname:%s:%d", strings.ToLower(host), family)
	if e, ok := s.cache.get(netID, cacheQuery); ok {
		return e.status, e.frames
	}

	ips, status := s.lookupIPs(netID, host, family)
	frames := ipsToFrames(ips)
	if status == statusOK {
		s.cache.put(netID, cacheQuery, status, frames)
	}
	return status, frames
}

// handleGetHostByAddr mirrors gethostbyaddr(3): presentation-format
// address, address length (unused here, kept for wire parity), address
// family (unused: net.IP parses dotted/colon form directly).
func (s *Server) handleGetHostByAddr(netID fwmark.NetID, args []string) (int32, [][]byte) {
	if len(args) != 3 {
		return statusBadRequest, nil
	}
	ip := net.ParseIP(args[0])
	if ip == nil {
		return statusBadRequest, nil
	}

	cacheQuery := "gethostbyaddr:" + ip.String()
	if e, ok := s.cache.get(netID, cacheQuery); ok {
		return e.status, e.frames
	}

	if name, ok := ptrLookup(netID, ip); ok {
		frames := [][]byte{[]byte(name)}
		s.cache.put(netID, cacheQuery, statusOK, frames)
		return statusOK, frames
	}

	// No usable nameserver configuration, or the direct PTR query
	// failed: fall back to the stdlib resolver's own reverse lookup.
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	names, err := newResolver(netID).LookupAddr(ctx, ip.String())
	if err != nil || len(names) == 0 {
		status := statusNotFound
		s.cache.put(netID, cacheQuery, status, nil)
		return status, nil
	}

	frames := [][]byte{[]byte(names[0])}
	s.cache.put(netID, cacheQuery, statusOK, frames)
	return statusOK, frames
}

// lookupIPs resolves host filtered to the requested address family.
// family < 0 or 0 means "any family" (the getaddrinfo AF_UNSPEC
// convention reused for gethostbyname's af argument too).
func (s *Server) lookupIPs(netID fwmark.NetID, host string, family int) ([]net.IP, int32) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	addrs, err := newResolver(netID).LookupIPAddr(ctx, host)
	if err != nil {
		return nil, statusNotFound
	}

	var ips []net.IP
	for _, a := range addrs {
		v4 := a.IP.To4() != nil
		switch family {
		case familyINET:
			if v4 {
				ips = append(ips, a.IP)
			}
		case familyINET6:
			if !v4 {
				ips = append(ips, a.IP)
			}
		default:
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return nil, statusNotFound
	}
	return ips, statusOK
}

// AF_INET/AF_INET6 as used by the wire protocol's family arguments.
const (
	familyINET  = 2
	familyINET6 = 10
)

func ipsToFrames(ips []net.IP) [][]byte {
	frames := make([][]byte, len(ips))
	for i, ip := range ips {
		frames[i] = []byte(ip.String())
	}
	return frames
}

// unescapeNull turns the wire protocol's "^" null-argument sentinel
// into an empty string.
func unescapeNull(s string) string {
	if s == "^" {
		return ""
	}
	return s
}
