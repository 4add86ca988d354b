//go:build linux
// +build linux

package fwmarkserver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/netctrl"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/permission"
)

// NetworkSelector is the subset of netctrl.Controller the fwmark server
// depends on, kept as an interface so tests can supply a fake registry
// instead of wiring a full Controller.
type NetworkSelector interface {
	GetNetworkForUser(uid uint32, requestedNetID fwmark.NetID, forDNS bool) fwmark.NetID
	Network(netID fwmark.NetID) (netctrl.Network, bool)
}

// Server accepts one connection per client request on SocketPath and
// transitions the fwmark carried by the fd that connection passes in.
type Server struct {
	SocketPath string

	networks    NetworkSelector
	permissions *permission.Registry
	logger      *logging.Logger

	listener *net.UnixListener
}

func New(socketPath string, networks NetworkSelector, permissions *permission.Registry) *Server {
	return &Server{
		SocketPath:  socketPath,
		networks:    networks,
		permissions: permissions,
		logger:      logging.WithComponent("fwmarkserver"),
	}
}

// Start binds SocketPath and begins accepting connections in the
// background. Any stale socket file at the path is removed first.
func (s *Server) Start() error {
	os.Remove(s.SocketPath)

	addr, err := net.ResolveUnixAddr("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("fwmarkserver: resolve %s: %w", s.SocketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("fwmarkserver: listen on %s: %w", s.SocketPath, err)
	}
	if err := os.Chmod(s.SocketPath, 0666); err != nil {
		listener.Close()
		return fmt.Errorf("fwmarkserver: chmod %s: %w", s.SocketPath, err)
	}
	s.listener = listener

	go s.acceptLoop()
	return nil
}

func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "err", err)
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn implements the fixed request/reply exchange: one recvmsg
// carrying the command record and the fd to mark, one reply, then
// close. The fd's close is deferred as soon as it has been extracted,
// so it runs whichever branch below returns.
func (s *Server) handleConn(conn *net.UnixConn) {
	defer conn.Close()

	buf := make([]byte, wireSize)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		s.logger.Warn("recvmsg failed", "err", err)
		return
	}

	fd, hasFD := extractFD(oob[:oobn])
	if hasFD {
		defer unix.Close(fd)
	}

	if n != wireSize {
		s.reply(conn, -int32(unix.EBADMSG))
		return
	}
	if !hasFD {
		s.reply(conn, -int32(unix.EBADF))
		return
	}

	cmd, ok := decodeCommand(buf[:n])
	if !ok {
		s.reply(conn, -int32(unix.EBADMSG))
		return
	}

	uid, err := peerUID(conn)
	if err != nil {
		s.logger.Warn("could not read peer credentials", "err", err)
		s.reply(conn, -int32(unix.EBADF))
		return
	}

	// Only AF_INET/AF_INET6 sockets carry a meaningful fwmark; anything
	// else is a silent no-op, matching the original family gate.
	if domain, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DOMAIN); err == nil {
		if domain != unix.AF_INET && domain != unix.AF_INET6 {
			s.reply(conn, 0)
			return
		}
	}

	raw, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK)
	if err != nil {
		s.logger.Warn("getsockopt(SO_MARK) failed", "err", err)
		s.reply(conn, -int32(unix.EIO))
		return
	}
	mark := fwmark.Decode(uint32(raw))

	newMark, rc := s.transition(cmd, uid, mark)
	if rc != 0 {
		s.reply(conn, rc)
		return
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK, int(newMark.Raw())); err != nil {
		s.logger.Warn("setsockopt(SO_MARK) failed", "err", err)
		s.reply(conn, -int32(unix.EIO))
		return
	}
	s.reply(conn, 0)
}

// transition applies one command to mark, following the same order of
// operations as the original: a local permission accumulator starts at
// the caller's held permission, individual commands may union it with
// the mark's existing permission or reset it outright, and the result
// is always written back to mark.Permission before returning.
func (s *Server) transition(cmd command, uid uint32, mark fwmark.Mark) (fwmark.Mark, int32) {
	permission := s.permissions.PermissionForUser(uid)

	switch cmd.cmdID {
	case CmdOnAccept:
		permission |= mark.Permission

	case CmdOnConnect:
		if !mark.Explicit {
			mark.NetID = s.networks.GetNetworkForUser(uid, fwmark.Unset, false)
		}

	case CmdSelectNetwork:
		netID := fwmark.NetID(cmd.netID)
		if netID == fwmark.Unset {
			mark.NetID = netID
			mark.Explicit = false
			mark.Protected = false
			permission = fwmark.PermissionNone
		} else {
			if !s.canUserSelectNetwork(uid, netID) {
				return mark, -int32(unix.EPERM)
			}
			mark.NetID = netID
			mark.Explicit = true
			mark.Protected = s.canProtect(uid)
		}

	case CmdProtectFromVPN:
		if !s.canProtect(uid) {
			return mark, -int32(unix.EPERM)
		}
		mark.Protected = true
		permission |= mark.Permission

	default:
		return mark, -int32(unix.EPROTO)
	}

	mark.Permission = permission
	return mark, 0
}

// canUserSelectNetwork requires both that netID names a live network
// and that uid holds whatever permission that network requires.
func (s *Server) canUserSelectNetwork(uid uint32, netID fwmark.NetID) bool {
	n, ok := s.networks.Network(netID)
	if !ok {
		return false
	}
	return s.permissions.PermissionForUser(uid).Holds(n.Permission)
}

// canProtect gates PROTECT_FROM_VPN and the protected flag that
// SELECT_NETWORK sets on success. The original ties this to a
// privileged gid; this daemon has only the CHANGE_NETWORK_STATE
// permission bit to reuse, so holding it stands in for "can protect."
func (s *Server) canProtect(uid uint32) bool {
	return s.permissions.PermissionForUser(uid).Holds(fwmark.PermissionChangeNetworkState)
}

func (s *Server) reply(conn *net.UnixConn, code int32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(code))
	if _, err := conn.Write(b); err != nil {
		s.logger.Warn("reply write failed", "err", err)
	}
}

func extractFD(oob []byte) (int, bool) {
	if len(oob) == 0 {
		return 0, false
	}
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil || len(scms) == 0 {
		return 0, false
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return 0, false
	}
	return fds[0], true
}

func peerUID(conn *net.UnixConn) (uint32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var ucred *unix.Ucred
	var sysErr error
	if err := raw.Control(func(fd uintptr) {
		ucred, sysErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, err
	}
	if sysErr != nil {
		return 0, sysErr
	}
	return ucred.Uid, nil
}
