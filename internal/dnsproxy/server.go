//go:build linux
// +build linux

package dnsproxy

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/google/shlex"
	"github.com/google/uuid"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/fwmark"
	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// NetworkSelector is the subset of netctrl.Controller the proxy needs
// to turn a caller's UID into the netId its lookups should be bound to.
type NetworkSelector interface {
	GetNetworkForUser(uid uint32, requestedNetID fwmark.NetID, forDNS bool) fwmark.NetID
}

const (
	statusOK         int32 = 0
	statusBadRequest int32 = -1
	statusNotFound   int32 = -2
	statusInternal   int32 = -3
)

// Server accepts one request per connection on SocketPath: a
// shell-quoted opcode line in, a status plus zero or more
// length-prefixed frames out.
type Server struct {
	SocketPath string

	networks NetworkSelector
	cache    *Cache
	logger   *logging.Logger

	listener *net.UnixListener
}

func New(socketPath string, networks NetworkSelector, cache *Cache) *Server {
	if cache == nil {
		cache = NewCache(nil)
	}
	return &Server{
		SocketPath: socketPath,
		networks:   networks,
		cache:      cache,
		logger:     logging.WithComponent("dnsproxy"),
	}
}

func (s *Server) Start() error {
	os.Remove(s.SocketPath)

	addr, err := net.ResolveUnixAddr("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("dnsproxy: resolve %s: %w", s.SocketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("dnsproxy: listen on %s: %w", s.SocketPath, err)
	}
	if err := os.Chmod(s.SocketPath, 0666); err != nil {
		listener.Close()
		return fmt.Errorf("dnsproxy: chmod %s: %w", s.SocketPath, err)
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

// handleConn reads one request line, dispatches it to the matching
// opcode handler, and replies exactly once before closing. Every
// reachable path writes a reply: a handler that can't even parse its
// arguments gets a bad-request status rather than a dropped connection.
func (s *Server) handleConn(conn *net.UnixConn) {
	defer conn.Close()
	requestID := uuid.NewString()

	uid, err := peerUID(conn)
	if err != nil {
		s.logger.Warn("could not read peer credentials", "request_id", requestID, "err", err)
		writeReply(conn, statusInternal, nil)
		return
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		writeReply(conn, statusBadRequest, nil)
		return
	}
	line = strings.TrimRight(line, "\n")

	args, err := shlex.Split(line)
	if err != nil || len(args) == 0 {
		writeReply(conn, statusBadRequest, nil)
		return
	}
	s.logger.Info("dns proxy request", "request_id", requestID, "uid", uid, "opcode", args[0])

	netID := s.networks.GetNetworkForUser(uid, fwmark.Unset, true)

	var status int32
	var frames [][]byte
	switch args[0] {
	case "getaddrinfo":
		status, frames = s.handleGetAddrInfo(netID, args[1:])
	case "gethostbyname":
		status, frames = s.handleGetHostByName(netID, args[1:])
	case "gethostbyaddr":
		status, frames = s.handleGetHostByAddr(netID, args[1:])
	default:
		status, frames = statusBadRequest, nil
	}

	if err := writeReply(conn, status, frames); err != nil {
		s.logger.Warn("reply write failed", "err", err)
	}
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
