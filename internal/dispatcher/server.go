package dispatcher

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CyanogenMod/android-system-netd-sub000/internal/logging"
)

// Server is the admin command socket: one connection per framework
// client, each line a cookie-tagged command, processed one at a time
// so the controllers below never need their own writer locks.
type Server struct {
	SocketPath string

	networks     NetworkController
	routes       RouteController
	firewallCtrl FirewallController
	permissions  PermissionSetter

	logger  *logging.Logger
	metrics *metrics

	listener *net.UnixListener

	// execMu serializes every command across every connection: the
	// single-writer invariant spec.md's concurrency model requires.
	execMu sync.Mutex

	// lastListing holds the most recent informational command's
	// output for the "dispatcher dump" debug command to redisplay.
	lastListing string

	clientsMu sync.Mutex
	clients   map[*net.UnixConn]struct{}
}

// New wires a dispatcher on top of already-constructed controllers.
// reg may be nil, in which case a private registry is created so
// metrics registration never collides across independent Servers.
func New(socketPath string, networks NetworkController, routes RouteController, firewallCtrl FirewallController, permissions PermissionSetter, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		SocketPath:   socketPath,
		networks:     networks,
		routes:       routes,
		firewallCtrl: firewallCtrl,
		permissions:  permissions,
		logger:       logging.WithComponent("dispatcher"),
		metrics:      newMetrics(reg),
		clients:      make(map[*net.UnixConn]struct{}),
	}
}

func (s *Server) Start() error {
	os.Remove(s.SocketPath)

	addr, err := net.ResolveUnixAddr("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("dispatcher: resolve %s: %w", s.SocketPath, err)
	}
	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("dispatcher: listen on %s: %w", s.SocketPath, err)
	}
	if err := os.Chmod(s.SocketPath, 0666); err != nil {
		listener.Close()
		return fmt.Errorf("dispatcher: chmod %s: %w", s.SocketPath, err)
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
		s.addClient(conn)
		go s.handleConn(conn)
	}
}

func (s *Server) addClient(conn *net.UnixConn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[conn] = struct{}{}
}

func (s *Server) removeClient(conn *net.UnixConn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	delete(s.clients, conn)
}

// Broadcast sends an unsolicited event line to every currently
// connected admin client, tagged with broadcastCookie so a reader can
// tell it apart from a reply to its own command. Grounded on
// CommandListener's multi-client broadcast registry: every connected
// framework client sees every unsolicited interface-change or
// bandwidth-quota event, not just the one that happened to be
// connected when this component was last touched.
func (s *Server) Broadcast(code int, message string) {
	line := formatLine(broadcastCookie, code, message)
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if _, err := conn.Write(line); err != nil {
			s.logger.Warn("broadcast write failed", "err", err)
		}
	}
}

// handleConn reads cookie-tagged command lines until the client
// disconnects, serializing each one through execMu and replying
// exactly once per line. A client that disconnects mid-command has
// its reply discarded, matching spec.md's cancellation model: the
// side effect, if any, has already landed.
func (s *Server) handleConn(conn *net.UnixConn) {
	defer func() {
		s.removeClient(conn)
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		requestID := uuid.NewString()
		line := scanner.Text()

		cookie, tokens, err := splitCookie(line)
		if err != nil {
			s.logger.Warn("malformed command line", "request_id", requestID, "err", err)
			if _, werr := conn.Write(formatLine("0", CommandSyntaxErr, err.Error())); werr != nil {
				return
			}
			continue
		}

		s.logger.Info("admin command", "request_id", requestID, "cookie", cookie, "command", tokens)

		s.execMu.Lock()
		code, msg := s.execute(tokens)
		s.execMu.Unlock()

		if len(tokens) > 0 {
			s.metrics.observe(tokens[0], code)
		}
		if _, werr := conn.Write(formatLine(cookie, code, msg)); werr != nil {
			return
		}
	}
}

// splitCookie separates the leading cookie token from the
// shell-quoted command that follows it.
func splitCookie(line string) (string, []string, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return "", nil, fmt.Errorf("tokenize: %w", err)
	}
	if len(tokens) == 0 {
		return "", nil, errors.New("empty line")
	}
	return tokens[0], tokens[1:], nil
}

func formatLine(cookie string, code int, message string) []byte {
	message = strings.ReplaceAll(message, "\n", " ")
	return []byte(cookie + " " + strconv.Itoa(code) + " " + message + "\n")
}
