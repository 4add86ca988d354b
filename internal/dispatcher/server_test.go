package dispatcher

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatcher.sock")
	s, _, _, _, _ := newTestDispatcher()
	s.SocketPath = path
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Close() })
	return s, path
}

func dial(t *testing.T, path string) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCommandRepliesEchoCookie(t *testing.T) {
	_, path := startTestServer(t)
	conn := dial(t, path)

	_, err := conn.Write([]byte("42 network create 100\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "42 200 OK\n", reply)
}

func TestMalformedLineRepliesSyntaxError(t *testing.T) {
	_, path := startTestServer(t)
	conn := dial(t, path)

	_, err := conn.Write([]byte("'unterminated\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, reply, "500")
}

func TestBroadcastReachesAllConnectedClients(t *testing.T) {
	s, path := startTestServer(t)
	a := dial(t, path)
	b := dial(t, path)

	// Let the accept loop register both connections before broadcasting.
	time.Sleep(50 * time.Millisecond)
	s.Broadcast(InterfaceChange, "wlan0 up")

	for _, conn := range []net.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		reply, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, "0 600 wlan0 up\n", reply)
	}
}

func TestCommandsAreSerializedAcrossConnections(t *testing.T) {
	_, path := startTestServer(t)
	a := dial(t, path)
	b := dial(t, path)

	_, err := a.Write([]byte("1 network create 10\n"))
	require.NoError(t, err)
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	replyA, err := bufio.NewReader(a).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "1 200 OK\n", replyA)

	_, err = b.Write([]byte("2 network create 10\n"))
	require.NoError(t, err)
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	replyB, err := bufio.NewReader(b).ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, replyB, "400")
}
