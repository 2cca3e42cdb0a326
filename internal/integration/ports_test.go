package integration

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// reserveUDPPort returns a loopback UDP address that was free a moment ago.
func reserveUDPPort(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}
	conn, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	require.NoError(t, err)

	addr := conn.LocalAddr().String()
	_ = conn.Close()

	return addr
}

// reserveTCPPort returns a loopback TCP address that was free a moment ago.
func reserveTCPPort(t *testing.T) string {
	t.Helper()

	lc := net.ListenConfig{}
	l, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}
