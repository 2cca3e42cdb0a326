package transport

import (
	"context"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestListen_Loopback binds a socket and exchanges a datagram with itself.
func TestListen_Loopback(t *testing.T) {
	t.Parallel()

	conn, err := Listen(context.Background(), "127.0.0.1:0", Options{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.WriteTo([]byte("ping"), conn.LocalAddr())
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, 16)
	n, from, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
	require.Equal(t, conn.LocalAddr().String(), from.String())
}

// TestListen_ReusePort binds two sockets on the same port.
func TestListen_ReusePort(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("port sharing semantics differ outside linux")
	}

	first, err := Listen(context.Background(), "127.0.0.1:0", Options{ReusePort: true})
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.Close() })

	second, err := Listen(context.Background(), first.LocalAddr().String(), Options{ReusePort: true})
	require.NoError(t, err)

	t.Cleanup(func() { _ = second.Close() })

	require.Equal(t, first.LocalAddr().String(), second.LocalAddr().String())
}

// TestListen_InvalidAddress checks resolution failures are reported.
func TestListen_InvalidAddress(t *testing.T) {
	t.Parallel()

	_, err := Listen(context.Background(), "127.0.0.1:notaport", Options{})
	require.Error(t, err)

	_, err = ResolveTarget("bad:address")
	require.Error(t, err)

	target, err := ResolveTarget("255.255.255.255:13001")
	require.NoError(t, err)
	require.Equal(t, 13001, target.Port)
}

// TestNetwork picks the address family from the bind address.
func TestNetwork(t *testing.T) {
	t.Parallel()

	require.Equal(t, "udp4", network(&net.UDPAddr{Port: 1}))
	require.Equal(t, "udp4", network(&net.UDPAddr{IP: net.IPv4zero}))
	require.Equal(t, "udp6", network(&net.UDPAddr{IP: net.IPv6loopback}))
}
