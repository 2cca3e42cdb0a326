package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// errReusePortUnsupported is returned when port reuse is requested on a platform without it.
var errReusePortUnsupported = errors.New("port reuse is not supported on this platform")

// Options tunes the socket created by Listen.
type Options struct {
	// ReusePort allows other sockets to bind the same address and port.
	ReusePort bool
}

// Listen binds a broadcast-capable UDP socket on address.
func Listen(ctx context.Context, address string, opts Options) (net.PacketConn, error) {
	local, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error

			if err := c.Control(func(fd uintptr) {
				sockErr = setSocketOptions(fd, opts.ReusePort)
			}); err != nil {
				return err
			}

			return sockErr
		},
	}

	conn, err := lc.ListenPacket(ctx, network(local), local.String())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return conn, nil
}

// ResolveTarget resolves the address datagrams are sent to.
func ResolveTarget(address string) (*net.UDPAddr, error) {
	target, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve target %s: %w", address, err)
	}

	return target, nil
}

// network picks an IPv4-only socket unless the address is IPv6, so a wildcard
// bind does not turn into a dual-stack socket that cannot broadcast.
func network(addr *net.UDPAddr) string {
	if addr.IP != nil && addr.IP.To4() == nil {
		return "udp6"
	}

	return "udp4"
}
