package testutil

import (
	"net"
	"os"
	"sync"
	"time"
)

// Datagram is one packet seen by a PacketConn.
type Datagram struct {
	// Data is a copy of the payload.
	Data []byte
	// Addr is the peer: the source for inbound packets, the destination for outbound ones.
	Addr net.Addr
}

// PacketConn is an in-memory net.PacketConn. Tests push inbound datagrams with
// Deliver and inspect outbound ones with Sent.
//
// Thread-safety: all methods are safe for concurrent use.
type PacketConn struct {
	// local is returned by LocalAddr.
	local net.Addr
	// inbound queues datagrams for ReadFrom.
	inbound chan Datagram
	// closed is closed by Close.
	closed chan struct{}
	// closeOnce guards closed.
	closeOnce sync.Once

	mu sync.Mutex
	// expired is closed when the read deadline passes.
	expired chan struct{}
	// sent records successful writes.
	sent []Datagram
	// writeErr is returned by WriteTo when set.
	writeErr error
}

// NewPacketConn creates a connection that claims to be bound to local.
func NewPacketConn(local net.Addr) *PacketConn {
	return &PacketConn{
		local:   local,
		inbound: make(chan Datagram, 64),
		closed:  make(chan struct{}),
		expired: make(chan struct{}),
	}
}

// Deliver queues a datagram for the next ReadFrom.
func (c *PacketConn) Deliver(data []byte, from net.Addr) {
	c.inbound <- Datagram{Data: append([]byte(nil), data...), Addr: from}
}

// FailWrites makes every following WriteTo return err. A nil err restores writes.
func (c *PacketConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeErr = err
}

// Sent returns a copy of the recorded outbound datagrams.
func (c *PacketConn) Sent() []Datagram {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Datagram(nil), c.sent...)
}

// ReadFrom blocks until a datagram is delivered, the deadline passes or the
// connection is closed.
func (c *PacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	expired := c.expired
	c.mu.Unlock()

	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case <-expired:
		return 0, nil, os.ErrDeadlineExceeded
	case d := <-c.inbound:
		return copy(p, d.Data), d.Addr, nil
	}
}

// WriteTo records the datagram unless writes are failing.
func (c *PacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	if c.writeErr != nil {
		return 0, c.writeErr
	}

	c.sent = append(c.sent, Datagram{Data: append([]byte(nil), p...), Addr: addr})

	return len(p), nil
}

// Close unblocks readers. It is safe to call more than once.
func (c *PacketConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})

	return nil
}

// LocalAddr returns the address given to NewPacketConn.
func (c *PacketConn) LocalAddr() net.Addr {
	return c.local
}

// SetDeadline sets the read deadline; writes never block.
func (c *PacketConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline expires pending and future reads once t has passed.
// Only deadlines that are already due are honored; a zero t clears the deadline.
func (c *PacketConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.expired:
		c.expired = make(chan struct{})
	default:
	}

	if !t.IsZero() && !t.After(time.Now()) {
		close(c.expired)
	}

	return nil
}

// SetWriteDeadline is a no-op.
func (c *PacketConn) SetWriteDeadline(time.Time) error {
	return nil
}
