package master

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/timesync/internal/clock"
	"github.com/oshokin/timesync/internal/logger"
	"github.com/oshokin/timesync/internal/protocol"
)

// DefaultSyncPeriod is the beacon interval used when none is configured.
const DefaultSyncPeriod = 500 * time.Millisecond

// errNoTarget is returned by Serve when no beacon destination is configured.
var errNoTarget = errors.New("no target address")

// Config tunes a Master.
type Config struct {
	// Target is where Sync and FollowUp are sent, usually a broadcast address.
	Target net.Addr
	// SyncPeriod is the interval between two Sync messages.
	SyncPeriod time.Duration
	// ReceiveBuffer is the maximum datagram size read from the socket.
	ReceiveBuffer int
}

// Option configures optional Master dependencies.
type Option func(*Master)

// WithClock replaces the wall clock used for Sync and DelayReq timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Master) {
		if c != nil {
			m.clock = c
		}
	}
}

// Master broadcasts beacons and answers delay requests.
type Master struct {
	// conn is shared by the beacon and responder loops.
	conn net.PacketConn
	// clock stamps FollowUp and DelayResp.
	clock clock.Clock
	// target receives the beacons.
	target net.Addr
	// period is the beacon interval.
	period time.Duration
	// receiveBuffer is the size of the datagram buffer.
	receiveBuffer int
}

// New creates a master on an already bound socket. The caller keeps ownership of conn.
func New(conn net.PacketConn, cfg Config, opts ...Option) *Master {
	if cfg.SyncPeriod <= 0 {
		cfg.SyncPeriod = DefaultSyncPeriod
	}

	if cfg.ReceiveBuffer <= 0 {
		cfg.ReceiveBuffer = protocol.DefaultBufferSize
	}

	m := &Master{
		conn:          conn,
		clock:         clock.System{},
		target:        cfg.Target,
		period:        cfg.SyncPeriod,
		receiveBuffer: cfg.ReceiveBuffer,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Serve runs the beacon and responder loops until ctx is canceled.
// It returns nil on cancellation and an error only if the socket is closed
// underneath it.
func (m *Master) Serve(ctx context.Context) error {
	if m.target == nil {
		return errNoTarget
	}

	logger.InfoKV(ctx, "Master started",
		"local_address", m.conn.LocalAddr().String(),
		"target_address", m.target.String(),
		"sync_period", m.period,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.beacon(gctx)
	})

	g.Go(func() error {
		return m.respond(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Master stopped")

	return nil
}

// beacon sends one Sync/FollowUp pair per period. The time spent sending is
// subtracted from the next wait so beacons do not drift.
func (m *Master) beacon(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		started := time.Now()

		err := m.broadcast(ctx)
		if errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
			return fmt.Errorf("beacon: %w", err)
		}

		if err != nil {
			logger.WarnKV(ctx, "Beacon failed", "target", m.target.String(), "error", err)
		}

		timer.Reset(max(0, m.period-time.Since(started)))
	}
}

// broadcast sends a Sync and then the FollowUp carrying its send time.
func (m *Master) broadcast(ctx context.Context) error {
	if err := m.send(ctx, protocol.Sync{}, m.target); err != nil {
		return err
	}

	origin := m.clock.Now()

	return m.send(ctx, protocol.FollowUp{Origin: origin}, m.target)
}

// respond answers DelayReq datagrams until ctx is canceled.
func (m *Master) respond(ctx context.Context) error {
	// Unblock a pending read when the context ends.
	stop := context.AfterFunc(ctx, func() {
		_ = m.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, m.receiveBuffer)

	for {
		n, from, err := m.conn.ReadFrom(buf)

		receipt := m.clock.Now()

		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("receive: %w", err)
			}

			logger.WarnKV(ctx, "Receive failed", "error", err)

			continue
		}

		if err := m.answer(ctx, buf[:n], from, receipt); err != nil {
			logger.WarnKV(ctx, "Delay request rejected", "from", from.String(), "error", err)
		}
	}
}

// answer decodes one datagram and replies with the receive time. DelayReq is
// the only message a slave sends, so a successful decode is a DelayReq.
func (m *Master) answer(ctx context.Context, datagram []byte, from net.Addr, receipt time.Time) error {
	if err := protocol.CheckSize(len(datagram), m.receiveBuffer); err != nil {
		return err
	}

	if _, err := protocol.DecodeSlave(datagram); err != nil {
		return err
	}

	return m.send(ctx, protocol.DelayResp{Receipt: receipt}, from)
}

func (m *Master) send(ctx context.Context, msg protocol.MasterMessage, to net.Addr) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if _, err := m.conn.WriteTo(data, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Kind(), to, err)
	}

	logger.DebugKV(ctx, "Sent", "message", msg.Kind().String(), "to", to.String())

	return nil
}
