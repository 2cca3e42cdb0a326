package slave

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oshokin/timesync/internal/clock"
	"github.com/oshokin/timesync/internal/domain/offset"
	"github.com/oshokin/timesync/internal/logger"
	"github.com/oshokin/timesync/internal/protocol"
)

// errNoSender is returned when a FollowUp arrives without a source address.
var errNoSender = errors.New("no sender address")

// Config tunes a Slave. Zero values fall back to the package defaults.
type Config struct {
	// MeanWindow is the number of samples averaged into ChangeOffset.
	MeanWindow int
	// NotifyBuffer is the capacity of the notification queue.
	NotifyBuffer int
	// ReceiveBuffer is the maximum datagram size read from the socket.
	ReceiveBuffer int
}

// Option configures optional Slave dependencies.
type Option func(*Slave)

// WithClock replaces the wall clock used for local timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Slave) {
		if c != nil {
			s.clock = c
		}
	}
}

// Slave follows a master clock over one UDP socket.
// It is driven by a single goroutine in Serve and is not safe for concurrent use.
type Slave struct {
	// conn receives beacons and sends delay requests.
	conn net.PacketConn
	// clock stamps local events.
	clock clock.Clock
	// notifications delivers events to the hosting application.
	notifications *Notifications
	// window smooths the per-round samples.
	window *offset.Window
	// state is the progress of the current round.
	state state
	// receiveBuffer is the size of the datagram buffer.
	receiveBuffer int
}

// New creates a slave on an already bound socket and returns it together with
// the queue its notifications are delivered to. The caller keeps ownership of conn.
func New(conn net.PacketConn, cfg Config, opts ...Option) (*Slave, *Notifications) {
	if cfg.ReceiveBuffer <= 0 {
		cfg.ReceiveBuffer = protocol.DefaultBufferSize
	}

	s := &Slave{
		conn:          conn,
		clock:         clock.System{},
		notifications: newNotifications(cfg.NotifyBuffer),
		window:        offset.NewWindow(cfg.MeanWindow),
		state:         cleared{},
		receiveBuffer: cfg.ReceiveBuffer,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, s.notifications
}

// Serve processes datagrams until ctx is canceled or the consumer closes the
// notification queue. Decode errors, sequence violations and socket errors are
// reported as notifications and never stop the loop. Serve must be called once;
// it closes the notification queue on return.
func (s *Slave) Serve(ctx context.Context) error {
	defer s.notifications.finish()

	logger.InfoKV(ctx, "Slave started",
		"local_address", s.conn.LocalAddr().String(),
		"mean_window", s.window.Cap(),
	)

	// Unblock a pending read when the context ends.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, s.receiveBuffer)

	for {
		n, from, err := s.conn.ReadFrom(buf)
		if ctx.Err() != nil {
			logger.Info(ctx, "Slave stopped")
			return nil
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("receive: %w", err)
			}

			logger.WarnKV(ctx, "Receive failed", "error", err)
			err = s.notify(ctx, IOError{Err: err})
		} else {
			err = s.process(ctx, buf[:n], from)
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("deliver notification: %w", err)
		}
	}
}

// process decodes one datagram and feeds it to the state machine.
func (s *Slave) process(ctx context.Context, datagram []byte, from net.Addr) error {
	msg, err := s.decode(datagram)
	if err != nil {
		logger.WarnKV(ctx, "Invalid datagram", "from", addrString(from), "error", err)

		return s.notify(ctx, InvalidMessageFormat{Err: err})
	}

	return s.handle(ctx, msg, from)
}

func (s *Slave) decode(datagram []byte) (protocol.MasterMessage, error) {
	if err := protocol.CheckSize(len(datagram), s.receiveBuffer); err != nil {
		return nil, err
	}

	return protocol.DecodeMaster(datagram)
}

// handle applies one decoded message to the state machine.
// The only returned errors are notification delivery failures.
func (s *Slave) handle(ctx context.Context, msg protocol.MasterMessage, from net.Addr) error {
	switch m := msg.(type) {
	case protocol.Sync:
		return s.onSync(ctx)
	case protocol.FollowUp:
		return s.onFollowUp(ctx, m, from)
	case protocol.DelayResp:
		return s.onDelayResp(ctx, m)
	default:
		return s.violation(ctx, msg.Kind())
	}
}

func (s *Slave) onSync(ctx context.Context) error {
	if _, ok := s.state.(cleared); !ok {
		return s.violation(ctx, protocol.KindSync)
	}

	s.state = syncReceived{localSync: s.clock.Now()}

	return nil
}

func (s *Slave) onFollowUp(ctx context.Context, msg protocol.FollowUp, from net.Addr) error {
	current, ok := s.state.(syncReceived)
	if !ok {
		return s.violation(ctx, protocol.KindFollowUp)
	}

	logger.DebugKV(ctx, "FollowUp received",
		"master_sync", msg.Origin,
		"local_sync", current.localSync,
	)

	if err := s.send(ctx, protocol.DelayReq{}, from); err != nil {
		logger.WarnKV(ctx, "Send DelayReq failed", "to", addrString(from), "error", err)

		if err := s.notify(ctx, IOError{Err: err}); err != nil {
			return err
		}
	}

	s.state = followUpReceived{
		localSync:     current.localSync,
		remoteSync:    msg.Origin,
		localDelayReq: s.clock.Now(),
	}

	return nil
}

func (s *Slave) onDelayResp(ctx context.Context, msg protocol.DelayResp) error {
	current, ok := s.state.(followUpReceived)
	if !ok {
		return s.violation(ctx, protocol.KindDelayResp)
	}

	s.state = cleared{}

	sample := current.estimate(msg.Receipt)
	s.window.Push(sample)
	mean := s.window.Mean()

	logger.DebugKV(ctx, "Round completed",
		"t1", current.remoteSync,
		"t1_local", current.localSync,
		"t2_local", current.localDelayReq,
		"t2", msg.Receipt,
		"sample", sample.String(),
		"mean", mean.String(),
		"samples", s.window.Len(),
	)

	return s.notify(ctx, ChangeOffset{
		Offset:  mean,
		Sample:  sample,
		Samples: s.window.Len(),
	})
}

// violation discards the current round and reports the offending message.
func (s *Slave) violation(ctx context.Context, kind protocol.Kind) error {
	note := InvalidMessageSequence{
		State:   s.state.name(),
		Message: kind,
	}

	logger.WarnKV(ctx, "Invalid message sequence", "state", note.State, "message", kind.String())

	s.state = cleared{}

	return s.notify(ctx, note)
}

func (s *Slave) send(ctx context.Context, msg protocol.SlaveMessage, to net.Addr) error {
	if to == nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), errNoSender)
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if _, err := s.conn.WriteTo(data, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Kind(), to, err)
	}

	logger.DebugKV(ctx, "Sent", "message", msg.Kind().String(), "to", to.String())

	return nil
}

func (s *Slave) notify(ctx context.Context, note Notification) error {
	return s.notifications.send(ctx, note)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	return addr.String()
}
