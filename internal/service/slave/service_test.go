package slave

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/timesync/internal/clock"
	"github.com/oshokin/timesync/internal/domain/offset"
	"github.com/oshokin/timesync/internal/protocol"
	"github.com/oshokin/timesync/internal/testutil"
)

var (
	errTestWrite = errors.New("test write error")

	masterAddr = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 13000}
	slaveAddr  = &net.UDPAddr{IP: net.IPv4(192, 0, 2, 2), Port: 13001}
	epoch      = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
)

// newTestSlave builds a slave on an in-memory socket.
func newTestSlave(t *testing.T, c clock.Clock) (*Slave, *Notifications, *testutil.PacketConn) {
	t.Helper()

	conn := testutil.NewPacketConn(slaveAddr)
	t.Cleanup(func() { _ = conn.Close() })

	s, notes := New(conn, Config{MeanWindow: 8, NotifyBuffer: 64}, WithClock(c))

	return s, notes, conn
}

// mustEncode encodes a message or fails the test.
func mustEncode(t *testing.T, msg protocol.Message) []byte {
	t.Helper()

	data, err := protocol.Encode(msg)
	require.NoError(t, err)

	return data
}

// drain returns every queued notification without blocking.
func drain(notes *Notifications) []Notification {
	var out []Notification

	for {
		select {
		case note := <-notes.C():
			out = append(out, note)
		default:
			return out
		}
	}
}

// feed processes the datagram as if it arrived from the master.
func feed(t *testing.T, s *Slave, msg protocol.Message) {
	t.Helper()

	require.NoError(t, s.process(context.Background(), mustEncode(t, msg), masterAddr))
}

// TestSlave_Transitions walks every state and message pair.
func TestSlave_Transitions(t *testing.T) {
	t.Parallel()

	sync := protocol.Sync{}
	followUp := protocol.FollowUp{Origin: epoch}
	delayResp := protocol.DelayResp{Receipt: epoch.Add(time.Millisecond)}

	cases := []struct {
		name      string
		prepare   []protocol.Message
		message   protocol.Message
		wantState string
		violation bool
		change    bool
	}{
		{"cleared sync", nil, sync, "SyncReceived", false, false},
		{"cleared follow up", nil, followUp, "Cleared", true, false},
		{"cleared delay resp", nil, delayResp, "Cleared", true, false},
		{"sync received sync", []protocol.Message{sync}, sync, "Cleared", true, false},
		{"sync received follow up", []protocol.Message{sync}, followUp, "FollowUpReceived", false, false},
		{"sync received delay resp", []protocol.Message{sync}, delayResp, "Cleared", true, false},
		{"follow up received sync", []protocol.Message{sync, followUp}, sync, "Cleared", true, false},
		{"follow up received follow up", []protocol.Message{sync, followUp}, followUp, "Cleared", true, false},
		{"follow up received delay resp", []protocol.Message{sync, followUp}, delayResp, "Cleared", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, notes, _ := newTestSlave(t, testutil.NewManualClock(epoch))

			for _, msg := range tc.prepare {
				feed(t, s, msg)
			}

			before := s.state.name()
			require.Empty(t, drain(notes))

			feed(t, s, tc.message)
			require.Equal(t, tc.wantState, s.state.name())

			got := drain(notes)

			switch {
			case tc.violation:
				require.Equal(t, []Notification{InvalidMessageSequence{
					State:   before,
					Message: tc.message.Kind(),
				}}, got)
			case tc.change:
				require.Len(t, got, 1)
				require.IsType(t, ChangeOffset{}, got[0])
			default:
				require.Empty(t, got)
			}
		})
	}
}

// TestSlave_FollowUpWithoutSync reports a violation and emits no offset.
func TestSlave_FollowUpWithoutSync(t *testing.T) {
	t.Parallel()

	s, notes, conn := newTestSlave(t, testutil.NewManualClock(epoch))

	feed(t, s, protocol.FollowUp{Origin: epoch})

	require.Equal(t, []Notification{InvalidMessageSequence{
		State:   "Cleared",
		Message: protocol.KindFollowUp,
	}}, drain(notes))
	require.Empty(t, conn.Sent())
}

// TestSlave_GarbageDatagram reports a format error and keeps the state.
func TestSlave_GarbageDatagram(t *testing.T) {
	t.Parallel()

	s, notes, _ := newTestSlave(t, testutil.NewManualClock(epoch))

	feed(t, s, protocol.Sync{})

	err := s.process(context.Background(), []byte{0xde, 0xad, 0xbe, 0xef, 0x01}, masterAddr)
	require.NoError(t, err)

	got := drain(notes)
	require.Len(t, got, 1)

	format, ok := got[0].(InvalidMessageFormat)
	require.True(t, ok)
	require.ErrorIs(t, format.Err, protocol.ErrMalformed)
	require.Equal(t, "SyncReceived", s.state.name())
}

// TestSlave_SlaveMessageFromMaster rejects a DelayReq arriving on the slave socket.
func TestSlave_SlaveMessageFromMaster(t *testing.T) {
	t.Parallel()

	s, notes, _ := newTestSlave(t, testutil.NewManualClock(epoch))

	feed(t, s, protocol.DelayReq{})

	got := drain(notes)
	require.Len(t, got, 1)

	format, ok := got[0].(InvalidMessageFormat)
	require.True(t, ok)
	require.ErrorIs(t, format.Err, protocol.ErrUnknownKind)
	require.Equal(t, "Cleared", s.state.name())
}

// TestSlave_OversizedDatagram reports a datagram that fills the receive buffer.
func TestSlave_OversizedDatagram(t *testing.T) {
	t.Parallel()

	conn := testutil.NewPacketConn(slaveAddr)
	s, notes := New(conn, Config{ReceiveBuffer: 4}, WithClock(testutil.NewManualClock(epoch)))

	require.NoError(t, s.process(context.Background(), make([]byte, 4), masterAddr))

	got := drain(notes)
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].(InvalidMessageFormat).Err, protocol.ErrDatagramTooLarge)
}

// TestSlave_FollowUpSendsDelayReq checks the DelayReq goes back to the FollowUp sender.
func TestSlave_FollowUpSendsDelayReq(t *testing.T) {
	t.Parallel()

	s, _, conn := newTestSlave(t, testutil.NewManualClock(epoch))

	feed(t, s, protocol.Sync{})
	feed(t, s, protocol.FollowUp{Origin: epoch})

	sent := conn.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, masterAddr, sent[0].Addr)

	msg, err := protocol.DecodeSlave(sent[0].Data)
	require.NoError(t, err)
	require.Equal(t, protocol.DelayReq{}, msg)
}

// TestSlave_DelayReqSendFailure reports an IO error and still completes the round.
func TestSlave_DelayReqSendFailure(t *testing.T) {
	t.Parallel()

	s, notes, conn := newTestSlave(t, testutil.NewManualClock(epoch))
	conn.FailWrites(errTestWrite)

	feed(t, s, protocol.Sync{})
	feed(t, s, protocol.FollowUp{Origin: epoch})

	got := drain(notes)
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].(IOError).Err, errTestWrite)
	require.Equal(t, "FollowUpReceived", s.state.name())

	feed(t, s, protocol.DelayResp{Receipt: epoch})

	got = drain(notes)
	require.Len(t, got, 1)
	require.IsType(t, ChangeOffset{}, got[0])
}

// exchange runs one round between the master clock and a slave whose clock is
// derived from it. Each direction of the link takes delay.
func exchange(t *testing.T, s *Slave, master *testutil.ManualClock, delay time.Duration) {
	t.Helper()

	t1 := master.Now()

	master.Advance(delay)
	feed(t, s, protocol.Sync{})
	feed(t, s, protocol.FollowUp{Origin: t1})

	master.Advance(delay)
	feed(t, s, protocol.DelayResp{Receipt: master.Now()})
}

// TestSlave_SymmetricDelay checks one round with delay d and skew S yields
// diff1 + diff2/2 = (S + d) + (S - d)/2.
func TestSlave_SymmetricDelay(t *testing.T) {
	t.Parallel()

	const delay = 2 * time.Millisecond

	cases := []struct {
		skew time.Duration
		want offset.TimeOffset
	}{
		{0, offset.Later(time.Millisecond)},
		{250 * time.Millisecond, offset.Later(376 * time.Millisecond)},
		{-3 * time.Second, offset.Earlier(4499 * time.Millisecond)},
		{7 * time.Microsecond, offset.Later(1010500 * time.Nanosecond)},
	}

	for _, tc := range cases {
		master := testutil.NewManualClock(epoch)
		s, notes, _ := newTestSlave(t, clock.Skewed{Base: master, Skew: tc.skew})

		exchange(t, s, master, delay)

		got := drain(notes)
		require.Len(t, got, 1)

		change, ok := got[0].(ChangeOffset)
		require.True(t, ok)
		require.Equal(t, tc.want, change.Sample, "skew %s", tc.skew)
		require.Equal(t, tc.want, change.Offset, "skew %s", tc.skew)
		require.Equal(t, 1, change.Samples)
	}
}

// TestSlave_SampleWeighting pins the weights of the two diffs with unequal values:
// the sync diff counts fully and the delay diff counts half.
func TestSlave_SampleWeighting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		origin  time.Time
		receipt time.Time
		want    offset.TimeOffset
	}{
		{
			name:    "both later",
			origin:  epoch.Add(-100 * time.Millisecond),
			receipt: epoch.Add(-40 * time.Millisecond),
			want:    offset.Later(120 * time.Millisecond),
		},
		{
			name:    "opposite signs",
			origin:  epoch.Add(-10 * time.Millisecond),
			receipt: epoch.Add(30 * time.Millisecond),
			want:    offset.Earlier(5 * time.Millisecond),
		},
		{
			name:    "only delay diff",
			origin:  epoch,
			receipt: epoch.Add(8 * time.Millisecond),
			want:    offset.Earlier(4 * time.Millisecond),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// The local clock stands still: t1_ and t2 are both epoch.
			s, notes, _ := newTestSlave(t, testutil.NewManualClock(epoch))

			feed(t, s, protocol.Sync{})
			feed(t, s, protocol.FollowUp{Origin: tc.origin})
			feed(t, s, protocol.DelayResp{Receipt: tc.receipt})

			got := drain(notes)
			require.Len(t, got, 1)
			require.Equal(t, tc.want, got[0].(ChangeOffset).Sample)
		})
	}
}

// TestSlave_SlaveAhead checks a slave ahead of the master reports Later and
// Correct moves local time back by the estimate.
func TestSlave_SlaveAhead(t *testing.T) {
	t.Parallel()

	master := testutil.NewManualClock(epoch)
	s, notes, _ := newTestSlave(t, clock.Skewed{Base: master, Skew: time.Second})

	exchange(t, s, master, time.Millisecond)

	// (1s + 1ms) + (1s - 1ms)/2
	want := offset.Later(1500500 * time.Microsecond)

	change := drain(notes)[0].(ChangeOffset)
	require.False(t, change.Offset.IsEarlier())
	require.Equal(t, want, change.Offset)

	local := master.Now().Add(time.Second)
	require.Equal(t, local.Add(-1500500*time.Microsecond), change.Offset.Correct(local))
}

// TestSlave_JitterAveraged averages samples biased by alternating asymmetric delays.
func TestSlave_JitterAveraged(t *testing.T) {
	t.Parallel()

	const skew = 40 * time.Millisecond

	master := testutil.NewManualClock(epoch)
	s, notes, _ := newTestSlave(t, clock.Skewed{Base: master, Skew: skew})

	for i := range 8 {
		t1 := master.Now()

		// Outbound and inbound delays swap each round.
		outbound, inbound := time.Millisecond, 3*time.Millisecond
		if i%2 == 1 {
			outbound, inbound = inbound, outbound
		}

		master.Advance(outbound)
		feed(t, s, protocol.Sync{})
		feed(t, s, protocol.FollowUp{Origin: t1})
		master.Advance(inbound)
		feed(t, s, protocol.DelayResp{Receipt: master.Now()})
		master.Advance(10 * time.Millisecond)
	}

	// Even rounds: 41ms + 37ms/2. Odd rounds: 43ms + 39ms/2.
	samples := []offset.TimeOffset{
		offset.Later(59500 * time.Microsecond),
		offset.Later(62500 * time.Microsecond),
	}

	var last ChangeOffset

	for i, note := range drain(notes) {
		change, ok := note.(ChangeOffset)
		require.True(t, ok)
		require.Equal(t, samples[i%2], change.Sample, "round %d", i)

		last = change
	}

	require.Equal(t, 8, last.Samples)
	require.Equal(t, offset.Later(61*time.Millisecond), last.Offset)
}

// TestSlave_Serve runs the loop over the in-memory socket until cancellation.
func TestSlave_Serve(t *testing.T) {
	t.Parallel()

	master := testutil.NewManualClock(epoch)
	s, notes, conn := newTestSlave(t, clock.Skewed{Base: master, Skew: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Serve(ctx) }()

	conn.Deliver(mustEncode(t, protocol.Sync{}), masterAddr)
	conn.Deliver(mustEncode(t, protocol.FollowUp{Origin: epoch}), masterAddr)

	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, time.Millisecond)

	conn.Deliver(mustEncode(t, protocol.DelayResp{Receipt: epoch}), masterAddr)

	select {
	case note := <-notes.C():
		change, ok := note.(ChangeOffset)
		require.True(t, ok)
		// 5ms + 5ms/2 with the master clock standing still.
		require.Equal(t, offset.Later(7500*time.Microsecond), change.Offset)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}

	_, open := <-notes.C()
	require.False(t, open)
}

// TestSlave_ServeConsumerClosed stops with ErrConsumerClosed once nobody reads.
func TestSlave_ServeConsumerClosed(t *testing.T) {
	t.Parallel()

	s, notes, conn := newTestSlave(t, testutil.NewManualClock(epoch))
	notes.Close()

	done := make(chan error, 1)

	go func() { done <- s.Serve(context.Background()) }()

	conn.Deliver(mustEncode(t, protocol.FollowUp{Origin: epoch}), masterAddr)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrConsumerClosed)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

// TestSlave_ServeClosedSocket returns the socket error when the connection is closed.
func TestSlave_ServeClosedSocket(t *testing.T) {
	t.Parallel()

	s, _, conn := newTestSlave(t, testutil.NewManualClock(epoch))
	require.NoError(t, conn.Close())

	err := s.Serve(context.Background())
	require.ErrorIs(t, err, net.ErrClosed)
}
